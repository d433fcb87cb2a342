package card

import (
	"fmt"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// typeface is a parsed font plus its family name.
type typeface struct {
	font   *opentype.Font
	family string
}

func parseTypeface(data []byte) (*typeface, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, err
	}
	family, err := f.Name(nil, sfnt.NameIDFamily)
	if err != nil || family == "" {
		family = "sans-serif"
	}
	return &typeface{font: f, family: family}, nil
}

// loadTypefaces returns the body and author typefaces. A custom font file
// is used for both; otherwise Go Regular and Go Bold.
func loadTypefaces(path string) (body, bold *typeface, err error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read font: %w", err)
		}
		tf, err := parseTypeface(data)
		if err != nil {
			return nil, nil, fmt.Errorf("parse font %s: %w", path, err)
		}
		return tf, tf, nil
	}
	if body, err = parseTypeface(goregular.TTF); err != nil {
		return nil, nil, err
	}
	if bold, err = parseTypeface(gobold.TTF); err != nil {
		return nil, nil, err
	}
	return body, bold, nil
}

// newFace builds a face at size logical px rendered at scale.
func (tf *typeface) newFace(size, scale float64) (font.Face, error) {
	return opentype.NewFace(tf.font, &opentype.FaceOptions{
		Size:    size * scale,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

func toFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }

func toFixed(v float64) fixed.Int26_6 { return fixed.Int26_6(v * 64) }
