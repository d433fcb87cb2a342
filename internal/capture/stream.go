package capture

import (
	"context"
	"fmt"
	"image"

	"github.com/ivlev/comment2video/internal/config"
)

// Surface is anything frames can be captured from.
type Surface interface {
	Bounds() image.Rectangle
}

// Stream describes the frames a recorder receives.
type Stream struct {
	Width  int
	Height int
	FPS    int
}

// OpenStream binds a capture stream to the surface at the target rate.
// Encoders need even dimensions.
func OpenStream(s Surface, fps int) (Stream, error) {
	if s == nil {
		return Stream{}, fmt.Errorf("no render surface")
	}
	b := s.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return Stream{}, fmt.Errorf("empty render surface %v", b)
	}
	if b.Dx()%2 != 0 || b.Dy()%2 != 0 {
		return Stream{}, fmt.Errorf("render surface %dx%d must have even dimensions", b.Dx(), b.Dy())
	}
	if fps <= 0 {
		return Stream{}, fmt.Errorf("frame rate must be positive (got %d)", fps)
	}
	return Stream{Width: b.Dx(), Height: b.Dy(), FPS: fps}, nil
}

// FrameSize is the byte length of one raw RGBA frame.
func (s Stream) FrameSize() int { return s.Width * s.Height * 4 }

// Recorder encodes frames of one stream. Encoded bytes are delivered to the
// data callback given to Backend.NewRecorder as they are produced.
type Recorder interface {
	Start(ctx context.Context) error
	WriteFrame(img *image.RGBA) error
	// Stop flushes the encoder. All data is delivered before it returns.
	Stop() error
}

// Backend creates recorders for the formats it can encode.
type Backend interface {
	Name() string
	// Supports returns nil when f can be recorded on this host.
	Supports(ctx context.Context, f config.Format) error
	NewRecorder(s Stream, f config.Format, onData func([]byte)) (Recorder, error)
}
