package source

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
)

var avatarExts = []string{".png", ".jpg", ".jpeg"}

// FindAvatar looks for dir/<author>.png|jpg|jpeg. It returns "" when there is
// none.
func FindAvatar(dir, author string) string {
	if dir == "" || author == "" {
		return ""
	}
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, author)
	for _, ext := range avatarExts {
		p := filepath.Join(dir, name+ext)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}

// ResolveAvatars fills in missing avatars from dir.
func ResolveAvatars(comments []Comment, dir string) {
	for i := range comments {
		if comments[i].Avatar == "" {
			comments[i].Avatar = FindAvatar(dir, comments[i].Author)
		}
	}
}

// ImageSize decodes only the header of an image file.
func ImageSize(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}
