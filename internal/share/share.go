// Package share publishes a finished artifact as a download link and a QR
// code pointing at it.
package share

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// DownloadURL joins the artifact's file name onto base. Without a base it
// returns a file:// URL to the absolute path.
func DownloadURL(path, base string) (string, error) {
	if base == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", err
		}
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid public url %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("public url %q needs a scheme and host", base)
	}
	return u.JoinPath(filepath.Base(path)).String(), nil
}

// WriteQR encodes link as a size x size PNG at path.
func WriteQR(link, path string, size int) error {
	if size <= 0 {
		size = 256
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return qrcode.WriteFile(link, qrcode.Medium, size, path)
}

// QRPath is where the QR image of an artifact goes: next to it, with a
// _qr.png suffix.
func QRPath(artifact string) string {
	return strings.TrimSuffix(artifact, filepath.Ext(artifact)) + "_qr.png"
}
