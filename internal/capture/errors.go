package capture

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrCaptureUnavailable means no configured format could be recorded.
	// The animation still runs; no artifact is produced.
	ErrCaptureUnavailable = errors.New("capture unavailable")
	// ErrUnsupportedFormat means the host cannot encode one format.
	ErrUnsupportedFormat = errors.New("unsupported capture format")
	// ErrNotStarted is returned when frames are written to a session that
	// is not recording.
	ErrNotStarted = errors.New("capture session not started")
)

var (
	reUnknownEncoder = regexp.MustCompile(`(?i)unknown encoder|encoder not found|could not find codec`)
	reEncoderInit    = regexp.MustCompile(`(?i)error (?:while opening|initializing) (?:encoder|output stream)|incorrect codec parameters`)
	reFrameSize      = regexp.MustCompile(`(?i)invalid (?:frame|video) size|width .* not divisible by 2|height .* not divisible by 2`)
	reMuxer          = regexp.MustCompile(`(?i)requested output format .* is not a suitable output format|could not write header`)
)

// classify maps ffmpeg stderr onto the capture error kinds. Encoder and
// muxer failures make the format unsupported so the next one is tried.
func classify(stderr string, err error) error {
	tail := lastLines(stderr, 4)
	switch {
	case reUnknownEncoder.MatchString(stderr), reEncoderInit.MatchString(stderr), reMuxer.MatchString(stderr):
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, tail)
	case reFrameSize.MatchString(stderr):
		return fmt.Errorf("invalid frame size: %s", tail)
	case err != nil && tail != "":
		return fmt.Errorf("%w: %s", err, tail)
	}
	return err
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}
