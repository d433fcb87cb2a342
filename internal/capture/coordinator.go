package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ivlev/comment2video/internal/config"
	"github.com/ivlev/comment2video/internal/logging"
)

// Coordinator owns the single recording session of an animation run. Begin
// walks the configured formats in order until one starts; End stops and
// finalizes exactly once.
type Coordinator struct {
	backend Backend
	formats []config.Format
	dir     string
	name    string
	log     *logging.Logger

	mu       sync.Mutex
	session  *Session
	begun    bool
	ended    bool
	artifact *Artifact
	onFinal  []func(Artifact)
}

// NewCoordinator records into dir/name+extension.
func NewCoordinator(b Backend, formats []config.Format, dir, name string, log *logging.Logger) *Coordinator {
	if log == nil {
		log = logging.Nop()
	}
	return &Coordinator{backend: b, formats: formats, dir: dir, name: name, log: log}
}

// OnFinalize registers fn to receive the artifact when End finalizes it.
func (c *Coordinator) OnFinalize(fn func(Artifact)) {
	c.mu.Lock()
	c.onFinal = append(c.onFinal, fn)
	c.mu.Unlock()
}

// Begin opens a stream on the surface and starts a session in the first
// format that works. When every format fails it returns an error wrapping
// ErrCaptureUnavailable and later Capture/End calls do nothing.
func (c *Coordinator) Begin(ctx context.Context, surface Surface, fps int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.begun {
		return fmt.Errorf("capture already begun")
	}
	c.begun = true

	stream, err := OpenStream(surface, fps)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}
	if c.backend == nil {
		return fmt.Errorf("%w: no capture backend", ErrCaptureUnavailable)
	}

	var errs []error
	for i, f := range c.formats {
		sess, err := c.start(ctx, stream, f)
		if err != nil {
			c.log.Warn("Format %s unavailable on %s: %v", f.Name, c.backend.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
			continue
		}
		if i > 0 {
			c.log.Info("Recording with fallback format %s", f.Name)
		}
		c.session = sess
		c.log.Info("Recording %dx%d@%d as %s (session %s)", stream.Width, stream.Height, fps, f.MimeType, sess.ID)
		return nil
	}
	return fmt.Errorf("%w: tried %s: %w", ErrCaptureUnavailable, names(c.formats), errors.Join(errs...))
}

func (c *Coordinator) start(ctx context.Context, s Stream, f config.Format) (*Session, error) {
	if err := c.backend.Supports(ctx, f); err != nil {
		return nil, err
	}
	sess, err := NewSession(c.backend, s, f)
	if err != nil {
		return nil, err
	}
	if err := sess.Start(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

func names(formats []config.Format) string {
	if len(formats) == 0 {
		return "no formats"
	}
	out := make([]string, len(formats))
	for i, f := range formats {
		out[i] = f.Name
	}
	return strings.Join(out, ", ")
}

// Active reports whether a session is recording.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && !c.ended
}

// Session returns the recording session, nil when capture is unavailable.
func (c *Coordinator) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Capture records the current surface image. Without an active session it
// does nothing.
func (c *Coordinator) Capture(img *image.RGBA) error {
	c.mu.Lock()
	sess := c.session
	ended := c.ended
	c.mu.Unlock()
	if sess == nil || ended {
		return nil
	}
	return sess.WriteFrame(img)
}

// End stops the session and finalizes the artifact. Only the first call
// does anything; later calls, and calls without a session, return the
// previous result.
func (c *Coordinator) End() (*Artifact, error) {
	c.mu.Lock()
	if c.ended || c.session == nil {
		a := c.artifact
		c.ended = true
		c.mu.Unlock()
		return a, nil
	}
	c.ended = true
	sess := c.session
	callbacks := c.onFinal
	c.mu.Unlock()

	if err := sess.Stop(); err != nil {
		return nil, fmt.Errorf("stop session %s: %w", sess.ID, err)
	}
	for _, fn := range callbacks {
		sess.OnFinalize(fn)
	}
	path := filepath.Join(c.dir, c.name+sess.Format.Extension)
	a, err := sess.Finalize(path)
	if err != nil {
		return nil, fmt.Errorf("finalize session %s: %w", sess.ID, err)
	}

	c.mu.Lock()
	c.artifact = &a
	c.mu.Unlock()
	return &a, nil
}

// Abort stops recording without producing an artifact.
func (c *Coordinator) Abort() {
	c.mu.Lock()
	if c.ended || c.session == nil {
		c.ended = true
		c.mu.Unlock()
		return
	}
	c.ended = true
	sess := c.session
	c.mu.Unlock()
	if err := sess.Stop(); err != nil {
		c.log.Warn("Stopping session %s: %v", sess.ID, err)
	}
}
