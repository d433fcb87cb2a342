package capture

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/comment2video/internal/config"
)

type State int

const (
	Created State = iota
	Started
	Stopped
	Finalized
)

func (s State) String() string {
	return [...]string{"created", "started", "stopped", "finalized"}[s]
}

// Artifact is the finalized recording.
type Artifact struct {
	SessionID string        `yaml:"session_id"`
	Path      string        `yaml:"path"`
	MimeType  string        `yaml:"mime_type"`
	Format    string        `yaml:"format"`
	Size      int64         `yaml:"size"`
	Frames    int           `yaml:"frames"`
	Duration  time.Duration `yaml:"duration"`
	Fragments int           `yaml:"fragments"`
}

// Session is one recording: created -> started -> stopped -> finalized.
// Encoded data fragments accumulate in memory until Finalize writes them
// out as a single file.
type Session struct {
	ID     string
	Format config.Format
	Stream Stream

	rec Recorder

	mu         sync.Mutex
	state      State
	fragments  [][]byte
	size       int64
	frames     int
	onFinalize []func(Artifact)
}

// NewSession creates a session recording stream s in format f.
func NewSession(b Backend, s Stream, f config.Format) (*Session, error) {
	sess := &Session{
		ID:     uuid.NewString(),
		Format: f,
		Stream: s,
	}
	rec, err := b.NewRecorder(s, f, sess.onData)
	if err != nil {
		return nil, err
	}
	sess.rec = rec
	return sess, nil
}

func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Created {
		return fmt.Errorf("session %s already %s", s.ID, s.state)
	}
	if err := s.rec.Start(ctx); err != nil {
		return err
	}
	s.state = Started
	return nil
}

// onData keeps a copy of one encoded fragment. Empty fragments are skipped.
func (s *Session) onData(p []byte) {
	if len(p) == 0 {
		return
	}
	frag := append([]byte(nil), p...)
	s.mu.Lock()
	s.fragments = append(s.fragments, frag)
	s.size += int64(len(frag))
	s.mu.Unlock()
}

func (s *Session) WriteFrame(img *image.RGBA) error {
	s.mu.Lock()
	if s.state != Started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.mu.Unlock()

	if err := s.rec.WriteFrame(img); err != nil {
		return err
	}
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
	return nil
}

// Stop ends recording. Stopping a session that is not recording is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state != Started {
		s.mu.Unlock()
		return nil
	}
	s.state = Stopped
	s.mu.Unlock()
	return s.rec.Stop()
}

// OnFinalize registers fn to receive the artifact.
func (s *Session) OnFinalize(fn func(Artifact)) {
	s.mu.Lock()
	s.onFinalize = append(s.onFinalize, fn)
	s.mu.Unlock()
}

// Finalize joins the fragments into the file at path.
func (s *Session) Finalize(path string) (Artifact, error) {
	s.mu.Lock()
	if s.state != Stopped {
		st := s.state
		s.mu.Unlock()
		return Artifact{}, fmt.Errorf("cannot finalize %s session", st)
	}
	fragments := s.fragments
	s.fragments = nil
	s.mu.Unlock()

	if err := writeFragments(path, fragments); err != nil {
		return Artifact{}, err
	}

	s.mu.Lock()
	s.state = Finalized
	a := Artifact{
		SessionID: s.ID,
		Path:      path,
		MimeType:  s.Format.MimeType,
		Format:    s.Format.Name,
		Size:      s.size,
		Frames:    s.frames,
		Fragments: len(fragments),
	}
	if s.Stream.FPS > 0 {
		a.Duration = time.Duration(s.frames) * time.Second / time.Duration(s.Stream.FPS)
	}
	callbacks := s.onFinalize
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(a)
	}
	return a, nil
}

func writeFragments(path string, fragments [][]byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	for _, frag := range fragments {
		if _, err := f.Write(frag); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return f.Close()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Frames reports how many frames were written.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Fragments reports how many data fragments are buffered.
func (s *Session) Fragments() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fragments)
}
