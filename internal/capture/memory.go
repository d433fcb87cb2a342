package capture

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/ivlev/comment2video/internal/config"
)

// Memory is a backend that encodes nothing. Every frame becomes a short text
// fragment, which is enough to follow a run without ffmpeg. Formats listed
// in Reject are reported unsupported.
type Memory struct {
	Reject map[string]bool
	// FailStart makes Start fail for the named formats after Supports passed.
	FailStart map[string]bool

	mu        sync.Mutex
	recorders []*MemoryRecorder
}

func NewMemory(reject ...string) *Memory {
	m := &Memory{Reject: map[string]bool{}, FailStart: map[string]bool{}}
	for _, name := range reject {
		m.Reject[name] = true
	}
	return m
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Supports(_ context.Context, f config.Format) error {
	if m.Reject[f.Name] {
		return fmt.Errorf("%w: %s rejected", ErrUnsupportedFormat, f.Name)
	}
	return nil
}

func (m *Memory) NewRecorder(s Stream, f config.Format, onData func([]byte)) (Recorder, error) {
	r := &MemoryRecorder{stream: s, format: f, onData: onData, failStart: m.FailStart[f.Name]}
	m.mu.Lock()
	m.recorders = append(m.recorders, r)
	m.mu.Unlock()
	return r, nil
}

// Recorders returns every recorder created so far.
func (m *Memory) Recorders() []*MemoryRecorder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MemoryRecorder(nil), m.recorders...)
}

type MemoryRecorder struct {
	stream    Stream
	format    config.Format
	onData    func([]byte)
	failStart bool

	mu      sync.Mutex
	started bool
	stopped bool
	frames  int
	stops   int
}

func (r *MemoryRecorder) Start(context.Context) error {
	if r.failStart {
		return fmt.Errorf("%w: %s failed to start", ErrUnsupportedFormat, r.format.Name)
	}
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	r.onData([]byte(fmt.Sprintf("%s %dx%d@%d\n", r.format.Name, r.stream.Width, r.stream.Height, r.stream.FPS)))
	return nil
}

func (r *MemoryRecorder) WriteFrame(img *image.RGBA) error {
	r.mu.Lock()
	if !r.started || r.stopped {
		r.mu.Unlock()
		return ErrNotStarted
	}
	r.frames++
	n := r.frames
	r.mu.Unlock()

	var b image.Rectangle
	if img != nil {
		b = img.Rect
	}
	r.onData([]byte(fmt.Sprintf("frame %d %dx%d\n", n, b.Dx(), b.Dy())))
	return nil
}

func (r *MemoryRecorder) Stop() error {
	r.mu.Lock()
	r.stopped = true
	r.stops++
	r.mu.Unlock()
	return nil
}

func (r *MemoryRecorder) Format() config.Format { return r.format }

func (r *MemoryRecorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Stops reports how many times Stop was called.
func (r *MemoryRecorder) Stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}
