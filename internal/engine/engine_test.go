package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ivlev/comment2video/internal/capture"
	"github.com/ivlev/comment2video/internal/config"
	"github.com/ivlev/comment2video/internal/source"
	"github.com/ivlev/comment2video/internal/video"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Duration = config.Duration(500 * time.Millisecond)
	cfg.SettleDelay = config.Duration(100 * time.Millisecond)
	cfg.FPS = 10
	cfg.Width, cfg.Height, cfg.Scale = 400, 240, 1
	cfg.OutputDir = t.TempDir()
	cfg.Workers = 2
	return cfg
}

func TestRevealDuration(t *testing.T) {
	cfg := config.DefaultConfig()
	tests := []struct {
		name  string
		sync  bool
		audio time.Duration
		want  time.Duration
	}{
		{"no audio", true, 0, 10 * time.Second},
		{"audio drives timing", true, 7 * time.Second, 7 * time.Second},
		{"sync disabled", false, 7 * time.Second, 10 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg.AudioSync = tt.sync
			if got := RevealDuration(cfg, tt.audio); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProjectRendersEveryComment(t *testing.T) {
	cfg := testConfig(t)
	src := source.FromComments([]source.Comment{
		{Author: "alice", Votes: "10", Text: "first comment with a handful of words"},
		{Author: "bob", Votes: "3", Text: "second\n\nwith two paragraphs"},
		{Author: "carol", Text: ""},
	})
	mem := capture.NewMemory()
	meta, err := NewProject(cfg, src, mem, nil, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if meta.RunID == "" || len(meta.Outputs) != 3 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	for i, o := range meta.Outputs {
		if o.Index != i || o.Artifact == nil {
			t.Fatalf("output %d incomplete: %+v", i, o)
		}
		want := filepath.Join(cfg.OutputDir, "comment_"+string(rune('0'+i))+".mp4")
		if o.File != want {
			t.Errorf("output %d file = %s, want %s", i, o.File, want)
		}
		if _, err := os.Stat(o.File); err != nil {
			t.Errorf("clip %d missing: %v", i, err)
		}
	}
	if meta.Outputs[0].Chunks != 2 || meta.Outputs[2].Chunks != 0 {
		t.Errorf("chunk counts %d, %d", meta.Outputs[0].Chunks, meta.Outputs[2].Chunks)
	}
	if len(mem.Recorders()) != 3 {
		t.Errorf("expected one recorder per comment, got %d", len(mem.Recorders()))
	}

	back, err := ReadMetadata(filepath.Join(cfg.OutputDir, MetadataFile))
	if err != nil {
		t.Fatalf("ReadMetadata failed: %v", err)
	}
	if back.RunID != meta.RunID || len(back.Outputs) != 3 || back.Outputs[1].Author != "bob" {
		t.Errorf("metadata round trip lost data: %+v", back)
	}
	if back.Outputs[0].Reveal != cfg.Duration {
		t.Errorf("reveal = %s, want %s", back.Outputs[0].Reveal, cfg.Duration)
	}
}

func TestProjectDegradedCapture(t *testing.T) {
	cfg := testConfig(t)
	src := source.FromComments([]source.Comment{{Text: "no recorder at all"}})
	meta, err := NewProject(cfg, src, capture.NewMemory("mp4", "webm"), nil, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("a capture failure must not fail the batch: %v", err)
	}
	if o := meta.Outputs[0]; !o.Degraded || o.Artifact != nil || o.File != "" {
		t.Errorf("expected a degraded output, got %+v", o)
	}

	cfg.Combine = true
	src = source.FromComments([]source.Comment{{Text: "first"}, {Text: "second"}})
	meta, err = NewProject(cfg, src, capture.NewMemory("mp4", "webm"), fakeEditor(t), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("combine with no clips must not fail the batch: %v", err)
	}
	if meta.Combined != "" {
		t.Errorf("nothing to combine, got %q", meta.Combined)
	}
	if _, err := ReadMetadata(filepath.Join(cfg.OutputDir, MetadataFile)); err != nil {
		t.Errorf("metadata not written: %v", err)
	}
}

// flakyBackend rejects the first failures format checks.
type flakyBackend struct {
	*capture.Memory
	mu       sync.Mutex
	failures int
}

func (b *flakyBackend) Supports(ctx context.Context, f config.Format) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures > 0 {
		b.failures--
		return capture.ErrUnsupportedFormat
	}
	return b.Memory.Supports(ctx, f)
}

// fakeEditor runs a shell script that writes its last argument.
func fakeEditor(t *testing.T) *video.Editor {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	script := filepath.Join(t.TempDir(), "ffmpeg")
	body := "#!/bin/sh\nfor last; do :; done\nprintf 'joined' > \"$last\"\n"
	if err := os.WriteFile(script, []byte(body), 0755); err != nil {
		t.Fatal(err)
	}
	return &video.Editor{FFmpeg: script, FFprobe: filepath.Join(t.TempDir(), "missing-ffprobe"), Codec: "libx264"}
}

func TestProjectCombinesAroundDegradedComment(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workers = 1
	cfg.Combine = true
	src := source.FromComments([]source.Comment{{Text: "not recorded"}, {Text: "recorded fine"}})
	// both formats of the first comment fail
	b := &flakyBackend{Memory: capture.NewMemory(), failures: 2}

	meta, err := NewProject(cfg, src, b, fakeEditor(t), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("a degraded comment must not fail the batch: %v", err)
	}
	if !meta.Outputs[0].Degraded || meta.Outputs[1].File == "" {
		t.Fatalf("unexpected outputs %+v", meta.Outputs)
	}
	if meta.Combined != filepath.Join(cfg.OutputDir, "combined.mp4") {
		t.Errorf("combined = %q", meta.Combined)
	}
	if _, err := os.Stat(meta.Combined); err != nil {
		t.Errorf("combined video missing: %v", err)
	}
	if _, err := ReadMetadata(filepath.Join(cfg.OutputDir, MetadataFile)); err != nil {
		t.Errorf("metadata not written: %v", err)
	}
}

func TestProjectErrors(t *testing.T) {
	cfg := testConfig(t)
	if _, err := NewProject(cfg, source.FromComments(nil), capture.NewMemory(), nil, nil).Run(context.Background()); err == nil {
		t.Error("expected error for an empty source")
	}

	cfg.Width = 20
	_, err := NewProject(cfg, source.FromComments([]source.Comment{{Text: "x"}}), capture.NewMemory(), nil, nil).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "comment 0") {
		t.Errorf("expected a per-comment error, got %v", err)
	}
}

func TestAudioFor(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "comment_1.mp3"), []byte("id3"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg.AudioDir = dir
	p := NewProject(cfg, source.FromComments(make([]source.Comment, 2)), nil, nil, nil)
	if got := p.audioFor(0); got != "" {
		t.Errorf("comment 0 has no audio, got %s", got)
	}
	if got := p.audioFor(1); got != filepath.Join(dir, "comment_1.mp3") {
		t.Errorf("comment 1 audio = %s", got)
	}

	cfg.AudioPath = "narration.mp3"
	single := NewProject(cfg, source.FromComments(make([]source.Comment, 1)), nil, nil, nil)
	if got := single.audioFor(0); got != "narration.mp3" {
		t.Errorf("single comment should use the configured audio, got %s", got)
	}
}
