package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/ivlev/comment2video/internal/animation"
	"github.com/ivlev/comment2video/internal/config"
)

func TestConfigLayering(t *testing.T) {
	cfg = config.DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	bindConfigFlags(fs, cfg)
	if err := fs.Parse([]string{"--fps", "30", "--duration", "2s", "--output", "from-flag"}); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "c2v.yaml")
	if err := os.WriteFile(path, []byte("fps: 25\nchunk_words: 7\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("C2V_OUTPUT_DIR", "from-env")
	t.Setenv("C2V_FFMPEG", "/opt/ffmpeg")
	if err := layerConfig(fs, path); err != nil {
		t.Fatal(err)
	}
	if cfg.FPS != 30 || cfg.Duration.Std() != 2*time.Second {
		t.Errorf("flags lost: fps %d, duration %s", cfg.FPS, cfg.Duration)
	}
	if cfg.OutputDir != "from-flag" {
		t.Errorf("flag should beat the environment, got %s", cfg.OutputDir)
	}
	if cfg.FFmpegPath != "/opt/ffmpeg" {
		t.Errorf("environment lost: ffmpeg %s", cfg.FFmpegPath)
	}
	if cfg.ChunkWords != 7 {
		t.Errorf("file value lost: chunk_words %d", cfg.ChunkWords)
	}
}

func TestWritePlan(t *testing.T) {
	c := config.DefaultConfig()
	c.Duration = config.Duration(time.Second)
	plan, err := animation.NewPlan("one two three four five six seven", c, nil)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	writePlan(&buf, plan)
	out := buf.String()
	for _, want := range []string{"CHUNK", "one two three four five", "six seven", "7 words, 2 chunk(s), 1 section(s) over 1s"} {
		if !strings.Contains(out, want) {
			t.Errorf("plan output missing %q:\n%s", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("ünïcode text here", 8); got != "ünïco..." {
		t.Errorf("got %q", got)
	}
}
