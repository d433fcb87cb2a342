package system

import (
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseEncoders(t *testing.T) {
	out := []byte(`Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
 V....D libvpx-vp9           libvpx VP9 (codec vp9)
 A....D aac                  AAC (Advanced Audio Coding)
`)
	set := ParseEncoders(out)
	for _, name := range []string{"libx264", "h264_nvenc", "libvpx-vp9"} {
		if !set[name] {
			t.Errorf("expected %s in %v", name, set)
		}
	}
	if set["aac"] {
		t.Error("audio encoder listed as video")
	}
	if set["="] || set["Video"] {
		t.Error("legend parsed as encoders")
	}
	if got := bestH264(set); got != "h264_nvenc" {
		t.Errorf("expected h264_nvenc, got %s", got)
	}
	if got := bestH264(map[string]bool{"libx264": true}); got != "libx264" {
		t.Errorf("expected libx264 fallback, got %s", got)
	}
}

func TestH264Candidates(t *testing.T) {
	got := H264Candidates(map[string]bool{"libx264": true, "h264_nvenc": true, "libvpx-vp9": true})
	if strings.Join(got, ",") != "h264_nvenc,libx264" {
		t.Errorf("candidates = %v", got)
	}
	if got := H264Candidates(map[string]bool{"libvpx-vp9": true}); len(got) != 0 {
		t.Errorf("expected no H.264 encoders, got %v", got)
	}
}

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"12.500000\n", 12500 * time.Millisecond, false},
		{"3", 3 * time.Second, false},
		{"N/A", 0, true},
		{"-1", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSeconds(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSeconds(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSeconds(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "comment_0.mp3")
	recent := filepath.Join(dir, "comment_1.MP3")
	for _, p := range []string{old, recent, filepath.Join(dir, "notes.txt")} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	got, err := FindLatest(dir, AudioExtensions)
	if err != nil {
		t.Fatalf("FindLatest failed: %v", err)
	}
	if got != recent {
		t.Errorf("expected %s, got %s", recent, got)
	}
	if _, err := FindLatest(dir, []string{".png"}); err == nil {
		t.Error("expected error when nothing matches")
	}
}

func TestImagePoolClearsReusedImages(t *testing.T) {
	p := NewImagePool()
	rect := image.Rect(0, 0, 4, 4)
	img := p.Get(rect)
	img.Pix[0] = 255
	p.Put(img)

	again := p.Get(rect)
	if again.Rect != rect {
		t.Fatalf("expected bounds %v, got %v", rect, again.Rect)
	}
	for i, v := range again.Pix {
		if v != 0 {
			t.Fatalf("pixel byte %d not cleared", i)
		}
	}
	p.Put(image.NewRGBA(image.Rect(0, 0, 1, 1))) // unknown size is dropped
}

func TestHumanBytes(t *testing.T) {
	tests := map[uint64]string{
		512:             "512 B",
		2048:            "2.0 KiB",
		5 * 1024 * 1024: "5.0 MiB",
	}
	for in, want := range tests {
		if got := HumanBytes(in); got != want {
			t.Errorf("HumanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
