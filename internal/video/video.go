// Package video post-processes recorded clips with ffmpeg: narration audio,
// concatenation of a batch and ffprobe metadata.
package video

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/comment2video/internal/config"
	"github.com/ivlev/comment2video/internal/system"
)

// Clip is a finished video and its length.
type Clip struct {
	Path     string
	Duration time.Duration
}

// Editor runs the post-processing commands.
type Editor struct {
	FFmpeg  string
	FFprobe string
	// Codec re-encodes video when filters are needed; "auto" picks the best
	// H.264 encoder.
	Codec   string
	Quality int
}

func NewEditor(cfg *config.Config) *Editor {
	return &Editor{
		FFmpeg:  cfg.FFmpegPath,
		FFprobe: cfg.FFprobe,
		Codec:   "auto",
		Quality: cfg.Quality,
	}
}

// codec falls back to the best H.264 encoder when Codec is "auto" or not
// provided by this ffmpeg build.
func (e *Editor) codec(ctx context.Context) string {
	if e.Codec != "" && e.Codec != "auto" && system.EncoderSupported(ctx, e.FFmpeg, e.Codec) {
		return e.Codec
	}
	return system.GetBestH264Encoder(ctx, e.FFmpeg)
}

func (e *Editor) run(ctx context.Context, what string, args []string) error {
	cmd := exec.CommandContext(ctx, e.FFmpeg, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg %s error: %v, output: %s", what, err, lastLines(string(out), 12))
	}
	return nil
}

// MuxAudio adds audio to a clip, starting delay into the video. The video
// stream is copied and the result is cut to the video length.
func (e *Editor) MuxAudio(ctx context.Context, videoPath, audioPath, out string, delay time.Duration) error {
	for _, p := range []string{videoPath, audioPath} {
		if fi, err := os.Stat(p); err != nil || fi.IsDir() {
			return fmt.Errorf("invalid input file %s", p)
		}
	}
	return e.run(ctx, "mux", buildMuxArgs(videoPath, audioPath, out, delay))
}

func buildMuxArgs(videoPath, audioPath, out string, delay time.Duration) []string {
	args := []string{"-y", "-i", videoPath, "-i", audioPath}
	if ms := delay.Milliseconds(); ms > 0 {
		args = append(args,
			"-filter_complex", fmt.Sprintf("[1:a]adelay=%d|%d[a]", ms, ms),
			"-map", "0:v", "-map", "[a]")
	} else {
		args = append(args, "-map", "0:v", "-map", "1:a")
	}
	args = append(args, "-c:v", "copy")
	args = append(args, audioCodec(out)...)
	return append(args, "-shortest", out)
}

// audioCodec picks an audio encoder the output container accepts.
func audioCodec(out string) []string {
	if strings.EqualFold(filepath.Ext(out), ".webm") {
		return []string{"-c:a", "libopus", "-b:a", "128k"}
	}
	return []string{"-c:a", "aac", "-b:a", "192k"}
}

// Concatenate joins clips into out. Without a transition the concat demuxer
// copies the streams; with one, an xfade chain re-encodes the video and the
// audio, when present, is crossfaded to match.
func (e *Editor) Concatenate(ctx context.Context, clips []Clip, out, tmpDir, transition string, fade time.Duration, withAudio bool) error {
	if len(clips) == 0 {
		return fmt.Errorf("nothing to concatenate")
	}
	if !useXfade(transition, len(clips)) {
		list := filepath.Join(tmpDir, "inputs.txt")
		if err := writeConcatList(list, clips); err != nil {
			return err
		}
		defer os.Remove(list)
		return e.run(ctx, "concat", buildConcatArgs(list, out))
	}
	return e.run(ctx, "xfade", buildXfadeArgs(clips, out, transition, fade, withAudio, e.codec(ctx), e.Quality))
}

func useXfade(transition string, n int) bool {
	return transition != "" && transition != "none" && n > 1
}

func writeConcatList(path string, clips []Clip) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	for _, c := range clips {
		abs, err := filepath.Abs(c.Path)
		if err != nil {
			f.Close()
			return err
		}
		fmt.Fprintf(f, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	return f.Close()
}

func buildConcatArgs(list, out string) []string {
	return []string{"-y", "-f", "concat", "-safe", "0", "-i", list, "-c", "copy", out}
}

// buildXfadeArgs chains xfade between consecutive clips. Each offset is the
// running length minus one fade, so every transition overlaps the tail of
// the previous clip.
func buildXfadeArgs(clips []Clip, out, transition string, fade time.Duration, withAudio bool, enc string, quality int) []string {
	args := []string{"-y"}
	for _, c := range clips {
		args = append(args, "-i", c.Path)
	}

	fd := fade.Seconds()
	var graph []string
	lastV, lastA := "[0:v]", "[0:a]"
	offset := 0.0
	for i := 1; i < len(clips); i++ {
		offset += clips[i-1].Duration.Seconds() - fd
		v := fmt.Sprintf("[v%d]", i)
		graph = append(graph, fmt.Sprintf("%s[%d:v]xfade=transition=%s:duration=%f:offset=%f%s",
			lastV, i, transition, fd, offset, v))
		lastV = v
		if withAudio {
			a := fmt.Sprintf("[a%d]", i)
			graph = append(graph, fmt.Sprintf("%s[%d:a]acrossfade=d=%f%s", lastA, i, fd, a))
			lastA = a
		}
	}

	args = append(args, "-filter_complex", strings.Join(graph, ";"), "-map", lastV)
	if withAudio {
		args = append(args, "-map", lastA)
		args = append(args, audioCodec(out)...)
	}
	args = append(args, "-c:v", enc, "-pix_fmt", "yuv420p")
	args = append(args, system.QualityArgs(enc, quality)...)
	return append(args, out)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
