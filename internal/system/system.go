package system

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ivlev/comment2video/internal/logging"
)

// AudioExtensions are the narration formats picked up from audio_dir.
var AudioExtensions = []string{".mp3", ".wav", ".m4a", ".ogg", ".aac", ".flac"}

// InitResourceLimits raises the open file limit. Batch runs keep one ffmpeg
// pipe set per worker open.
func InitResourceLimits(log *logging.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn("Could not read open file limit: %v", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn("Could not raise open file limit: %v", err)
	} else {
		log.Info("Open file limit raised to %d", rLimit.Cur)
	}
}

// FindLatest returns the most recently modified file in dir whose extension
// is one of exts (case-insensitive).
func FindLatest(dir string, exts []string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !hasExt(f.Name(), exts) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if latestFile == "" || info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no %s files in %s", strings.Join(exts, "/"), dir)
	}
	return latestFile, nil
}

func hasExt(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// GetAudioDuration asks ffprobe for the container duration of path.
func GetAudioDuration(ctx context.Context, ffprobe, path string) (time.Duration, error) {
	if ffprobe == "" {
		ffprobe = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, ffprobe, "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(string(out)))
	}
	return ParseSeconds(string(out))
}

// ParseSeconds converts ffprobe's decimal seconds into a Duration.
func ParseSeconds(s string) (time.Duration, error) {
	sec, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("bad duration %q: %w", strings.TrimSpace(s), err)
	}
	if sec < 0 {
		return 0, fmt.Errorf("negative duration %q", strings.TrimSpace(s))
	}
	return time.Duration(sec * float64(time.Second)), nil
}

var (
	encMu    sync.Mutex
	encCache = map[string]map[string]bool{}
)

// ListEncoders returns the video encoders ffmpeg was built with. Results are
// cached per binary.
func ListEncoders(ctx context.Context, ffmpeg string) (map[string]bool, error) {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	encMu.Lock()
	defer encMu.Unlock()
	if set, ok := encCache[ffmpeg]; ok {
		return set, nil
	}

	out, err := exec.CommandContext(ctx, ffmpeg, "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil, fmt.Errorf("%s -encoders: %w", ffmpeg, err)
	}
	set := ParseEncoders(out)
	encCache[ffmpeg] = set
	return set, nil
}

// ParseEncoders reads the table printed by `ffmpeg -encoders`. Only video
// encoders (flags starting with V) are kept.
func ParseEncoders(out []byte) map[string]bool {
	set := map[string]bool{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	table := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "------") {
			table = true
			continue
		}
		if !table {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "V") {
			continue
		}
		set[fields[1]] = true
	}
	return set
}

// EncoderSupported reports whether ffmpeg lists the encoder.
func EncoderSupported(ctx context.Context, ffmpeg, name string) bool {
	set, err := ListEncoders(ctx, ffmpeg)
	if err != nil {
		return false
	}
	return set[name]
}

// GetBestH264Encoder prefers hardware H.264 encoders and falls back to
// libx264.
func GetBestH264Encoder(ctx context.Context, ffmpeg string) string {
	set, err := ListEncoders(ctx, ffmpeg)
	if err != nil {
		return "libx264"
	}
	return bestH264(set)
}

func bestH264(set map[string]bool) string {
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if set[name] {
			return name
		}
	}
	return "libx264"
}

// H264Candidates lists the H.264 encoders in set, hardware first.
func H264Candidates(set map[string]bool) []string {
	var out []string
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc", "libx264"} {
		if set[name] {
			out = append(out, name)
		}
	}
	return out
}

// QualityArgs maps a 0..51 quality value onto the rate control options of
// the given encoder. Lower is better, as with CRF.
func QualityArgs(enc string, quality int) []string {
	switch enc {
	case "h264_videotoolbox":
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	case "libvpx-vp9", "libvpx":
		return []string{"-b:v", "0", "-crf", fmt.Sprintf("%d", quality+10), "-deadline", "realtime", "-row-mt", "1"}
	default: // libx264
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", "medium"}
	}
}
