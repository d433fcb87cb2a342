package video

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// Info is what ffprobe reports about a media file.
type Info struct {
	Filename string        `yaml:"filename"`
	Duration time.Duration `yaml:"-"`
	Size     int64         `yaml:"-"`
	BitRate  int64         `yaml:"-"`
	Streams  []StreamInfo  `yaml:"streams"`

	// Human readable copies for metadata files.
	DurationText string `yaml:"duration"`
	SizeText     string `yaml:"size"`
	BitRateText  string `yaml:"bitrate"`
}

type StreamInfo struct {
	CodecType string `yaml:"codec_type"`
	CodecName string `yaml:"codec_name"`
	Width     int    `yaml:"width,omitempty"`
	Height    int    `yaml:"height,omitempty"`
	BitRate   string `yaml:"bit_rate,omitempty"`
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
		Size     string `json:"size"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		BitRate   string `json:"bit_rate"`
	} `json:"streams"`
}

// Probe runs ffprobe on path.
func (e *Editor) Probe(ctx context.Context, path string) (*Info, error) {
	cmd := exec.CommandContext(ctx, e.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration,bit_rate,size",
		"-show_streams",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	info, err := parseProbe(out)
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	info.Filename = filepath.Base(path)
	return info, nil
}

func parseProbe(data []byte) (*Info, error) {
	var p probeOutput
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	info := &Info{}
	if p.Format.Duration != "" {
		secs, err := strconv.ParseFloat(p.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q", p.Format.Duration)
		}
		info.Duration = time.Duration(math.Round(secs * float64(time.Second)))
	}
	info.Size, _ = strconv.ParseInt(p.Format.Size, 10, 64)
	info.BitRate, _ = strconv.ParseInt(p.Format.BitRate, 10, 64)
	info.DurationText = FormatClock(info.Duration)
	info.SizeText = FormatSize(info.Size)
	info.BitRateText = FormatBitrate(info.BitRate)

	for _, s := range p.Streams {
		si := StreamInfo{CodecType: s.CodecType, CodecName: s.CodecName, Width: s.Width, Height: s.Height}
		if br, err := strconv.ParseInt(s.BitRate, 10, 64); err == nil {
			si.BitRate = FormatBitrate(br)
		}
		info.Streams = append(info.Streams, si)
	}
	return info, nil
}

// FormatClock renders d as HH:MM:SS.
func FormatClock(d time.Duration) string {
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}

// FormatSize renders n bytes in 1024 steps with two decimals.
func FormatSize(n int64) string {
	return scaled(float64(n), 1024, []string{"B", "KB", "MB", "GB", "TB"})
}

// FormatBitrate renders bits per second in 1000 steps.
func FormatBitrate(bps int64) string {
	return scaled(float64(bps), 1000, []string{"bps", "Kbps", "Mbps", "Gbps"})
}

func scaled(v, base float64, units []string) string {
	if v <= 0 {
		return "0 " + units[0]
	}
	i := int(math.Floor(math.Log(v) / math.Log(base)))
	if i >= len(units) {
		i = len(units) - 1
	}
	return fmt.Sprintf("%.2f %s", v/math.Pow(base, float64(i)), units[i])
}
