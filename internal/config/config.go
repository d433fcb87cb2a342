// Package config holds the runtime settings of a render: animation timing,
// chunking policy, canvas geometry, capture formats and output paths.
// Values come from DefaultConfig, then an optional YAML file, then the
// environment, then CLI flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FadeStyle selects how long a chunk's opacity ramp lasts.
type FadeStyle string

const (
	FadeFull FadeStyle = "full" // ramp over the whole chunk window
	FadeHalf FadeStyle = "half" // ramp over the first half of the window
)

// Chunking selects whether chunks may cross paragraph boundaries.
type Chunking string

const (
	ChunkFlat      Chunking = "flat"
	ChunkParagraph Chunking = "paragraph"
)

// Sections selects how reveal chunks are grouped into screens.
type Sections string

const (
	SectionsNone      Sections = "none"
	SectionsParagraph Sections = "paragraph"
	SectionsPage      Sections = "page"
)

// Timing selects the reveal tick model.
type Timing string

const (
	TimingFrame    Timing = "frame"    // display-synchronised ticks with opacity ramps
	TimingDeferred Timing = "deferred" // per-word callbacks at precomputed offsets
)

// ClockMode selects the clock driving a run.
type ClockMode string

const (
	ClockVirtual  ClockMode = "virtual"
	ClockRealtime ClockMode = "realtime"
)

// Easing shapes the fade ramp.
type Easing string

const (
	EaseLinear Easing = "linear"
	EaseCubic  Easing = "cubic"
)

// ColorMode controls ANSI colours in log output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// Duration is a time.Duration that reads either Go syntax ("10s") or plain
// milliseconds ("10000") from YAML and flags.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// Set implements pflag.Value.
func (d *Duration) Set(s string) error {
	v, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Type implements pflag.Value.
func (d *Duration) Type() string { return "duration" }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.Set(value.Value)
}

// ParseDuration accepts "1.5s", "500ms" or a bare integer of milliseconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// Format describes one capture encoding the recorder may try.
type Format struct {
	Name      string `yaml:"name"`      // "mp4", "webm"
	MimeType  string `yaml:"mime_type"` // reported on the artifact
	Codec     string `yaml:"codec"`     // ffmpeg encoder; "auto" picks the best H.264 encoder
	Extension string `yaml:"extension"`
}

type Config struct {
	// Animation.
	Duration     Duration  `yaml:"duration"`
	SettleDelay  Duration  `yaml:"settle_delay"`
	ChunkWords   int       `yaml:"chunk_words"`
	SectionWords int       `yaml:"section_words"`
	Fade         FadeStyle `yaml:"fade"`
	Easing       Easing    `yaml:"easing"`
	Chunking     Chunking  `yaml:"chunking"`
	Sections     Sections  `yaml:"sections"`
	Timing       Timing    `yaml:"timing"`
	Clock        ClockMode `yaml:"clock"`
	FPS          int       `yaml:"fps"`

	// Card.
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Scale      float64 `yaml:"scale"`
	FontPath   string  `yaml:"font_path"`
	FontSize   float64 `yaml:"font_size"`
	LineHeight float64 `yaml:"line_height"`
	Date       string  `yaml:"date"`

	// Capture.
	Formats    []Format `yaml:"formats"`
	Quality    int      `yaml:"quality"`
	FFmpegPath string   `yaml:"ffmpeg"`
	FFprobe    string   `yaml:"ffprobe"`

	// Output.
	OutputDir   string   `yaml:"output_dir"`
	AudioPath   string   `yaml:"audio"`
	AudioDir    string   `yaml:"audio_dir"`
	AvatarDir   string   `yaml:"avatar_dir"`
	AudioSync   bool     `yaml:"audio_sync"`
	AudioDelay  Duration `yaml:"audio_delay"`
	Combine     bool     `yaml:"combine"`
	Transition  string   `yaml:"transition"`
	FadeBetween float64  `yaml:"transition_duration"`
	Workers     int      `yaml:"workers"`
	QRCode      bool     `yaml:"qr"`
	PublicURL   string   `yaml:"public_url"`
	ShowStats   bool     `yaml:"stats"`

	// Logging.
	LogFile   string    `yaml:"log_file"`
	ColorMode ColorMode `yaml:"color"`
	Verbose   bool      `yaml:"verbose"`
}

// PrimaryFormat and FallbackFormat mirror the recorder's mp4 -> webm chain.
var (
	PrimaryFormat = Format{
		Name:      "mp4",
		MimeType:  "video/mp4; codecs=avc1.42E01E",
		Codec:     "auto",
		Extension: ".mp4",
	}
	FallbackFormat = Format{
		Name:      "webm",
		MimeType:  "video/webm; codecs=vp9",
		Codec:     "libvpx-vp9",
		Extension: ".webm",
	}
)

func DefaultConfig() *Config {
	return &Config{
		Duration:     Duration(10 * time.Second),
		SettleDelay:  Duration(500 * time.Millisecond),
		ChunkWords:   5,
		SectionWords: 150,
		Fade:         FadeFull,
		Easing:       EaseLinear,
		Chunking:     ChunkFlat,
		Sections:     SectionsNone,
		Timing:       TimingFrame,
		Clock:        ClockVirtual,
		FPS:          60,

		Width:      756,
		Height:     400,
		Scale:      2,
		FontSize:   16,
		LineHeight: 24,
		Date:       "12 days ago",

		Formats:    []Format{PrimaryFormat, FallbackFormat},
		Quality:    23,
		FFmpegPath: "ffmpeg",
		FFprobe:    "ffprobe",

		OutputDir:   "output",
		AudioSync:   true,
		Transition:  "none",
		FadeBetween: 0.5,
		Workers:     4,

		ColorMode: ColorAuto,
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides tool paths and output locations from C2V_* variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("C2V_FFMPEG"); v != "" {
		c.FFmpegPath = v
	}
	if v := os.Getenv("C2V_FFPROBE"); v != "" {
		c.FFprobe = v
	}
	if v := os.Getenv("C2V_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("C2V_FONT"); v != "" {
		c.FontPath = v
	}
	if v := os.Getenv("C2V_LOG_FILE"); v != "" {
		c.LogFile = v
	}
}

// Validate checks ranges and enum values. It collects every problem.
func (c *Config) Validate() error {
	var errs []error
	if c.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative"))
	}
	if c.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("settle_delay must not be negative"))
	}
	if c.ChunkWords <= 0 {
		errs = append(errs, fmt.Errorf("chunk_words must be > 0 (got %d)", c.ChunkWords))
	}
	if c.SectionWords <= 0 {
		errs = append(errs, fmt.Errorf("section_words must be > 0 (got %d)", c.SectionWords))
	}
	if c.FPS <= 0 || c.FPS > 240 {
		errs = append(errs, fmt.Errorf("fps must be in 1..240 (got %d)", c.FPS))
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("canvas size must be positive (got %dx%d)", c.Width, c.Height))
	}
	if c.Scale <= 0 {
		errs = append(errs, fmt.Errorf("scale must be > 0"))
	}
	if c.FontSize <= 0 || c.LineHeight <= 0 {
		errs = append(errs, fmt.Errorf("font_size and line_height must be > 0"))
	}
	if len(c.Formats) == 0 {
		errs = append(errs, fmt.Errorf("at least one capture format is required"))
	}
	for _, f := range c.Formats {
		switch f.Extension {
		case ".mp4", ".webm", ".mkv":
		default:
			errs = append(errs, fmt.Errorf("format %q: unsupported container %q", f.Name, f.Extension))
		}
	}
	if c.Quality < 0 || c.Quality > 51 {
		errs = append(errs, fmt.Errorf("quality must be in 0..51 (got %d)", c.Quality))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be > 0"))
	}
	switch c.Fade {
	case FadeFull, FadeHalf:
	default:
		errs = append(errs, fmt.Errorf("fade must be full or half (got %q)", c.Fade))
	}
	switch c.Easing {
	case EaseLinear, EaseCubic:
	default:
		errs = append(errs, fmt.Errorf("easing must be linear or cubic (got %q)", c.Easing))
	}
	switch c.Chunking {
	case ChunkFlat, ChunkParagraph:
	default:
		errs = append(errs, fmt.Errorf("chunking must be flat or paragraph (got %q)", c.Chunking))
	}
	switch c.Sections {
	case SectionsNone, SectionsParagraph, SectionsPage:
	default:
		errs = append(errs, fmt.Errorf("sections must be none, paragraph or page (got %q)", c.Sections))
	}
	switch c.Timing {
	case TimingFrame, TimingDeferred:
	default:
		errs = append(errs, fmt.Errorf("timing must be frame or deferred (got %q)", c.Timing))
	}
	switch c.Clock {
	case ClockVirtual, ClockRealtime:
	default:
		errs = append(errs, fmt.Errorf("clock must be virtual or realtime (got %q)", c.Clock))
	}
	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		errs = append(errs, fmt.Errorf("color must be auto, always or never (got %q)", c.ColorMode))
	}
	return errors.Join(errs...)
}

// PixelSize is the encoded frame size. yuv420p needs even dimensions.
func (c *Config) PixelSize() (int, int) {
	w := int(float64(c.Width) * c.Scale)
	h := int(float64(c.Height) * c.Scale)
	if w%2 != 0 {
		w++
	}
	if h%2 != 0 {
		h++
	}
	return w, h
}
