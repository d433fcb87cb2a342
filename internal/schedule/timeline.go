package schedule

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Timeline is the exported form of a reveal plan
type Timeline struct {
	Version    string  `yaml:"version"`
	DurationMs int64   `yaml:"duration_ms"`
	Fade       string  `yaml:"fade"`
	Entries    []Entry `yaml:"chunks"`
}

// Entry describes one chunk of the plan
type Entry struct {
	Index      int    `yaml:"index"`
	Section    int    `yaml:"section"`
	Words      int    `yaml:"words"`
	Text       string `yaml:"text"`
	StartMs    int64  `yaml:"start_ms"`
	DurationMs int64  `yaml:"duration_ms"`
}

func ms(d time.Duration) int64 { return d.Milliseconds() }

// NewTimeline pairs slices with the chunk texts, word counts and sections.
func NewTimeline(slices []Slice, texts []string, counts []int, sections []int, total time.Duration, fade string) *Timeline {
	tl := &Timeline{Version: "1.0", DurationMs: ms(total), Fade: fade}
	for i, s := range slices {
		e := Entry{Index: s.Index, StartMs: ms(s.Start), DurationMs: ms(s.Duration)}
		if i < len(texts) {
			e.Text = texts[i]
		}
		if i < len(counts) {
			e.Words = counts[i]
		}
		if i < len(sections) {
			e.Section = sections[i]
		}
		tl.Entries = append(tl.Entries, e)
	}
	return tl
}

// WriteTimeline writes a timeline to a YAML file
func WriteTimeline(tl *Timeline, path string) error {
	data, err := yaml.Marshal(tl)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadTimeline reads a timeline from a YAML file
func ReadTimeline(path string) (*Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tl Timeline
	if err := yaml.Unmarshal(data, &tl); err != nil {
		return nil, err
	}
	return &tl, nil
}
