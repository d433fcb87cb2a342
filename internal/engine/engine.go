// Package engine renders a batch of comments into videos.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/comment2video/internal/animation"
	"github.com/ivlev/comment2video/internal/capture"
	"github.com/ivlev/comment2video/internal/card"
	"github.com/ivlev/comment2video/internal/config"
	"github.com/ivlev/comment2video/internal/logging"
	"github.com/ivlev/comment2video/internal/source"
	"github.com/ivlev/comment2video/internal/system"
	"github.com/ivlev/comment2video/internal/video"
)

// MetadataFile is written to the output directory after every run.
const MetadataFile = "metadata.yaml"

type Project struct {
	Config  *config.Config
	Source  source.Source
	Backend capture.Backend
	// Editor muxes audio, combines and probes clips. Nil skips all of it.
	Editor *video.Editor
	Log    *logging.Logger
}

// Output describes one rendered comment.
type Output struct {
	Index    int               `yaml:"index"`
	Author   string            `yaml:"author,omitempty"`
	File     string            `yaml:"file,omitempty"`
	Audio    string            `yaml:"audio,omitempty"`
	Chunks   int               `yaml:"chunks"`
	Sections int               `yaml:"sections"`
	Reveal   config.Duration   `yaml:"reveal"`
	Degraded bool              `yaml:"degraded,omitempty"`
	Artifact *capture.Artifact `yaml:"artifact,omitempty"`
	Probe    *video.Info       `yaml:"probe,omitempty"`
}

type Metadata struct {
	RunID     string        `yaml:"run_id"`
	CreatedAt time.Time     `yaml:"created_at"`
	Elapsed   string        `yaml:"elapsed"`
	Outputs   []Output      `yaml:"comments"`
	Combined  string        `yaml:"combined,omitempty"`
	Stats     *system.Stats `yaml:"stats,omitempty"`
}

func NewProject(cfg *config.Config, src source.Source, b capture.Backend, ed *video.Editor, log *logging.Logger) *Project {
	if log == nil {
		log = logging.Nop()
	}
	return &Project{Config: cfg, Source: src, Backend: b, Editor: ed, Log: log}
}

// Run renders every comment with at most cfg.Workers in flight. The first
// failing comment cancels the rest.
func (p *Project) Run(ctx context.Context) (*Metadata, error) {
	start := time.Now()
	n := p.Source.Count()
	if n == 0 {
		return nil, fmt.Errorf("source has no comments")
	}
	cfg := p.Config
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, err
	}

	meta := &Metadata{RunID: uuid.NewString(), CreatedAt: start.UTC(), Outputs: make([]Output, n)}
	p.Log.Info("Run %s: %d comment(s) -> %s (%d workers)", meta.RunID, n, cfg.OutputDir, cfg.Workers)

	comments := make([]source.Comment, n)
	for i := range comments {
		c, err := p.Source.Comment(i)
		if err != nil {
			return nil, err
		}
		comments[i] = c
	}

	var done int
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, c := range comments {
		g.Go(func() error {
			out, err := p.renderOne(gctx, i, c)
			if err != nil {
				return fmt.Errorf("comment %d: %w", i, err)
			}
			meta.Outputs[i] = out
			mu.Lock()
			done++
			p.Log.Progress("Ready: %d/%d", done, n)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if cfg.Combine && n > 1 {
		path, err := p.combine(ctx, meta.Outputs)
		if err != nil {
			return nil, err
		}
		meta.Combined = path
	}

	meta.Elapsed = time.Since(start).Round(time.Millisecond).String()
	if cfg.ShowStats {
		if s, err := system.HostStats(200 * time.Millisecond); err != nil {
			p.Log.Warn("Host stats unavailable: %v", err)
		} else {
			meta.Stats = &s
			p.report(meta, n, time.Since(start))
		}
	}

	if err := WriteMetadata(filepath.Join(cfg.OutputDir, MetadataFile), meta); err != nil {
		return nil, err
	}
	p.Log.Success("Done in %s", meta.Elapsed)
	return meta, nil
}

// renderOne records one comment, then adds its narration.
func (p *Project) renderOne(ctx context.Context, i int, c source.Comment) (Output, error) {
	cfg := *p.Config
	out := Output{Index: i, Author: c.Author}
	log := p.Log.With(fmt.Sprintf("#%d", i))

	if c.Avatar == "" {
		c.Avatar = source.FindAvatar(cfg.AvatarDir, c.Author)
	}
	if c.Avatar != "" {
		if _, _, err := source.ImageSize(c.Avatar); err != nil {
			log.Warn("Ignoring avatar: %v", err)
			c.Avatar = ""
		}
	}

	out.Audio = p.audioFor(i)
	var audioLen time.Duration
	if out.Audio != "" && cfg.AudioSync {
		d, err := system.GetAudioDuration(ctx, cfg.FFprobe, out.Audio)
		if err != nil {
			log.Warn("Audio duration unavailable, using %s: %v", cfg.Duration, err)
		} else {
			audioLen = d
		}
	}
	cfg.Duration = config.Duration(RevealDuration(&cfg, audioLen))
	out.Reveal = cfg.Duration

	opts := card.OptionsFromConfig(&cfg)
	opts.Author, opts.Votes, opts.AvatarPath = c.Author, c.Votes, c.Avatar
	if c.Date != "" {
		opts.Date = c.Date
	}
	target, err := card.New(opts)
	if err != nil {
		return out, err
	}
	defer target.Close()

	name := fmt.Sprintf("comment_%d", i)
	coord := capture.NewCoordinator(p.Backend, cfg.Formats, cfg.OutputDir, name, log)
	res, err := animation.Run(ctx, animation.Request{
		Text:    c.Text,
		Config:  &cfg,
		Target:  target,
		Clock:   animation.NewClock(&cfg),
		Capture: coord,
		Log:     log,
	})
	if err != nil {
		return out, err
	}
	out.Chunks = len(res.Plan.Chunks)
	out.Sections = res.Plan.SectionCount()
	out.Degraded = res.Degraded
	out.Artifact = res.Artifact
	if res.Artifact == nil {
		return out, nil
	}
	out.File = res.Artifact.Path

	if p.Editor == nil {
		return out, nil
	}
	if out.Audio != "" {
		ext := filepath.Ext(out.File)
		muxed := strings.TrimSuffix(out.File, ext) + "_with_audio" + ext
		delay := cfg.SettleDelay.Std() + cfg.AudioDelay.Std()
		if err := p.Editor.MuxAudio(ctx, out.File, out.Audio, muxed, delay); err != nil {
			return out, err
		}
		out.File = muxed
	}
	if info, err := p.Editor.Probe(ctx, out.File); err != nil {
		log.Warn("Probe failed: %v", err)
	} else {
		out.Probe = info
	}
	return out, nil
}

// audioFor returns the narration for comment i: the configured file for a
// single comment, else audio_dir/comment_<i>.mp3 when it exists.
func (p *Project) audioFor(i int) string {
	cfg := p.Config
	if cfg.AudioPath != "" && p.Source.Count() == 1 {
		return cfg.AudioPath
	}
	if cfg.AudioDir == "" {
		return ""
	}
	path := filepath.Join(cfg.AudioDir, fmt.Sprintf("comment_%d.mp3", i))
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// RevealDuration is the audio length when narration drives timing, the
// configured duration otherwise.
func RevealDuration(cfg *config.Config, audio time.Duration) time.Duration {
	if cfg.AudioSync && audio > 0 {
		return audio
	}
	return cfg.Duration.Std()
}

func (p *Project) combine(ctx context.Context, outputs []Output) (string, error) {
	if p.Editor == nil {
		p.Log.Warn("Skipping combine: no video editor")
		return "", nil
	}
	var clips []video.Clip
	withAudio := true
	for _, o := range outputs {
		if o.File == "" {
			p.Log.Warn("Comment %d has no clip, leaving it out of the combined video", o.Index)
			continue
		}
		d := o.Reveal.Std() + p.Config.SettleDelay.Std()
		if o.Probe != nil && o.Probe.Duration > 0 {
			d = o.Probe.Duration
		}
		clips = append(clips, video.Clip{Path: o.File, Duration: d})
		withAudio = withAudio && o.Audio != ""
	}
	if len(clips) == 0 {
		p.Log.Warn("Skipping combine: no clips were recorded")
		return "", nil
	}

	tmp, err := os.MkdirTemp("", "comment2video_")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmp)

	path := filepath.Join(p.Config.OutputDir, "combined"+filepath.Ext(clips[0].Path))
	p.Log.Info("Combining %d clips (transition %s)...", len(clips), p.Config.Transition)
	fade := time.Duration(p.Config.FadeBetween * float64(time.Second))
	if err := p.Editor.Concatenate(ctx, clips, path, tmp, p.Config.Transition, fade, withAudio); err != nil {
		return "", fmt.Errorf("combine: %w", err)
	}
	return path, nil
}

func (p *Project) report(meta *Metadata, n int, total time.Duration) {
	frames := 0
	for _, o := range meta.Outputs {
		if o.Artifact != nil {
			frames += o.Artifact.Frames
		}
	}
	p.Log.Info("--- [PERFORMANCE REPORT] ---")
	p.Log.Info("Run: %s | Comments: %d | Total: %.2fs", meta.RunID, n, total.Seconds())
	p.Log.Info("Frames: %d | Effective FPS: %.2f", frames, float64(frames)/total.Seconds())
	p.Log.Info("Host: %s", meta.Stats)
}

// WriteMetadata stores meta as YAML.
func WriteMetadata(path string, meta *Metadata) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadMetadata loads a metadata file written by Run.
func ReadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	if meta.RunID == "" {
		return nil, errors.New("metadata without run id")
	}
	return &meta, nil
}
