package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ivlev/comment2video/internal/capture"
	"github.com/ivlev/comment2video/internal/config"
	"github.com/ivlev/comment2video/internal/engine"
	"github.com/ivlev/comment2video/internal/logging"
	"github.com/ivlev/comment2video/internal/share"
	"github.com/ivlev/comment2video/internal/source"
	"github.com/ivlev/comment2video/internal/system"
	"github.com/ivlev/comment2video/internal/video"
)

// Directories searched when no input is given.
const (
	inputDir = "input/comments"
	audioDir = "input/audio"
)

var inputExtensions = []string{".csv", ".yaml", ".yml", ".txt"}

var (
	cfg = config.DefaultConfig()
	log = logging.Nop()

	configFile string
	text       string
	index      int
	maxIndent  int
	dryRun     bool
	exportPath string
	plotWidth  int
)

func main() {
	if err := godotenv.Load(); err == nil {
		fmt.Println("[*] Loaded environment variables from .env")
	}

	rootCmd := &cobra.Command{
		Use:               "comment2video",
		Short:             "render comments as text-reveal videos",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	bindConfigFlags(rootCmd.PersistentFlags(), cfg)

	renderCmd := &cobra.Command{
		Use:   "render [file]",
		Short: "render one comment to a video",
		Args:  cobra.MaximumNArgs(1),
		RunE:  renderComment,
	}
	renderCmd.Flags().StringVar(&text, "text", "", "comment text (instead of a file)")
	renderCmd.Flags().IntVar(&index, "index", 0, "comment to render when the file holds several")
	renderCmd.Flags().BoolVar(&dryRun, "dry-run", false, "record into memory, skip ffmpeg")

	batchCmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "render every comment of a csv/yaml file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  renderBatch,
	}
	batchCmd.Flags().IntVar(&maxIndent, "max-indent", -1, "skip replies nested deeper than this (-1 keeps all)")
	batchCmd.Flags().BoolVar(&dryRun, "dry-run", false, "record into memory, skip ffmpeg")

	planCmd := &cobra.Command{
		Use:   "plan [file]",
		Short: "print the chunks and time slices of a comment",
		Args:  cobra.MaximumNArgs(1),
		RunE:  planComment,
	}
	planCmd.Flags().StringVar(&text, "text", "", "comment text (instead of a file)")
	planCmd.Flags().IntVar(&index, "index", 0, "comment to plan when the file holds several")
	planCmd.Flags().StringVar(&exportPath, "export", "", "write the timeline as yaml")
	planCmd.Flags().IntVar(&plotWidth, "plot-width", 60, "reveal curve width")

	rootCmd.AddCommand(renderCmd, batchCmd, planCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	log.Close()
	if err != nil {
		os.Exit(1)
	}
}

func bindConfigFlags(fs *pflag.FlagSet, c *config.Config) {
	fs.Var(&c.Duration, "duration", "reveal duration (Go duration or milliseconds)")
	fs.Var(&c.SettleDelay, "settle", "idle time before the reveal starts")
	fs.IntVar(&c.ChunkWords, "chunk-words", c.ChunkWords, "words revealed together")
	fs.IntVar(&c.SectionWords, "section-words", c.SectionWords, "words per paragraph section")
	fs.StringVar((*string)(&c.Fade), "fade", string(c.Fade), "fade ramp: full, half")
	fs.StringVar((*string)(&c.Easing), "easing", string(c.Easing), "fade easing: linear, cubic")
	fs.StringVar((*string)(&c.Chunking), "chunking", string(c.Chunking), "chunking: flat, paragraph")
	fs.StringVar((*string)(&c.Sections), "sections", string(c.Sections), "sections: none, paragraph, page")
	fs.StringVar((*string)(&c.Timing), "timing", string(c.Timing), "timing: frame, deferred")
	fs.StringVar((*string)(&c.Clock), "clock", string(c.Clock), "clock: virtual, realtime")
	fs.IntVar(&c.FPS, "fps", c.FPS, "frames per second")

	fs.IntVar(&c.Width, "width", c.Width, "card width (logical px)")
	fs.IntVar(&c.Height, "height", c.Height, "card height (logical px)")
	fs.Float64Var(&c.Scale, "scale", c.Scale, "pixel scale")
	fs.StringVar(&c.FontPath, "font", c.FontPath, "regular TTF/OTF (default Go fonts)")
	fs.Float64Var(&c.FontSize, "font-size", c.FontSize, "font size (logical px)")
	fs.StringVar(&c.Date, "date", c.Date, "date label")

	fs.IntVar(&c.Quality, "quality", c.Quality, "quality (x264: CRF 0-51, VideoToolbox: bitrate = Q*100kbit/s)")
	fs.StringVarP(&c.OutputDir, "output", "o", c.OutputDir, "output directory")
	fs.StringVar(&c.AudioPath, "audio", c.AudioPath, "narration for a single comment")
	fs.StringVar(&c.AudioDir, "audio-dir", c.AudioDir, "directory with comment_<i>.mp3 narrations")
	fs.StringVar(&c.AvatarDir, "avatar-dir", c.AvatarDir, "directory with <author>.png avatars")
	fs.BoolVar(&c.AudioSync, "audio-sync", c.AudioSync, "take the reveal duration from the narration")
	fs.Var(&c.AudioDelay, "audio-delay", "extra narration delay after the settle time")
	fs.BoolVar(&c.Combine, "combine", c.Combine, "join all clips into one video")
	fs.StringVar(&c.Transition, "transition", c.Transition, "xfade transition between clips: fade, wipeleft, slideup, dissolve, none")
	fs.Float64Var(&c.FadeBetween, "transition-duration", c.FadeBetween, "transition length (sec)")
	fs.IntVar(&c.Workers, "workers", c.Workers, "comments rendered in parallel")
	fs.BoolVar(&c.QRCode, "qr", c.QRCode, "write a QR code with the download link")
	fs.StringVar(&c.PublicURL, "public-url", c.PublicURL, "base URL the output directory is served from")
	fs.BoolVar(&c.ShowStats, "stats", c.ShowStats, "print a performance report")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "also log to this file")
	fs.StringVar((*string)(&c.ColorMode), "color", string(c.ColorMode), "colour: auto, always, never")
	fs.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "debug output")
}

// setup layers the config file, the environment and the flags, then opens
// the logger.
func setup(cmd *cobra.Command, _ []string) error {
	if err := layerConfig(cmd.Flags(), configFile); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	l, err := logging.New(cfg)
	if err != nil {
		return err
	}
	log = l
	return nil
}

// layerConfig replaces cfg with the file's values (when path is set), applies
// C2V_* variables and re-applies every flag set on the command line.
func layerConfig(fs *pflag.FlagSet, path string) error {
	changed := map[string]string{}
	fs.Visit(func(f *pflag.Flag) { changed[f.Name] = f.Value.String() })
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		*cfg = *loaded
	}
	cfg.ApplyEnv()
	for name, v := range changed {
		if err := fs.Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

func newProject(src source.Source) *engine.Project {
	if dryRun {
		log.Info("Dry run: frames are recorded in memory")
		return engine.NewProject(cfg, src, capture.NewMemory(), nil, log)
	}
	system.InitResourceLimits(log)
	return engine.NewProject(cfg, src, capture.NewFFmpeg(cfg.FFmpegPath, cfg.Quality), video.NewEditor(cfg), log)
}

// inputPath is the argument, or the newest comment file in input/comments.
func inputPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	latest, err := system.FindLatest(inputDir, inputExtensions)
	if err != nil {
		return "", fmt.Errorf("no input: %v. Put a csv/yaml/txt file into %s/", err, inputDir)
	}
	log.Info("Selected file: %s", latest)
	return latest, nil
}

// pickComment resolves the single comment for render and plan.
func pickComment(args []string) (source.Comment, error) {
	if text != "" {
		return source.Comment{Text: text}, nil
	}
	path, err := inputPath(args)
	if err != nil {
		return source.Comment{}, err
	}
	src, err := source.Open(path)
	if err != nil {
		return source.Comment{}, err
	}
	defer src.Close()
	if index < 0 || index >= src.Count() {
		return source.Comment{}, fmt.Errorf("%s has %d comment(s), no index %d", path, src.Count(), index)
	}
	return src.Comment(index)
}

func renderComment(cmd *cobra.Command, args []string) error {
	c, err := pickComment(args)
	if err != nil {
		return err
	}
	if cfg.AudioPath == "" {
		if latest, err := system.FindLatest(audioDir, system.AudioExtensions); err == nil {
			cfg.AudioPath = latest
			log.Info("Selected audio: %s", latest)
		}
	}
	meta, err := newProject(source.FromComments([]source.Comment{c})).Run(cmd.Context())
	if err != nil {
		log.Error("%v", err)
		return err
	}
	return publish(meta)
}

func renderBatch(cmd *cobra.Command, args []string) error {
	path, err := inputPath(args)
	if err != nil {
		return err
	}
	src, err := source.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	comments := make([]source.Comment, 0, src.Count())
	for i := 0; i < src.Count(); i++ {
		c, err := src.Comment(i)
		if err != nil {
			return err
		}
		comments = append(comments, c)
	}
	if maxIndent >= 0 {
		comments = source.TopLevel(comments, maxIndent)
		log.Info("%d comment(s) with indent <= %d", len(comments), maxIndent)
	}

	meta, err := newProject(source.FromComments(comments)).Run(cmd.Context())
	if err != nil {
		log.Error("%v", err)
		return err
	}
	return publish(meta)
}

// publish prints the download link of every clip and writes QR codes when
// asked to.
func publish(meta *engine.Metadata) error {
	files := []string{}
	for _, o := range meta.Outputs {
		if o.Degraded {
			log.Warn("Comment %d was shown without recording", o.Index)
		}
		if o.File != "" {
			files = append(files, o.File)
		}
	}
	if meta.Combined != "" {
		files = append(files, meta.Combined)
	}
	for _, f := range files {
		link, err := share.DownloadURL(f, cfg.PublicURL)
		if err != nil {
			return err
		}
		log.Success("Video ready: %s", link)
		if !cfg.QRCode {
			continue
		}
		qr := share.QRPath(f)
		if err := share.WriteQR(link, qr, 256); err != nil {
			return fmt.Errorf("qr code for %s: %w", filepath.Base(f), err)
		}
		log.Info("QR code: %s", qr)
	}
	return nil
}
