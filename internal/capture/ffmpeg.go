package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"sync"

	"github.com/ivlev/comment2video/internal/config"
	"github.com/ivlev/comment2video/internal/system"
)

// FFmpeg records by piping raw RGBA frames into an ffmpeg process and
// reading the encoded container from its stdout.
type FFmpeg struct {
	Path    string
	Quality int

	mu     sync.Mutex
	trials map[string]error  // encoder -> trial encode result
	chosen map[string]string // format name -> working encoder
}

func NewFFmpeg(path string, quality int) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{Path: path, Quality: quality, trials: map[string]error{}, chosen: map[string]string{}}
}

func (b *FFmpeg) Name() string { return "ffmpeg" }

// Supports finds an encoder for f that ffmpeg lists and that survives a
// one-frame trial encode. For "auto" the H.264 encoders are tried hardware
// first, then libx264.
func (b *FFmpeg) Supports(ctx context.Context, f config.Format) error {
	if muxer(f) == "" {
		return fmt.Errorf("%w: no container for %s", ErrUnsupportedFormat, f.Name)
	}
	set, err := system.ListEncoders(ctx, b.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	var candidates []string
	if f.Codec == "" || f.Codec == "auto" {
		candidates = system.H264Candidates(set)
	} else if set[f.Codec] {
		candidates = []string{f.Codec}
	}
	if len(candidates) == 0 {
		return fmt.Errorf("%w: no encoder available for %s", ErrUnsupportedFormat, f.Name)
	}

	var errs []error
	for _, enc := range candidates {
		if err := b.trial(ctx, enc); err != nil {
			errs = append(errs, err)
			continue
		}
		b.mu.Lock()
		b.chosen[f.Name] = enc
		b.mu.Unlock()
		return nil
	}
	return fmt.Errorf("%w: no working encoder for %s: %v", ErrUnsupportedFormat, f.Name, errors.Join(errs...))
}

// trial encodes one synthetic frame with enc. Results are cached per
// encoder.
func (b *FFmpeg) trial(ctx context.Context, enc string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.trials[enc]; ok {
		return err
	}

	cmd := exec.CommandContext(ctx, b.Path,
		"-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "nullsrc=s=256x144",
		"-frames:v", "1",
		"-pix_fmt", "yuv420p",
		"-c:v", enc,
		"-f", "null", "-",
	)
	stderr := &tailBuffer{max: 4 << 10}
	cmd.Stderr = stderr
	var err error
	if runErr := cmd.Run(); runErr != nil {
		err = classify(stderr.String(), fmt.Errorf("trial encode with %s: %w", enc, runErr))
	}
	if ctx.Err() == nil {
		b.trials[enc] = err
	}
	return err
}

// encoder is the encoder Supports settled on, else the best H.264 encoder
// for "auto".
func (b *FFmpeg) encoder(ctx context.Context, f config.Format) string {
	b.mu.Lock()
	enc, ok := b.chosen[f.Name]
	b.mu.Unlock()
	if ok {
		return enc
	}
	if f.Codec == "" || f.Codec == "auto" {
		return system.GetBestH264Encoder(ctx, b.Path)
	}
	return f.Codec
}

func muxer(f config.Format) string {
	switch f.Extension {
	case ".mp4":
		return "mp4"
	case ".webm":
		return "webm"
	case ".mkv":
		return "matroska"
	}
	return ""
}

func (b *FFmpeg) NewRecorder(s Stream, f config.Format, onData func([]byte)) (Recorder, error) {
	return &ffmpegRecorder{backend: b, stream: s, format: f, onData: onData}, nil
}

type ffmpegRecorder struct {
	backend *FFmpeg
	stream  Stream
	format  config.Format
	onData  func([]byte)

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	done   chan error
	once   sync.Once
	err    error
}

func (r *ffmpegRecorder) Start(ctx context.Context) error {
	enc := r.backend.encoder(ctx, r.format)
	args := buildRecordArgs(r.stream, r.format, enc, r.backend.Quality)

	r.cmd = exec.CommandContext(ctx, r.backend.Path, args...)
	r.stderr = &tailBuffer{max: 16 << 10}
	r.cmd.Stderr = r.stderr

	stdin, err := r.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	stdout, err := r.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe error: %w", err)
	}
	r.stdin = stdin

	if err := r.cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	r.done = make(chan error, 1)
	go func() {
		buf := make([]byte, 64<<10)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				r.onData(buf[:n])
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				}
				r.done <- err
				return
			}
		}
	}()
	return nil
}

// buildRecordArgs reads rawvideo from stdin and writes a streamable
// container to stdout: fragmented MP4 or WebM.
func buildRecordArgs(s Stream, f config.Format, enc string, quality int) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", s.Width, s.Height),
		"-framerate", fmt.Sprintf("%d", s.FPS),
		"-i", "-",
		"-an",
		"-pix_fmt", "yuv420p",
		"-c:v", enc,
	}

	args = append(args, system.QualityArgs(enc, quality)...)

	m := muxer(f)
	if m == "mp4" {
		args = append(args, "-movflags", "frag_keyframe+empty_moov+default_base_moof")
	}
	return append(args, "-f", m, "pipe:1")
}

func (r *ffmpegRecorder) WriteFrame(img *image.RGBA) error {
	if r.stdin == nil {
		return ErrNotStarted
	}
	if err := writeRawRGBA(r.stdin, img, r.stream); err != nil {
		return classify(r.stderr.String(), fmt.Errorf("write frame: %w", err))
	}
	return nil
}

// writeRawRGBA writes exactly one tightly packed frame of the stream size.
func writeRawRGBA(w io.Writer, img *image.RGBA, s Stream) error {
	bounds := image.Rect(0, 0, s.Width, s.Height)
	rgba := img
	if rgba == nil || rgba.Rect != bounds || rgba.Stride != s.Width*4 {
		rgba = image.NewRGBA(bounds)
		if img != nil {
			draw.Draw(rgba, bounds, img, img.Rect.Min, draw.Src)
		}
	}
	_, err := w.Write(rgba.Pix)
	return err
}

func (r *ffmpegRecorder) Stop() error {
	r.once.Do(func() {
		if r.cmd == nil {
			return
		}
		r.stdin.Close()
		readErr := <-r.done
		waitErr := r.cmd.Wait()
		if waitErr != nil {
			r.err = classify(r.stderr.String(), fmt.Errorf("ffmpeg wait error: %w", waitErr))
			return
		}
		if readErr != nil {
			r.err = fmt.Errorf("read encoded output: %w", readErr)
		}
	})
	return r.err
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.max; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.String()
}
