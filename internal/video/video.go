// Package video encodes rendered frames into a video file by streaming
// raw RGBA to ffmpeg over stdin. Audio muxing and subtitle burn-in
// happen in the same pass.
package video

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"strings"
)

// EncodeOptions describes one encoding session.
type EncodeOptions struct {
	Width  int
	Height int
	FPS    float64
	// AudioPath, when set, is muxed in as an AAC track.
	AudioPath string
	// SubtitlePath, when set, names an ASS script burned into the frames.
	SubtitlePath string
	// Encoder is the ffmpeg video codec name. Empty picks the best
	// available H.264 encoder.
	Encoder string
	// Quality is the CRF (or its hardware-encoder equivalent). Zero
	// means 23.
	Quality int
}

// BestH264Encoder probes ffmpeg for hardware H.264 support and falls
// back to libx264.
func BestH264Encoder() string {
	out, err := exec.Command("ffmpeg", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(string(out), name) {
			return name
		}
	}
	return "libx264"
}

func qualityArgs(encoder string, quality int) []string {
	switch encoder {
	case "h264_videotoolbox":
		// VideoToolbox ignores -crf, steer it with a bitrate instead.
		return []string{"-b:v", fmt.Sprintf("%dk", (51-quality)*200)}
	case "h264_nvenc":
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	default:
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", "medium"}
	}
}

func buildArgs(dstPath string, opts EncodeOptions) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-framerate", fmt.Sprintf("%g", opts.FPS),
		"-i", "-",
	}
	if opts.AudioPath != "" {
		args = append(args, "-i", opts.AudioPath)
	}
	if opts.SubtitlePath != "" {
		args = append(args, "-vf", fmt.Sprintf("ass=%s", opts.SubtitlePath))
	}
	args = append(args, "-c:v", opts.Encoder, "-pix_fmt", "yuv420p")
	args = append(args, qualityArgs(opts.Encoder, opts.Quality)...)
	if opts.AudioPath != "" {
		args = append(args, "-c:a", "aac", "-b:a", "192k", "-shortest")
	}
	return append(args, dstPath)
}

// Session is one running ffmpeg process accepting frames.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	width  int
	height int
}

// Start launches ffmpeg for the given options. WriteFrame feeds it and
// Close finalizes the file.
func Start(ctx context.Context, dstPath string, opts EncodeOptions) (*Session, error) {
	if opts.Encoder == "" {
		opts.Encoder = BestH264Encoder()
	}
	if opts.Quality == 0 {
		opts.Quality = 23
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", buildArgs(dstPath, opts)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("video: stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("video: ffmpeg start: %w", err)
	}
	return &Session{cmd: cmd, stdin: stdin, width: opts.Width, height: opts.Height}, nil
}

// WriteFrame streams one frame. The frame must match the session size.
func (s *Session) WriteFrame(img *image.RGBA) error {
	b := img.Bounds()
	if b.Dx() != s.width || b.Dy() != s.height {
		return fmt.Errorf("video: frame is %dx%d, session expects %dx%d", b.Dx(), b.Dy(), s.width, s.height)
	}
	// ffmpeg expects tightly packed rows starting at (0,0).
	if img.Stride != b.Dx()*4 || b.Min.X != 0 || b.Min.Y != 0 {
		packed := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(packed, packed.Bounds(), img, b.Min, draw.Src)
		img = packed
	}
	if _, err := s.stdin.Write(img.Pix); err != nil {
		return fmt.Errorf("video: write frame: %w", err)
	}
	return nil
}

// Close signals end of input and waits for ffmpeg to finish the file.
func (s *Session) Close() error {
	s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("video: ffmpeg wait: %w", err)
	}
	return nil
}

// Abort kills the encoder without finalizing the output.
func (s *Session) Abort() {
	s.stdin.Close()
	s.cmd.Process.Kill()
	s.cmd.Wait()
}
