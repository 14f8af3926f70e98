package recording

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

const frameFilePerm = 0o644
const frameDirPerm = 0o755

// FfmpegEncoder shells out to ffmpeg when it is available on PATH. When it
// is not, Encode falls back to writing the raw frame sequence to a sibling
// directory and returns that directory's path in place of a video file,
// per spec.md §7's "Encoder absence" clause.
type FfmpegEncoder struct {
	// BinaryPath overrides the "ffmpeg" lookup, for tests.
	BinaryPath string
}

// NewFfmpegEncoder returns an Encoder that prefers ffmpeg and degrades
// gracefully to a raw frame sequence.
func NewFfmpegEncoder() *FfmpegEncoder {
	return &FfmpegEncoder{}
}

func (f *FfmpegEncoder) resolveBinary() (string, error) {
	if f.BinaryPath != "" {
		return f.BinaryPath, nil
	}
	return exec.LookPath("ffmpeg")
}

// Encode writes frames to a sibling directory (opts.OutputPath + "-frames")
// as a numbered JPEG sequence
// and, if ffmpeg is resolvable, invokes it to produce opts.OutputPath.
// Otherwise the numbered sequence directory itself is returned as the
// fallback "video".
func (f *FfmpegEncoder) Encode(ctx context.Context, frames [][]byte, opts EncodeOptions) (string, error) {
	seqDir := opts.OutputPath + "-frames"
	if err := os.MkdirAll(seqDir, frameDirPerm); err != nil {
		return "", fmt.Errorf("recording: create frame sequence dir: %w", err)
	}

	for i, frame := range frames {
		path := filepath.Join(seqDir, fmt.Sprintf("frame-%05d.jpg", i))
		if err := os.WriteFile(path, frame, frameFilePerm); err != nil {
			return "", fmt.Errorf("recording: write frame %d: %w", i, err)
		}
	}

	binary, err := f.resolveBinary()
	if err != nil {
		return seqDir, nil
	}

	pattern := filepath.Join(seqDir, "frame-%05d.jpg")
	cmd := exec.CommandContext(ctx, binary,
		"-y",
		"-framerate", fmt.Sprintf("%d", opts.FPS),
		"-i", pattern,
		"-c:v", "libvpx-vp9",
		"-pix_fmt", "yuv420p",
		opts.OutputPath,
	)

	if err := cmd.Run(); err != nil {
		return seqDir, nil
	}

	_ = os.RemoveAll(seqDir)
	return opts.OutputPath, nil
}
