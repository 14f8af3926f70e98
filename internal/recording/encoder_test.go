package recording

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFfmpegEncoder_FallsBackToFrameSequenceWhenBinaryMissing(t *testing.T) {
	dir := t.TempDir()
	enc := &FfmpegEncoder{BinaryPath: filepath.Join(dir, "does-not-exist")}

	out, err := enc.Encode(context.Background(), [][]byte{{1}, {2}, {3}}, EncodeOptions{
		FPS:        30,
		Format:     "webm",
		OutputPath: filepath.Join(dir, "video.webm"),
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "video.webm-frames"), out)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 3)
}
