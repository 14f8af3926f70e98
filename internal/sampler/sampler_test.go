package sampler

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"
)

func solidJPEG(t *testing.T, c color.Color, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func TestHasChanged_FirstFrameAccept(t *testing.T) {
	s := NewDefault()
	frame := solidJPEG(t, color.RGBA{R: 50, G: 50, B: 50, A: 255}, 64)

	changed, err := s.HasChanged(frame)
	require.NoError(t, err)
	require.True(t, changed)
}

func TestHasChanged_IdentityYieldsTrueThenFalse(t *testing.T) {
	s := NewDefault()
	frame := solidJPEG(t, color.RGBA{R: 10, G: 200, B: 30, A: 255}, 64)

	first, err := s.HasChanged(frame)
	require.NoError(t, err)
	require.True(t, first)

	second, err := s.HasChanged(frame)
	require.NoError(t, err)
	require.False(t, second)
}

func TestHasChanged_Heartbeat(t *testing.T) {
	s := NewDefault()
	frame := solidJPEG(t, color.RGBA{R: 90, G: 90, B: 90, A: 255}, 64)

	want := []bool{true, false, false, false, false, true}
	for i, w := range want {
		got, err := s.HasChanged(frame)
		require.NoError(t, err)
		require.Equalf(t, w, got, "call %d", i)
	}
}

func TestHasChanged_ChangeAboveThreshold(t *testing.T) {
	s := NewDefault()
	black := solidJPEG(t, color.RGBA{A: 255}, 64)
	white := solidJPEG(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, 64)

	_, err := s.HasChanged(black)
	require.NoError(t, err)

	changed, err := s.HasChanged(white)
	require.NoError(t, err)
	require.True(t, changed)
}

func TestForceCapture_IsOneShot(t *testing.T) {
	s := NewDefault()
	frame := solidJPEG(t, color.RGBA{R: 1, G: 2, B: 3, A: 255}, 64)

	_, err := s.HasChanged(frame)
	require.NoError(t, err)

	s.ForceCapture()
	changed, err := s.HasChanged(frame)
	require.NoError(t, err)
	require.True(t, changed, "forced capture should report changed even on identical frame")

	changed, err = s.HasChanged(frame)
	require.NoError(t, err)
	require.False(t, changed, "force flag should be consumed after one use")
}

func TestReset_ClearsState(t *testing.T) {
	s := NewDefault()
	frame := solidJPEG(t, color.RGBA{R: 20, G: 20, B: 20, A: 255}, 64)

	_, err := s.HasChanged(frame)
	require.NoError(t, err)

	s.Reset()

	changed, err := s.HasChanged(frame)
	require.NoError(t, err)
	require.True(t, changed, "after reset the cache should be empty, forcing acceptance")
}

func TestDiffRatio_EmptyThumbnailIsMaximallyDifferent(t *testing.T) {
	require.Equal(t, 1.0, diffRatio(nil, []byte{1, 2, 3}))
	require.Equal(t, 1.0, diffRatio([]byte{1, 2, 3}, nil))
}

func TestHasChanged_DecodeError(t *testing.T) {
	s := NewDefault()
	_, err := s.HasChanged([]byte("not an image"))
	require.Error(t, err)
}
