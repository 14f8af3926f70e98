// Package sampler implements the perceptual change detector that decides
// whether a newly captured frame differs enough from the last one to be
// worth processing.
package sampler

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// DefaultThumbnailSize and DefaultDiffThreshold are the values New falls
// back to; both are constructor parameters. pixelDeltaTolerance (the
// per-pixel grayscale delta that counts as changed) and
// heartbeatSkipInterval are fixed constants and are not configurable.
const (
	DefaultThumbnailSize  = 16
	DefaultDiffThreshold  = 0.05
	pixelDeltaTolerance   = 25
	heartbeatSkipInterval = 5
)

// Sampler caches one grayscale thumbnail and decides whether a new frame
// represents a perceptually significant change.
type Sampler struct {
	size      int
	threshold float64

	thumbnail []byte // size*size grayscale bytes; nil when empty
	skipCount int
	forced    bool
}

// New creates a Sampler with the given thumbnail size (square, in pixels)
// and pixel-difference-ratio threshold.
func New(size int, threshold float64) *Sampler {
	if size <= 0 {
		size = DefaultThumbnailSize
	}
	if threshold <= 0 {
		threshold = DefaultDiffThreshold
	}
	return &Sampler{size: size, threshold: threshold}
}

// NewDefault creates a Sampler with the spec's default thumbnail size and
// threshold.
func NewDefault() *Sampler {
	return New(DefaultThumbnailSize, DefaultDiffThreshold)
}

// ForceCapture sets a one-shot flag that makes the next HasChanged call
// return true regardless of pixel difference.
func (s *Sampler) ForceCapture() {
	s.forced = true
}

// Reset clears the cached thumbnail, skip counter, and forced flag.
func (s *Sampler) Reset() {
	s.thumbnail = nil
	s.skipCount = 0
	s.forced = false
}

// HasChanged reports whether frame (raw JPEG or PNG bytes) differs enough
// from the cached thumbnail to warrant processing. It has side effects: on
// true it replaces the cached thumbnail and resets the skip counter; on
// false it increments the skip counter.
func (s *Sampler) HasChanged(frame []byte) (bool, error) {
	thumb, err := resampleGrayscale(frame, s.size)
	if err != nil {
		return false, err
	}

	if s.forced {
		s.forced = false
		s.thumbnail = thumb
		s.skipCount = 0
		return true, nil
	}

	if s.thumbnail == nil {
		s.thumbnail = thumb
		s.skipCount = 0
		return true, nil
	}

	ratio := diffRatio(s.thumbnail, thumb)

	changed := ratio > s.threshold
	if !changed {
		s.skipCount++
		if s.skipCount >= heartbeatSkipInterval {
			changed = true
		}
	}

	if changed {
		s.thumbnail = thumb
		s.skipCount = 0
	}

	return changed, nil
}

// diffRatio compares corresponding grayscale bytes of two equally-sized
// thumbnails. A pixel counts as different when its absolute delta exceeds
// pixelDeltaTolerance (filtering out JPEG compression noise). If either
// thumbnail is empty the ratio is 1 (maximally different).
func diffRatio(a, b []byte) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 1
	}

	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 1
	}

	diff := 0
	for i := 0; i < n; i++ {
		delta := int(a[i]) - int(b[i])
		if delta < 0 {
			delta = -delta
		}
		if delta > pixelDeltaTolerance {
			diff++
		}
	}

	return float64(diff) / float64(n)
}

// resampleGrayscale decodes frame and fill-fit resamples it to a size×size
// grayscale thumbnail.
func resampleGrayscale(frame []byte, size int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("sampler: decode frame: %w", err)
	}

	dst := image.NewGray(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, fillFitRect(img.Bounds(), size, size), draw.Over, nil)

	return dst.Pix, nil
}

// fillFitRect returns the centered source sub-rectangle with the target
// aspect ratio, so scaling to (w,h) fills the destination without
// letterboxing (cropping instead of padding).
func fillFitRect(src image.Rectangle, w, h int) image.Rectangle {
	srcW, srcH := src.Dx(), src.Dy()
	if srcW <= 0 || srcH <= 0 || w <= 0 || h <= 0 {
		return src
	}

	targetRatio := float64(w) / float64(h)
	srcRatio := float64(srcW) / float64(srcH)

	if srcRatio > targetRatio {
		// Source is wider than target: crop left/right.
		newW := int(float64(srcH) * targetRatio)
		offset := (srcW - newW) / 2
		return image.Rect(src.Min.X+offset, src.Min.Y, src.Min.X+offset+newW, src.Max.Y)
	}

	// Source is taller than (or equal to) target: crop top/bottom.
	newH := int(float64(srcW) / targetRatio)
	offset := (srcH - newH) / 2
	return image.Rect(src.Min.X, src.Min.Y+offset, src.Max.X, src.Min.Y+offset+newH)
}
