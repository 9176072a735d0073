package spotter

import (
	"context"
	"image"
	"math"
	"math/rand"
	"time"

	"github.com/anthonynsimon/bild/blur"
)

// Synthetic scene constants, matching the emulated camera the project is
// calibrated against: a vignetted grey backdrop, a bright paper square
// and the dark mirror disc at its center.
const (
	// SyntheticMirrorRatio is the mirror radius in normalized scene
	// units, where half the frame width is 1. The rendered disc
	// diameter is therefore this fraction of the frame width.
	SyntheticMirrorRatio = 0.1
	// SyntheticPaperScale is how much larger the paper is than the mirror.
	SyntheticPaperScale = 3.0
	// DefaultSyntheticRoughNoise is the sigma of the low-frequency noise field.
	DefaultSyntheticRoughNoise = 0.03
	// DefaultSyntheticFineNoise is the sigma of the per-pixel noise.
	DefaultSyntheticFineNoise = 0.02
)

// SyntheticHole scripts a hole appearing in the synthetic scene. From
// frame AtFrame onward a bright Size×Size square is drawn centered at
// the given surface-relative position.
type SyntheticHole struct {
	AtFrame int
	XPct    float64 // 0–100 of frame width
	YPct    float64 // 0–100 of frame height
	Size    int     // square edge length in pixels
}

// SyntheticSource fabricates frames of a constant target scene plus
// scripted hole injections. Given the same seed and script it produces
// a byte-identical frame sequence, which keeps detection tests
// reproducible.
type SyntheticSource struct {
	width  int
	height int
	rng    *rand.Rand
	base   []float64 // static scene, normalized 0..1, blurred once

	// Interval paces frame delivery when non-zero. Tests leave it at
	// zero so the engine runs as fast as it can consume.
	Interval time.Duration

	// RoughNoise and FineNoise are gaussian noise sigmas in normalized
	// luminance. Zero disables the respective field.
	RoughNoise float64
	FineNoise  float64

	// Holes is the injection script, evaluated against the frame index.
	Holes []SyntheticHole

	frameIndex int
}

// NewSyntheticSource builds a generator for the given resolution. All
// randomness flows from seed.
func NewSyntheticSource(width, height int, seed int64) *SyntheticSource {
	s := &SyntheticSource{
		width:      width,
		height:     height,
		rng:        rand.New(rand.NewSource(seed)),
		RoughNoise: DefaultSyntheticRoughNoise,
		FineNoise:  DefaultSyntheticFineNoise,
	}
	s.base = s.renderScene()
	return s
}

// Dimensions returns the configured frame size.
func (s *SyntheticSource) Dimensions() (int, int) { return s.width, s.height }

// NextFrame generates the next scripted frame.
func (s *SyntheticSource) NextFrame(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Interval > 0 {
		t := time.NewTimer(s.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	idx := s.frameIndex
	s.frameIndex++

	pix := make([]float64, len(s.base))
	copy(pix, s.base)

	if s.RoughNoise > 0 {
		rough := make([]float64, len(pix))
		for i := range rough {
			rough[i] = s.rng.NormFloat64() * s.RoughNoise
		}
		rough = blurField(rough, s.width, s.height, 5)
		for i := range pix {
			pix[i] += rough[i]
		}
	}
	if s.FineNoise > 0 {
		for i := range pix {
			pix[i] += s.rng.NormFloat64() * s.FineNoise
		}
	}

	f := NewFrame(s.width, s.height)
	for i, v := range pix {
		f.Pix[i] = clampByte(v * 255)
	}

	// Draw scripted holes after noise so the injected change is crisp.
	for _, h := range s.Holes {
		if idx < h.AtFrame {
			continue
		}
		cx := int(h.XPct / 100 * float64(s.width))
		cy := int(h.YPct / 100 * float64(s.height))
		half := h.Size / 2
		for y := cy - half; y < cy-half+h.Size; y++ {
			for x := cx - half; x < cx-half+h.Size; x++ {
				if x < 0 || y < 0 || x >= s.width || y >= s.height {
					continue
				}
				f.Set(x, y, 230)
			}
		}
	}

	return f, nil
}

// renderScene computes the static scene: vignetted backdrop, paper
// square at SyntheticPaperScale times the mirror, mirror disc, smoothed
// once with a gaussian kernel.
func (s *SyntheticSource) renderScene() []float64 {
	w, h := s.width, s.height
	scene := make([]float64, w*h)
	ratio := float64(h) / float64(w)
	paperHalf := SyntheticPaperScale * SyntheticMirrorRatio

	for row := 0; row < h; row++ {
		y := -ratio + 2*ratio*float64(row)/float64(h-1)
		for col := 0; col < w; col++ {
			x := -1 + 2*float64(col)/float64(w-1)
			d := math.Sqrt(x*x + y*y)
			v := 0.4 - 0.4*d*d // backdrop with vignette
			if math.Abs(x) < paperHalf && math.Abs(y) < paperHalf {
				v = 0.8 // paper
			}
			if d <= SyntheticMirrorRatio {
				v = 0.2 // mirror
			}
			scene[row*w+col] = v
		}
	}
	return blurField(scene, w, h, 3)
}

// blurField gaussian-blurs a normalized field by shifting it into byte
// range, running it through bild, and shifting back. The quantization
// this introduces is below the detector's noise floor.
func blurField(field []float64, width, height int, radius float64) []float64 {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i, v := range field {
		img.Pix[i] = clampByte(v*127.5 + 127.5)
	}
	blurred := blur.Gaussian(img, radius)
	out := make([]float64, len(field))
	for i := range out {
		// RGBA output, R carries the gray value.
		out[i] = (float64(blurred.Pix[i*4]) - 127.5) / 127.5
	}
	return out
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
