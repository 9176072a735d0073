package spotter

import (
	"errors"
	"fmt"
)

// Mirror auto-detection constants, tuned against the synthetic scene
// and the reference camera setup.
const (
	// DefaultMirrorPickSize is the edge length in pixels of the center
	// patch whose mean luminance seeds the mirror flood fill.
	DefaultMirrorPickSize = 10
	// DefaultMirrorTolerance is how far a pixel's luminance may deviate
	// from the picked value and still belong to the mirror.
	DefaultMirrorTolerance = 15
	// DefaultPaperScale is the paper extent relative to the mirror.
	DefaultPaperScale = 3.0
)

// ErrMirrorNotFound indicates the flood fill from the frame center did
// not produce a plausible mirror region.
var ErrMirrorNotFound = errors.New("spotter: mirror not found")

// RingCorrection holds user-tunable percent deltas applied to the ring
// geometry before scoring: width/height scale the ring bounds, left/top
// shift them. Changing these re-scores existing marks at publish time.
type RingCorrection struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
}

// Calibration is the geometric mapping between camera pixel space and
// the logical target surface: the picker rectangle shown while
// aligning, and the mirror rectangle once locked. All rectangles are
// fractional so calibration survives resolution changes. Once locked,
// the mirror rectangle is authoritative for every ring-space
// conversion until it is explicitly re-detected.
type Calibration struct {
	Picker     FracRect
	Mirror     FracRect
	Locked     bool
	PickSize   int // pixels, luminance pick patch for detection
	Tolerance  int // luminance tolerance for the flood fill
	PaperScale float64
}

// NewCalibration returns a calibration with detection defaults and a
// picker rectangle centered in the frame.
func NewCalibration(frameWidth, frameHeight int) *Calibration {
	c := &Calibration{
		PickSize:   DefaultMirrorPickSize,
		Tolerance:  DefaultMirrorTolerance,
		PaperScale: DefaultPaperScale,
	}
	c.Picker = FracRect{
		Left:   50 - 100*float64(c.PickSize)/float64(frameWidth)/2,
		Top:    50 - 100*float64(c.PickSize)/float64(frameHeight)/2,
		Width:  100 * float64(c.PickSize) / float64(frameWidth),
		Height: 100 * float64(c.PickSize) / float64(frameHeight),
	}
	return c
}

// LockMirror records a detected mirror rectangle as authoritative.
func (c *Calibration) LockMirror(mirror PixelRect, frameWidth, frameHeight int) {
	c.Mirror = mirror.ToFrac(frameWidth, frameHeight)
	c.Locked = true
}

// RingBounds derives the overlay rectangle of every ring of the target
// from the locked mirror, applying the ring correction. Bounds come
// back in the target's ring order (outermost first).
func (c *Calibration) RingBounds(target TargetDefinition, corr RingCorrection) []FracRect {
	if !c.Locked {
		return nil
	}
	// Width/height deltas grow around the mirror center; left/top
	// deltas translate it.
	mirror := c.Mirror
	mirror.Left += corr.Left - corr.Width/2
	mirror.Top += corr.Top - corr.Height/2
	mirror.Width += corr.Width
	mirror.Height += corr.Height

	bounds := make([]FracRect, len(target.Rings))
	for i, ring := range target.Rings {
		bounds[i] = mirror.Scaled(ring.Scale)
	}
	return bounds
}

// FindMirror locates the dark mirror disc in a composite by flood
// filling outward from the center luminance pick, the same registration
// the aiming instructions assume: point the camera so the mirror sits
// behind the picker rectangle, then start.
func FindMirror(c *Composite, pickSize, tolerance int) (PixelRect, error) {
	if c == nil {
		return PixelRect{}, ErrMirrorNotFound
	}
	w, h := c.Width, c.Height
	cx, cy := w/2, h/2
	pad := pickSize / 2
	if pad < 1 {
		pad = 1
	}

	// Mean luminance of the center patch.
	var sum float64
	var n int
	for y := cy - pad; y < cy+pad; y++ {
		for x := cx - pad; x < cx+pad; x++ {
			if x < 0 || y < 0 || x >= w || y >= h {
				continue
			}
			sum += float64(c.At(x, y))
			n++
		}
	}
	if n == 0 {
		return PixelRect{}, ErrMirrorNotFound
	}
	pick := sum / float64(n)

	// Flood fill from the center across pixels within tolerance.
	match := func(idx int) bool {
		d := float64(c.Pix[idx]) - pick
		if d < 0 {
			d = -d
		}
		return d < float64(tolerance)
	}
	start := cy*w + cx
	if !match(start) {
		return PixelRect{}, fmt.Errorf("%w: center pixel outside tolerance", ErrMirrorNotFound)
	}
	visited := make([]bool, w*h)
	visited[start] = true
	queue := []int{start}
	bounds := PixelRect{Left: cx, Right: cx, Top: cy, Bottom: cy}
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		x, y := idx%w, idx/w
		if x < bounds.Left {
			bounds.Left = x
		}
		if x > bounds.Right {
			bounds.Right = x
		}
		if y < bounds.Top {
			bounds.Top = y
		}
		if y > bounds.Bottom {
			bounds.Bottom = y
		}
		if x > 0 && !visited[idx-1] && match(idx-1) {
			visited[idx-1] = true
			queue = append(queue, idx-1)
		}
		if x < w-1 && !visited[idx+1] && match(idx+1) {
			visited[idx+1] = true
			queue = append(queue, idx+1)
		}
		if y > 0 && !visited[idx-w] && match(idx-w) {
			visited[idx-w] = true
			queue = append(queue, idx-w)
		}
		if y < h-1 && !visited[idx+w] && match(idx+w) {
			visited[idx+w] = true
			queue = append(queue, idx+w)
		}
	}

	if bounds.Width() < 2 || bounds.Height() < 2 {
		return PixelRect{}, fmt.Errorf("%w: region %v too small", ErrMirrorNotFound, bounds)
	}
	// A mirror fills a small part of the frame; a fill spanning most of
	// it means the pick luminance matched the backdrop.
	if bounds.Width() >= w*3/4 || bounds.Height() >= h*3/4 {
		return PixelRect{}, fmt.Errorf("%w: region %v spans most of the frame", ErrMirrorNotFound, bounds)
	}
	return bounds, nil
}
