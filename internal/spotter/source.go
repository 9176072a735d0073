package spotter

import (
	"context"
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// Sentinel errors reported by frame sources. Callers check them with
// errors.Is; anything else from a source is treated as unavailable.
var (
	// ErrSourceExhausted indicates a finite source (video file) delivered
	// its last frame. Acquisition stops; engine state is left intact.
	ErrSourceExhausted = errors.New("spotter: frame source exhausted")

	// ErrSourceUnavailable indicates the underlying device or decoder
	// cannot deliver frames. Acquisition halts and the condition is
	// surfaced as a persistent fault until the source is restarted.
	ErrSourceUnavailable = errors.New("spotter: frame source unavailable")
)

// FrameSource produces a sequence of grayscale frames. NextFrame blocks
// until a frame is available or ctx is cancelled. Implementations are
// interchangeable: live capture, decoded video file, or the synthetic
// generator.
type FrameSource interface {
	NextFrame(ctx context.Context) (*Frame, error)
	Dimensions() (width, height int)
}

// CaptureFunc grabs one image from a live device. Device protocols stay
// outside the engine; adapters hand frames in through this hook.
type CaptureFunc func(ctx context.Context) (image.Image, error)

// LiveSource adapts an injected capture function into a FrameSource.
// Captured images are converted to luminance frames; capture failures
// map to ErrSourceUnavailable.
type LiveSource struct {
	capture CaptureFunc
	width   int
	height  int
}

// NewLiveSource wraps a capture function. Dimensions are the expected
// capture resolution; frames of other sizes are resized to match so the
// composite window stays consistent.
func NewLiveSource(capture CaptureFunc, width, height int) *LiveSource {
	return &LiveSource{capture: capture, width: width, height: height}
}

// Dimensions returns the configured capture resolution.
func (s *LiveSource) Dimensions() (int, int) { return s.width, s.height }

// NextFrame grabs and converts one capture.
func (s *LiveSource) NextFrame(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := s.capture(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, ErrSourceUnavailable
	}
	if img == nil {
		return nil, ErrSourceUnavailable
	}
	return grayFrame(img, s.width, s.height), nil
}

// grayFrame converts an image to a luminance frame of the given size.
func grayFrame(img image.Image, width, height int) *Frame {
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		img = imaging.Resize(img, width, height, imaging.Linear)
	}
	gray := imaging.Grayscale(img)
	f := NewFrame(width, height)
	for y := 0; y < height; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+width*4]
		for x := 0; x < width; x++ {
			// NRGBA with R==G==B after Grayscale; take R.
			f.Pix[y*width+x] = row[x*4]
		}
	}
	return f
}
