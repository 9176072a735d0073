package spotter

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestLiveSource_ConvertsCaptures(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 32, 24))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.SetGray(10, 10, color.Gray{Y: 20})

	src := NewLiveSource(func(ctx context.Context) (image.Image, error) {
		return img, nil
	}, 32, 24)

	f, err := src.NextFrame(context.Background())
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if f.Width != 32 || f.Height != 24 {
		t.Fatalf("frame %dx%d", f.Width, f.Height)
	}
	if got := f.At(0, 0); got != 200 {
		t.Errorf("background luminance = %d, want 200", got)
	}
	if got := f.At(10, 10); got != 20 {
		t.Errorf("dark pixel luminance = %d, want 20", got)
	}
}

func TestLiveSource_ResizesMismatchedCaptures(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	src := NewLiveSource(func(ctx context.Context) (image.Image, error) {
		return img, nil
	}, 32, 24)

	f, err := src.NextFrame(context.Background())
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if f.Width != 32 || f.Height != 24 {
		t.Errorf("frame %dx%d, want the configured 32x24", f.Width, f.Height)
	}
	if got := f.At(16, 12); got != 128 {
		t.Errorf("resized luminance = %d, want 128", got)
	}
}

func TestLiveSource_CaptureFailureIsUnavailable(t *testing.T) {
	src := NewLiveSource(func(ctx context.Context) (image.Image, error) {
		return nil, errors.New("device busy")
	}, 32, 24)

	_, err := src.NextFrame(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}

func TestLiveSource_CancellationPassesThrough(t *testing.T) {
	src := NewLiveSource(func(ctx context.Context) (image.Image, error) {
		return nil, ctx.Err()
	}, 32, 24)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.NextFrame(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
