package spotter

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestSyntheticSource_ReproducibleSequence(t *testing.T) {
	ctx := context.Background()
	a := NewSyntheticSource(160, 120, 7)
	b := NewSyntheticSource(160, 120, 7)

	for i := 0; i < 5; i++ {
		fa, err := a.NextFrame(ctx)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		fb, err := b.NextFrame(ctx)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if !bytes.Equal(fa.Pix, fb.Pix) {
			t.Fatalf("frame %d differs between same-seed sources", i)
		}
	}
}

func TestSyntheticSource_DifferentSeedsDiffer(t *testing.T) {
	ctx := context.Background()
	a := NewSyntheticSource(160, 120, 1)
	b := NewSyntheticSource(160, 120, 2)
	fa, _ := a.NextFrame(ctx)
	fb, _ := b.NextFrame(ctx)
	if bytes.Equal(fa.Pix, fb.Pix) {
		t.Error("different seeds produced identical frames")
	}
}

func TestSyntheticSource_SceneLayout(t *testing.T) {
	src := NewSyntheticSource(200, 150, 3)
	src.RoughNoise = 0
	src.FineNoise = 0
	f, err := src.NextFrame(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	center := f.At(100, 75)
	corner := f.At(3, 3)
	paper := f.At(125, 75) // on paper, outside the mirror

	if center >= paper {
		t.Errorf("mirror (%d) should be darker than paper (%d)", center, paper)
	}
	if corner >= paper {
		t.Errorf("vignetted corner (%d) should be darker than paper (%d)", corner, paper)
	}
	if paper < 150 {
		t.Errorf("paper luminance = %d, want bright", paper)
	}
}

func TestSyntheticSource_HoleInjection(t *testing.T) {
	ctx := context.Background()
	src := NewSyntheticSource(200, 150, 3)
	src.RoughNoise = 0
	src.FineNoise = 0
	src.Holes = []SyntheticHole{{AtFrame: 2, XPct: 30, YPct: 40, Size: 6}}

	hx := int(0.30 * 200)
	hy := int(0.40 * 150)

	for i := 0; i < 2; i++ {
		f, err := src.NextFrame(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if f.At(hx, hy) == 230 {
			t.Fatalf("hole visible at frame %d, before its scripted start", i)
		}
	}
	f, err := src.NextFrame(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := f.At(hx, hy); got != 230 {
		t.Errorf("hole center luminance = %d, want 230", got)
	}
	// The square extends but stays bounded.
	if got := f.At(hx+2, hy+2); got != 230 {
		t.Errorf("hole interior luminance = %d, want 230", got)
	}
	if got := f.At(hx+10, hy); got == 230 {
		t.Error("hole bled past its scripted size")
	}
}

func TestSyntheticSource_ContextCancel(t *testing.T) {
	src := NewSyntheticSource(64, 48, 1)
	src.Interval = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := src.NextFrame(ctx)
		done <- err
	}()
	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Error("expected context error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("NextFrame did not honor cancellation")
	}
}
