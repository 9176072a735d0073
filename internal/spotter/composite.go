package spotter

// Composite is a noise-reduced frame formed by averaging a window of
// raw frames. It is replaced, never mutated, once handed downstream.
type Composite struct {
	Width  int
	Height int
	Pix    []float32 // per-pixel mean luminance, row-major
}

// At returns the mean luminance at (x, y). No bounds checking.
func (c *Composite) At(x, y int) float32 {
	return c.Pix[y*c.Width+x]
}

// Clone returns a deep copy.
func (c *Composite) Clone() *Composite {
	pix := make([]float32, len(c.Pix))
	copy(pix, c.Pix)
	return &Composite{Width: c.Width, Height: c.Height, Pix: pix}
}

// CompositeBuilder maintains a sliding window of the last K raw frames
// and their running per-pixel sum. Current returns nil until K frames
// have been seen since the last reset, so downstream stages never see a
// partially filled window. Changing K resets the window; frames from
// two different window sizes are never mixed.
type CompositeBuilder struct {
	size   int
	window []*Frame
	sum    []int32
	width  int
	height int
}

// NewCompositeBuilder creates a builder averaging size frames (min 1).
func NewCompositeBuilder(size int) *CompositeBuilder {
	if size < 1 {
		size = 1
	}
	return &CompositeBuilder{size: size}
}

// Size returns the configured window size.
func (b *CompositeBuilder) Size() int { return b.size }

// Fill returns how many frames are currently in the window.
func (b *CompositeBuilder) Fill() int { return len(b.window) }

// Reset discards the window and starts accumulating fresh.
func (b *CompositeBuilder) Reset() {
	b.window = nil
	b.sum = nil
}

// SetSize changes the window size. A size change always resets the
// window, even to the same value requested again after a mode switch.
func (b *CompositeBuilder) SetSize(size int) {
	if size < 1 {
		size = 1
	}
	b.size = size
	b.Reset()
}

// Add pushes a frame into the window, evicting the oldest once the
// window is full. A frame of mismatched dimensions resets the window
// first; sources are expected to deliver a stable resolution.
func (b *CompositeBuilder) Add(f *Frame) {
	if b.sum == nil || b.width != f.Width || b.height != f.Height {
		b.window = nil
		b.width = f.Width
		b.height = f.Height
		b.sum = make([]int32, f.Width*f.Height)
	}
	b.window = append(b.window, f)
	for i, v := range f.Pix {
		b.sum[i] += int32(v)
	}
	if len(b.window) > b.size {
		oldest := b.window[0]
		b.window = b.window[1:]
		for i, v := range oldest.Pix {
			b.sum[i] -= int32(v)
		}
	}
}

// Current returns the mean composite of the window, or nil while the
// window is still filling.
func (b *CompositeBuilder) Current() *Composite {
	if len(b.window) < b.size {
		return nil
	}
	n := float32(len(b.window))
	pix := make([]float32, len(b.sum))
	for i, s := range b.sum {
		pix[i] = float32(s) / n
	}
	return &Composite{Width: b.width, Height: b.height, Pix: pix}
}
