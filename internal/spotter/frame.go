// Package spotter implements the detection and state engine for tracking
// hits appearing on a photographed paper target.
//
// The pipeline is: FrameSource → CompositeBuilder → change detection →
// mark promotion, gated by a small workflow state machine
// (PREVIEW → COLLECT → DETECT). Discovered marks, calibration overlays
// and live status are fanned out to subscribers through a Publisher;
// the HTTP transport that relays them to browsers lives outside this
// package.
package spotter

import (
	"fmt"
	"time"
)

// Frame is a single grayscale capture from a FrameSource. Pixels are
// luminance values in row-major order. Frames are owned by the stage
// that produced them and are read-only downstream.
type Frame struct {
	Width     int
	Height    int
	Pix       []uint8 // len Width*Height, row-major
	Timestamp time.Time
}

// NewFrame allocates a zeroed frame of the given dimensions.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:     width,
		Height:    height,
		Pix:       make([]uint8, width*height),
		Timestamp: time.Now(),
	}
}

// At returns the luminance at (x, y). No bounds checking.
func (f *Frame) At(x, y int) uint8 {
	return f.Pix[y*f.Width+x]
}

// Set stores the luminance at (x, y). No bounds checking.
func (f *Frame) Set(x, y int, v uint8) {
	f.Pix[y*f.Width+x] = v
}

// PixelRect is an axis-aligned rectangle in frame pixel coordinates.
// Right and Bottom are inclusive, matching how region extents are
// accumulated during scanning.
type PixelRect struct {
	Left   int
	Top    int
	Right  int
	Bottom int
}

func (r PixelRect) String() string {
	return fmt.Sprintf("PixelRect(left=%d top=%d right=%d bottom=%d)", r.Left, r.Top, r.Right, r.Bottom)
}

// Width returns the horizontal extent in pixels.
func (r PixelRect) Width() int { return r.Right - r.Left }

// Height returns the vertical extent in pixels.
func (r PixelRect) Height() int { return r.Bottom - r.Top }

// Center returns the integer center position (x, y).
func (r PixelRect) Center() (int, int) {
	return (r.Left + r.Right) / 2, (r.Top + r.Bottom) / 2
}

// Scaled grows or shrinks the rect around its center by the given factor.
func (r PixelRect) Scaled(factor float64) PixelRect {
	cx, cy := r.Center()
	return PixelRect{
		Left:   int(factor*float64(r.Left-cx)) + cx,
		Right:  int(factor*float64(r.Right-cx)) + cx,
		Top:    int(factor*float64(r.Top-cy)) + cy,
		Bottom: int(factor*float64(r.Bottom-cy)) + cy,
	}
}

// Moved translates the rect by (dx, dy).
func (r PixelRect) Moved(dx, dy int) PixelRect {
	return PixelRect{
		Left:   r.Left + dx,
		Right:  r.Right + dx,
		Top:    r.Top + dy,
		Bottom: r.Bottom + dy,
	}
}

// FracRect is a rectangle expressed as percentages of a reference
// surface (0–100 of its width and height), so overlays are independent
// of the capture resolution.
type FracRect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the fractional center position (x, y) in percent.
func (r FracRect) Center() (float64, float64) {
	return r.Left + r.Width/2, r.Top + r.Height/2
}

// Scaled grows or shrinks the rect around its center by the given factor.
func (r FracRect) Scaled(factor float64) FracRect {
	cx, cy := r.Center()
	w := r.Width * factor
	h := r.Height * factor
	return FracRect{Left: cx - w/2, Top: cy - h/2, Width: w, Height: h}
}

// ToFrac converts a pixel rect into percentages of a frame of the given
// dimensions.
func (r PixelRect) ToFrac(frameWidth, frameHeight int) FracRect {
	return FracRect{
		Left:   100 * float64(r.Left) / float64(frameWidth),
		Top:    100 * float64(r.Top) / float64(frameHeight),
		Width:  100 * float64(r.Width()) / float64(frameWidth),
		Height: 100 * float64(r.Height()) / float64(frameHeight),
	}
}
