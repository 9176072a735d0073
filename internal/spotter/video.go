package spotter

import (
	"context"
	"fmt"
	"time"

	vidio "github.com/AlexEidt/Vidio"
)

// VideoSource replays a recorded target session from a video file,
// frame by frame. End of stream maps to ErrSourceExhausted; a decoder
// fault maps to ErrSourceUnavailable.
type VideoSource struct {
	video *vidio.Video
	path  string

	// Realtime paces frames at the file's native rate when true.
	// Replay for analysis normally runs unpaced.
	Realtime bool

	next time.Time
}

// NewVideoSource opens a video file for frame extraction.
func NewVideoSource(path string) (*VideoSource, error) {
	v, err := vidio.NewVideo(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	return &VideoSource{video: v, path: path}, nil
}

// Dimensions returns the video resolution.
func (s *VideoSource) Dimensions() (int, int) {
	return s.video.Width(), s.video.Height()
}

// NextFrame decodes the next frame and reduces it to luminance.
func (s *VideoSource) NextFrame(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Realtime && s.video.FPS() > 0 {
		period := time.Duration(float64(time.Second) / s.video.FPS())
		if s.next.IsZero() {
			s.next = time.Now()
		}
		if wait := time.Until(s.next); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
		s.next = s.next.Add(period)
	}

	if !s.video.Read() {
		// Vidio reports both end-of-stream and decode failure as a
		// false Read; a file that opened cleanly is treated as ended.
		return nil, ErrSourceExhausted
	}

	w, h := s.video.Width(), s.video.Height()
	buf := s.video.FrameBuffer() // RGBA bytes
	if len(buf) < w*h*4 {
		return nil, ErrSourceUnavailable
	}
	f := NewFrame(w, h)
	for i := 0; i < w*h; i++ {
		r := int(buf[i*4])
		g := int(buf[i*4+1])
		b := int(buf[i*4+2])
		// BT.601 luma, integer form.
		f.Pix[i] = uint8((299*r + 587*g + 114*b) / 1000)
	}
	return f, nil
}

// Close releases the decoder.
func (s *VideoSource) Close() {
	if s.video != nil {
		s.video.Close()
	}
}
