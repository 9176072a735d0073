package spotter

import (
	"context"
	"errors"
	"testing"
)

// scriptedSource wraps a source, capping the number of delivered frames
// and invoking a hook before each one. Hooks drive mode changes at
// deterministic points in the frame sequence.
type scriptedSource struct {
	inner   FrameSource
	limit   int
	count   int
	onFrame func(idx int)
}

func (s *scriptedSource) Dimensions() (int, int) { return s.inner.Dimensions() }

func (s *scriptedSource) NextFrame(ctx context.Context) (*Frame, error) {
	if s.count >= s.limit {
		return nil, ErrSourceExhausted
	}
	if s.onFrame != nil {
		s.onFrame(s.count)
	}
	s.count++
	return s.inner.NextFrame(ctx)
}

// quietScene returns a noiseless synthetic source so composites settle
// immediately once the window fills.
func quietScene(holes ...SyntheticHole) *SyntheticSource {
	src := NewSyntheticSource(200, 150, 11)
	src.RoughNoise = 0
	src.FineNoise = 0
	src.Holes = holes
	return src
}

func TestEngine_DetectsScriptedHole(t *testing.T) {
	// Frames 0-2 preview, start at 3, window of 5 fills by 7, settles by
	// 10, first clean detection cycle at 15, hole lands at 16 and is
	// fully in the window by cycle 20. One detection, then quiet. The
	// hole sits on the mirror, where contrast against the disc is high.
	hole := SyntheticHole{AtFrame: 16, XPct: 48, YPct: 48, Size: 6}
	src := &scriptedSource{inner: quietScene(hole), limit: 30}
	eng := New(Config{Source: src})
	src.onFrame = func(idx int) {
		if idx == 3 {
			if err := eng.ApplySetting("mode", ModeStart); err != nil {
				t.Errorf("start: %v", err)
			}
		}
	}

	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := eng.State(); got != StateDetect {
		t.Fatalf("state = %v, want detect", got)
	}

	marks := eng.Marks()
	if len(marks) != 1 {
		t.Fatalf("marks = %d, want exactly 1", len(marks))
	}
	m := marks[0]
	if m.XPct < 46 || m.XPct > 50 {
		t.Errorf("mark x = %.2f%%, want near 48%%", m.XPct)
	}
	if m.YPct < 46 || m.YPct > 50 {
		t.Errorf("mark y = %.2f%%, want near 48%%", m.YPct)
	}
	// Just off the mirror center scores one of the inner rings.
	if m.Ring < 8 || m.Ring > 10 {
		t.Errorf("mark ring = %d, want an inner ring", m.Ring)
	}

	// Correcting a mark to its own pixel position re-runs the scorer
	// and must reproduce the detector-assigned ring.
	if err := eng.EditMark(MarkEdit{Action: MarkEditCorrect, Index: 0, PixelX: m.PixelX, PixelY: m.PixelY}); err != nil {
		t.Fatalf("correct: %v", err)
	}
	if got := eng.Marks()[0].Ring; got != m.Ring {
		t.Errorf("re-scored ring = %d, detector assigned %d", got, m.Ring)
	}
}

func TestEngine_HoleBeforeDetectIsBaseline(t *testing.T) {
	// A hole present from the very first frame is part of the settled
	// baseline, so detect must not report it.
	hole := SyntheticHole{AtFrame: 0, XPct: 30, YPct: 40, Size: 6}
	src := &scriptedSource{inner: quietScene(hole), limit: 30}
	eng := New(Config{Source: src})
	src.onFrame = func(idx int) {
		if idx == 3 {
			eng.ApplySetting("mode", ModeStart)
		}
	}

	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := eng.Marks(); len(got) != 0 {
		t.Errorf("marks = %d, want 0 (hole predates the baseline)", len(got))
	}
}

func TestEngine_PreviewKeepsMarks(t *testing.T) {
	hole := SyntheticHole{AtFrame: 16, XPct: 48, YPct: 48, Size: 6}
	src := &scriptedSource{inner: quietScene(hole), limit: 30}
	eng := New(Config{Source: src})
	src.onFrame = func(idx int) {
		switch idx {
		case 3:
			eng.ApplySetting("mode", ModeStart)
		case 26:
			eng.ApplySetting("mode", ModePreview)
		}
	}

	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := eng.State(); got != StatePreview {
		t.Fatalf("state = %v, want preview", got)
	}
	if got := eng.Marks(); len(got) != 1 {
		t.Errorf("marks = %d, want 1 surviving the mode change", len(got))
	}
}

func TestEngine_MarkEdits(t *testing.T) {
	hole := SyntheticHole{AtFrame: 16, XPct: 48, YPct: 48, Size: 6}
	src := &scriptedSource{inner: quietScene(hole), limit: 30}
	eng := New(Config{Source: src})
	src.onFrame = func(idx int) {
		if idx == 3 {
			eng.ApplySetting("mode", ModeStart)
		}
	}
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(eng.Marks()) != 1 {
		t.Fatalf("precondition: want 1 mark, have %d", len(eng.Marks()))
	}

	if err := eng.EditMark(MarkEdit{Action: MarkEditCopy, Index: 0}); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if got := eng.Marks(); len(got) != 2 {
		t.Fatalf("after copy: %d marks", len(got))
	}

	// Move the duplicate to the mirror center; it must re-score to the
	// innermost ring.
	if err := eng.EditMark(MarkEdit{Action: MarkEditCorrect, Index: 1, PixelX: 100, PixelY: 75}); err != nil {
		t.Fatalf("correct: %v", err)
	}
	moved := eng.Marks()[1]
	if moved.XPct != 50 || moved.YPct != 50 {
		t.Errorf("corrected mark at (%.1f%%, %.1f%%), want center", moved.XPct, moved.YPct)
	}
	if moved.Ring < 10 {
		t.Errorf("corrected ring = %d, want the innermost rings", moved.Ring)
	}

	if err := eng.EditMark(MarkEdit{Action: MarkEditDelete, Index: 0}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got := eng.Marks()
	if len(got) != 1 || got[0].ID != moved.ID {
		t.Errorf("delete should leave only the corrected duplicate")
	}

	if err := eng.EditMark(MarkEdit{Action: MarkEditDelete, Index: 5}); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("out-of-range delete err = %v, want ErrIndexOutOfRange", err)
	}
	if err := eng.EditMark(MarkEdit{Action: "reset", Index: 0}); err == nil {
		t.Error("unknown action should be rejected")
	}
}

func TestEngine_SettingsLastWriteWins(t *testing.T) {
	src := &scriptedSource{inner: quietScene(), limit: 1}
	eng := New(Config{Source: src})

	for _, v := range []int{2, 9, 5} {
		if err := eng.ApplySetting("sensitivity", v); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	if got := eng.Settings().Sensitivity; got != 5 {
		t.Errorf("sensitivity = %d, want 5", got)
	}

	if err := eng.ApplySetting("sensitivity", 42); !errors.Is(err, ErrInvalidSetting) {
		t.Fatalf("err = %v, want ErrInvalidSetting", err)
	}
	if got := eng.Settings().Sensitivity; got != 5 {
		t.Errorf("failed update changed sensitivity to %d", got)
	}
}

func TestEngine_SourceUnavailableFaults(t *testing.T) {
	errBoom := errors.New("decoder gone")
	src := &faultySource{err: errBoom}
	eng := New(Config{Source: src})

	ch, cancel := eng.Publisher().Subscribe()
	defer cancel()

	err := eng.Run(context.Background())
	if !errors.Is(err, errBoom) {
		t.Fatalf("Run err = %v, want wrapped source error", err)
	}

	// The last published bundle carries the persistent fault.
	var last Update
	for {
		select {
		case u := <-ch:
			last = u
			continue
		default:
		}
		break
	}
	if last.Fault == "" {
		t.Error("published bundle should carry the fault")
	}
}

type faultySource struct{ err error }

func (s *faultySource) Dimensions() (int, int) { return 64, 48 }
func (s *faultySource) NextFrame(ctx context.Context) (*Frame, error) {
	return nil, s.err
}

func TestEngine_PublishedBundleShape(t *testing.T) {
	src := &scriptedSource{inner: quietScene(), limit: 1}
	eng := New(Config{Source: src})
	ch, cancel := eng.Publisher().Subscribe()
	defer cancel()

	if err := eng.ApplySetting("average", 3); err != nil {
		t.Fatal(err)
	}
	u := <-ch
	if u.State != "preview" {
		t.Errorf("state = %q, want preview", u.State)
	}
	if u.Picker == nil {
		t.Error("preview bundle should include the picker rectangle")
	}
	if u.Marks == nil {
		t.Error("marks must be present (possibly empty), never null")
	}
	if u.Settings.Average != 3 {
		t.Errorf("settings snapshot average = %d, want 3", u.Settings.Average)
	}
	if u.Progress != nil {
		t.Error("progress is for collect only")
	}
}
