package spotter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/spotterhq/spotter/internal/monitoring"
)

// Baseline settling defaults for COLLECT.
const (
	// DefaultSettleDelta is the mean absolute per-pixel delta between
	// consecutive composites under which the baseline counts as stable.
	DefaultSettleDelta = 3.0
	// DefaultSettleComposites is how many consecutive stable composite
	// pairs COLLECT needs before auto-advancing to DETECT.
	DefaultSettleComposites = 3
)

// MarkEditAction selects a mark edit operation.
type MarkEditAction string

// Mark edit actions accepted from the command surface.
const (
	MarkEditCorrect MarkEditAction = "correct"
	MarkEditCopy    MarkEditAction = "copy"
	MarkEditDelete  MarkEditAction = "delete"
)

// MarkEdit is one user mark mutation, referencing the mark by its
// positional index. Correct additionally carries the new pixel
// position.
type MarkEdit struct {
	Action MarkEditAction `json:"action"`
	Index  int            `json:"index"`
	PixelX float64        `json:"x,omitempty"`
	PixelY float64        `json:"y,omitempty"`
}

// Config assembles an Engine.
type Config struct {
	Source   FrameSource
	Settings Settings

	// SettleDelta and SettleComposites tune the COLLECT auto-advance;
	// zero values take the defaults.
	SettleDelta      float64
	SettleComposites int

	// MinRegionArea and MaxRegionExtent tune candidate extraction;
	// zero values take the defaults.
	MinRegionArea   int
	MaxRegionExtent int
}

// Engine owns the whole detection pipeline state: settings,
// calibration, workflow, mark store and publisher. One goroutine runs
// the acquisition loop (Run); command methods are called concurrently
// from transport handlers and become visible to the next cycle.
type Engine struct {
	source   FrameSource
	pub      *Publisher
	workflow *Workflow
	marks    *MarkStore

	width  int
	height int

	mu       sync.Mutex // guards settings, cal, fault, cycle telemetry
	settings Settings
	cal      *Calibration
	fault    string
	progress int
	procTime time.Duration
	infos    map[string]string

	// Pipeline state below is touched only by the Run goroutine.
	builder       *CompositeBuilder
	baseline      *Composite
	lastComposite *Composite
	display       *Composite
	settledPairs  int
	framesInState int
	sinceDetect   int
	prevState     WorkflowState

	settleDelta float64
	settleNeed  int
	minArea     int
	maxExtent   int

	logf func(format string, v ...interface{})
}

// New assembles an engine around a frame source. The engine starts in
// PREVIEW and does nothing until Run is called.
func New(cfg Config) *Engine {
	if cfg.Source == nil {
		panic("spotter: Config.Source is required")
	}
	settings := cfg.Settings
	if settings.Average < 1 {
		settings = DefaultSettings()
	}
	w, h := cfg.Source.Dimensions()

	e := &Engine{
		source:      cfg.Source,
		pub:         NewPublisher(),
		workflow:    NewWorkflow(),
		marks:       NewMarkStore(),
		width:       w,
		height:      h,
		settings:    settings,
		cal:         NewCalibration(w, h),
		builder:     NewCompositeBuilder(settings.Average),
		infos:       map[string]string{},
		settleDelta: cfg.SettleDelta,
		settleNeed:  cfg.SettleComposites,
		minArea:     cfg.MinRegionArea,
		maxExtent:   cfg.MaxRegionExtent,
		logf:        monitoring.Component("Engine"),
	}
	if e.settleDelta <= 0 {
		e.settleDelta = DefaultSettleDelta
	}
	if e.settleNeed < 1 {
		e.settleNeed = DefaultSettleComposites
	}
	if e.minArea < 1 {
		e.minArea = DefaultMinRegionArea
	}
	if e.maxExtent < 1 {
		e.maxExtent = DefaultMaxRegionExtent
	}
	return e
}

// Publisher exposes the broadcast side for transport subscribers.
func (e *Engine) Publisher() *Publisher { return e.pub }

// State returns the current workflow state.
func (e *Engine) State() WorkflowState { return e.workflow.State() }

// Marks returns a consistent snapshot of the mark list.
func (e *Engine) Marks() []Mark { return e.marks.Snapshot() }

// Settings returns a copy of the current settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// Display returns the composite currently intended for display (the
// amplified difference when show-difference is on), or nil while the
// window is filling.
func (e *Engine) Display() *Composite {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.display == nil {
		return nil
	}
	return e.display.Clone()
}

// ApplySetting validates and applies one named parameter. The change is
// visible to the next pipeline cycle; a mode change moves the workflow
// immediately. Errors are synchronous and leave all state unchanged.
func (e *Engine) ApplySetting(param string, value any) error {
	e.mu.Lock()
	next := e.settings
	if err := next.Apply(param, value); err != nil {
		e.mu.Unlock()
		return err
	}
	prevMode := e.settings.Mode
	e.settings = next
	e.mu.Unlock()

	if next.Mode != prevMode {
		switch next.Mode {
		case ModeStart:
			if e.workflow.RequestStart() {
				e.logf("mode command: start, entering collect")
			}
		case ModePreview:
			if e.workflow.RequestPreview() {
				e.logf("mode command: preview")
			}
		}
	}
	e.publish()
	return nil
}

// EditMark applies one user mark mutation and publishes the updated
// list. Invalid indices return ErrIndexOutOfRange with no state change.
func (e *Engine) EditMark(edit MarkEdit) error {
	var err error
	switch edit.Action {
	case MarkEditCorrect:
		err = e.marks.Correct(edit.Index, edit.PixelX, edit.PixelY, e.resolver())
	case MarkEditCopy:
		err = e.marks.Copy(edit.Index)
	case MarkEditDelete:
		err = e.marks.Delete(edit.Index)
	default:
		return fmt.Errorf("spotter: unknown mark edit action %q", edit.Action)
	}
	if err != nil {
		return err
	}
	e.publish()
	return nil
}

// Run drives the acquisition loop until ctx is cancelled or the source
// ends. A finite source ending is not an error: composites stop, all
// other state stays live. An unavailable source halts the loop and
// leaves a persistent fault in the published infos.
func (e *Engine) Run(ctx context.Context) error {
	e.logf("pipeline started (%dx%d, average=%d)", e.width, e.height, e.builder.Size())
	e.publish()
	for {
		frame, err := e.source.NextFrame(ctx)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			e.logf("pipeline stopped: %v", ctx.Err())
			return nil
		case errors.Is(err, ErrSourceExhausted):
			e.logf("source exhausted, keeping state")
			e.setInfo("source", "ended")
			e.publish()
			return nil
		default:
			e.logf("source unavailable: %v", err)
			e.mu.Lock()
			e.fault = fmt.Sprintf("frame source unavailable: %v", err)
			e.mu.Unlock()
			e.publish()
			return fmt.Errorf("acquisition halted: %w", err)
		}

		e.step(frame)

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// step runs one pipeline cycle for a single frame.
func (e *Engine) step(frame *Frame) {
	start := time.Now()

	e.mu.Lock()
	settings := e.settings
	e.mu.Unlock()

	state := e.workflow.State()
	if state != e.prevState {
		e.onTransition(e.prevState, state)
		e.prevState = state
	}
	if settings.Average != e.builder.Size() {
		e.logf("average changed to %d, resetting window", settings.Average)
		e.builder.SetSize(settings.Average)
		e.baseline = nil
		e.lastComposite = nil
	}

	adjustFrame(frame, settings.Contrast, settings.Brightness)
	e.builder.Add(frame)
	e.framesInState++
	cur := e.builder.Current()

	switch state {
	case StatePreview:
		e.stepPreview(cur)
	case StateCollect:
		e.stepCollect(cur)
	case StateDetect:
		e.stepDetect(cur, settings)
	}

	e.mu.Lock()
	e.procTime = time.Since(start)
	e.infos["processing_time"] = fmt.Sprintf("%.2f ms", float64(e.procTime.Microseconds())/1000)
	e.infos["frames_in_window"] = fmt.Sprintf("%d/%d", e.builder.Fill(), e.builder.Size())
	e.mu.Unlock()

	e.publish()
}

// onTransition resets per-state pipeline scratch when the workflow
// moves. Marks survive every transition.
func (e *Engine) onTransition(from, to WorkflowState) {
	e.logf("state %s -> %s", from, to)
	e.builder.Reset()
	e.baseline = nil
	e.lastComposite = nil
	e.settledPairs = 0
	e.framesInState = 0
	e.sinceDetect = 0
	e.setProgress(0)
	if to == StateCollect {
		e.mu.Lock()
		e.cal.Locked = false
		e.mu.Unlock()
	}
}

func (e *Engine) stepPreview(cur *Composite) {
	if cur == nil {
		return
	}
	e.setDisplay(cur)
}

func (e *Engine) stepCollect(cur *Composite) {
	// Progress counts frames toward a full window plus the settle run.
	need := e.builder.Size() + e.settleNeed
	p := 100 * e.framesInState / need
	if p > 99 {
		p = 99
	}
	e.setProgress(p)
	if cur == nil {
		return
	}
	e.setDisplay(cur)

	e.mu.Lock()
	locked := e.cal.Locked
	pickSize := e.cal.PickSize
	tolerance := e.cal.Tolerance
	e.mu.Unlock()

	if !locked {
		mirror, err := FindMirror(cur, pickSize, tolerance)
		if err != nil {
			e.setInfo("mirror", err.Error())
			return
		}
		e.mu.Lock()
		e.cal.LockMirror(mirror, cur.Width, cur.Height)
		e.mu.Unlock()
		e.setInfo("mirror", fmt.Sprintf("locked at %v", mirror))
		e.logf("mirror locked: %v", mirror)
	}

	if e.lastComposite != nil {
		if meanAbsDelta(e.lastComposite, cur) < e.settleDelta {
			e.settledPairs++
		} else {
			e.settledPairs = 0
		}
	}
	e.lastComposite = cur

	if e.settledPairs >= e.settleNeed {
		e.baseline = cur
		e.setProgress(100)
		if e.workflow.AdvanceToDetect() {
			e.logf("baseline settled after %d frames, entering detect", e.framesInState)
			// Keep the freshly settled baseline across the transition
			// reset the next cycle would otherwise discard.
			e.prevState = StateDetect
			e.sinceDetect = 0
		}
	}
}

func (e *Engine) stepDetect(cur *Composite, settings Settings) {
	if cur == nil {
		return
	}
	if settings.ShowDifference && e.baseline != nil {
		if diff := DifferenceImage(e.baseline, cur, DifferenceGain); diff != nil {
			e.setDisplay(diff)
		}
	} else {
		e.setDisplay(cur)
	}

	if e.baseline == nil {
		e.baseline = cur
		e.sinceDetect = 0
		return
	}

	// A detection cycle completes once the window has fully turned over
	// since the baseline, so a fresh hole appears at full contrast
	// instead of diluted across a shared window.
	e.sinceDetect++
	if e.sinceDetect < e.builder.Size() {
		return
	}

	params := DetectorParams{
		Sensitivity: settings.Sensitivity,
		MinArea:     e.minArea,
		MaxExtent:   e.maxExtent,
	}
	regions := DetectChanges(e.baseline, cur, params)
	if len(regions) == 0 {
		e.setInfo("last_detection", "no change")
	} else {
		res := e.resolver()
		for _, r := range regions {
			m := e.marks.Append(r.CentroidX, r.CentroidY, res)
			e.logf("mark %s at (%.1f%%, %.1f%%) ring %s, area %d px",
				m.ID[:8], m.XPct, m.YPct, RingLabel(m.Ring), r.Area)
		}
		e.setInfo("last_detection", fmt.Sprintf("%d region(s), first at %v", len(regions), regions[0].Bounds))
	}

	// The baseline follows the latest composite so a placed hole is
	// detected once, not every cycle.
	e.baseline = cur
	e.sinceDetect = 0
}

// resolver captures the current calibration and target geometry as a
// Resolver for mark scoring. While the mirror is not locked every
// position scores RingOuter.
func (e *Engine) resolver() Resolver {
	e.mu.Lock()
	target := TargetByName(e.settings.Target)
	bounds := e.cal.RingBounds(target, e.settings.RingCorrection)
	e.mu.Unlock()
	w, h := float64(e.width), float64(e.height)
	rings := target.Rings
	return ResolverFunc(func(px, py float64) (float64, float64, int) {
		xPct := 100 * px / w
		yPct := 100 * py / h
		return xPct, yPct, ScoreRing(xPct, yPct, bounds, rings)
	})
}

// publish assembles and broadcasts a full state bundle. Ring values
// are re-scored against the current geometry first, so correction
// changes take effect retroactively without touching pixel positions.
func (e *Engine) publish() {
	res := e.resolver()
	e.marks.Rescore(res)

	e.mu.Lock()
	settings := e.settings
	target := TargetByName(settings.Target)
	state := e.workflow.State()
	u := Update{
		Settings: settings,
		State:    state.String(),
		Marks:    []MarkView{},
	}
	if len(e.infos) > 0 {
		u.Infos = make(map[string]string, len(e.infos))
		for k, v := range e.infos {
			u.Infos[k] = v
		}
	}
	if state == StateCollect {
		p := e.progress
		u.Progress = &p
	}
	if state == StatePreview {
		picker := e.cal.Picker
		u.Picker = &picker
	}
	if e.cal.Locked {
		u.Rings = e.cal.RingBounds(target, settings.RingCorrection)
		if target.MirrorMM > 0 {
			u.MarkSize = &MarkSize{
				Width:  e.cal.Mirror.Width * settings.MunitionMM / target.MirrorMM,
				Height: e.cal.Mirror.Height * settings.MunitionMM / target.MirrorMM,
			}
		}
	}
	u.Fault = e.fault
	e.mu.Unlock()

	for i, m := range e.marks.Snapshot() {
		u.Marks = append(u.Marks, MarkView{
			Index:     i,
			ID:        m.ID,
			XPct:      m.XPct,
			YPct:      m.YPct,
			PixelX:    m.PixelX,
			PixelY:    m.PixelY,
			Ring:      m.Ring,
			RingLabel: RingLabel(m.Ring),
		})
	}
	u.RingSum, u.OverCap = e.marks.RingSummary(maxCountedRingValue(target))

	e.pub.Publish(u)
}

// maxCountedRingValue resolves the per-mark cap for the ring sum.
func maxCountedRingValue(target TargetDefinition) int {
	if target.MaxCountedRing > 0 {
		return target.MaxCountedRing
	}
	max := 0
	for _, r := range target.Rings {
		if r.Value > max {
			max = r.Value
		}
	}
	return max
}

func (e *Engine) setInfo(key, value string) {
	e.mu.Lock()
	e.infos[key] = value
	e.mu.Unlock()
}

func (e *Engine) setProgress(p int) {
	e.mu.Lock()
	e.progress = p
	e.mu.Unlock()
}

func (e *Engine) setDisplay(c *Composite) {
	e.mu.Lock()
	e.display = c
	e.mu.Unlock()
}

// adjustFrame applies the contrast and brightness settings as a linear
// pixel transform, so every source behaves like the reference camera.
func adjustFrame(f *Frame, contrast, brightness int) {
	if contrast == 0 && brightness == 0 {
		return
	}
	gain := 1 + float64(contrast)/100
	offset := 255 * float64(brightness) / 100
	for i, v := range f.Pix {
		f.Pix[i] = clampByte(gain*(float64(v)-128) + 128 + offset)
	}
}

// meanAbsDelta is the mean absolute per-pixel difference between two
// composites of equal dimensions.
func meanAbsDelta(a, b *Composite) float64 {
	if a == nil || b == nil || len(a.Pix) != len(b.Pix) {
		return math.Inf(1)
	}
	diffs := make([]float64, len(a.Pix))
	for i := range diffs {
		diffs[i] = math.Abs(float64(a.Pix[i]) - float64(b.Pix[i]))
	}
	return stat.Mean(diffs, nil)
}
