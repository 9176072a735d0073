package spotter

import "sync"

// WorkflowState gates which pipeline stages run and what is published.
type WorkflowState int

const (
	// StatePreview shows the live composite and picker rectangle; no
	// marks are created and the mirror is not yet authoritative.
	StatePreview WorkflowState = iota
	// StateCollect builds the baseline composite after a start command
	// and locks the mirror; auto-advances to StateDetect once settled.
	StateCollect
	// StateDetect differences composites against the rolling baseline
	// and promotes candidate regions to marks.
	StateDetect
)

// String implements fmt.Stringer.
func (s WorkflowState) String() string {
	switch s {
	case StatePreview:
		return "preview"
	case StateCollect:
		return "collect"
	case StateDetect:
		return "detect"
	}
	return "unknown"
}

// Workflow is the three-state machine driving the pipeline. Exactly two
// inputs exist: the external mode command (start/preview) and the
// internal settled condition that advances COLLECT to DETECT. The
// initial state is PREVIEW.
type Workflow struct {
	mu    sync.Mutex
	state WorkflowState
}

// NewWorkflow returns a workflow in StatePreview.
func NewWorkflow() *Workflow {
	return &Workflow{state: StatePreview}
}

// State returns the current state.
func (w *Workflow) State() WorkflowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// RequestStart moves PREVIEW to COLLECT. It reports whether the state
// changed; start is ignored outside PREVIEW.
func (w *Workflow) RequestStart() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StatePreview {
		return false
	}
	w.state = StateCollect
	return true
}

// RequestPreview returns to PREVIEW from COLLECT or DETECT. Existing
// marks are untouched; only the pipeline gating changes.
func (w *Workflow) RequestPreview() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StatePreview {
		return false
	}
	w.state = StatePreview
	return true
}

// AdvanceToDetect is the internal auto-advance once the baseline has
// settled. Only valid from COLLECT.
func (w *Workflow) AdvanceToDetect() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateCollect {
		return false
	}
	w.state = StateDetect
	return true
}
