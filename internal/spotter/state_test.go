package spotter

import "testing"

func TestWorkflow_InitialState(t *testing.T) {
	w := NewWorkflow()
	if got := w.State(); got != StatePreview {
		t.Fatalf("initial state = %v, want preview", got)
	}
}

func TestWorkflow_StartOnlyFromPreview(t *testing.T) {
	w := NewWorkflow()
	if !w.RequestStart() {
		t.Fatal("start from preview should transition")
	}
	if got := w.State(); got != StateCollect {
		t.Fatalf("state = %v, want collect", got)
	}
	// Start again while collecting is a no-op.
	if w.RequestStart() {
		t.Error("start from collect should be ignored")
	}
	if got := w.State(); got != StateCollect {
		t.Fatalf("state changed to %v", got)
	}

	w.AdvanceToDetect()
	if w.RequestStart() {
		t.Error("start from detect should be ignored")
	}
}

func TestWorkflow_AutoAdvanceOnlyFromCollect(t *testing.T) {
	w := NewWorkflow()
	if w.AdvanceToDetect() {
		t.Error("advance from preview should fail")
	}
	w.RequestStart()
	if !w.AdvanceToDetect() {
		t.Fatal("advance from collect should transition")
	}
	if got := w.State(); got != StateDetect {
		t.Fatalf("state = %v, want detect", got)
	}
	if w.AdvanceToDetect() {
		t.Error("advance from detect should fail")
	}
}

func TestWorkflow_PreviewFromAnyActiveState(t *testing.T) {
	w := NewWorkflow()
	if w.RequestPreview() {
		t.Error("preview while already previewing should report no change")
	}

	w.RequestStart()
	if !w.RequestPreview() {
		t.Error("preview from collect should transition")
	}

	w.RequestStart()
	w.AdvanceToDetect()
	if !w.RequestPreview() {
		t.Error("preview from detect should transition")
	}
	if got := w.State(); got != StatePreview {
		t.Fatalf("state = %v, want preview", got)
	}
}

func TestWorkflowState_String(t *testing.T) {
	cases := map[WorkflowState]string{
		StatePreview:      "preview",
		StateCollect:      "collect",
		StateDetect:       "detect",
		WorkflowState(99): "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("String(%d) = %q, want %q", int(s), got, want)
		}
	}
}
