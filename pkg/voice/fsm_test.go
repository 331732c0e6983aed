package voice

import "testing"

func TestFSM_HappyPath(t *testing.T) {
	f := NewFSM()

	steps := []PipelineState{StateGreeting, StateSpeaking, StateListening, StateProcessing, StateSpeaking, StateListening, StateTerminated}
	for _, s := range steps {
		if err := f.Transition(s); err != nil {
			t.Fatalf("unexpected error transitioning to %s: %v", s, err)
		}
	}
	if f.State() != StateTerminated {
		t.Fatalf("expected terminated, got %s", f.State())
	}
}

func TestFSM_IllegalTransitionRejected(t *testing.T) {
	f := NewFSM()
	if err := f.Transition(StateProcessing); err == nil {
		t.Fatal("expected idle -> processing to be illegal")
	}
	if f.State() != StateIdle {
		t.Fatalf("state should be unchanged after illegal transition, got %s", f.State())
	}
}

func TestFSM_TerminatedIsSink(t *testing.T) {
	f := NewFSM()
	_ = f.Transition(StateListening)
	_ = f.Transition(StateTerminated)

	if err := f.Transition(StateListening); err == nil {
		t.Fatal("expected no transitions out of terminated")
	}
}

func TestFSM_BargeInFromSpeaking(t *testing.T) {
	f := NewFSM()
	_ = f.Transition(StateGreeting)
	_ = f.Transition(StateSpeaking)

	if !f.CanBargeIn() {
		t.Fatal("expected barge-in to be allowed while speaking")
	}
	if err := f.Transition(StateProcessing); err != nil {
		t.Fatalf("barge-in transition should be legal: %v", err)
	}
}

func TestFSM_ShouldProcessVAD(t *testing.T) {
	f := NewFSM()
	if f.ShouldProcessVAD() {
		t.Fatal("idle should not process VAD")
	}
	_ = f.Transition(StateListening)
	if !f.ShouldProcessVAD() {
		t.Fatal("listening should process VAD")
	}
}

func TestFSM_OnTransitionHookFires(t *testing.T) {
	f := NewFSM()
	var calls []string
	f.OnTransition(func(from, to PipelineState, ok bool) {
		calls = append(calls, from.String()+"->"+to.String())
	})
	_ = f.Transition(StateListening)
	_ = f.Transition(StateProcessing)

	if len(calls) != 2 {
		t.Fatalf("expected 2 hook calls, got %d: %v", len(calls), calls)
	}
}
