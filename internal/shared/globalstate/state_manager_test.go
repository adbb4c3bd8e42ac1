package globalstate

import "testing"

func TestStatusManager_Lifecycle(t *testing.T) {
	sm := NewStatusManager()
	if got := sm.Get().String(); got != "Idle" {
		t.Fatalf("Expected Idle, got %q", got)
	}

	sm.Begin("run-1", 3)
	sm.Record("run-1", true)
	if got := sm.Get().String(); got != "Running 1/3" {
		t.Errorf("Expected 'Running 1/3', got %q", got)
	}

	sm.Record("run-1", false)
	sm.Record("run-1", true)
	st := sm.Get()
	if st.Running || st.FinishedAt.IsZero() {
		t.Fatalf("Run should be finished: %+v", st)
	}
	if st.String() != "Finished 3 proxies: 2 ok, 1 failed" {
		t.Errorf("Unexpected status line %q", st.String())
	}

	// Late records after the run finished are ignored.
	sm.Record("run-1", true)
	if sm.Get().Published != 3 {
		t.Errorf("Records after completion must be ignored")
	}
}

func TestStatusManager_EmptyRunFinishesImmediately(t *testing.T) {
	sm := NewStatusManager()
	sm.Begin("run-empty", 0)
	if st := sm.Get(); st.Running || st.String() != "Finished 0 proxies: 0 ok, 0 failed" {
		t.Errorf("Unexpected status for empty run: %+v", st)
	}
}

func TestStatusManager_IgnoresOtherRuns(t *testing.T) {
	sm := NewStatusManager()
	sm.Begin("run-1", 2)
	sm.Record("run-1", true)

	sm.Begin("run-2", 2)
	sm.Record("run-1", false)
	sm.Record("run-1", true)
	if got := sm.Get().String(); got != "Running 0/2" {
		t.Fatalf("Results of run-1 counted toward run-2: %q", got)
	}

	sm.Record("run-2", true)
	sm.Record("run-2", false)
	if got := sm.Get().String(); got != "Finished 2 proxies: 1 ok, 1 failed" {
		t.Errorf("Unexpected status line %q", got)
	}
}
