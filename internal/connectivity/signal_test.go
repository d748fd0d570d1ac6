package connectivity

import "testing"

func TestManualSignal_OnlineFlag(t *testing.T) {
	s := NewManualSignal(false)
	if s.IsOnline() {
		t.Fatalf("expected offline")
	}
	s.SetOnline(true)
	if !s.IsOnline() {
		t.Fatalf("expected online after SetOnline(true)")
	}
}

func TestManualSignal_RecordsLastMarkedState(t *testing.T) {
	s := NewManualSignal(true)
	if s.Last() != "" {
		t.Fatalf("expected empty state before any mark, got %q", s.Last())
	}

	s.MarkSyncing()
	if s.Last() != StateSyncing {
		t.Fatalf("Last = %q", s.Last())
	}
	s.MarkSyncFailed()
	if s.Last() != StateSyncFailed {
		t.Fatalf("Last = %q", s.Last())
	}
	s.MarkSynced()
	if s.Last() != StateFullySynced {
		t.Fatalf("Last = %q", s.Last())
	}
}
