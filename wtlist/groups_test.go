package wtlist

import (
	"testing"
	"time"
)

// TestFTGroupTimeout covers spec.md S6: two streams assigned FT-group 7
// both appear in Expired once pingTimeout elapses with no ping.
func TestFTGroupTimeout(t *testing.T) {
	gt := newGroupTables()
	now := time.Now()

	s1 := &ItemStream{StreamBase: StreamBase{ID: 1}}
	s2 := &ItemStream{StreamBase: StreamBase{ID: 2}}

	gt.Ping(7, now, 2*time.Second, s1)
	gt.Ping(7, now, 2*time.Second, s2)

	if expired := gt.Expired(now.Add(time.Second)); len(expired) != 0 {
		t.Fatalf("expected no expiry yet, got %d", len(expired))
	}

	expired := gt.Expired(now.Add(3 * time.Second))
	if len(expired) != 1 {
		t.Fatalf("expected exactly one expired FT-group slot, got %d", len(expired))
	}
	if len(expired[0].members) != 2 {
		t.Fatalf("expected both streams in the expired group, got %d", len(expired[0].members))
	}

	if _, ok := gt.NextFTExpiry(); ok {
		t.Fatalf("expected no remaining FT-group timers")
	}
}

func TestItemGroupJoinAndRename(t *testing.T) {
	gt := newGroupTables()
	st := &ItemStream{StreamBase: StreamBase{ID: 1}}

	gt.JoinItemGroup(st, ServiceID(1), []byte("g1"))
	if len(gt.GroupStatusFanout(ServiceID(1), []byte("g1"))) != 1 {
		t.Fatalf("expected stream in group g1")
	}

	gt.RenameGroup(ServiceID(1), []byte("g1"), []byte("g2"))
	if len(gt.GroupStatusFanout(ServiceID(1), []byte("g1"))) != 0 {
		t.Fatalf("expected group g1 to be empty after rename")
	}
	if len(gt.GroupStatusFanout(ServiceID(1), []byte("g2"))) != 1 {
		t.Fatalf("expected stream re-homed into group g2")
	}
	if st.ItemGroupKey != itemGroupKey(ServiceID(1), []byte("g2")) {
		t.Fatalf("expected stream's ItemGroupKey updated to g2")
	}
}
