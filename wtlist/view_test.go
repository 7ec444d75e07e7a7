package wtlist

import (
	"testing"

	"github.com/Refinitiv/Real-Time-SDK-sub030/rdm"
)

// TestViewAggregatorMerge covers spec.md S4: two requests joining the same
// stream with overlapping field-id views merge into the union.
func TestViewAggregatorMerge(t *testing.T) {
	va := newViewAggregator(rdm.ViewFieldIDList)

	va.Add(rdm.View{Type: rdm.ViewFieldIDList, FieldIDs: []int16{22, 25}})
	va.Add(rdm.View{Type: rdm.ViewFieldIDList, FieldIDs: []int16{22, 31}})

	if !va.Merge() {
		t.Fatalf("expected Merge to report an update")
	}
	va.Commit()

	got := va.Encode()
	want := []int16{22, 25, 31}
	if len(got.FieldIDs) != len(want) {
		t.Fatalf("got %v, want %v", got.FieldIDs, want)
	}
	for i, id := range want {
		if got.FieldIDs[i] != id {
			t.Fatalf("got %v, want %v", got.FieldIDs, want)
		}
	}
}

// TestViewAggregatorRemoveBeforeCommit covers S4's second half: removing
// a request's view before the next commit must not shrink the upstream
// view, but removing it after a commit does.
func TestViewAggregatorRemoveBeforeCommit(t *testing.T) {
	va := newViewAggregator(rdm.ViewFieldIDList)

	va.Add(rdm.View{Type: rdm.ViewFieldIDList, FieldIDs: []int16{22, 25}})
	va.Add(rdm.View{Type: rdm.ViewFieldIDList, FieldIDs: []int16{22, 31}})
	va.Merge()
	va.Commit()

	va.Remove(rdm.View{Type: rdm.ViewFieldIDList, FieldIDs: []int16{22, 25}})

	got := va.Encode()
	if len(got.FieldIDs) != 3 {
		t.Fatalf("removing before a fresh commit should not shrink the upstream view, got %v", got.FieldIDs)
	}

	va.Commit()
	got = va.Encode()
	if len(got.FieldIDs) != 2 || got.FieldIDs[0] != 22 || got.FieldIDs[1] != 31 {
		t.Fatalf("after commit, removed fields should drop: got %v", got.FieldIDs)
	}
}

func TestNormalizeViewDedupsAndSorts(t *testing.T) {
	v := normalizeView(rdm.View{Type: rdm.ViewFieldIDList, FieldIDs: []int16{5, 0, 5, 2, 2}})
	if len(v.FieldIDs) != 2 || v.FieldIDs[0] != 2 || v.FieldIDs[1] != 5 {
		t.Fatalf("got %v, want [2 5]", v.FieldIDs)
	}
}

func TestViewAggregatorContains(t *testing.T) {
	va := newViewAggregator(rdm.ViewElementNameList)
	va.Add(rdm.View{Type: rdm.ViewElementNameList, Elements: []string{"BID", "ASK"}})
	va.Merge()
	va.Commit()

	if !va.Contains(rdm.View{Type: rdm.ViewElementNameList, Elements: []string{"BID"}}) {
		t.Fatalf("expected committed element to be contained")
	}
	if va.Contains(rdm.View{Type: rdm.ViewElementNameList, Elements: []string{"MID"}}) {
		t.Fatalf("did not expect uncommitted element to be contained")
	}
}
