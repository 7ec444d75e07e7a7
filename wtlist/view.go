package wtlist

import (
	"sort"

	"github.com/Refinitiv/Real-Time-SDK-sub030/rdm"
)

// viewElem is one field-id or element-name entry in an aggregate view, with
// the reference counting spec.md §4.2 describes.
type viewElem struct {
	fieldID   int16
	element   string
	count     int
	committed bool
}

// ViewAggregator merges per-request field-id/element-name projections into
// one stream-level view (spec.md §4.2, C2). newViews holds views added but
// not yet merged; all/allElem hold the merged elements with their reference
// counts and a committed flag set by Commit. Committed elements linger at
// zero count between a remove and the next commit so that
// add-then-remove-before-refresh produces no upstream churn.
type ViewAggregator struct {
	typ rdm.ViewType

	all     map[int16]*viewElem // field-id keyed, used when typ == ViewFieldIDList
	allElem map[string]*viewElem // element-name keyed, used when typ == ViewElementNameList

	newViews []rdm.View
}

func newViewAggregator(typ rdm.ViewType) *ViewAggregator {
	v := &ViewAggregator{typ: typ}
	if typ == rdm.ViewFieldIDList {
		v.all = make(map[int16]*viewElem)
	} else {
		v.allElem = make(map[string]*viewElem)
	}
	return v
}

func normalizeView(v rdm.View) rdm.View {
	out := rdm.View{Type: v.Type}
	if v.Type == rdm.ViewFieldIDList {
		seen := make(map[int16]bool, len(v.FieldIDs))
		for _, id := range v.FieldIDs {
			if id == 0 || seen[id] {
				continue
			}
			seen[id] = true
			out.FieldIDs = append(out.FieldIDs, id)
		}
		sort.Slice(out.FieldIDs, func(i, j int) bool { return out.FieldIDs[i] < out.FieldIDs[j] })
	} else {
		seen := make(map[string]bool, len(v.Elements))
		for _, e := range v.Elements {
			if e == "" || seen[e] {
				continue
			}
			seen[e] = true
			out.Elements = append(out.Elements, e)
		}
	}
	return out
}

// Add appends v to newViews, not yet merged (spec.md §4.2).
func (va *ViewAggregator) Add(v rdm.View) {
	va.newViews = append(va.newViews, normalizeView(v))
}

// Remove decrements counts for v's elements; zero-count elements are
// dropped immediately only if they were never committed.
func (va *ViewAggregator) Remove(v rdm.View) {
	v = normalizeView(v)
	if va.typ == rdm.ViewFieldIDList {
		for _, id := range v.FieldIDs {
			e, ok := va.all[id]
			if !ok {
				continue
			}
			e.count--
			if e.count <= 0 && !e.committed {
				delete(va.all, id)
			}
		}
		return
	}
	for _, name := range v.Elements {
		e, ok := va.allElem[name]
		if !ok {
			continue
		}
		e.count--
		if e.count <= 0 && !e.committed {
			delete(va.allElem, name)
		}
	}
}

// Merge walks newViews, bumping counts in the overall list, and reports
// whether anything changed (new element, or a 0->positive count crossing).
func (va *ViewAggregator) Merge() (updated bool) {
	for _, v := range va.newViews {
		if va.typ == rdm.ViewFieldIDList {
			for _, id := range v.FieldIDs {
				e, ok := va.all[id]
				if !ok {
					va.all[id] = &viewElem{fieldID: id, count: 1}
					updated = true
					continue
				}
				if e.count == 0 {
					updated = true
				}
				e.count++
			}
			continue
		}
		for _, name := range v.Elements {
			e, ok := va.allElem[name]
			if !ok {
				va.allElem[name] = &viewElem{element: name, count: 1}
				updated = true
				continue
			}
			if e.count == 0 {
				updated = true
			}
			e.count++
		}
	}
	va.newViews = va.newViews[:0]
	return updated
}

// Commit is called after a successful upstream send: elements merged since
// the last commit become committed, and zero-count survivors are purged.
func (va *ViewAggregator) Commit() {
	if va.typ == rdm.ViewFieldIDList {
		for id, e := range va.all {
			if e.count <= 0 {
				delete(va.all, id)
				continue
			}
			e.committed = true
		}
		return
	}
	for name, e := range va.allElem {
		if e.count <= 0 {
			delete(va.allElem, name)
			continue
		}
		e.committed = true
	}
}

// Unmerge reverses the effect of Merge after a failed upstream send by
// replaying lastMerged, the views that Merge consumed, as removals (the
// spec's "reverse the last merge").
func (va *ViewAggregator) Unmerge(lastMerged []rdm.View) {
	for _, v := range lastMerged {
		va.Remove(v)
	}
}

// Contains reports whether every element of v is present with a nonzero
// committed count.
func (va *ViewAggregator) Contains(v rdm.View) bool {
	v = normalizeView(v)
	if va.typ == rdm.ViewFieldIDList {
		for _, id := range v.FieldIDs {
			e, ok := va.all[id]
			if !ok || !e.committed || e.count <= 0 {
				return false
			}
		}
		return true
	}
	for _, name := range v.Elements {
		e, ok := va.allElem[name]
		if !ok || !e.committed || e.count <= 0 {
			return false
		}
	}
	return true
}

// Encode emits the current (zero-count-skipped) elements, sorted for
// field-id lists.
func (va *ViewAggregator) Encode() rdm.View {
	out := rdm.View{Type: va.typ}
	if va.typ == rdm.ViewFieldIDList {
		for id, e := range va.all {
			if e.count > 0 {
				out.FieldIDs = append(out.FieldIDs, id)
			}
		}
		sort.Slice(out.FieldIDs, func(i, j int) bool { return out.FieldIDs[i] < out.FieldIDs[j] })
		return out
	}
	for name, e := range va.allElem {
		if e.count > 0 {
			out.Elements = append(out.Elements, name)
		}
	}
	return out
}
