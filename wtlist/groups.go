package wtlist

import (
	"container/list"
	"strconv"
	"time"
)

// itemGroup is a (service, groupId) -> member-streams record (spec.md §4.5).
type itemGroup struct {
	key     GroupID
	members map[StreamID]*ItemStream
}

// ftGroup is one of the 256 fixed fault-tolerance-group slots (spec.md
// §4.5). elem is this group's position in the deadline-ordered timer
// queue.
type ftGroup struct {
	id       byte
	members  map[StreamID]*ItemStream
	deadline time.Time
	elem     *list.Element
	inUse    bool
}

// GroupTables owns C5: item groups keyed by (serviceId, groupId) and the
// fixed 256-entry FT-group table.
type GroupTables struct {
	items map[GroupID]*itemGroup

	ft       [256]ftGroup
	ftTimers *list.List // ordered by deadline, ascending
}

func newGroupTables() *GroupTables {
	gt := &GroupTables{items: make(map[GroupID]*itemGroup), ftTimers: list.New()}
	for i := range gt.ft {
		gt.ft[i].id = byte(i)
		gt.ft[i].members = make(map[StreamID]*ItemStream)
	}
	return gt
}

func itemGroupKey(serviceID ServiceID, groupID []byte) GroupID {
	return GroupID(strconv.Itoa(int(serviceID)) + ":" + string(groupID))
}

// JoinItemGroup moves st into the group identified by (serviceID, groupID),
// leaving any prior group it belonged to (spec.md §4.5, "receiving a
// refresh carrying a group id moves the item stream into that group").
func (gt *GroupTables) JoinItemGroup(st *ItemStream, serviceID ServiceID, groupID []byte) {
	gt.LeaveItemGroup(st)
	key := itemGroupKey(serviceID, groupID)
	g, ok := gt.items[key]
	if !ok {
		g = &itemGroup{key: key, members: make(map[StreamID]*ItemStream)}
		gt.items[key] = g
	}
	g.members[st.ID] = st
	st.ItemGroupKey = key
}

func (gt *GroupTables) LeaveItemGroup(st *ItemStream) {
	if st.ItemGroupKey == "" {
		return
	}
	if g, ok := gt.items[st.ItemGroupKey]; ok {
		delete(g.members, st.ID)
		if len(g.members) == 0 {
			delete(gt.items, st.ItemGroupKey)
		}
	}
	st.ItemGroupKey = ""
}

// RenameGroup re-homes every member of `from` to `to` atomically, used when
// a directory group-state update carries merged-to-group (spec.md §4.5,
// §4.7).
func (gt *GroupTables) RenameGroup(serviceID ServiceID, from, to []byte) {
	fromKey := itemGroupKey(serviceID, from)
	toKey := itemGroupKey(serviceID, to)
	g, ok := gt.items[fromKey]
	if !ok {
		return
	}
	delete(gt.items, fromKey)
	dst, ok := gt.items[toKey]
	if !ok {
		dst = &itemGroup{key: toKey, members: make(map[StreamID]*ItemStream)}
		gt.items[toKey] = dst
	}
	for streamID, st := range g.members {
		dst.members[streamID] = st
		st.ItemGroupKey = toKey
	}
}

// GroupStatusFanout returns the members of the group so the caller can
// synthesize a status to each one (spec.md §4.5: "fans out the status as a
// synthetic status message to every member stream, with FT-group id
// preserved, then removes empty groups").
func (gt *GroupTables) GroupStatusFanout(serviceID ServiceID, groupID []byte) []*ItemStream {
	key := itemGroupKey(serviceID, groupID)
	g, ok := gt.items[key]
	if !ok {
		return nil
	}
	out := make([]*ItemStream, 0, len(g.members))
	for _, st := range g.members {
		out = append(out, st)
	}
	return out
}

// --- FT groups ---

// Ping refreshes FT-group id's deadline and moves it to the timer queue's
// tail (spec.md §4.5: "queue ordered by deadline").
func (gt *GroupTables) Ping(id byte, now time.Time, timeout time.Duration, st *ItemStream) time.Time {
	g := &gt.ft[id]
	if !g.inUse {
		g.inUse = true
		g.members = make(map[StreamID]*ItemStream)
	}
	if st != nil {
		g.members[st.ID] = st
		st.FTGroup = &gt.ft[id].id
	}
	g.deadline = now.Add(timeout)
	if g.elem != nil {
		gt.ftTimers.Remove(g.elem)
	}
	g.elem = gt.ftTimers.PushBack(g)
	return g.deadline
}

// Expired drains and returns every FT group whose deadline <= now
// (spec.md §4.1, §4.5).
func (gt *GroupTables) Expired(now time.Time) []*ftGroup {
	var out []*ftGroup
	for e := gt.ftTimers.Front(); e != nil; {
		g := e.Value.(*ftGroup)
		if g.deadline.After(now) {
			break
		}
		next := e.Next()
		gt.ftTimers.Remove(e)
		g.elem = nil
		g.inUse = false
		out = append(out, g)
		e = next
	}
	return out
}

func (gt *GroupTables) NextFTExpiry() (time.Time, bool) {
	e := gt.ftTimers.Front()
	if e == nil {
		return time.Time{}, false
	}
	return e.Value.(*ftGroup).deadline, true
}
