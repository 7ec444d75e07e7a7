package wtlist

import (
	"container/list"
	"time"

	"github.com/Refinitiv/Real-Time-SDK-sub030/rdm"
)

// postKey is (streamId, postId, optional seqNum), the post table's hash key
// (spec.md §4.4).
type postKey struct {
	streamID StreamID
	postID   uint32
	seqNum   uint32
	hasSeq   bool
}

// PostRecord is one outstanding post-with-ack (spec.md §4.4, §3 invariant 6).
type PostRecord struct {
	key        postKey
	req        *ItemRequest // nil for an off-stream login post
	loginReq   *LoginRequest
	postUserInfo []byte
	expireTime time.Time
	elem       *list.Element // position in the expiry queue
}

// PostTable is C4: a hash set keyed by postKey, simultaneously linked into
// a time-ordered expiry queue.
type PostTable struct {
	byKey  map[postKey]*PostRecord
	expiry *list.List // front = earliest expireTime
	max    int
}

func newPostTable(max int) *PostTable {
	return &PostTable{byKey: make(map[postKey]*PostRecord), expiry: list.New(), max: max}
}

func (pt *PostTable) len() int { return len(pt.byKey) }

// Submit records a new outstanding post (spec.md §4.4). req xor loginReq is
// set depending on whether it is an on-stream or off-stream post.
func (pt *PostTable) Submit(streamID StreamID, m *rdm.Msg, now, expireAt time.Time, req *ItemRequest, loginReq *LoginRequest) (*PostRecord, error) {
	if pt.max > 0 && len(pt.byKey) >= pt.max {
		return nil, errInvalidArgument("post table is full (max %d outstanding posts)", pt.max)
	}
	key := postKey{streamID: streamID, postID: m.PostID}
	if m.HasSeqNum {
		key.seqNum, key.hasSeq = m.SeqNum, true
	}
	rec := &PostRecord{key: key, req: req, loginReq: loginReq, postUserInfo: m.PostUserInfo, expireTime: expireAt}
	rec.elem = pt.expiry.PushBack(rec)
	pt.byKey[key] = rec
	if req != nil {
		req.OpenPosts = append(req.OpenPosts, rec)
	} else if loginReq != nil {
		loginReq.OpenPosts = append(loginReq.OpenPosts, rec)
	}
	return rec, nil
}

// Ack removes the matching record on ACK receipt, reporting it so the
// caller can forward the ack to the owning request (spec.md §4.4).
func (pt *PostTable) Ack(streamID StreamID, postID uint32, seqNum uint32, hasSeq bool) *PostRecord {
	key := postKey{streamID: streamID, postID: postID}
	if hasSeq {
		key.seqNum, key.hasSeq = seqNum, true
	}
	rec, ok := pt.byKey[key]
	if !ok {
		return nil
	}
	pt.remove(rec)
	return rec
}

func (pt *PostTable) remove(rec *PostRecord) {
	delete(pt.byKey, rec.key)
	pt.expiry.Remove(rec.elem)
	removePost(&rec.req, &rec.loginReq, rec)
}

func removePost(req **ItemRequest, loginReq **LoginRequest, rec *PostRecord) {
	if *req != nil {
		(*req).OpenPosts = removeRecord((*req).OpenPosts, rec)
	} else if *loginReq != nil {
		(*loginReq).OpenPosts = removeRecord((*loginReq).OpenPosts, rec)
	}
}

func removeRecord(list []*PostRecord, rec *PostRecord) []*PostRecord {
	for i, r := range list {
		if r == rec {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Expired drains and returns every record whose expireTime <= now
// (spec.md §4.1, processTimer).
func (pt *PostTable) Expired(now time.Time) []*PostRecord {
	var out []*PostRecord
	for e := pt.expiry.Front(); e != nil; {
		rec := e.Value.(*PostRecord)
		if rec.expireTime.After(now) {
			break
		}
		next := e.Next()
		pt.expiry.Remove(e)
		delete(pt.byKey, rec.key)
		removePost(&rec.req, &rec.loginReq, rec)
		out = append(out, rec)
		e = next
	}
	return out
}

// NextExpiry returns the earliest expireTime, or the zero time if empty.
func (pt *PostTable) NextExpiry() (time.Time, bool) {
	e := pt.expiry.Front()
	if e == nil {
		return time.Time{}, false
	}
	return e.Value.(*PostRecord).expireTime, true
}
