package wtlist

import (
	"bytes"
	"io"
	"time"

	"github.com/pierrec/lz4/v3"

	"github.com/Refinitiv/Real-Time-SDK-sub030/rdm"
)

// bufferedMsg is one FIFO entry in a stream's reorder queue (spec.md §4.3).
// Payload is kept lz4-compressed while buffered, the way the teacher's
// cmn/archive package frames payloads through lz4 for at-rest storage —
// here "at rest" means "sitting in the reorder FIFO awaiting a gap to
// close", which for a bursty broadcast feed can hold many messages.
type bufferedMsg struct {
	msg       *rdm.Msg
	seqNum    uint32
	isUnicast bool
	hasFTGroup bool
	ftGroupID byte
	packed    []byte // lz4-compressed gob-free payload cache (EncodedBytes only)
}

// ReorderQueue is the per-stream FIFO plus gap-tracking state of C3.
type ReorderQueue struct {
	buf []*bufferedMsg

	hasGap        bool // any of HAS_BC_SEQ_GAP/HAS_PART_GAP/BC_BEHIND_UC
	gapExpireTime time.Time
}

func newReorderQueue() *ReorderQueue { return &ReorderQueue{} }

func packPayload(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	var out bytes.Buffer
	zw := lz4.NewWriter(&out)
	if _, err := zw.Write(b); err != nil {
		return nil
	}
	if err := zw.Close(); err != nil {
		return nil
	}
	return out.Bytes()
}

func unpackPayload(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	zr := lz4.NewReader(bytes.NewReader(b))
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil
	}
	return out
}

func (q *ReorderQueue) push(m *rdm.Msg, seqNum uint32, isUnicast bool) {
	bm := &bufferedMsg{msg: m, seqNum: seqNum, isUnicast: isUnicast, packed: packPayload(m.EncodedBytes)}
	if m.HasFTGroup {
		bm.hasFTGroup = true
		bm.ftGroupID = m.FTGroupID
	}
	q.buf = append(q.buf, bm)
}

// drainLE removes and returns, in FIFO order, every buffered message with
// seqNum <= upTo.
func (q *ReorderQueue) drainLE(upTo uint32) []*bufferedMsg {
	var out []*bufferedMsg
	rest := q.buf[:0]
	for _, bm := range q.buf {
		if bm.seqNum <= upTo {
			out = append(out, bm)
		} else {
			rest = append(rest, bm)
		}
	}
	q.buf = rest
	return out
}

func (q *ReorderQueue) discardLE(upTo uint32) {
	rest := q.buf[:0]
	for _, bm := range q.buf {
		if bm.seqNum > upTo {
			rest = append(rest, bm)
		}
	}
	q.buf = rest
}

func (q *ReorderQueue) hasUnicastBuffered() bool {
	for _, bm := range q.buf {
		if bm.isUnicast {
			return true
		}
	}
	return false
}

func (bm *bufferedMsg) unpacked() *rdm.Msg {
	if bm.packed != nil {
		bm.msg.EncodedBytes = unpackPayload(bm.packed)
	}
	return bm.msg
}

// deliver is what the engine ultimately invokes to forward a message to
// item-stream fanout (spec.md §4.8.5); factored out so reorder.go owns
// every forwarding decision point described in §4.3's algorithm.
type deliverFn func(m *rdm.Msg, seqNum uint32, isUnicast bool)

// onMessage implements the ordering algorithm of spec.md §4.3, steps 1-6.
// now is used only to (re)arm the gap timer, never to make ordering
// decisions, since ordering is purely a function of sequence numbers.
func (s *Session) onMessage(st *ItemStream, m *rdm.Msg, now time.Time) {
	q := st.Reorder
	hasSeq := m.HasSeqNum
	S := m.SeqNum
	unicast := m.Unicast
	refreshPending := st.RefreshState == RefreshRequestRefresh || st.RefreshState == RefreshPendingRefresh

	deliver := func(bm *bufferedMsg) { s.fanoutItemMsg(st, bm.unpacked(), bm.seqNum, bm.isUnicast) }
	deliverNow := func() { s.fanoutItemMsg(st, m, S, unicast) }

	if !hasSeq || st.has(FlagPrivate) {
		deliverNow()
		s.updateGapTimer(st, now)
		return
	}

	if unicast {
		switch {
		case !refreshPending && !st.has(FlagHasUCSeqNum):
			deliverNow()
		case !st.has(FlagHasUCSeqNum):
			// first unicast sequenced message seen
			q.discardLE(S)
			st.set(FlagHasUCSeqNum)
			deliverNow()
			s.advanceFromBuffer(st, &S)
		default:
			if q.hasUnicastBuffered() {
				q.push(m, S, true)
			} else {
				for _, bm := range q.drainLE(S) {
					deliver(bm)
				}
				if S > uint32(atomicSeq(st)) {
					if s.cfg.GapRecovery {
						st.set(FlagBCBehindUC)
						q.push(m, S, true)
					} else {
						deliverNow()
						setSeq(st, S)
					}
				} else {
					deliverNow()
				}
				if st.RefreshState == RefreshNone || st.RefreshState == RefreshPendingRefreshComplete {
					for _, bm := range q.drainLE(^uint32(0)) {
						deliver(bm)
					}
				}
			}
		}
		s.updateGapTimer(st, now)
		return
	}

	// broadcast
	if S == 0 {
		if refreshPending {
			s.closeWithRecover(st, rdm.CodeGapDetected, "Stream sequence was reset while waiting for refresh")
			return
		}
		setSeq(st, 0)
		deliverNow()
		s.updateGapTimer(st, now)
		return
	}

	if m.Class == rdm.ClassStatus && refreshPending {
		q.discardLE(S)
		st.set(FlagHasBCSynchSeqNum)
		setSeq(st, S)
		for _, bm := range q.drainLE(S) {
			deliver(bm)
		}
		deliverNow()
		s.updateGapTimer(st, now)
		return
	}

	cur := atomicSeq(st)
	switch {
	case S > cur+1 && s.cfg.GapRecovery:
		st.set(FlagHasBCSeqGap)
		q.push(m, S, false)
	case q.hasUnicastBuffered():
		for _, bm := range q.drainLE(S - 1) {
			if bm.isUnicast {
				deliver(bm)
			}
		}
		deliverNow()
		setSeq(st, S)
		for _, bm := range q.drainLE(S) {
			if bm.isUnicast {
				deliver(bm)
			}
		}
	default:
		deliverNow()
		setSeq(st, S)
	}
	s.updateGapTimer(st, now)
}

// advanceFromBuffer attempts to advance N from buffered messages once the
// first unicast sequenced message has been seen (spec.md §4.3, step 2).
func (s *Session) advanceFromBuffer(st *ItemStream, seq *uint32) {
	q := st.Reorder
	setSeq(st, *seq)
	for {
		advanced := false
		for i, bm := range q.buf {
			if bm.isUnicast {
				continue
			}
			cur := atomicSeq(st)
			if bm.seqNum == cur+1 {
				s.fanoutItemMsg(st, bm.unpacked(), bm.seqNum, false)
				setSeq(st, bm.seqNum)
				q.buf = append(q.buf[:i], q.buf[i+1:]...)
				advanced = true
				break
			}
			if bm.seqNum > cur+1 && s.cfg.GapRecovery {
				st.set(FlagHasBCSeqGap)
			}
		}
		if !advanced {
			break
		}
	}
}

func (s *Session) updateGapTimer(st *ItemStream, now time.Time) {
	gap := st.has(FlagHasBCSeqGap) || st.has(FlagHasPartGap) || st.has(FlagBCBehindUC)
	q := st.Reorder
	if gap && !q.hasGap {
		q.hasGap = true
		q.gapExpireTime = now.Add(s.cfg.GapTimeout)
		s.gapStreams[st.ID] = struct{}{}
		s.stats.GapDetections.Inc()
	} else if !gap && q.hasGap {
		q.hasGap = false
		delete(s.gapStreams, st.ID)
	}
}

// validatePartNum implements the refresh-part-number check of spec.md §4.3.
func (s *Session) validatePartNum(st *ItemStream, partNum int) (ok bool) {
	if !s.cfg.GapRecovery {
		return true
	}
	if partNum == 0 {
		st.NextPartNum = 1
		st.clear(FlagHasPartGap)
		return true
	}
	if partNum != st.NextPartNum {
		st.set(FlagHasPartGap)
		return false
	}
	st.clear(FlagHasPartGap)
	st.NextPartNum++
	return true
}

func atomicSeq(st *ItemStream) uint32 { return st.CurrentSeq }
func setSeq(st *ItemStream, v uint32) { st.CurrentSeq = v }
