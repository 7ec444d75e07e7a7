package wtlist

import (
	"time"

	"github.com/Refinitiv/Real-Time-SDK-sub030/rdm"
)

// StreamFlag is the authoritative set of per-item-stream bits (spec.md
// §4.8, "Stream flag table").
type StreamFlag uint32

const (
	FlagPendingSnapshot StreamFlag = 1 << iota
	FlagPaused
	FlagPendingPriorityChange
	FlagViewed
	FlagPendingViewChange
	FlagPendingViewRefresh
	FlagPrivate
	FlagQualified
	FlagEstablished
	FlagHasBCSeqNum
	FlagHasUCSeqNum
	FlagHasBCSeqGap
	FlagHasPartGap
	FlagBCBehindUC
	FlagHasBCSynchSeqNum
	FlagClosed
)

func (s *ItemStream) has(f StreamFlag) bool { return s.Flags&f != 0 }
func (s *ItemStream) set(f StreamFlag)      { s.Flags |= f }
func (s *ItemStream) clear(f StreamFlag)    { s.Flags &^= f }

// RefreshState is an ItemStream's refresh lifecycle (spec.md §3).
type RefreshState int

const (
	RefreshNone RefreshState = iota
	RefreshPendingOpenWindow
	RefreshRequestRefresh
	RefreshPendingRefresh
	RefreshPendingRefreshComplete
)

// StreamBase is shared by every upstream stream kind (spec.md §3).
type StreamBase struct {
	ID                      StreamID
	Domain                  rdm.Domain
	Closing                 bool
	PendingRequest          bool
	PendingResponseDeadline time.Time
	hasPendingResponse      bool
}

func (s *StreamBase) startPendingResponse(now time.Time, timeout time.Duration) {
	s.PendingResponseDeadline = now.Add(timeout)
	s.hasPendingResponse = true
}

func (s *StreamBase) clearPendingResponse() { s.hasPendingResponse = false }

// LoginState is the login stream's own state machine (spec.md §4.6).
type LoginState int

const (
	LoginPending LoginState = iota
	LoginEstablished
)

// LoginStream — at most one per session (spec.md §3).
type LoginStream struct {
	StreamBase
	State   LoginState
	Request *LoginRequest
}

// DirState is the directory stream's own state.
type DirState int

const (
	DirPending DirState = iota
	DirReady
)

// DirectoryStream — at most one per session (spec.md §3).
type DirectoryStream struct {
	StreamBase
	State DirState
}

// ItemStream (spec.md §3).
type ItemStream struct {
	StreamBase

	MsgKey   rdm.MsgKey
	Qos      rdm.Qos
	attrib   string // session-wide aggregation key (spec.md §4.8.1)

	RefreshState RefreshState
	Flags        StreamFlag

	Recovering    []*ItemRequest
	PendingRefresh []*ItemRequest
	Open          []*ItemRequest

	RequestsStreamingCount int
	RequestsPausedCount    int

	AggregateView *ViewAggregator

	ServiceID ServiceID

	ItemGroupKey GroupID
	FTGroup      *byte

	Reorder *ReorderQueue

	LastSentPriority rdm.Priority
	NextPartNum      int
	CurrentSeq       uint32 // N: last-unicast once HAS_UC_SEQ_NUM, else last-broadcast

	lastSentSnapshot bool
	fanoutClosed     bool // "current fanout stream" cursor guard (spec.md §9)
}

func newItemStream(id StreamID, domain rdm.Domain, key rdm.MsgKey, qos rdm.Qos, serviceID ServiceID) *ItemStream {
	return &ItemStream{
		StreamBase: StreamBase{ID: id, Domain: domain},
		MsgKey:     key,
		Qos:        qos,
		ServiceID:  serviceID,
		Reorder:    newReorderQueue(),
	}
}

// requestCount is used by invariant 1 (spec.md §8): every open stream has
// at least one request attached.
func (s *ItemStream) requestCount() int {
	return len(s.Recovering) + len(s.PendingRefresh) + len(s.Open)
}
