package wtlist

import (
	"time"

	"github.com/Refinitiv/Real-Time-SDK-sub030/cmn/debug"
	"github.com/Refinitiv/Real-Time-SDK-sub030/cmn/nlog"
	"github.com/Refinitiv/Real-Time-SDK-sub030/config"
	"github.com/Refinitiv/Real-Time-SDK-sub030/rdm"
)

// ChannelState is the dispatcher's channel state machine (spec.md §4.1).
type ChannelState int

const (
	ChanStart ChannelState = iota
	ChanLoginRequested
	ChanLoggedIn
	ChanReady
)

// Session is the watchlist core (spec.md §6, External Interfaces):
// Construct/New, SetChannel, SubmitMsg, SubmitBuffer, ReadMsg,
// ProcessFTGroupPing, GetNextTimeout/ProcessTimer, ResetGapTimer,
// Destroy.
type Session struct {
	cfg      config.Config
	callback rdm.MsgCallback
	channel  rdm.Channel
	state    ChannelState

	now time.Time

	loginStream *LoginStream
	dirStream   *DirectoryStream

	services   *ServiceCache
	groups     *GroupTables
	items      *ItemEngine
	directory  *DirectoryEngine
	login      *LoginEngine
	symbolList *SymbolListEngine
	posts      *PostTable

	itemReqByID map[RequestID]*ItemRequest
	dirReqByID  map[RequestID]*DirectoryRequest
	loginReq    *LoginRequest

	gapStreams map[StreamID]struct{}

	pendingWrite       []byte
	pendingWriteStream StreamID
	needFlush          bool

	requestIDSeq StreamID

	stats *Stats
}

// New constructs a Session per spec.md §6 construct(config). msgCallback
// is required; the engine never calls it reentrantly (spec.md §5).
func New(cfg config.Config, cb rdm.MsgCallback) (*Session, error) {
	if cb == nil {
		return nil, errInvalidArgument("msgCallback is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:         cfg,
		callback:    cb,
		state:       ChanStart,
		loginStream: &LoginStream{},
		dirStream:   &DirectoryStream{},
		services:    newServiceCache(),
		groups:      newGroupTables(),
		symbolList:  newSymbolListEngine(),
		posts:       newPostTable(cfg.MaxOutstandingPosts),
		itemReqByID: make(map[RequestID]*ItemRequest, cfg.ItemCountHint),
		dirReqByID:  make(map[RequestID]*DirectoryRequest),
		gapStreams:  make(map[StreamID]struct{}),
		stats:       newStats(),
	}
	s.items = newItemEngine(s)
	s.directory = newDirectoryEngine(s)
	s.login = newLoginEngine(s)
	return s, nil
}

func (s *Session) nextRequestStreamID() StreamID {
	s.requestIDSeq++
	return s.requestIDSeq
}

func (s *Session) streamsForService(id ServiceID) []*ItemStream { return s.items.streamsForService(id) }

// SetChannel implements spec.md §6: binding/unbinding to an active wire
// channel. On nil, the engine transitions to Start, clears the service
// cache, and recovers all items per single-open policy.
func (s *Session) SetChannel(ch rdm.Channel) {
	s.channel = ch
	if ch == nil {
		s.state = ChanStart
		s.recoverAllItems()
		nlog.Warningln("wtlist: channel unset, cleared service cache")
		return
	}
	s.state = ChanStart
}

// Dispatch implements C9's dispatch(now) (spec.md §4.1). It returns
// whether there is more pending work so the host can re-enter
// immediately.
func (s *Session) Dispatch(now time.Time) bool {
	s.now = now
	debug.Assert(s.callback != nil)

	if s.needFlush {
		if err := s.retryWrite(); err != nil {
			return true
		}
	}

	switch s.state {
	case ChanStart:
		if s.channel != nil {
			s.state = ChanLoginRequested
			if s.loginReq != nil {
				s.login.Submit(s.loginReq)
			}
		}
	case ChanLoggedIn:
		s.state = ChanReady
	}

	if s.flushPendingStreams() {
		return true
	}

	s.refreshStats()
	return len(s.items.streamsPendingRequest) > 0
}

func (s *Session) retryWrite() error {
	buf := s.pendingWrite
	s.pendingWrite = nil
	s.needFlush = false
	if err := s.channel.Write(buf); err != nil {
		if err == rdm.ErrWriteCallAgain || err == rdm.ErrNoBuffers {
			s.pendingWrite = buf
			s.needFlush = true
			return err
		}
		return err
	}
	if st, ok := s.items.byID[s.pendingWriteStream]; ok {
		s.items.onSendSuccess(st)
	}
	return nil
}

// flushPendingStreams implements spec.md §4.1 step 4: for each stream in
// streamsPendingRequest, encode and submit its current request/close
// message.
func (s *Session) flushPendingStreams() (blocked bool) {
	for id, st := range s.items.streamsPendingRequest {
		if !s.items.admit(st) {
			continue
		}
		m := s.items.buildRequest(st)
		buf := encodeStub(m)
		if err := s.items.sendRequest(st, buf); err != nil {
			if err == rdm.ErrWriteCallAgain || err == rdm.ErrNoBuffers {
				return true
			}
			nlog.Errorf("wtlist: stream %d send failed: %v", id, err)
			continue
		}
	}
	return false
}

// encodeStub stands in for the external wire codec (spec.md §1, "The wire
// codec itself ... is assumed to be a library the core calls"); the core
// only needs *something* byte-shaped to hand the channel.
func encodeStub(m *rdm.Msg) []byte { return m.EncodedBytes }

func (s *Session) onLoggedIn() {
	s.state = ChanLoggedIn
	if s.dirStream.State != DirReady || !s.dirStream.PendingRequest {
		s.reissueAllDirectoryRequests()
	}
}

func (s *Session) reissueAllDirectoryRequests() {
	s.dirStream.PendingRequest = true
}

func (s *Session) recoverAllItems() {
	s.services.Clear()
	for _, st := range s.items.byID {
		s.closeWithRecover(st, rdm.CodeNone, "Service for this item was lost")
	}
}

func (s *Session) closeLoginAndDirectory(text string) {
	for _, st := range s.items.byID {
		s.fanoutTerminalStatus(st, rdm.StreamClosed, rdm.DataSuspect, rdm.CodeNone, text)
	}
	s.login.Close()
	s.services.Clear()
}

// closeWithRecover synthesizes a ClosedRecover status to every request on
// st, re-queues recovery-eligible ones, and destroys the stream
// (spec.md §4.8.5).
func (s *Session) closeWithRecover(st *ItemStream, code rdm.StatusCode, text string) {
	m := &rdm.Msg{State: rdm.StreamClosedRecover, DataState: rdm.DataSuspect, Code: code, Text: text}
	s.items.recoverOrClose(st, m)
}

func (s *Session) fanoutTerminalStatus(st *ItemStream, state rdm.StreamState, ds rdm.DataState, code rdm.StatusCode, text string) {
	m := &rdm.Msg{State: state, DataState: ds, Code: code, Text: text}
	s.items.recoverOrClose(st, m)
}

func (s *Session) fanoutServiceStatus(st *ItemStream, state rdm.StateFilter) {
	m := &rdm.Msg{Class: rdm.ClassStatus, State: state.State, DataState: state.DataState, Code: state.Code, Text: state.Text}
	s.items.deliverByState(st, m)
}

func (s *Session) fanoutGroupStatus(st *ItemStream, g rdm.GroupEntry) {
	m := &rdm.Msg{Class: rdm.ClassStatus, State: g.State, DataState: g.DataState, Code: g.Code, Text: g.Text, GroupID: g.GroupID}
	s.items.deliverByState(st, m)
}

// fanoutItemMsg is the reorder queue's delivery hook (spec.md §4.3/§4.8.5):
// stamp the sequence metadata and hand off to the item engine.
func (s *Session) fanoutItemMsg(st *ItemStream, m *rdm.Msg, seqNum uint32, isUnicast bool) {
	m.HasSeqNum, m.SeqNum, m.Unicast = true, seqNum, isUnicast
	s.items.OnMsg(st, m)
}

// fanoutItemMsgDirect invokes the application callback once per request
// open on st, since one shared stream may multiplex many requests
// (spec.md §6, upward callback contract).
func (s *Session) fanoutItemMsgDirect(st *ItemStream, m *rdm.Msg) {
	for _, r := range st.Open {
		s.deliverEvent(r.UserSpec, "", m, st)
	}
	for _, r := range st.PendingRefresh {
		s.deliverEvent(r.UserSpec, "", m, st)
	}
}

func (s *Session) fanoutGeneric(st *ItemStream, m *rdm.Msg) { s.fanoutItemMsgDirect(st, m) }

func (s *Session) deliverEvent(userSpec any, serviceName string, m *rdm.Msg, st *ItemStream) {
	ev := rdm.Event{Msg: m, StreamInfo: rdm.StreamInfo{ServiceName: serviceName, UserSpec: userSpec}}
	if m.HasSeqNum {
		ev.HasSeqNum, ev.SeqNum = true, m.SeqNum
	}
	if st != nil && st.FTGroup != nil {
		ev.HasFTGroup, ev.FTGroupID = true, *st.FTGroup
	}
	s.callback(ev)
}

func (s *Session) emitItemStatus(req *ItemRequest, st *ItemStream, state rdm.StreamState, ds rdm.DataState, code rdm.StatusCode, text string) {
	m := &rdm.Msg{Class: rdm.ClassStatus, Domain: req.Domain, StreamID: int32(req.ID), State: state, DataState: ds, Code: code, Text: text}
	s.deliverEvent(req.UserSpec, "", m, st)
}

func (s *Session) emitDirectoryRefresh(req *DirectoryRequest, services []rdm.Service) {
	m := &rdm.Msg{Class: rdm.ClassRefresh, Domain: rdm.DomainDirectory, StreamID: int32(req.ID), Services: services, Solicited: true, RefreshComplete: true, State: rdm.StreamOpen, DataState: rdm.DataOk}
	s.deliverEvent(req.UserSpec, "", m, nil)
}

func (s *Session) emitLoginMsg(req *LoginRequest, m *rdm.Msg) {
	if req == nil {
		return
	}
	s.deliverEvent(req.UserSpec, "", m, nil)
}

func (s *Session) emitLoginStatus(req *LoginRequest, state rdm.StreamState, ds rdm.DataState, code rdm.StatusCode, text string) {
	m := &rdm.Msg{Class: rdm.ClassStatus, Domain: rdm.DomainLogin, State: state, DataState: ds, Code: code, Text: text}
	s.emitLoginMsg(req, m)
}

func (s *Session) emitAck(req *ItemRequest, m *rdm.Msg) {
	s.deliverEvent(req.UserSpec, "", m, req.stream)
}

func (s *Session) closeAndDestroyRequest(req *ItemRequest) {
	req.State = StateClosed
	if req.stream != nil {
		req.stream.Open = removeItemRequest(req.stream.Open, req)
		req.stream.PendingRefresh = removeItemRequest(req.stream.PendingRefresh, req)
		req.stream.Recovering = removeItemRequest(req.stream.Recovering, req)
		if req.stream.requestCount() == 0 {
			s.items.destroyStream(req.stream)
		}
	}
	delete(s.itemReqByID, req.ID)
}

func removeItemRequest(list []*ItemRequest, req *ItemRequest) []*ItemRequest {
	for i, r := range list {
		if r == req {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Destroy implements spec.md §6: fans out closed-suspect to every open
// request, tears down all tables and pools.
func (s *Session) Destroy() {
	for _, st := range s.items.byID {
		for _, r := range s.items.allRequests(st) {
			s.emitItemStatus(r, st, rdm.StreamClosed, rdm.DataSuspect, rdm.CodeNone, "Session destroyed")
		}
	}
	s.items.byID = make(map[StreamID]*ItemStream)
	s.items.byAttrib = make(map[string]*ItemStream)
	s.itemReqByID = make(map[RequestID]*ItemRequest)
	s.dirReqByID = make(map[RequestID]*DirectoryRequest)
	s.directory.byName = make(map[string]*requestedService)
	s.directory.byID = make(map[ServiceID]*requestedService)
	s.items.streamsPendingRequest = make(map[StreamID]*ItemStream)
	s.posts = newPostTable(s.cfg.MaxOutstandingPosts)
	s.groups = newGroupTables()
	s.gapStreams = make(map[StreamID]struct{})
	s.services.Clear()
	s.services.Close()
}

// ResetGapTimer implements spec.md §6: a host hint that the transport
// recovered; reschedule every open gapExpireTime forward by gapTimeout.
func (s *Session) ResetGapTimer() {
	for id := range s.gapStreams {
		if st, ok := s.items.byID[id]; ok {
			st.Reorder.gapExpireTime = s.now.Add(s.cfg.GapTimeout)
		}
	}
}

// ProcessFTGroupPing implements spec.md §6: refresh the group's deadline,
// emitting no messages.
func (s *Session) ProcessFTGroupPing(id byte, now time.Time) time.Time {
	s.now = now
	return s.groups.Ping(id, now, s.cfg.RequestTimeout, nil)
}
