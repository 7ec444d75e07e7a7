package wtlist

import (
	"time"

	"github.com/Refinitiv/Real-Time-SDK-sub030/rdm"
)

// GetNextTimeout implements spec.md §4.1: the earliest of per-stream
// pending-response deadline, FT-group ping expiry, post-ack expiry, or
// gap-recovery expiry. The zero time with ok=false means TIME_UNSET.
func (s *Session) GetNextTimeout() (time.Time, bool) {
	var best time.Time
	have := false
	consider := func(t time.Time, ok bool) {
		if !ok {
			return
		}
		if !have || t.Before(best) {
			best, have = t, true
		}
	}

	if s.loginStream.hasPendingResponse {
		consider(s.loginStream.PendingResponseDeadline, true)
	}
	if s.dirStream.hasPendingResponse {
		consider(s.dirStream.PendingResponseDeadline, true)
	}
	for _, st := range s.items.byID {
		if st.hasPendingResponse {
			consider(st.PendingResponseDeadline, true)
		}
		if st.Reorder.hasGap {
			consider(st.Reorder.gapExpireTime, true)
		}
	}
	consider(s.groups.NextFTExpiry())
	consider(s.posts.NextExpiry())

	return best, have
}

// ProcessTimer implements spec.md §4.1's processTimer(now): fires every
// expired pending-response, FT-group, post-ack, and gap deadline.
func (s *Session) ProcessTimer(now time.Time) {
	s.now = now

	s.processPendingResponses(now)

	for _, g := range s.groups.Expired(now) {
		s.stats.FTTimeouts.Inc()
		for _, st := range g.members {
			s.closeWithRecover(st, rdm.CodeTimeout, "Fault-tolerant Group timeout.")
			st.FTGroup = nil
		}
	}

	for _, rec := range s.posts.Expired(now) {
		s.stats.PostTimeouts.Inc()
		ack := &rdm.Msg{Class: rdm.ClassAck, AckID: rec.key.postID, HasSeqNum: rec.key.hasSeq, SeqNum: rec.key.seqNum,
			HasNakCode: true, NakCode: rdm.NakNoResponse, Text: "Acknowledgement timed out.", PostUserInfo: rec.postUserInfo}
		if rec.req != nil {
			s.emitAck(rec.req, ack)
		} else if rec.loginReq != nil {
			s.emitLoginMsg(rec.loginReq, ack)
		}
	}

	s.processGapExpiry(now)
}

func (s *Session) processPendingResponses(now time.Time) {
	if s.loginStream.hasPendingResponse && !s.loginStream.PendingResponseDeadline.After(now) {
		s.loginStream.clearPendingResponse()
		s.emitLoginStatus(s.loginReq, rdm.StreamClosedRecover, rdm.DataSuspect, rdm.CodeTimeout, "Login request timed out")
		if s.cfg.SingleOpen {
			s.login.Submit(s.loginReq)
		}
	}
	if s.dirStream.hasPendingResponse && !s.dirStream.PendingResponseDeadline.After(now) {
		s.dirStream.clearPendingResponse()
		s.dirStream.PendingRequest = true
	}
	for _, st := range s.items.byID {
		if st.hasPendingResponse && !st.PendingResponseDeadline.After(now) {
			st.clearPendingResponse()
			s.closeWithRecover(st, rdm.CodeTimeout, "Request timed out")
		}
	}
}

// processGapExpiry implements spec.md §4.1's gap-queue branch: with gap
// recovery enabled, close-and-recover; disabled, drain the reorder
// buffer and reset sync so forward progress resumes at the cost of
// missed messages.
func (s *Session) processGapExpiry(now time.Time) {
	for id := range s.gapStreams {
		st, ok := s.items.byID[id]
		if !ok || st.Reorder.gapExpireTime.After(now) {
			continue
		}
		if s.cfg.GapRecovery {
			s.closeWithRecover(st, rdm.CodeGapDetected, "Gap in sequence number.")
			continue
		}
		q := st.Reorder
		for _, bm := range q.drainLE(^uint32(0)) {
			s.fanoutItemMsg(st, bm.unpacked(), bm.seqNum, bm.isUnicast)
		}
		st.clear(FlagHasBCSeqGap | FlagHasPartGap | FlagBCBehindUC)
		q.hasGap = false
		delete(s.gapStreams, id)
	}
}

// SubmitMsg implements spec.md §6 submitMsg(opts): dispatches an
// application submission by domain/class to the relevant engine. Returns
// nil on clean accept, or an *Error on synchronous rejection.
func (s *Session) SubmitMsg(m *rdm.Msg, userSpec any) error {
	switch m.Domain {
	case rdm.DomainLogin:
		return s.submitLogin(m, userSpec)
	case rdm.DomainDirectory:
		return s.submitDirectory(m, userSpec)
	default:
		return s.submitItem(m, userSpec)
	}
}

func (s *Session) submitLogin(m *rdm.Msg, userSpec any) error {
	if m.Class == rdm.ClassPost {
		return s.login.SubmitPost(s.loginReq, m)
	}
	if m.Login == nil {
		return errInvalidArgument("login submission requires Login fields")
	}
	req := &LoginRequest{
		RequestBase:       RequestBase{ID: RequestID(m.StreamID), Domain: rdm.DomainLogin, UserSpec: userSpec},
		Username:          m.Login.Username,
		Password:          m.Login.Password,
		ApplicationID:     m.Login.ApplicationID,
		Position:          m.Login.Position,
		Role:              m.Login.Role,
		Instance:          m.Login.Instance,
		ExtendedAuthToken: m.Login.ExtendedAuthToken,
		PauseAllPending:   m.Login.PauseAll,
	}
	s.loginReq = req
	s.loginStream.ID = StreamID(m.StreamID)
	if req.PauseAllPending {
		s.login.SetPauseAll(true)
	} else if m.Login.ResumeAll {
		s.login.SetPauseAll(false)
	}
	if s.state >= ChanLoginRequested {
		s.login.Submit(req)
	}
	return nil
}

func (s *Session) submitDirectory(m *rdm.Msg, userSpec any) error {
	if m.StreamID < 0 {
		return errInvalidArgument("directory request must use a positive, application-chosen stream id")
	}
	req := &DirectoryRequest{
		RequestBase: RequestBase{ID: RequestID(m.StreamID), Domain: rdm.DomainDirectory, UserSpec: userSpec},
		Filter:      rdm.FilterFlags(m.Key.Filter),
		Streaming:   m.Streaming,
	}
	switch {
	case m.Key.HasServiceID:
		req.Scope, req.ServiceID = ScopeByID, ServiceID(m.Key.ServiceID)
	case m.Key.HasName:
		req.Scope, req.ServiceName = ScopeByName, m.Key.Name
	default:
		req.Scope = ScopeAllServices
	}
	s.dirReqByID[req.ID] = req
	s.directory.Submit(req)
	return nil
}

func (s *Session) submitItem(m *rdm.Msg, userSpec any) error {
	if m.StreamID < 0 {
		return errInvalidArgument("item request must use a positive, application-chosen stream id")
	}
	if !m.Key.HasServiceID && !m.Key.HasName {
		return errInvalidArgument("item request must carry a service and name")
	}

	if m.Class == rdm.ClassPost {
		return s.submitPost(m)
	}
	if m.Class == rdm.ClassClose {
		return s.submitClose(RequestID(m.StreamID))
	}

	req := &ItemRequest{
		RequestBase: RequestBase{ID: RequestID(m.StreamID), Domain: m.Domain, UserSpec: userSpec},
		Key:         m.Key,
		Qos:         m.Qos,
		WorstQos:    m.WorstQos,
		StaticQos:   m.StaticQos,
		Priority:    m.Priority,
		Streaming:   m.Streaming,
		View:        m.View,
		Private:     m.Private,
		Qualified:   m.Qualified,
	}
	if m.Domain == rdm.DomainSymbolList {
		req.IsSymbolList = true
		if m.HasSymbolListBehavior {
			req.SymbolListBehavior = SymbolListBehavior(m.SymbolListBehavior)
		}
	}

	if m.HasBatch {
		if req.Key.HasName {
			return errInvalidArgument("batch request must not carry a name in its message key")
		}
		_, err := s.items.ExpandBatch(req, m.EncodedBytes, func(sib *ItemRequest) error {
			return s.acceptItemRequest(sib)
		})
		if err != nil {
			return err
		}
		s.itemReqByID[req.ID] = req
		req.State = StateClosed
		s.emitItemStatus(req, nil, rdm.StreamClosed, rdm.DataOk, rdm.CodeNone, "Batch request acknowledged.")
		delete(s.itemReqByID, req.ID)
		return nil
	}

	return s.acceptItemRequest(req)
}

// acceptItemRequest implements spec.md §4.8.1's first-submission path, and
// §4.8.10's reissue path when req.ID names a request already tracked: a
// resubmission on a live stream id reissues in place rather than being
// rejected.
func (s *Session) acceptItemRequest(req *ItemRequest) error {
	if existing, exists := s.itemReqByID[req.ID]; exists {
		return s.items.Reissue(existing, req)
	}
	s.itemReqByID[req.ID] = req

	rs := s.requestedServiceFor(req.Key)
	if rs.service == nil {
		req.rs = rs
		req.State = StateRecovering
		rs.recovering = append(rs.recovering, req)
		s.emitItemStatus(req, nil, rdm.StreamOpen, rdm.DataSuspect, rdm.CodeNone, "No matching service.")
		return nil
	}
	s.items.findStream(req, rs)
	return nil
}

func (s *Session) requestedServiceFor(key rdm.MsgKey) *requestedService {
	if key.HasServiceID {
		return s.directory.requestedByID(ServiceID(key.ServiceID))
	}
	return s.directory.requestedByName(key.Name)
}

func (s *Session) submitPost(m *rdm.Msg) error {
	req, ok := s.itemReqByID[RequestID(m.StreamID)]
	if !ok || req.stream == nil {
		return errInvalidArgument("post on unknown or unattached stream %d", m.StreamID)
	}
	if m.PostAck {
		expire := s.now.Add(s.cfg.PostAckTimeout)
		if _, err := s.posts.Submit(req.stream.ID, m, s.now, expire, req, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) submitClose(id RequestID) error {
	req, ok := s.itemReqByID[id]
	if !ok {
		return errInvalidArgument("close on unknown stream %d", id)
	}
	s.closeAndDestroyRequest(req)
	return nil
}

// SubmitBuffer implements spec.md §6 submitBuffer(opts): as SubmitMsg, but
// with an already-encoded buffer the host's codec has decoded into m.
func (s *Session) SubmitBuffer(m *rdm.Msg, buf []byte, userSpec any) error {
	m.EncodedBytes = buf
	return s.SubmitMsg(m, userSpec)
}

// ReadMsg implements spec.md §6: dispatch an inbound provider message to
// the relevant engine by domain.
func (s *Session) ReadMsg(m *rdm.Msg) {
	switch m.Domain {
	case rdm.DomainLogin:
		s.login.OnMsg(m)
	case rdm.DomainDirectory:
		s.directory.OnRefresh(m.Services)
	default:
		st, ok := s.items.byID[StreamID(m.StreamID)]
		if !ok {
			return
		}
		if s.channel != nil && s.channel.Multicast() && !st.has(FlagPrivate) && m.HasSeqNum {
			s.onMessage(st, m, s.now)
			return
		}
		s.items.OnMsg(st, m)
	}
}
