package wtlist

import (
	"github.com/Refinitiv/Real-Time-SDK-sub030/cmn/nlog"
	"github.com/Refinitiv/Real-Time-SDK-sub030/rdm"
)

// OnMsg is the item engine's entry point for an inbound provider message
// on an item stream, called after C3 reorder has released it in sequence
// (spec.md §4.8.5).
func (e *ItemEngine) OnMsg(st *ItemStream, m *rdm.Msg) {
	switch m.Class {
	case rdm.ClassRefresh:
		e.onRefresh(st, m)
	case rdm.ClassUpdate:
		e.onUpdate(st, m)
	case rdm.ClassStatus:
		e.onStatus(st, m)
	case rdm.ClassAck:
		e.onAck(st, m)
	case rdm.ClassGeneric:
		e.s.fanoutGeneric(st, m)
	}
}

func (e *ItemEngine) onRefresh(st *ItemStream, m *rdm.Msg) {
	if m.GroupID != nil {
		e.s.groups.JoinItemGroup(st, st.ServiceID, m.GroupID)
	}

	if m.RefreshComplete && m.Solicited {
		st.clearPendingResponse()
		st.RefreshState = RefreshPendingRefreshComplete
		for _, r := range st.PendingRefresh {
			r.State = StateOpen
			r.Refreshed = true
			if r.StaticQos {
				r.Qos = st.Qos
			}
		}
		st.Open = append(st.Open, st.PendingRefresh...)
		st.PendingRefresh = nil
		e.release(st.ServiceID)
		st.set(FlagEstablished)
	} else if !m.Solicited && (m.State == rdm.StreamOpen) {
		for _, r := range st.Open {
			if r.Refreshed {
				m.Solicited = false
			}
		}
	}

	e.expandSymbolListIfNeeded(st, m)
	e.deliverByState(st, m)
}

func (e *ItemEngine) onUpdate(st *ItemStream, m *rdm.Msg) {
	e.expandSymbolListIfNeeded(st, m)
	e.s.fanoutItemMsgDirect(st, m)
}

// expandSymbolListIfNeeded implements spec.md §4.8.8: an arriving
// refresh/update on a symbol-list stream carrying a DATA_STREAMS or
// DATA_SNAPSHOTS request derives provider-driven market-price requests for
// every ADD/UPDATE entry in the payload.
func (e *ItemEngine) expandSymbolListIfNeeded(st *ItemStream, m *rdm.Msg) {
	if st.Domain != rdm.DomainSymbolList || len(m.Payload) == 0 {
		return
	}
	req := symbolListRequestFor(st)
	if req == nil {
		return
	}
	svc, ok := e.s.services.Get(st.ServiceID)
	if !ok {
		return
	}
	err := e.s.symbolList.ExpandSymbolList(e, req, svc, m.Payload, func(derived *ItemRequest) error {
		return e.s.acceptItemRequest(derived)
	})
	if err != nil {
		nlog.Errorf("wtlist: symbol-list expansion on stream %d failed: %v", st.ID, err)
	}
}

// symbolListRequestFor finds the symbol-list request driving st, if any.
// One stream aggregates requests by msg key, not by behavior, but a
// symbol-list domain stream in practice carries a single behavior.
func symbolListRequestFor(st *ItemStream) *SymbolListRequest {
	for _, queue := range [][]*ItemRequest{st.Open, st.PendingRefresh, st.Recovering} {
		for _, r := range queue {
			if r.IsSymbolList {
				return &SymbolListRequest{ItemRequest: *r, Behavior: r.SymbolListBehavior}
			}
		}
	}
	return nil
}

func (e *ItemEngine) onStatus(st *ItemStream, m *rdm.Msg) {
	if m.GroupID != nil {
		e.s.groups.JoinItemGroup(st, st.ServiceID, m.GroupID)
	}
	e.deliverByState(st, m)
}

func (e *ItemEngine) onAck(st *ItemStream, m *rdm.Msg) {
	rec := e.s.posts.Ack(st.ID, m.AckID, m.SeqNum, m.HasSeqNum)
	if rec == nil {
		return
	}
	if rec.req != nil {
		e.s.emitAck(rec.req, m)
	}
}

// deliverByState implements the stream-state branches of spec.md §4.8.5.
func (e *ItemEngine) deliverByState(st *ItemStream, m *rdm.Msg) {
	switch m.State {
	case rdm.StreamOpen:
		e.s.fanoutItemMsgDirect(st, m)

	case rdm.StreamNonStreaming:
		e.s.fanoutItemMsgDirect(st, m)
		if m.RefreshComplete {
			var remaining []*ItemRequest
			for _, r := range st.Open {
				if r.Streaming {
					remaining = append(remaining, r)
				} else {
					r.State = StateClosed
				}
			}
			st.Open = remaining
			if len(remaining) > 0 {
				st.RefreshState = RefreshRequestRefresh
				e.flagForSend(st)
			}
		}

	case rdm.StreamClosedRecover, rdm.StreamClosed, rdm.StreamClosedRedirected:
		if m.State == rdm.StreamClosedRecover && m.DataState == rdm.DataSuspect && !e.s.cfg.AllowSuspectData {
			m.State = rdm.StreamClosedRecover
		}
		e.recoverOrClose(st, m)

	default:
		e.s.fanoutItemMsgDirect(st, m)
	}
}

// recoverOrClose implements the terminal-state branch of spec.md §4.8.5:
// build the recovery list from all three queues, determine per-request
// retry eligibility, deliver, and re-queue or close.
func (e *ItemEngine) recoverOrClose(st *ItemStream, m *rdm.Msg) {
	all := e.allRequests(st)
	for _, r := range all {
		e.s.emitItemStatus(r, st, m.State, m.DataState, m.Code, m.Text)

		retry := e.retryEligible(r, m)
		if retry && r.rs != nil {
			r.State = StateRecovering
			r.rs.recovering = append(r.rs.recovering, r)
		} else {
			r.State = StateClosed
		}
	}
	st.Recovering, st.PendingRefresh, st.Open = nil, nil, nil
	e.destroyStream(st)
}

// retryEligible implements spec.md §4.8.5's "determine per-request retry
// eligibility": private streams never recover; dictionary refreshes do
// not recover (SPEC_FULL.md supplemented behavior); ClosedRecover with
// single-open does.
func (e *ItemEngine) retryEligible(r *ItemRequest, m *rdm.Msg) bool {
	if r.Private {
		return false
	}
	if r.Domain == rdm.DomainDictionary {
		return false
	}
	return m.State == rdm.StreamClosedRecover && e.s.cfg.SingleOpen
}

func (e *ItemEngine) destroyStream(st *ItemStream) {
	delete(e.byID, st.ID)
	if st.attrib != "" {
		delete(e.byAttrib, st.attrib)
	}
	e.s.groups.LeaveItemGroup(st)
	delete(e.streamsPendingRequest, st.ID)
	delete(e.s.gapStreams, st.ID)
}
