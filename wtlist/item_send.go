package wtlist

import "github.com/Refinitiv/Real-Time-SDK-sub030/rdm"

// openWindow is per-service admission state for spec.md §4.8.6.
type openWindow struct {
	limit         int // 0 == unset
	outstanding   int
	pendingWindow []*ItemStream
}

func (e *ItemEngine) windowFor(id ServiceID) *openWindow {
	if e.windows == nil {
		e.windows = make(map[ServiceID]*openWindow)
	}
	w, ok := e.windows[id]
	if !ok {
		w = &openWindow{}
		e.windows[id] = w
	}
	return w
}

// admit implements spec.md §4.8.6: a stream needing to send a refresh
// enters the active set if under the open window, else waits.
func (e *ItemEngine) admit(st *ItemStream) bool {
	if !e.s.cfg.ObeyOpenWindow {
		return true
	}
	svc, ok := e.s.services.Get(st.ServiceID)
	if !ok || svc.Load.OpenWindow <= 0 {
		return true
	}
	w := e.windowFor(st.ServiceID)
	w.limit = svc.Load.OpenWindow
	if w.outstanding < w.limit {
		w.outstanding++
		return true
	}
	w.pendingWindow = append(w.pendingWindow, st)
	st.RefreshState = RefreshPendingOpenWindow
	return false
}

// release frees one open-window slot and promotes the first waiter, if
// any (spec.md §4.8.6).
func (e *ItemEngine) release(serviceID ServiceID) {
	w, ok := e.windows[serviceID]
	if !ok {
		return
	}
	if w.outstanding > 0 {
		w.outstanding--
	}
	if len(w.pendingWindow) == 0 {
		return
	}
	next := w.pendingWindow[0]
	w.pendingWindow = w.pendingWindow[1:]
	w.outstanding++
	next.RefreshState = RefreshRequestRefresh
	e.flagForSend(next)
}

// buildRequest implements spec.md §4.8.4's flag logic, independent of the
// wire encoding (left to the external codec per spec.md §1).
func (e *ItemEngine) buildRequest(st *ItemStream) *rdm.Msg {
	all := e.allRequests(st)
	priority := mergePriority(st, all)

	m := &rdm.Msg{
		Class:    rdm.ClassRequest,
		Domain:   st.Domain,
		StreamID: int32(st.ID),
		Key:      st.MsgKey,
		Qos:      st.Qos,
		Private:  st.has(FlagPrivate),
		Qualified: st.has(FlagQualified),
	}

	if priority != st.LastSentPriority {
		m.HasPriority = true
		m.Priority = priority
	}

	m.Streaming = st.RequestsStreamingCount > 0

	pauseAll := e.s.cfg.SupportOptimizedPauseResume &&
		st.RequestsStreamingCount > 0 && st.RequestsPausedCount == st.RequestsStreamingCount
	m.Pause = pauseAll
	if pauseAll {
		st.set(FlagPaused)
	} else {
		st.clear(FlagPaused)
	}

	needsRefresh := st.RefreshState != RefreshPendingRefresh || len(st.Recovering) > 0
	m.NoRefresh = !needsRefresh

	if st.AggregateView != nil {
		st.AggregateView.Merge()
	}
	if e.s.cfg.SupportViewRequests && st.AggregateView != nil && allHaveView(all) {
		v := st.AggregateView.Encode()
		m.HasView = true
		m.View = &v
		st.set(FlagViewed)
	} else {
		st.clear(FlagViewed)
	}

	return m
}

func allHaveView(reqs []*ItemRequest) bool {
	if len(reqs) == 0 {
		return false
	}
	for _, r := range reqs {
		if r.View == nil {
			return false
		}
	}
	return true
}

// sendRequest implements the success/retry/failure branches of spec.md
// §4.8.4 around a single encode-and-write attempt. The actual byte
// encoding of m is the wire codec's job (spec.md §1); here buildRequest's
// Msg is handed to the channel as an opaque already-encoded buffer
// produced by the caller's codec, so this only drives the write and the
// bookkeeping that follows success or failure.
func (e *ItemEngine) sendRequest(st *ItemStream, buf []byte) error {
	if err := e.s.channel.Write(buf); err != nil {
		if err == rdm.ErrWriteCallAgain || err == rdm.ErrNoBuffers {
			e.s.pendingWrite = buf
			e.s.pendingWriteStream = st.ID
			e.s.needFlush = true
			return err
		}
		return err
	}
	e.onSendSuccess(st)
	return nil
}

func (e *ItemEngine) onSendSuccess(st *ItemStream) {
	if len(st.Recovering) > 0 {
		st.PendingRefresh = append(st.PendingRefresh, st.Recovering...)
		st.Recovering = nil
		if st.RefreshState == RefreshNone || st.RefreshState == RefreshPendingOpenWindow {
			st.RefreshState = RefreshRequestRefresh
		}
		st.startPendingResponse(e.s.now, e.s.cfg.RequestTimeout)
	}
	st.RefreshState = RefreshPendingRefresh

	st.clear(FlagPendingPriorityChange)
	priority := mergePriority(st, e.allRequests(st))
	st.LastSentPriority = priority

	if st.AggregateView != nil {
		st.AggregateView.Commit()
	}
	st.clear(FlagPendingViewChange)
	if st.has(FlagViewed) {
		st.set(FlagPendingViewRefresh)
	}

	st.PendingRequest = false
	delete(e.streamsPendingRequest, st.ID)
}
