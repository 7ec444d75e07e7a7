package wtlist

import (
	"sort"
	"strconv"

	"github.com/Refinitiv/Real-Time-SDK-sub030/rdm"
)

// ItemEngine is C8: request aggregation, priority merging, refresh
// lifecycle, pause/resume, batch and symbol-list expansion (spec.md §4.8).
type ItemEngine struct {
	s *Session

	byID     map[StreamID]*ItemStream
	byAttrib map[string]*ItemStream

	streamsPendingRequest map[StreamID]*ItemStream

	windows map[ServiceID]*openWindow

	providerIDs *providerIDPool
}

func newItemEngine(s *Session) *ItemEngine {
	return &ItemEngine{
		s:                     s,
		byID:                  make(map[StreamID]*ItemStream),
		byAttrib:              make(map[string]*ItemStream),
		streamsPendingRequest: make(map[StreamID]*ItemStream),
		providerIDs:           newProviderIDPool(),
	}
}

func streamAttribKey(domain rdm.Domain, key rdm.MsgKey, qos rdm.Qos) string {
	return strconv.Itoa(int(domain)) + "|" + strconv.Itoa(key.ServiceID) + "|" + key.Name + "|" +
		strconv.Itoa(key.NameType) + "|" + strconv.Itoa(key.Filter) + "|" + strconv.Itoa(key.Identifier) + "|" +
		strconv.Itoa(qos.Timeliness) + "," + strconv.Itoa(qos.Rate)
}

// findStream implements spec.md §4.8.1: validate against the matched
// service, compute the shared-stream attribute key, and attach.
func (e *ItemEngine) findStream(req *ItemRequest, rs *requestedService) {
	svc := rs.service
	if svc == nil || !serviceServesable(svc) {
		e.rejectUnservable(req, rs, svc)
		return
	}

	if !hasCapability(svc, req.Key.HasServiceID, req.Domain) {
		e.rejectUnservable(req, rs, svc)
		return
	}

	best, ok := matchQos(svc, req.Qos, req.WorstQos, req.StaticQos)
	if !ok {
		e.rejectUnservable(req, rs, svc)
		return
	}

	key := req.Key
	key.HasServiceID, key.ServiceID = true, svc.ID

	var st *ItemStream
	attrib := ""
	if !req.Private {
		attrib = streamAttribKey(req.Domain, key, best)
		st = e.byAttrib[attrib]
	}
	if st == nil {
		id := e.s.nextRequestStreamID()
		st = newItemStream(id, req.Domain, key, best, ServiceID(svc.ID))
		st.attrib = attrib
		if req.Private {
			st.set(FlagPrivate)
		}
		e.byID[id] = st
		if attrib != "" {
			e.byAttrib[attrib] = st
		}
		if e.s.channel != nil && e.s.channel.Multicast() {
			e.s.channel.RegisterAttrib(attrib)
		}
	}
	req.rs = rs
	req.stream = st
	rs.matched = append(rs.matched, req)
	e.addRequestToStream(req, st)
}

func serviceServesable(svc *rdm.Service) bool {
	return svc.State.ServiceState != 0 && svc.State.AcceptingRequests
}

func hasCapability(svc *rdm.Service, _ bool, domain rdm.Domain) bool {
	caps := svc.Info.Capabilities
	i := sort.Search(len(caps), func(i int) bool { return caps[i] >= domain })
	return i < len(caps) && caps[i] == domain
}

func matchQos(svc *rdm.Service, want, worst rdm.Qos, static bool) (rdm.Qos, bool) {
	for _, q := range svc.Info.QosList {
		if q.Matches(want, worst, static) {
			return q, true
		}
	}
	return rdm.Qos{}, false
}

// serviceQos returns the matched service's own advertised QoS (spec.md
// §4.8.8: "using the matched service's QoS"), for callers deriving
// provider-driven requests rather than matching an application want/worst
// pair.
func serviceQos(svc *rdm.Service) (rdm.Qos, bool) {
	if len(svc.Info.QosList) == 0 {
		return rdm.Qos{}, false
	}
	return svc.Info.QosList[0], true
}

// rejectUnservable emits the single-open-dependent synthetic status of
// spec.md §4.1/§4.8.1 for a request whose service cannot currently serve
// it.
func (e *ItemEngine) rejectUnservable(req *ItemRequest, rs *requestedService, svc *rdm.Service) {
	text := "Service is down."
	if svc == nil {
		text = "No matching service."
	} else if !hasCapability(svc, false, req.Domain) {
		text = "Capability not supported."
	} else if _, ok := matchQos(svc, req.Qos, req.WorstQos, req.StaticQos); !ok {
		text = "None of the specified QoS are supported by the service."
	}
	if e.s.cfg.SingleOpen && !req.Private {
		e.s.emitItemStatus(req, nil, rdm.StreamOpen, rdm.DataSuspect, rdm.CodeNone, text)
		req.State = StateRecovering
		rs.recovering = append(rs.recovering, req)
	} else {
		e.s.emitItemStatus(req, nil, rdm.StreamClosedRecover, rdm.DataSuspect, rdm.CodeNone, text)
		req.State = StateClosed
	}
}

// addRequestToStream implements spec.md §4.8.2.
func (e *ItemEngine) addRequestToStream(req *ItemRequest, st *ItemStream) {
	if st.AggregateView != nil && req.View != nil && st.AggregateView.typ != req.View.Type {
		e.s.emitItemStatus(req, st, rdm.StreamClosedRecover, rdm.DataSuspect, rdm.CodeUsageError, "Requested view type does not match existing stream")
		req.State = StateClosed
		return
	}

	if req.Streaming {
		st.RequestsStreamingCount++
		if req.Paused {
			st.RequestsPausedCount++
		}
	}

	if req.View != nil {
		if st.AggregateView == nil {
			st.AggregateView = newViewAggregator(req.View.Type)
		}
		st.AggregateView.Add(*req.View)
		st.set(FlagPendingViewChange)
	}
	st.set(FlagPendingPriorityChange)

	switch {
	case st.has(FlagPendingSnapshot), st.RefreshState == RefreshPendingRefresh && st.has(FlagPendingViewRefresh) && req.View != nil && !st.AggregateView.Contains(*req.View):
		req.State = StateRecovering
		st.Recovering = append(st.Recovering, req)
		e.flagForSend(st)
	case len(st.PendingRefresh) > 0 || st.RefreshState == RefreshPendingRefresh:
		req.State = StatePendingRefresh
		st.PendingRefresh = append(st.PendingRefresh, req)
		e.flagForSend(st)
	default:
		req.State = StateRecovering
		st.Recovering = append(st.Recovering, req)
		e.flagForSend(st)
	}
}

func (e *ItemEngine) flagForSend(st *ItemStream) {
	st.PendingRequest = true
	e.streamsPendingRequest[st.ID] = st
}

// mergePriority implements spec.md §4.8.3.
func mergePriority(st *ItemStream, all []*ItemRequest) rdm.Priority {
	p := rdm.Priority{Class: 1, Count: 1}
	found := false
	for _, r := range all {
		if !r.Streaming {
			continue
		}
		if !found || r.Priority.Class > p.Class {
			p.Class = r.Priority.Class
			p.Count = r.Priority.Count
			found = true
		} else if r.Priority.Class == p.Class {
			p.Count += r.Priority.Count
		}
	}
	return p
}

func (e *ItemEngine) allRequests(st *ItemStream) []*ItemRequest {
	out := make([]*ItemRequest, 0, st.requestCount())
	out = append(out, st.Recovering...)
	out = append(out, st.PendingRefresh...)
	out = append(out, st.Open...)
	return out
}

func (e *ItemEngine) streamsForService(id ServiceID) []*ItemStream {
	var out []*ItemStream
	for _, st := range e.byID {
		if st.ServiceID == id {
			out = append(out, st)
		}
	}
	return out
}
