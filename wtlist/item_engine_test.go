package wtlist

import (
	"testing"

	"github.com/Refinitiv/Real-Time-SDK-sub030/rdm"
)

func testService(id int, caps ...rdm.Domain) *rdm.Service {
	return &rdm.Service{
		ID:   id,
		Name: "DIRECT_FEED",
		State: rdm.StateFilter{
			ServiceState:      1,
			AcceptingRequests: true,
		},
		Info: rdm.InfoFilter{
			Capabilities: caps,
			QosList:      []rdm.Qos{{Timeliness: 0, Rate: 0}},
		},
	}
}

// TestFindStreamRejectsUnservable covers spec.md §4.8.1: a service that
// isn't accepting requests yields a synthetic status rather than a stream.
func TestFindStreamRejectsUnservable(t *testing.T) {
	s, events := newTestSession(t)
	svc := testService(1, rdm.DomainMarketPrice)
	svc.State.AcceptingRequests = false
	rs := &requestedService{name: "DIRECT_FEED", service: svc}

	req := &ItemRequest{RequestBase: RequestBase{ID: 1, Domain: rdm.DomainMarketPrice},
		Key: rdm.MsgKey{HasName: true, Name: "IBM.N"}}
	s.items.findStream(req, rs)

	if len(*events) != 1 {
		t.Fatalf("expected one synthetic status event, got %d", len(*events))
	}
	if req.stream != nil {
		t.Fatalf("expected no stream to be attached")
	}
}

// TestFindStreamRejectsMissingCapability covers the capability binary search.
func TestFindStreamRejectsMissingCapability(t *testing.T) {
	s, events := newTestSession(t)
	svc := testService(1, rdm.DomainMarketByPrice)
	rs := &requestedService{name: "DIRECT_FEED", service: svc}

	req := &ItemRequest{RequestBase: RequestBase{ID: 1, Domain: rdm.DomainMarketPrice},
		Key: rdm.MsgKey{HasName: true, Name: "IBM.N"}}
	s.items.findStream(req, rs)

	if len(*events) != 1 {
		t.Fatalf("expected one synthetic status event, got %d", len(*events))
	}
	if req.State != StateRecovering && req.State != StateClosed {
		t.Fatalf("expected the request to be rejected, got state %v", req.State)
	}
}

// TestFindStreamSharesNonPrivateStreams covers spec.md §4.8.1/§4.8.2: two
// non-private requests for the same key/qos/domain/service share one
// ItemStream, and mergePriority reflects both.
func TestFindStreamSharesNonPrivateStreams(t *testing.T) {
	s, _ := newTestSession(t)
	svc := testService(1, rdm.DomainMarketPrice)
	rs := &requestedService{name: "DIRECT_FEED", service: svc}

	req1 := &ItemRequest{RequestBase: RequestBase{ID: 1, Domain: rdm.DomainMarketPrice},
		Key: rdm.MsgKey{HasName: true, Name: "IBM.N"}, Streaming: true, Priority: rdm.Priority{Class: 1, Count: 1}}
	req2 := &ItemRequest{RequestBase: RequestBase{ID: 2, Domain: rdm.DomainMarketPrice},
		Key: rdm.MsgKey{HasName: true, Name: "IBM.N"}, Streaming: true, Priority: rdm.Priority{Class: 2, Count: 3}}

	s.items.findStream(req1, rs)
	s.items.findStream(req2, rs)

	if req1.stream != req2.stream {
		t.Fatalf("expected both requests to share one stream")
	}
	if len(s.items.byID) != 1 {
		t.Fatalf("expected exactly one stream in the table, got %d", len(s.items.byID))
	}

	p := mergePriority(req1.stream, s.items.allRequests(req1.stream))
	if p.Class != 2 || p.Count != 3 {
		t.Fatalf("expected the higher class to win with its own count, got %+v", p)
	}
}

// TestFindStreamKeepsPrivateStreamsSeparate covers spec.md §4.8.1: private
// requests never share a stream even with identical keys.
func TestFindStreamKeepsPrivateStreamsSeparate(t *testing.T) {
	s, _ := newTestSession(t)
	svc := testService(1, rdm.DomainMarketPrice)
	rs := &requestedService{name: "DIRECT_FEED", service: svc}

	req1 := &ItemRequest{RequestBase: RequestBase{ID: 1, Domain: rdm.DomainMarketPrice},
		Key: rdm.MsgKey{HasName: true, Name: "IBM.N"}, Private: true}
	req2 := &ItemRequest{RequestBase: RequestBase{ID: 2, Domain: rdm.DomainMarketPrice},
		Key: rdm.MsgKey{HasName: true, Name: "IBM.N"}, Private: true}

	s.items.findStream(req1, rs)
	s.items.findStream(req2, rs)

	if req1.stream == req2.stream {
		t.Fatalf("expected private requests to get distinct streams")
	}
	if len(s.items.byID) != 2 {
		t.Fatalf("expected two streams in the table, got %d", len(s.items.byID))
	}
}

// TestAddRequestToStreamQueuesRecoveringFirst covers spec.md §4.8.2: the
// first request on a fresh stream always lands in Recovering so it drives
// the initial request-message send.
func TestAddRequestToStreamQueuesRecoveringFirst(t *testing.T) {
	s, _ := newTestSession(t)
	svc := testService(1, rdm.DomainMarketPrice)
	rs := &requestedService{name: "DIRECT_FEED", service: svc}

	req := &ItemRequest{RequestBase: RequestBase{ID: 1, Domain: rdm.DomainMarketPrice},
		Key: rdm.MsgKey{HasName: true, Name: "IBM.N"}, Streaming: true}
	s.items.findStream(req, rs)

	if req.State != StateRecovering {
		t.Fatalf("expected the first request to queue as Recovering, got %v", req.State)
	}
	if len(req.stream.Recovering) != 1 {
		t.Fatalf("expected the stream's Recovering queue to hold the request")
	}
	if !req.stream.PendingRequest {
		t.Fatalf("expected the stream to be flagged for send")
	}
}

// TestAddRequestToStreamJoinsPendingRefresh covers spec.md §4.8.2: a second
// request arriving while the stream is mid-refresh joins PendingRefresh
// instead of re-triggering a request.
func TestAddRequestToStreamJoinsPendingRefresh(t *testing.T) {
	s, _ := newTestSession(t)
	svc := testService(1, rdm.DomainMarketPrice)
	rs := &requestedService{name: "DIRECT_FEED", service: svc}

	req1 := &ItemRequest{RequestBase: RequestBase{ID: 1, Domain: rdm.DomainMarketPrice},
		Key: rdm.MsgKey{HasName: true, Name: "IBM.N"}, Streaming: true}
	s.items.findStream(req1, rs)
	req1.stream.RefreshState = RefreshPendingRefresh

	req2 := &ItemRequest{RequestBase: RequestBase{ID: 2, Domain: rdm.DomainMarketPrice},
		Key: rdm.MsgKey{HasName: true, Name: "IBM.N"}, Streaming: true}
	s.items.findStream(req2, rs)

	if req2.State != StatePendingRefresh {
		t.Fatalf("expected the second request to wait for the in-flight refresh, got %v", req2.State)
	}
	if len(req2.stream.PendingRefresh) != 1 {
		t.Fatalf("expected the stream's PendingRefresh queue to hold the request")
	}
}

// TestMergePriorityIgnoresNonStreaming covers spec.md §4.8.3: snapshot
// requests don't contribute to the merged priority.
func TestMergePriorityIgnoresNonStreaming(t *testing.T) {
	st := &ItemStream{StreamBase: StreamBase{ID: 1}}
	reqs := []*ItemRequest{
		{Streaming: false, Priority: rdm.Priority{Class: 9, Count: 9}},
		{Streaming: true, Priority: rdm.Priority{Class: 1, Count: 2}},
	}
	p := mergePriority(st, reqs)
	if p.Class != 1 || p.Count != 2 {
		t.Fatalf("expected the snapshot request's priority to be ignored, got %+v", p)
	}
}

func TestMergePriorityDefaultsWhenNoStreamers(t *testing.T) {
	st := &ItemStream{StreamBase: StreamBase{ID: 1}}
	p := mergePriority(st, nil)
	if p.Class != 1 || p.Count != 1 {
		t.Fatalf("expected the default (1,1) priority, got %+v", p)
	}
}
