package wtlist

import (
	"testing"

	"github.com/Refinitiv/Real-Time-SDK-sub030/rdm"
)

// TestLoginSubmitStartsPendingResponse covers spec.md §4.6: Submit arms
// the login stream's pending-response deadline.
func TestLoginSubmitStartsPendingResponse(t *testing.T) {
	s, _ := newTestSession(t)
	req := &LoginRequest{RequestBase: RequestBase{ID: 1, Domain: rdm.DomainLogin}, Username: "user"}

	s.login.Submit(req)

	if !s.loginStream.hasPendingResponse {
		t.Fatalf("expected a pending-response deadline to be armed")
	}
	if s.loginStream.State != LoginPending {
		t.Fatalf("expected login stream state Pending, got %v", s.loginStream.State)
	}
}

// TestLoginSubmitRejectsMalformedExtendedAuthToken covers spec.md §4.6.
func TestLoginSubmitRejectsMalformedExtendedAuthToken(t *testing.T) {
	s, events := newTestSession(t)
	req := &LoginRequest{RequestBase: RequestBase{ID: 1, Domain: rdm.DomainLogin}, ExtendedAuthToken: "not-a-jwt"}

	s.login.Submit(req)

	if req.State != StateClosed {
		t.Fatalf("expected the request to be closed, got %v", req.State)
	}
	if len(*events) != 1 {
		t.Fatalf("expected one usage-error status event, got %d", len(*events))
	}
}

// TestLoginOnMsgEstablishesOnRefresh covers spec.md §4.6: an Open refresh
// transitions the login stream to Established and fires onLoggedIn.
func TestLoginOnMsgEstablishesOnRefresh(t *testing.T) {
	s, events := newTestSession(t)
	req := &LoginRequest{RequestBase: RequestBase{ID: 1, Domain: rdm.DomainLogin}}
	s.loginStream.Request = req

	s.login.OnMsg(&rdm.Msg{Class: rdm.ClassRefresh, Domain: rdm.DomainLogin, State: rdm.StreamOpen})

	if s.loginStream.State != LoginEstablished {
		t.Fatalf("expected the login stream to become Established")
	}
	if s.state != ChanLoggedIn {
		t.Fatalf("expected the session to transition to LoggedIn, got %v", s.state)
	}
	if len(*events) != 1 {
		t.Fatalf("expected the refresh to be forwarded to the application")
	}
}

// TestLoginOnMsgRecoversOnClosedRecoverWithSingleOpen covers spec.md §4.6:
// with SingleOpen, a ClosedRecover login status resubmits transparently.
func TestLoginOnMsgRecoversOnClosedRecoverWithSingleOpen(t *testing.T) {
	s, events := newTestSession(t)
	s.cfg.SingleOpen = true
	req := &LoginRequest{RequestBase: RequestBase{ID: 1, Domain: rdm.DomainLogin}}
	s.loginStream.Request = req

	svc := testService(1, rdm.DomainMarketPrice)
	rs := &requestedService{name: "DIRECT_FEED", service: svc}
	item := &ItemRequest{RequestBase: RequestBase{ID: 2, Domain: rdm.DomainMarketPrice}, Key: rdm.MsgKey{HasName: true, Name: "IBM.N"}}
	s.items.findStream(item, rs)

	s.login.OnMsg(&rdm.Msg{Class: rdm.ClassStatus, Domain: rdm.DomainLogin, State: rdm.StreamClosedRecover})

	if len(s.items.byID) != 0 {
		t.Fatalf("expected all item streams to be recovered away, got %d", len(s.items.byID))
	}
	if !s.loginStream.hasPendingResponse {
		t.Fatalf("expected the login request to have been resubmitted")
	}
	if len(*events) < 2 {
		t.Fatalf("expected the login status and the item recovery status to both be delivered")
	}
}

// TestLoginOnMsgClosesWithoutSingleOpen covers spec.md §4.6.
func TestLoginOnMsgClosesWithoutSingleOpen(t *testing.T) {
	s, _ := newTestSession(t)
	s.cfg.SingleOpen = false
	req := &LoginRequest{RequestBase: RequestBase{ID: 1, Domain: rdm.DomainLogin}}
	s.loginStream.Request = req

	s.login.OnMsg(&rdm.Msg{Class: rdm.ClassStatus, Domain: rdm.DomainLogin, State: rdm.StreamClosedRecover})

	if !s.loginStream.Closing {
		t.Fatalf("expected the login stream to be marked Closing")
	}
}

// TestSetPauseAllPausesStreamingRequests covers spec.md §4.6/§4.8.9.
func TestSetPauseAllPausesStreamingRequests(t *testing.T) {
	s, _ := newTestSession(t)
	svc := testService(1, rdm.DomainMarketPrice)
	rs := &requestedService{name: "DIRECT_FEED", service: svc}
	req := &ItemRequest{RequestBase: RequestBase{ID: 1, Domain: rdm.DomainMarketPrice},
		Key: rdm.MsgKey{HasName: true, Name: "IBM.N"}, Streaming: true}
	s.items.findStream(req, rs)

	s.login.SetPauseAll(true)

	if !req.Paused {
		t.Fatalf("expected the streaming request to be paused")
	}
	if req.stream.RequestsPausedCount != req.stream.RequestsStreamingCount {
		t.Fatalf("expected the stream's paused count to match its streaming count")
	}

	s.login.SetPauseAll(false)
	if req.Paused {
		t.Fatalf("expected the request to be resumed")
	}
	if req.stream.RequestsPausedCount != 0 {
		t.Fatalf("expected the paused count reset to zero")
	}
}
