package wtlist

import (
	"github.com/golang-jwt/jwt/v4"

	"github.com/Refinitiv/Real-Time-SDK-sub030/rdm"
)

// LoginAction is the provider-response classification of spec.md §4.6.
type LoginAction int

const (
	LoginActionNone LoginAction = iota
	LoginActionRecover
	LoginActionClose
)

// LoginEngine is C6: the login state machine.
type LoginEngine struct {
	s *Session
}

func newLoginEngine(s *Session) *LoginEngine { return &LoginEngine{s: s} }

// Submit sends (or resends) the login request, starting its pending-
// response deadline (spec.md §4.6).
func (le *LoginEngine) Submit(req *LoginRequest) {
	st := le.s.loginStream
	st.Request = req
	st.State = LoginPending
	st.PendingRequest = true
	st.startPendingResponse(le.s.now, le.s.cfg.RequestTimeout)

	if req.ExtendedAuthToken != "" {
		if _, _, err := new(jwt.Parser).ParseUnverified(req.ExtendedAuthToken, jwt.MapClaims{}); err != nil {
			le.s.emitLoginStatus(req, rdm.StreamClosed, rdm.DataSuspect, rdm.CodeUsageError, "Extended auth token is malformed")
			req.State = StateClosed
			return
		}
	}
}

// OnMsg classifies the provider's login response and applies
// None/Recover/Close (spec.md §4.6).
func (le *LoginEngine) OnMsg(m *rdm.Msg) {
	st := le.s.loginStream
	req := st.Request

	action := le.classify(m)

	switch action {
	case LoginActionNone:
		le.s.emitLoginMsg(req, m)
		if m.Class == rdm.ClassRefresh && (m.State == rdm.StreamOpen) && st.State != LoginEstablished {
			st.State = LoginEstablished
			st.clearPendingResponse()
			le.s.onLoggedIn()
		}

	case LoginActionRecover:
		le.s.emitLoginMsg(req, m)
		le.s.recoverAllItems()
		le.Submit(req)

	case LoginActionClose:
		le.s.emitLoginMsg(req, m)
		le.s.closeLoginAndDirectory("Login stream was closed")
	}
}

func (le *LoginEngine) classify(m *rdm.Msg) LoginAction {
	if m.Class == rdm.ClassStatus || m.Class == rdm.ClassRefresh {
		switch m.State {
		case rdm.StreamClosedRecover:
			if le.s.cfg.SingleOpen {
				return LoginActionRecover
			}
			return LoginActionClose
		case rdm.StreamClosed, rdm.StreamClosedRedirected:
			return LoginActionClose
		}
	}
	return LoginActionNone
}

// SubmitPost handles an off-stream (login-stream) post (spec.md §4.6):
// requires Established.
func (le *LoginEngine) SubmitPost(req *LoginRequest, m *rdm.Msg) error {
	st := le.s.loginStream
	if st.State != LoginEstablished {
		return errInvalidArgument("off-stream post requires an established login")
	}
	if m.PostAck {
		expire := le.s.now.Add(le.s.cfg.PostAckTimeout)
		if _, err := le.s.posts.Submit(st.ID, m, le.s.now, expire, nil, req); err != nil {
			return err
		}
	}
	return le.s.channel.Write(nil)
}

// SetPauseAll implements spec.md §4.6: SetPauseAll(true), for a login
// reissued with PAUSE_ALL, marks every non-admin streaming item stream (and
// its streaming requests) paused; SetPauseAll(false) resumes them.
func (le *LoginEngine) SetPauseAll(paused bool) {
	for _, st := range le.s.items.byID {
		if st.Domain == rdm.DomainLogin || st.Domain == rdm.DomainDirectory || st.Domain == rdm.DomainDictionary {
			continue
		}
		changed := false
		for _, r := range le.s.items.allRequests(st) {
			if r.Streaming && r.Paused != paused {
				r.Paused = paused
				changed = true
			}
		}
		if paused {
			st.RequestsPausedCount = st.RequestsStreamingCount
		} else {
			st.RequestsPausedCount = 0
		}
		if changed {
			le.s.items.flagForSend(st)
		}
	}
}

// Close implements the consumer-side action of spec.md §4.6's "Consumer
// action on a login close": drop all requested services, item streams,
// and post records, but keep the login request for reissue.
func (le *LoginEngine) Close() {
	le.s.directory.byName = make(map[string]*requestedService)
	le.s.directory.byID = make(map[ServiceID]*requestedService)
	le.s.directory.allServices = nil
	le.s.items.byID = make(map[StreamID]*ItemStream)
	le.s.items.byAttrib = make(map[string]*ItemStream)
	le.s.posts = newPostTable(le.s.cfg.MaxOutstandingPosts)
	le.s.loginStream.Closing = true
}
