package wtlist

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/Refinitiv/Real-Time-SDK-sub030/config"
	"github.com/Refinitiv/Real-Time-SDK-sub030/rdm"
)

func newScenarioSession(cfg config.Config) (*Session, *[]rdm.Event) {
	events := &[]rdm.Event{}
	s, err := New(cfg, func(ev rdm.Event) { *events = append(*events, ev) })
	Expect(err).NotTo(HaveOccurred())
	s.channel = &fakeChannel{multicast: true}
	return s, events
}

// Describe(S1) covers spec.md's S1 — Login recovery (singleOpen=true): a
// ClosedRecover login status clears the service cache, recovers every item
// stream, and resubmits the login transparently.
var _ = Describe("S1 login recovery", func() {
	var (
		s      *Session
		events *[]rdm.Event
		item   *ItemRequest
	)

	BeforeEach(func() {
		cfg := config.Default()
		cfg.SingleOpen = true
		s, events = newScenarioSession(cfg)

		req := &LoginRequest{RequestBase: RequestBase{ID: 1, Domain: rdm.DomainLogin}, Username: "alice"}
		s.loginStream.Request = req
		s.login.Submit(req)

		svc := testService(1, rdm.DomainMarketPrice)
		rs := &requestedService{name: "DIRECT_FEED", service: svc}
		item = &ItemRequest{RequestBase: RequestBase{ID: 2, Domain: rdm.DomainMarketPrice},
			Key: rdm.MsgKey{HasName: true, Name: "IBM.N"}}
		s.items.findStream(item, rs)
	})

	It("fires the solicited refresh to the application", func() {
		s.login.OnMsg(&rdm.Msg{Class: rdm.ClassRefresh, Domain: rdm.DomainLogin, State: rdm.StreamOpen, Solicited: true})
		Expect(s.loginStream.State).To(Equal(LoginEstablished))
		Expect(*events).To(HaveLen(1))
	})

	It("clears the service cache, recovers every item, and resends login on ClosedRecover", func() {
		s.login.OnMsg(&rdm.Msg{Class: rdm.ClassStatus, Domain: rdm.DomainLogin, State: rdm.StreamClosedRecover})

		Expect(s.items.byID).To(BeEmpty())
		Expect(item.State).To(Equal(StateRecovering))
		Expect(s.loginStream.hasPendingResponse).To(BeTrue())
		Expect(len(*events)).To(BeNumerically(">=", 2))
	})
})

// Describe(S2) covers spec.md's S2 — Service-down recovery: two item
// requests sharing a service see their streams recovered when the
// directory reports the service down.
var _ = Describe("S2 service-down recovery", func() {
	It("fans ClosedRecover/Suspect to both streams and requeues them as recovering", func() {
		cfg := config.Default()
		cfg.SingleOpen = true
		s, _ := newScenarioSession(cfg)

		svc := testService(1, rdm.DomainMarketPrice)
		rs := &requestedService{name: "DIRECT_FEED", id: 1, hasID: true, service: svc}
		s.directory.byID[1] = rs
		s.services.Apply(*svc)

		ibm := &ItemRequest{RequestBase: RequestBase{ID: 1, Domain: rdm.DomainMarketPrice}, Key: rdm.MsgKey{HasName: true, Name: "IBM.N"}}
		goog := &ItemRequest{RequestBase: RequestBase{ID: 2, Domain: rdm.DomainMarketPrice}, Key: rdm.MsgKey{HasName: true, Name: "GOOG.O"}}
		s.items.findStream(ibm, rs)
		s.items.findStream(goog, rs)
		Expect(s.items.byID).To(HaveLen(2))

		s.directory.OnRefresh([]rdm.Service{{
			ID: 1, Name: "DIRECT_FEED",
			State: rdm.StateFilter{ServiceState: 0, AcceptingRequests: false, HasStatus: true,
				State: rdm.StreamClosedRecover, DataState: rdm.DataSuspect, Text: "Service for this item was lost"},
			StateFlags: rdm.FilterFlags(1),
		}})

		Expect(s.items.byID).To(BeEmpty())
		Expect(ibm.State).To(Equal(StateRecovering))
		Expect(goog.State).To(Equal(StateRecovering))
	})
})

// Describe(S5) covers spec.md's S5 — Gap detection with gapRecovery=true:
// an out-of-order broadcast sequence sets HAS_BC_SEQ_GAP and buffers the
// later message; on expiry the stream closes as GapDetected and recovers.
var _ = Describe("S5 gap detection", func() {
	It("buffers the out-of-sequence update, then closes GapDetected on expiry", func() {
		cfg := config.Default()
		cfg.GapTimeout = 2 * time.Second
		s, _ := newScenarioSession(cfg)
		now := time.Now()
		s.now = now

		st := newItemStream(100, rdm.DomainMarketPrice, rdm.MsgKey{HasName: true, Name: "IBM.N"}, rdm.Qos{}, 1)
		s.items.byID[st.ID] = st

		send := func(seq uint32) {
			s.ReadMsg(&rdm.Msg{Domain: rdm.DomainMarketPrice, StreamID: int32(st.ID), Class: rdm.ClassUpdate, HasSeqNum: true, SeqNum: seq})
		}
		send(1)
		send(2)
		send(4)

		Expect(st.has(FlagHasBCSeqGap)).To(BeTrue())
		_, gapped := s.gapStreams[st.ID]
		Expect(gapped).To(BeTrue())
		Expect(st.Reorder.gapExpireTime).To(Equal(now.Add(cfg.GapTimeout)))

		s.ProcessTimer(now.Add(3 * time.Second))

		_, stillOpen := s.items.byID[st.ID]
		Expect(stillOpen).To(BeFalse())
	})
})

// Describe(S6) covers spec.md's S6 — FT-group timeout: two streams share
// FT-group id=7; with no ping before the deadline both recover and the
// slot is freed.
var _ = Describe("S6 FT-group timeout", func() {
	It("recovers every member stream and frees the FT-group slot", func() {
		cfg := config.Default()
		s, _ := newScenarioSession(cfg)
		now := time.Now()
		s.now = now

		svc := testService(1, rdm.DomainMarketPrice)
		rs := &requestedService{name: "DIRECT_FEED", service: svc}
		r1 := &ItemRequest{RequestBase: RequestBase{ID: 1, Domain: rdm.DomainMarketPrice}, Key: rdm.MsgKey{HasName: true, Name: "IBM.N"}}
		r2 := &ItemRequest{RequestBase: RequestBase{ID: 2, Domain: rdm.DomainMarketPrice}, Key: rdm.MsgKey{HasName: true, Name: "GOOG.O"}, Private: true}
		s.items.findStream(r1, rs)
		s.items.findStream(r2, rs)

		s.groups.Ping(7, now, cfg.RequestTimeout, r1.stream)
		s.groups.Ping(7, now, cfg.RequestTimeout, r2.stream)

		s.ProcessTimer(now.Add(cfg.RequestTimeout + time.Second))

		Expect(s.items.byID).To(BeEmpty())
		if _, ok := s.groups.NextFTExpiry(); ok {
			Fail("expected the FT-group slot to be freed")
		}
	})
})

// Describe(S7) covers spec.md's S7 — Post-ack timeout: an unacked post
// expires and synthesizes a NAK_CODE=NO_RESPONSE ack to the application.
var _ = Describe("S7 post-ack timeout", func() {
	It("synthesizes a timed-out ack and removes the post record", func() {
		cfg := config.Default()
		cfg.PostAckTimeout = 2 * time.Second
		s, events := newScenarioSession(cfg)
		now := time.Now()
		s.now = now

		svc := testService(1, rdm.DomainMarketPrice)
		rs := &requestedService{name: "DIRECT_FEED", service: svc}
		req := &ItemRequest{RequestBase: RequestBase{ID: 1, Domain: rdm.DomainMarketPrice}, Key: rdm.MsgKey{HasName: true, Name: "IBM.N"}}
		s.items.findStream(req, rs)
		s.itemReqByID[req.ID] = req

		Expect(s.submitPost(&rdm.Msg{Class: rdm.ClassPost, StreamID: int32(req.ID), PostID: 42, HasSeqNum: true, SeqNum: 7, PostAck: true})).To(Succeed())
		Expect(s.posts.len()).To(Equal(1))

		s.ProcessTimer(now.Add(3 * time.Second))

		Expect(s.posts.len()).To(Equal(0))

		var ack *rdm.Msg
		for _, ev := range *events {
			if ev.Msg.Class == rdm.ClassAck {
				ack = ev.Msg
			}
		}
		Expect(ack).NotTo(BeNil())
		Expect(ack.AckID).To(Equal(uint32(42)))
		Expect(ack.HasNakCode).To(BeTrue())
		Expect(ack.NakCode).To(Equal(rdm.NakNoResponse))
		Expect(ack.Text).To(Equal("Acknowledgement timed out."))
	})
})
