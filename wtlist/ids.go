// Package wtlist implements the client-side streaming market-data
// watchlist core: a single-threaded, cooperatively-dispatched engine
// multiplexing application item requests onto shared provider streams,
// driving the login/directory/item protocol state machines, sequenced
// delivery, post-ack timeouts, and view aggregation (SPEC_FULL.md).
//
// The package never creates goroutines and never performs blocking I/O;
// all work happens inside SubmitMsg/SubmitBuffer, ReadMsg, or
// Dispatch/ProcessTimer, matching spec.md §5's cooperative scheduling
// model.
package wtlist

// StreamID is the upstream stream id space. Item streams take positive ids
// that the core allocates (Session.nextRequestStreamID); the login stream
// uses the id the application submitted. Negative ids come from
// providerIDPool, which ExpandSymbolList uses for the ids of
// provider-driven requests (symbol-list data-streams, spec.md §4.8.8).
type StreamID int32

// RequestID is the application-chosen stream id of an item/login/directory
// request, i.e. the key the application used when it called SubmitMsg.
// Kept as a distinct type from StreamID even though both are backed by the
// same int32 domain, so a reviewer can tell at the type level whether a
// value names "what the application asked for" or "what the engine is
// sending upstream" (spec.md §9, arena-index design note).
type RequestID int32

// ServiceID identifies a directory service; spec.md §3 bounds it to
// 2^16-1.
type ServiceID int

// GroupID is an opaque item-group key (service, groupId); FT-group ids are
// single bytes and are addressed directly as byte, not through this type.
type GroupID string

const minProviderStreamID StreamID = -1

// providerIDPool hands out monotonically-decreasing negative ids for
// provider-driven requests (spec.md §3, invariant 8; §4.8.8).
type providerIDPool struct {
	next StreamID
}

func newProviderIDPool() *providerIDPool { return &providerIDPool{next: minProviderStreamID} }

func (p *providerIDPool) Take() StreamID {
	id := p.next
	p.next--
	return id
}
