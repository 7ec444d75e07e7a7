package wtlist

import "github.com/Refinitiv/Real-Time-SDK-sub030/rdm"

// RequestState is the explicit state of a request, replacing the source's
// intrusive back-pointer-to-queue with an enum plus side index (spec.md §9,
// "intrusive linked-list membership as request state").
type RequestState int

const (
	StateNew RequestState = iota
	StateRecovering
	StatePendingRefresh
	StateOpen
	StateClosed
)

func (s RequestState) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateRecovering:
		return "Recovering"
	case StatePendingRefresh:
		return "PendingRefresh"
	case StateOpen:
		return "Open"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// RequestBase is shared by every request kind (spec.md §3).
type RequestBase struct {
	ID       RequestID
	Domain   rdm.Domain
	UserSpec any
	State    RequestState
	OpenPosts []*PostRecord
}

// LoginRequest (spec.md §3).
type LoginRequest struct {
	RequestBase
	Username          string
	Password          string
	ApplicationID     string
	Position          string
	Role              int
	Instance          string
	ExtendedAuthToken string
	PauseAllPending   bool

	Stream *LoginStream
}

// DirectoryRequestScope selects which services a DirectoryRequest targets.
type DirectoryRequestScope int

const (
	ScopeAllServices DirectoryRequestScope = iota
	ScopeByName
	ScopeByID
)

// DirectoryLifecycle is a DirectoryRequest's own lifecycle, independent of
// RequestState (spec.md §3).
type DirectoryLifecycle int

const (
	DirPendingRefresh DirectoryLifecycle = iota
	DirOk
)

// DirectoryRequest (spec.md §3).
type DirectoryRequest struct {
	RequestBase
	Filter    rdm.FilterFlags
	Scope     DirectoryRequestScope
	ServiceID ServiceID
	ServiceName string
	Streaming bool
	Lifecycle DirectoryLifecycle

	requestedService *requestedService
}

// ItemRequest (spec.md §3).
type ItemRequest struct {
	RequestBase
	Key            rdm.MsgKey
	Qos            rdm.Qos
	WorstQos       rdm.Qos
	StaticQos      bool
	Priority       rdm.Priority
	Streaming      bool
	View           *rdm.View
	Private        bool
	Qualified      bool
	Batch          bool
	BatchAck       bool // this is the acknowledgement-only batch stub (spec.md §4.8.7)
	Refreshed      bool
	Paused         bool
	EncodedPayload []byte
	ExtendedHeader []byte

	// ProviderDriven marks a request synthesized from a symbol-list
	// data-stream expansion rather than submitted by the application
	// (spec.md §4.8.8).
	ProviderDriven bool

	// IsSymbolList and SymbolListBehavior mirror SymbolListRequest for a
	// DomainSymbolList submission, carried directly on ItemRequest since
	// that is the shape the engine's stream queues actually track.
	IsSymbolList       bool
	SymbolListBehavior SymbolListBehavior

	rs     *requestedService
	stream *ItemStream
}

// SymbolListBehavior (spec.md §3, SymbolListRequest).
type SymbolListBehavior int

const (
	SymbolListNamesOnly SymbolListBehavior = iota
	SymbolListDataStreams
	SymbolListDataSnapshots
)

// SymbolListRequest (spec.md §3).
type SymbolListRequest struct {
	ItemRequest
	Behavior SymbolListBehavior
}
