package rdm

// MsgClass is the RDM message class carried orthogonally to the per-domain
// handler dispatch (spec.md §9, "typed message variants").
type MsgClass int

const (
	ClassRequest MsgClass = iota
	ClassClose
	ClassRefresh
	ClassUpdate
	ClassStatus
	ClassGeneric
	ClassPost
	ClassAck
)

// MsgKey carries the name/attrib/filter/identifier/serviceId an item or
// directory request is keyed on (spec.md §3).
type MsgKey struct {
	HasName      bool
	Name         string
	HasNameType  bool
	NameType     int
	HasServiceID bool
	ServiceID    int
	HasFilter    bool
	Filter       int
	HasIdentifier bool
	Identifier   int
	HasAttrib    bool
	Attrib       []byte
}

// Priority is a (class, count) pair merged across streaming requests on a
// shared stream (spec.md §4.8.3).
type Priority struct {
	Class int
	Count int
}

// NakCode classifies a post-ack failure (spec.md §4.4, §7).
type NakCode int

const (
	NakNone NakCode = iota
	NakNoResponse
	NakAccessDenied
	NakDeniedBySrc
	NakSymbolUnknown
)

// Msg is the decoded shape of one RDM wire message the core reads or
// writes. Not every field applies to every class/domain; unused fields are
// zero. The wire codec (external, spec.md §1) is responsible for the
// actual byte encoding of whatever subset applies.
type Msg struct {
	Class    MsgClass
	Domain   Domain
	StreamID int32

	Key MsgKey

	Streaming     bool
	Pause         bool
	Private       bool
	Qualified     bool
	HasView       bool
	View          *View
	HasWorstQos   bool
	Qos           Qos
	WorstQos      Qos
	StaticQos     bool
	HasPriority   bool
	Priority      Priority
	HasBatch      bool
	BatchNames    []string
	NoRefresh     bool

	// SymbolListBehavior carries a SymbolList domain request's
	// :SymbolListBehaviors element (0=namesOnly, 1=dataStreams,
	// 2=dataSnapshots; spec.md §4.8.8) to the core without the wire
	// layer needing to know the watchlist's own behavior enum.
	HasSymbolListBehavior bool
	SymbolListBehavior    int

	Solicited     bool
	RefreshComplete bool
	PartNum       int
	SeqNum        uint32
	HasSeqNum     bool
	Unicast       bool

	State     StreamState
	DataState DataState
	Code      StatusCode
	Text      string

	GroupID    []byte
	MergedToGroupID []byte
	HasFTGroup bool
	FTGroupID  byte

	// Post fields.
	PostID       uint32
	PostAck      bool
	PostUserInfo []byte

	// Ack fields.
	AckID        uint32
	HasNakCode   bool
	NakCode      NakCode

	// Payload: for symbol-list / generic map payloads and batch item
	// lists; shape documented at the call sites that decode it
	// (spec.md §4.8.7, §4.8.8) rather than typed here, since the wire
	// codec decides the concrete representation.
	Payload       map[string]any
	EncodedBytes  []byte
	ExtendedHeader []byte

	// Login-specific.
	Login *LoginMsg

	// Directory-specific.
	Services []Service
}

// View is a field-id or element-name projection (spec.md §4.2).
type View struct {
	Type     ViewType
	FieldIDs []int16
	Elements []string
}
