package rdm

import "errors"

// Channel is the abstract transport collaborator (spec.md §1, "Transport
// I/O ... is treated as an external collaborator"). The core never creates
// threads or blocks on I/O itself (spec.md §5); it only calls Write and
// reads MaxFragmentSize during the channel-active handshake (spec.md §4.1).
type Channel interface {
	// Write submits an encoded buffer. Implementations return
	// ErrWriteCallAgain when the socket's send buffer is full (retryable,
	// spec.md §7 TransportRetryable) and ErrNoBuffers when no encode
	// buffer could be obtained.
	Write(buf []byte) error

	// MaxFragmentSize is read once when the channel becomes active
	// (spec.md §4.1, "read channel info").
	MaxFragmentSize() int

	// Multicast reports whether broadcast-sequenced delivery applies, i.e.
	// whether the reorder queue (C3) is active for non-private streams.
	Multicast() bool

	// RegisterAttrib hints the channel to route broadcast messages bearing
	// this (domain, msgKey, qos) attribute tuple to this session
	// (spec.md §4.8.1, step 3).
	RegisterAttrib(key string)
}

var (
	// ErrWriteCallAgain signals TransportRetryable: the host must flush
	// and re-invoke dispatch (spec.md §7).
	ErrWriteCallAgain = errors.New("rdm: write call again")
	// ErrNoBuffers signals TransportRetryable via BufferNoBuffers.
	ErrNoBuffers = errors.New("rdm: no buffers")
	// ErrChannelFatal signals TransportFatal: channel closed or a fatal
	// write code (spec.md §7).
	ErrChannelFatal = errors.New("rdm: channel fatal")
)

// EventFlag is a set of flags the core attaches to an upward callback event
// (spec.md §6, "Upward callback contract").
type EventFlag uint8

const (
	FlagSendClose EventFlag = 1 << iota
	FlagNotifyStatus
)

// StreamInfo accompanies an Event so the application can correlate it to
// the request it submitted (spec.md §6).
type StreamInfo struct {
	ServiceName string
	UserSpec    any
}

// Event is the payload of one MsgCallback invocation (spec.md §6).
type Event struct {
	Msg        *Msg
	StreamInfo StreamInfo
	HasSeqNum  bool
	SeqNum     uint32
	HasFTGroup bool
	FTGroupID  byte
	Flags      EventFlag
}

// MsgCallback is the upward callback contract (spec.md §6). It must be
// non-reentrant with respect to the same Session: the core never calls it
// recursively from within itself.
type MsgCallback func(ev Event)
