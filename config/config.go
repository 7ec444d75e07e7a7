// Package config holds the watchlist core's construction-time options
// (spec.md §6, construct(config)). Loading these from XML/programmatic
// config/env is explicitly out of scope (spec.md §1); this struct is what
// that external loader populates before calling wtlist.New.
package config

import "time"

// Config mirrors construct(config)'s option set one field at a time.
type Config struct {
	// ItemCountHint sizes the initial capacity of the request/stream pools.
	ItemCountHint int

	// ObeyOpenWindow enables per-service openWindow admission (spec.md §4.8.6).
	ObeyOpenWindow bool

	// RequestTimeout bounds how long a pending-response (login, directory,
	// item) is awaited before the dispatcher synthesizes a timeout status.
	RequestTimeout time.Duration

	// MaxOutstandingPosts caps the post table's live record count; zero
	// means unbounded.
	MaxOutstandingPosts int

	// PostAckTimeout bounds how long a post-with-ack record waits before
	// the dispatcher synthesizes a NAK_CODE=NO_RESPONSE ack (spec.md §4.4).
	PostAckTimeout time.Duration

	// TicksPerMsec is the host scheduler's granularity hint; the core
	// itself is tick-agnostic (time.Duration throughout) but exposes this
	// for hosts that drive dispatch from a fixed-rate timer wheel.
	TicksPerMsec int

	// SingleOpen enables transparent recovery of recoverable closures
	// (login, directory, item) without surfacing Closed to the application
	// (spec.md glossary, "Single open").
	SingleOpen bool

	// AllowSuspectData, when false, escalates a ClosedRecover/Suspect
	// refresh/status to a hard Closed_Recover (spec.md §4.8.5).
	AllowSuspectData bool

	// GapRecovery enables broadcast sequence-number gap detection and the
	// associated recovery path (spec.md §4.3); disabled means gaps are
	// tolerated and the reorder buffer is drained on timer expiry instead.
	GapRecovery bool

	// GapTimeout bounds how long a stream may sit with an open gap before
	// the dispatcher acts on it (spec.md §4.3, §4.1).
	GapTimeout time.Duration

	// SupportOptimizedPauseResume gates whether a stream with
	// all-requests-paused sends PAUSE upstream at all (spec.md §4.8.9,
	// SPEC_FULL.md "Supplemented features").
	SupportOptimizedPauseResume bool

	// SupportViewRequests gates whether VIEW is ever sent upstream; when
	// false, the view aggregator still tracks views locally but streams
	// are always requested unviewed.
	SupportViewRequests bool
}

// Default returns the construction defaults the teacher's own Config uses
// the shape of (see cmn/rom.go's readMostly defaults): conservative
// timeouts, single-open and suspect-data tolerance on, gap recovery on.
func Default() Config {
	return Config{
		ItemCountHint:               64,
		ObeyOpenWindow:              true,
		RequestTimeout:              15 * time.Second,
		MaxOutstandingPosts:         0,
		PostAckTimeout:              15 * time.Second,
		TicksPerMsec:                1,
		SingleOpen:                  true,
		AllowSuspectData:            true,
		GapRecovery:                 true,
		GapTimeout:                  3 * time.Second,
		SupportOptimizedPauseResume: false,
		SupportViewRequests:         true,
	}
}

// Validate reports the first structural problem found, the way the
// teacher's Config.Validate rejects clearly-broken timeouts before the
// session is constructed.
func (c *Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return errInvalid("RequestTimeout must be positive")
	}
	if c.PostAckTimeout <= 0 {
		return errInvalid("PostAckTimeout must be positive")
	}
	if c.GapRecovery && c.GapTimeout <= 0 {
		return errInvalid("GapTimeout must be positive when GapRecovery is enabled")
	}
	if c.MaxOutstandingPosts < 0 {
		return errInvalid("MaxOutstandingPosts must not be negative")
	}
	return nil
}

type errInvalid string

func (e errInvalid) Error() string { return "invalid config: " + string(e) }
