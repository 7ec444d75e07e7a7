package rdm

// LoginMsg carries the login-domain attributes of a Msg (spec.md §3,
// LoginRequest).
type LoginMsg struct {
	Username         string
	Password         string
	ApplicationID    string
	Position         string
	Role             int
	Instance         string
	ExtendedAuthToken string

	PauseAll  bool
	ResumeAll bool

	// SupportsOptimizedPauseResume is set on the provider's login refresh
	// (SPEC_FULL.md "Supplemented features").
	SupportsOptimizedPauseResume bool

	SingleOpen bool
	AllowSuspectData bool
}
