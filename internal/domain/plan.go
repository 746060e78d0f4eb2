package domain

import "fmt"

// SkipReason explains why an image was excluded from, or kept in, the plan.
type SkipReason string

const (
	ReasonNone     SkipReason = ""
	ReasonUntagged SkipReason = "untagged"
	ReasonStale    SkipReason = "stale"
	ReasonUnscanned SkipReason = "unscanned"
	ReasonInSync   SkipReason = "already-in-sync"
)

// SyncPolicy holds the recognized selection options.
type SyncPolicy struct {
	// MaxAgeDays excludes images strictly older, in calendar days. Must be >= 1.
	MaxAgeDays int
	// IgnoreUntagged admits images without tags instead of skipping them.
	IgnoreUntagged bool
	// RequireScan excludes images without a completed scan.
	RequireScan bool
}

// Validate checks the policy against its documented bounds.
func (p SyncPolicy) Validate() error {
	if p.MaxAgeDays < 1 {
		return fmt.Errorf("%w: --days must be 1 or more", ErrInvalidArgument)
	}
	return nil
}

// SyncCandidate is an image selected by filtering, annotated with its
// computed age and the replication decision.
type SyncCandidate struct {
	Image  Image
	Age    int
	Copy   bool
	Reason SkipReason
}

// RunPlan is the full outcome of the selection stage: the candidates that
// must be copied, in source listing order, and the destination repositories
// that must be created first, in order of first encounter.
type RunPlan struct {
	Candidates          []SyncCandidate
	MissingRepositories []string
}

// Credential is a short-lived registry login secret.
type Credential struct {
	Username string
	Password string
}

// RunReport accumulates per-phase accounting for the final status line.
type RunReport struct {
	RepositoriesPlanned int
	RepositoriesCreated int
	LoginsSucceeded     int
	ImagesPlanned       int
	ImagesPushed        int
}
