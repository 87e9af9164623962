// Package lifecycle orchestrates building, refreshing, and invalidating
// on-disk indexes per dataset. It exclusively owns index state
// transitions: adapters never see handles, and the storage manager only
// resolves paths.
package lifecycle

import (
	"time"
)

// Status is the lifecycle state of a dataset's index.
type Status string

const (
	// StatusMissing means no index exists for the dataset.
	StatusMissing Status = "missing"
	// StatusBuilding means a build is in flight.
	StatusBuilding Status = "building"
	// StatusReady means a complete index is published.
	StatusReady Status = "ready"
	// StatusStale means the index was explicitly invalidated.
	StatusStale Status = "stale"
	// StatusFailed means the last build failed; the error is captured
	// on the handle.
	StatusFailed Status = "failed"
)

// Handle represents one on-disk index. Handles returned from the
// manager are copies; all transitions go through the manager.
type Handle struct {
	// Dataset is the owning dataset name.
	Dataset string
	// Path is the canonical index directory.
	Path string
	// Status is the current lifecycle state.
	Status Status
	// BuiltAt is when the index was last published.
	BuiltAt time.Time
	// DocCount is the number of documents in the published index.
	DocCount int
	// ParamsHash is the digest of the build settings used.
	ParamsHash string
	// Err is the captured failure when Status is StatusFailed.
	Err error
}

// canTransitionToBuilding reports whether a fresh build may start from
// the given state. Building is excluded: a second request must join the
// in-flight build instead.
func canTransitionToBuilding(s Status) bool {
	switch s {
	case StatusMissing, StatusReady, StatusStale, StatusFailed:
		return true
	default:
		return false
	}
}
