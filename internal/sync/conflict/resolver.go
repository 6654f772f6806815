// Package conflict provides conflict resolution between local and server
// copies of the same logical record.
package conflict

import "time"

// Strategy defines how a conflict is resolved.
type Strategy string

const (
	// StrategyLocal always keeps the local copy.
	StrategyLocal Strategy = "local"
	// StrategyServer always keeps the server copy. This is the domain
	// default: remote data is the source of truth for clinical accuracy.
	StrategyServer Strategy = "server"
	// StrategyMerge keeps local only when it is newer than the server
	// copy by more than the staleness threshold.
	StrategyMerge Strategy = "merge"
)

// DefaultStaleness is the merge threshold: a local copy must lead the
// server copy by more than this to win.
const DefaultStaleness = time.Hour

// Candidate is one side of a conflict: an opaque value plus its
// modification timestamp in unix seconds.
type Candidate struct {
	Value     any
	Timestamp int64
}

// Resolver picks winners with a fixed strategy and staleness threshold.
// Resolution is pure: no side effects, callers decide when to invoke it.
type Resolver struct {
	strategy  Strategy
	staleness time.Duration
}

// NewResolver creates a Resolver. An unknown strategy falls back to
// StrategyServer; a non-positive staleness falls back to
// DefaultStaleness.
func NewResolver(strategy Strategy, staleness time.Duration) *Resolver {
	switch strategy {
	case StrategyLocal, StrategyServer, StrategyMerge:
	default:
		strategy = StrategyServer
	}
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &Resolver{strategy: strategy, staleness: staleness}
}

// Resolve returns the winning candidate.
func (r *Resolver) Resolve(local, server Candidate) Candidate {
	return Resolve(local, server, r.strategy, r.staleness)
}

// Resolve returns the winning candidate for the given strategy.
//   - local:  always local
//   - server: always server
//   - merge:  local iff local.Timestamp - server.Timestamp > staleness,
//     otherwise server
func Resolve(local, server Candidate, strategy Strategy, staleness time.Duration) Candidate {
	if staleness <= 0 {
		staleness = DefaultStaleness
	}

	switch strategy {
	case StrategyLocal:
		return local
	case StrategyMerge:
		if local.Timestamp-server.Timestamp > int64(staleness.Seconds()) {
			return local
		}
		return server
	default:
		return server
	}
}
