package domain

import "math/big"

// PlatformStatsID is the fixed id of the global stats singleton.
const PlatformStatsID = "global"

// PlatformStats is the platform-wide aggregate across all rounds.
// A single row with id "global", seeded at bootstrap and only ever updated.
type PlatformStats struct {
	ID          string   // always PlatformStatsID
	TotalRaised *big.Int // running sum across all rounds
	UpdatedAt   int64    // last mutation timestamp (unix seconds)
}
