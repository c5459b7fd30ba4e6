package domain

import "math/big"

// RoundState enumerates the lifecycle states of a fundraising round.
type RoundState int16

const (
	RoundStateFundraising RoundState = 0
	RoundStateCompleted   RoundState = 1
	RoundStateCancelled   RoundState = 2
)

// Terminal reports whether a state can never be left again.
func (s RoundState) Terminal() bool {
	return s == RoundStateCompleted || s == RoundStateCancelled
}

// Round is the mutable aggregate for one fundraising-round contract.
// Keyed by the round contract address (lowercase hex).
// Corresponds to rounds table in PostgreSQL.
type Round struct {
	Address          string     // PRIMARY KEY, round contract address
	Founder          *string    // founder address (nil until known)
	EquityToken      *string    // equity token address (nil until known)
	CompanyName      string     // company name from the creation event
	TargetRaise      *big.Int   // fundraising target, USDC base units
	EquityPercentage int64      // equity offered, basis points
	TotalRaised      *big.Int   // authoritative running total from events
	TotalWithdrawn   *big.Int   // incremented per founder withdrawal
	TokensIssued     *big.Int   // incremented per investment
	InvestorCount    int64      // incremented per investment
	State            RoundState // Fundraising | Completed | Cancelled
	CompletionTime   int64      // unix seconds, zero until completed
	CompletionReason int16      // reason code carried by the completion event
	Shell            bool       // true until the creation event is observed
	CreatedAt        int64      // record creation timestamp (unix seconds)
	UpdatedAt        int64      // last mutation timestamp (unix seconds)
}

// NewShellRound returns a minimal Round row holding facts that arrived
// before the round's creation event. Running totals start at zero so
// earlier-observed investments can accumulate into them.
func NewShellRound(address string, ts int64) *Round {
	return &Round{
		Address:        address,
		TargetRaise:    new(big.Int),
		TotalRaised:    new(big.Int),
		TotalWithdrawn: new(big.Int),
		TokensIssued:   new(big.Int),
		State:          RoundStateFundraising,
		Shell:          true,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
}
