package domain

import (
	"fmt"
	"math/big"
)

// EventKind identifies one decoded contract log type.
type EventKind string

const (
	KindRoundCreated         EventKind = "RoundCreated"
	KindInvestmentMade       EventKind = "InvestmentMade"
	KindRoundCompleted       EventKind = "RoundCompleted"
	KindFounderWithdrawal    EventKind = "FounderWithdrawal"
	KindInvestorYieldClaimed EventKind = "InvestorYieldClaimed"
	KindYieldDistributed     EventKind = "YieldDistributed"
	KindPlatformFeeCollected EventKind = "PlatformFeeCollected"
)

// Event is one decoded contract log. The variant set is closed: the sealed
// method keeps implementations inside this package, and routing
// type-switches over the concrete types below, so adding a kind is a
// compile-visible change rather than a runtime string match.
type Event interface {
	Kind() EventKind
	// RoundAddress returns the emitting contract address (the round id).
	RoundAddress() string
	// BlockTime returns the block timestamp in unix seconds.
	BlockTime() int64
	// Meta returns the log coordinates common to every event.
	Meta() EventMeta
	sealed()
}

// EventMeta carries the fields every decoded log shares.
type EventMeta struct {
	Address        string // emitting round contract address
	BlockTimestamp int64  // unix seconds
	TxHash         string // originating transaction hash
	LogIndex       uint32 // log index within the transaction
}

func (m EventMeta) RoundAddress() string { return m.Address }
func (m EventMeta) BlockTime() int64     { return m.BlockTimestamp }
func (m EventMeta) Meta() EventMeta      { return m }
func (m EventMeta) sealed()              {}

// LedgerID returns the composite key identifying one physical log entry.
// Re-delivery of the same log yields the same id.
func (m EventMeta) LedgerID() string {
	return fmt.Sprintf("%s-%d", m.TxHash, m.LogIndex)
}

// RoundCreated announces a newly deployed fundraising round.
type RoundCreated struct {
	EventMeta
	Founder          string
	EquityToken      string
	CompanyName      string
	TargetRaise      *big.Int
	EquityPercentage int64 // basis points
}

func (*RoundCreated) Kind() EventKind { return KindRoundCreated }

// InvestmentMade records one investment into a round. TotalRaised is the
// round's authoritative running total after this investment, as reported
// by the contract.
type InvestmentMade struct {
	EventMeta
	Investor       string
	USDCAmount     *big.Int
	TokensReceived *big.Int
	TotalRaised    *big.Int
}

func (*InvestmentMade) Kind() EventKind { return KindInvestmentMade }

// RoundCompleted marks a round as successfully closed.
type RoundCompleted struct {
	EventMeta
	TotalRaised      *big.Int
	CompletionTime   int64
	CompletionReason int16
}

func (*RoundCompleted) Kind() EventKind { return KindRoundCompleted }

// FounderWithdrawal records a founder withdrawing raised funds.
type FounderWithdrawal struct {
	EventMeta
	Founder         string
	PrincipalAmount *big.Int
	YieldAmount     *big.Int
	TotalAmount     *big.Int
}

func (*FounderWithdrawal) Kind() EventKind { return KindFounderWithdrawal }

// InvestorYieldClaimed records an investor claiming accrued yield.
type InvestorYieldClaimed struct {
	EventMeta
	Investor string
	Amount   *big.Int
}

func (*InvestorYieldClaimed) Kind() EventKind { return KindInvestorYieldClaimed }

// YieldDistributed records a yield distribution across a round.
type YieldDistributed struct {
	EventMeta
	TotalYield    *big.Int
	FounderYield  *big.Int
	InvestorYield *big.Int
}

func (*YieldDistributed) Kind() EventKind { return KindYieldDistributed }

// PlatformFeeCollected is observed for completeness; it produces no state
// mutation.
type PlatformFeeCollected struct {
	EventMeta
	FeeAmount *big.Int
}

func (*PlatformFeeCollected) Kind() EventKind { return KindPlatformFeeCollected }
