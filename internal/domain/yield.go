package domain

import "math/big"

// YieldClaim is an immutable ledger row for one InvestorYieldClaimed log.
// Corresponds to yield_claims table in PostgreSQL.
type YieldClaim struct {
	ID           string   // PRIMARY KEY, "txHash-logIndex"
	RoundAddress string   // FK to rounds
	Investor     string   // claiming investor address
	Amount       *big.Int // yield claimed, USDC base units
	TxHash       string   // originating transaction hash
	LogIndex     uint32   // log index within the transaction
	Timestamp    int64    // block timestamp, unix seconds
	CreatedAt    int64    // record creation timestamp (unix seconds)
}

// YieldDistribution is an immutable ledger row for one YieldDistributed log.
// Corresponds to yield_distributions table in PostgreSQL.
type YieldDistribution struct {
	ID            string   // PRIMARY KEY, "txHash-logIndex"
	RoundAddress  string   // FK to rounds
	TotalYield    *big.Int // total yield distributed
	FounderYield  *big.Int // founder share
	InvestorYield *big.Int // investor pool share
	TxHash        string   // originating transaction hash
	LogIndex      uint32   // log index within the transaction
	Timestamp     int64    // block timestamp, unix seconds
	CreatedAt     int64    // record creation timestamp (unix seconds)
}
