package domain

import "math/big"

// Investment is an immutable ledger row for one InvestmentMade log.
// Corresponds to investments table in PostgreSQL.
type Investment struct {
	ID             string   // PRIMARY KEY, "txHash-logIndex"
	RoundAddress   string   // FK to rounds
	Investor       string   // investor address
	USDCAmount     *big.Int // amount invested, USDC base units
	TokensReceived *big.Int // equity tokens minted for this investment
	TotalRaised    *big.Int // round running total after this investment
	TxHash         string   // originating transaction hash
	LogIndex       uint32   // log index within the transaction
	Timestamp      int64    // block timestamp, unix seconds
	CreatedAt      int64    // record creation timestamp (unix seconds)
}
