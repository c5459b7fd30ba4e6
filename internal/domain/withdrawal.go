package domain

import "math/big"

// Withdrawal is an immutable ledger row for one FounderWithdrawal log.
// Corresponds to withdrawals table in PostgreSQL.
type Withdrawal struct {
	ID              string   // PRIMARY KEY, "txHash-logIndex"
	RoundAddress    string   // FK to rounds
	Founder         string   // withdrawing founder address
	PrincipalAmount *big.Int // principal portion withdrawn
	YieldAmount     *big.Int // yield portion withdrawn
	TotalAmount     *big.Int // principal + yield
	TxHash          string   // originating transaction hash
	LogIndex        uint32   // log index within the transaction
	Timestamp       int64    // block timestamp, unix seconds
	CreatedAt       int64    // record creation timestamp (unix seconds)
}
