package domain

// ArchivedEvent is the flat archive row for one decoded log, stored in
// ClickHouse so streams can be re-driven through the engine after restarts
// or reorg re-deliveries. Payload holds the kind-specific fields as JSON.
type ArchivedEvent struct {
	Kind           string // EventKind string
	Address        string // emitting round contract address
	TxHash         string
	LogIndex       uint32
	BlockTimestamp int64  // unix seconds
	Payload        []byte // kind-specific fields, JSON encoded
	ReceivedAt     int64  // ingestion timestamp, unix seconds
}
