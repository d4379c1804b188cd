package model

// TypedEvent is a decoded contract event together with its block and
// transaction context. Context fields come from the log record, never from
// the payload.
type TypedEvent struct {
	ChainID     uint64       `json:"chain_id"`
	BlockNumber uint64       `json:"block_number"`
	BlockHash   string       `json:"block_hash"`
	TxHash      string       `json:"tx_hash"`
	LogIndex    uint64       `json:"log_index"`
	Address     string       `json:"address"`
	Kind        EventKind    `json:"kind"`
	BlockTime   uint64       `json:"block_time"`
	Payload     EventPayload `json:"payload"`
	Raw         *RawLogRef   `json:"raw,omitempty"`
}

// RawLogRef keeps a minimal raw reference for traceability.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}
