package model

// DecodeFailure records a decode failure for a log line. Failures are
// terminal for that log: it is recorded and skipped, never retried.
type DecodeFailure struct {
	ChainID     uint64 `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0"`
	Error       string `json:"error"`
}
