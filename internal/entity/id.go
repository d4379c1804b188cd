package entity

import (
	"strconv"
	"strings"
)

// LogID derives the entity id for a single log entry. The id depends only on
// the log's position (transaction hash and log index), never on event
// content, so reprocessing the same log always lands on the same key.
func LogID(txHash string, logIndex uint64) string {
	return strings.ToLower(txHash) + "-" + strconv.FormatUint(logIndex, 10)
}

// TxID derives the entity id for swap records, which are keyed by the
// transaction hash alone. A transaction is assumed to contain at most one
// MemoizedSwap event; a transaction batching two swaps collides on this id
// and the later log overwrites the earlier one.
func TxID(txHash string) string {
	return strings.ToLower(txHash)
}
