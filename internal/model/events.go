package model

// EventKind names a known contract event. The set is closed: the decoder
// dispatches on it exhaustively and unknown kinds never reach projection.
type EventKind string

const (
	KindDataWritten      EventKind = "DataWritten"
	KindTransferExecuted EventKind = "TransferExecuted"
	KindMemoizedSwap     EventKind = "MemoizedSwap"
)

// EventPayload is the closed variant type over decoded event payloads.
// Exactly the three event structs below implement it.
type EventPayload interface {
	Kind() EventKind
}

// DataWrittenEvent is the decoded DataWritten payload.
type DataWrittenEvent struct {
	EventID   uint64 `json:"event_id"`
	From      string `json:"from"`
	Message   string `json:"message"`
	Timestamp uint64 `json:"timestamp"`
}

func (DataWrittenEvent) Kind() EventKind { return KindDataWritten }

// TransferExecutedEvent is the decoded TransferExecuted payload.
type TransferExecutedEvent struct {
	TransferID uint64 `json:"transfer_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Amount     string `json:"amount"`
	Message    string `json:"message"`
	Timestamp  uint64 `json:"timestamp"`
}

func (TransferExecutedEvent) Kind() EventKind { return KindTransferExecuted }

// MemoizedSwapEvent is the decoded MemoizedSwap payload. It carries no
// timestamp parameter; the block timestamp is the only time source.
type MemoizedSwapEvent struct {
	From      string `json:"from"`
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}

func (MemoizedSwapEvent) Kind() EventKind { return KindMemoizedSwap }
