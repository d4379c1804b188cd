package model

import "fmt"

// EntityType names one of the projected entity tables.
type EntityType string

const (
	TypeDataRecord     EntityType = "data_record"
	TypeTransferRecord EntityType = "transfer_record"
	TypeSwapRecord     EntityType = "swap_record"
)

// ParseEntityType converts a string into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	switch EntityType(s) {
	case TypeDataRecord, TypeTransferRecord, TypeSwapRecord:
		return EntityType(s), nil
	default:
		return "", fmt.Errorf("unknown entity type: %s", s)
	}
}

// Entity is a projected record as seen by the store and query layers.
// Implementations are immutable values; a stored entity is never mutated,
// only overwritten by an upsert with the same id or removed by a retract.
type Entity interface {
	EntityID() string
	Type() EntityType
	SenderAddress() string
	// RecipientAddress reports the recipient and whether the entity type
	// has one at all (data records do not).
	RecipientAddress() (string, bool)
	MessageText() string
	OccurredAtUnix() uint64
	Provenance() (blockNumber uint64, txHash string, logIndex uint64)
}

// DataRecord is the projection of a DataWritten event.
type DataRecord struct {
	ID             string `json:"id"`
	SequenceNumber uint64 `json:"sequence_number"`
	Sender         string `json:"sender"`
	Message        string `json:"message"`
	OccurredAt     uint64 `json:"occurred_at"`
	BlockNumber    uint64 `json:"block_number"`
	TxHash         string `json:"tx_hash"`
	LogIndex       uint64 `json:"log_index"`
}

func (r DataRecord) EntityID() string                 { return r.ID }
func (r DataRecord) Type() EntityType                 { return TypeDataRecord }
func (r DataRecord) SenderAddress() string            { return r.Sender }
func (r DataRecord) RecipientAddress() (string, bool) { return "", false }
func (r DataRecord) MessageText() string              { return r.Message }
func (r DataRecord) OccurredAtUnix() uint64           { return r.OccurredAt }
func (r DataRecord) Provenance() (uint64, string, uint64) {
	return r.BlockNumber, r.TxHash, r.LogIndex
}

// TransferRecord is the projection of a TransferExecuted event. Amount is a
// decimal string in the native currency's smallest unit.
type TransferRecord struct {
	ID          string `json:"id"`
	TransferID  uint64 `json:"transfer_id"`
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	Amount      string `json:"amount"`
	Message     string `json:"message"`
	OccurredAt  uint64 `json:"occurred_at"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
}

func (r TransferRecord) EntityID() string                 { return r.ID }
func (r TransferRecord) Type() EntityType                 { return TypeTransferRecord }
func (r TransferRecord) SenderAddress() string            { return r.Sender }
func (r TransferRecord) RecipientAddress() (string, bool) { return r.Recipient, true }
func (r TransferRecord) MessageText() string              { return r.Message }
func (r TransferRecord) OccurredAtUnix() uint64           { return r.OccurredAt }
func (r TransferRecord) Provenance() (uint64, string, uint64) {
	return r.BlockNumber, r.TxHash, r.LogIndex
}

// SwapRecord is the projection of a MemoizedSwap event. Its id is derived
// from the transaction hash alone: at most one swap record per transaction.
type SwapRecord struct {
	ID          string `json:"id"`
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	Message     string `json:"message"`
	AmountIn    string `json:"amount_in"`
	AmountOut   string `json:"amount_out"`
	OccurredAt  uint64 `json:"occurred_at"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
}

func (r SwapRecord) EntityID() string                 { return r.ID }
func (r SwapRecord) Type() EntityType                 { return TypeSwapRecord }
func (r SwapRecord) SenderAddress() string            { return r.Sender }
func (r SwapRecord) RecipientAddress() (string, bool) { return r.Recipient, true }
func (r SwapRecord) MessageText() string              { return r.Message }
func (r SwapRecord) OccurredAtUnix() uint64           { return r.OccurredAt }
func (r SwapRecord) Provenance() (uint64, string, uint64) {
	return r.BlockNumber, r.TxHash, r.LogIndex
}
