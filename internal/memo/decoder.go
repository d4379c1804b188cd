package memo

import (
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/593496637/onchain-data-system/internal/model"
)

// Decoder decodes DataWritten, TransferExecuted and MemoizedSwap logs into
// typed events. The event set is fixed at build time; any other topic0 is a
// DecodeError. Decoding is pure: no I/O, deterministic for identical input.
type Decoder struct {
	abi         abi.ABI
	topicToKind map[string]model.EventKind
	topics      []common.Hash
}

// NewDecoder builds a decoder over the memo event ABI.
func NewDecoder() (*Decoder, error) {
	parsed, err := MemoABI()
	if err != nil {
		return nil, err
	}

	topicToKind := map[string]model.EventKind{
		strings.ToLower(parsed.Events["DataWritten"].ID.Hex()):      model.KindDataWritten,
		strings.ToLower(parsed.Events["TransferExecuted"].ID.Hex()): model.KindTransferExecuted,
		strings.ToLower(parsed.Events["MemoizedSwap"].ID.Hex()):     model.KindMemoizedSwap,
	}

	return &Decoder{
		abi:         parsed,
		topicToKind: topicToKind,
		topics: []common.Hash{
			parsed.Events["DataWritten"].ID,
			parsed.Events["TransferExecuted"].ID,
			parsed.Events["MemoizedSwap"].ID,
		},
	}, nil
}

// Topics returns the topic0 hashes of the known events, for log filtering.
func (d *Decoder) Topics() []common.Hash {
	out := make([]common.Hash, len(d.topics))
	copy(out, d.topics)
	return out
}

// CanDecode checks if the topic0 is a known event signature.
func (d *Decoder) CanDecode(topic0 string) bool {
	_, ok := d.KindFor(topic0)
	return ok
}

// KindFor maps a topic0 to its event kind. Used by retraction to recompute
// entity identity without a full decode.
func (d *Decoder) KindFor(topic0 string) (model.EventKind, bool) {
	if topic0 == "" {
		return "", false
	}
	kind, ok := d.topicToKind[strings.ToLower(topic0)]
	return kind, ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *Decoder) Decode(log model.LogRecord) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, decodeErrf("", "missing topics", nil)
	}
	topic0 := log.Topics[0]
	kind, ok := d.KindFor(topic0)
	if !ok {
		return nil, decodeErrf(topic0, "unknown event signature", nil)
	}

	var (
		payload model.EventPayload
		err     error
	)
	switch kind {
	case model.KindDataWritten:
		payload, err = d.decodeDataWritten(log)
	case model.KindTransferExecuted:
		payload, err = d.decodeTransferExecuted(log)
	case model.KindMemoizedSwap:
		payload, err = d.decodeMemoizedSwap(log)
	default:
		return nil, decodeErrf(topic0, fmt.Sprintf("unhandled event kind %s", kind), nil)
	}
	if err != nil {
		return nil, err
	}

	return buildTypedEvent(log, kind, payload), nil
}

func buildTypedEvent(log model.LogRecord, kind model.EventKind, payload model.EventPayload) *model.TypedEvent {
	raw := &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data}
	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		Kind:        kind,
		BlockTime:   log.Timestamp,
		Payload:     payload,
		Raw:         raw,
	}
}

func (d *Decoder) decodeDataWritten(log model.LogRecord) (model.EventPayload, error) {
	event := d.abi.Events["DataWritten"]
	topic0 := log.Topics[0]

	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, decodeErrf(topic0, "topics", err)
	}

	var indexed struct {
		EventId *big.Int
		From    common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, decodeErrf(topic0, "parse topics", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, decodeErrf(topic0, "data", err)
	}
	if len(values) != 2 {
		return nil, decodeErrf(topic0, fmt.Sprintf("unexpected value count: %d", len(values)), nil)
	}

	message, err := asMessage(values[0])
	if err != nil {
		return nil, decodeErrf(topic0, "message", err)
	}
	timestamp, err := asUint64(values[1])
	if err != nil {
		return nil, decodeErrf(topic0, "timestamp", err)
	}
	eventID, err := uint64FromBig(indexed.EventId)
	if err != nil {
		return nil, decodeErrf(topic0, "eventId", err)
	}

	return model.DataWrittenEvent{
		EventID:   eventID,
		From:      indexed.From.Hex(),
		Message:   message,
		Timestamp: timestamp,
	}, nil
}

func (d *Decoder) decodeTransferExecuted(log model.LogRecord) (model.EventPayload, error) {
	event := d.abi.Events["TransferExecuted"]
	topic0 := log.Topics[0]

	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, decodeErrf(topic0, "topics", err)
	}

	var indexed struct {
		TransferId *big.Int
		From       common.Address
		To         common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, decodeErrf(topic0, "parse topics", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, decodeErrf(topic0, "data", err)
	}
	if len(values) != 3 {
		return nil, decodeErrf(topic0, fmt.Sprintf("unexpected value count: %d", len(values)), nil)
	}

	amount, err := asBigInt(values[0])
	if err != nil {
		return nil, decodeErrf(topic0, "amount", err)
	}
	message, err := asMessage(values[1])
	if err != nil {
		return nil, decodeErrf(topic0, "message", err)
	}
	timestamp, err := asUint64(values[2])
	if err != nil {
		return nil, decodeErrf(topic0, "timestamp", err)
	}
	transferID, err := uint64FromBig(indexed.TransferId)
	if err != nil {
		return nil, decodeErrf(topic0, "transferId", err)
	}

	return model.TransferExecutedEvent{
		TransferID: transferID,
		From:       indexed.From.Hex(),
		To:         indexed.To.Hex(),
		Amount:     amount.String(),
		Message:    message,
		Timestamp:  timestamp,
	}, nil
}

func (d *Decoder) decodeMemoizedSwap(log model.LogRecord) (model.EventPayload, error) {
	event := d.abi.Events["MemoizedSwap"]
	topic0 := log.Topics[0]

	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, decodeErrf(topic0, "topics", err)
	}

	var indexed struct {
		From      common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, decodeErrf(topic0, "parse topics", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, decodeErrf(topic0, "data", err)
	}
	if len(values) != 3 {
		return nil, decodeErrf(topic0, fmt.Sprintf("unexpected value count: %d", len(values)), nil)
	}

	message, err := asMessage(values[0])
	if err != nil {
		return nil, decodeErrf(topic0, "message", err)
	}
	amountIn, err := asBigInt(values[1])
	if err != nil {
		return nil, decodeErrf(topic0, "amountIn", err)
	}
	amountOut, err := asBigInt(values[2])
	if err != nil {
		return nil, decodeErrf(topic0, "amountOut", err)
	}

	return model.MemoizedSwapEvent{
		From:      indexed.From.Hex(),
		Recipient: indexed.Recipient.Hex(),
		Message:   message,
		AmountIn:  amountIn.String(),
		AmountOut: amountOut.String(),
	}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	n, ok := value.(*big.Int)
	if !ok || n == nil {
		return nil, fmt.Errorf("expected big integer, got %T", value)
	}
	return n, nil
}

func asUint64(value interface{}) (uint64, error) {
	n, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	return uint64FromBig(n)
}

func uint64FromBig(n *big.Int) (uint64, error) {
	if n == nil {
		return 0, fmt.Errorf("nil integer")
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("out of uint64 range: %s", n)
	}
	return n.Uint64(), nil
}

func asMessage(value interface{}) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", value)
	}
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("malformed utf-8")
	}
	return s, nil
}
