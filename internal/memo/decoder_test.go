package memo

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/593496637/onchain-data-system/internal/model"
)

func buildLogRecord(topic0 common.Hash, data []byte, indexed []common.Hash) model.LogRecord {
	topics := []string{topic0.Hex()}
	for _, hash := range indexed {
		topics = append(topics, hash.Hex())
	}
	return model.LogRecord{
		ChainID:     56,
		BlockNumber: 36000000,
		BlockHash:   "0x4444444444444444444444444444444444444444444444444444444444444444",
		TxHash:      "0x5555555555555555555555555555555555555555555555555555555555555555",
		LogIndex:    2,
		Address:     "0x1111111111111111111111111111111111111111",
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   1700000000,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func topicFromUint(n *big.Int) common.Hash {
	return common.BigToHash(n)
}

func TestDecodeDataWritten(t *testing.T) {
	parsed, err := MemoABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	from := common.HexToAddress("0x2222222222222222222222222222222222222222")
	data, err := parsed.Events["DataWritten"].Inputs.NonIndexed().Pack("hello", big.NewInt(1000))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	logRecord := buildLogRecord(parsed.Events["DataWritten"].ID, data, []common.Hash{
		topicFromUint(big.NewInt(7)),
		topicFromAddress(from),
	})

	event, err := decoder.Decode(logRecord)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Kind != model.KindDataWritten {
		t.Fatalf("kind mismatch: %s", event.Kind)
	}
	if event.BlockTime != 1700000000 {
		t.Fatalf("block time mismatch: %d", event.BlockTime)
	}

	payload, ok := event.Payload.(model.DataWrittenEvent)
	if !ok {
		t.Fatalf("payload type mismatch: %T", event.Payload)
	}
	if payload.EventID != 7 {
		t.Fatalf("event id mismatch: %d", payload.EventID)
	}
	if payload.From != from.Hex() {
		t.Fatalf("from mismatch: %s", payload.From)
	}
	if payload.Message != "hello" {
		t.Fatalf("message mismatch: %q", payload.Message)
	}
	if payload.Timestamp != 1000 {
		t.Fatalf("timestamp mismatch: %d", payload.Timestamp)
	}
}

func TestDecodeTransferExecuted(t *testing.T) {
	parsed, err := MemoABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	from := common.HexToAddress("0x2222222222222222222222222222222222222222")
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")
	amount, _ := new(big.Int).SetString("1000000000000000000", 10)

	data, err := parsed.Events["TransferExecuted"].Inputs.NonIndexed().Pack(amount, "rent", big.NewInt(1200))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	logRecord := buildLogRecord(parsed.Events["TransferExecuted"].ID, data, []common.Hash{
		topicFromUint(big.NewInt(42)),
		topicFromAddress(from),
		topicFromAddress(to),
	})

	event, err := decoder.Decode(logRecord)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	payload, ok := event.Payload.(model.TransferExecutedEvent)
	if !ok {
		t.Fatalf("payload type mismatch: %T", event.Payload)
	}
	if payload.TransferID != 42 {
		t.Fatalf("transfer id mismatch: %d", payload.TransferID)
	}
	if payload.From != from.Hex() || payload.To != to.Hex() {
		t.Fatalf("address mismatch: %+v", payload)
	}
	if payload.Amount != "1000000000000000000" {
		t.Fatalf("amount mismatch: %s", payload.Amount)
	}
	if payload.Message != "rent" {
		t.Fatalf("message mismatch: %q", payload.Message)
	}
}

func TestDecodeMemoizedSwap(t *testing.T) {
	parsed, err := MemoABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	from := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")

	data, err := parsed.Events["MemoizedSwap"].Inputs.NonIndexed().Pack("swap memo", big.NewInt(500), big.NewInt(490))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	logRecord := buildLogRecord(parsed.Events["MemoizedSwap"].ID, data, []common.Hash{
		topicFromAddress(from),
		topicFromAddress(recipient),
	})

	event, err := decoder.Decode(logRecord)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	payload, ok := event.Payload.(model.MemoizedSwapEvent)
	if !ok {
		t.Fatalf("payload type mismatch: %T", event.Payload)
	}
	if payload.AmountIn != "500" || payload.AmountOut != "490" {
		t.Fatalf("amounts mismatch: %+v", payload)
	}
	if payload.Message != "swap memo" {
		t.Fatalf("message mismatch: %q", payload.Message)
	}
}

func TestDecodeUnknownTopic(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	logRecord := buildLogRecord(common.HexToHash("0xdeadbeef"), nil, nil)
	if _, err := decoder.Decode(logRecord); !IsDecodeError(err) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestCanDecodeKnownTopics(t *testing.T) {
	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	topics := decoder.Topics()
	if len(topics) != 3 {
		t.Fatalf("expected 3 filter topics, got %d", len(topics))
	}
	for _, topic := range topics {
		if !decoder.CanDecode(topic.Hex()) {
			t.Fatalf("filter topic %s should be decodable", topic.Hex())
		}
	}
	if decoder.CanDecode("0xdeadbeef") {
		t.Fatalf("unknown topic should not be decodable")
	}
}

func TestDecodeMalformedData(t *testing.T) {
	parsed, err := MemoABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	logRecord := buildLogRecord(parsed.Events["DataWritten"].ID, []byte{0x01, 0x02}, []common.Hash{
		topicFromUint(big.NewInt(1)),
		topicFromAddress(common.HexToAddress("0x2222222222222222222222222222222222222222")),
	})

	if _, err := decoder.Decode(logRecord); !IsDecodeError(err) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestDecodeTopicCountMismatch(t *testing.T) {
	parsed, err := MemoABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	decoder, err := NewDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	// DataWritten expects two indexed topics; supply one.
	logRecord := buildLogRecord(parsed.Events["DataWritten"].ID, nil, []common.Hash{
		topicFromUint(big.NewInt(1)),
	})

	if _, err := decoder.Decode(logRecord); !IsDecodeError(err) {
		t.Fatalf("expected decode error, got %v", err)
	}
}
