package model

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestLogRecordJSONRoundTrip(t *testing.T) {
	original := LogRecord{
		ChainID:     1,
		BlockNumber: 19250000,
		BlockHash:   "0x4444444444444444444444444444444444444444444444444444444444444444",
		TxHash:      "0x5555555555555555555555555555555555555555555555555555555555555555",
		TxIndex:     3,
		LogIndex:    2,
		Address:     "0x1111111111111111111111111111111111111111",
		Topics: []string{
			"0x9cf5d4b6ab4a4c5b8f6e0d3a1f2b7c8d9e0f1a2b3c4d5e6f7a8b9c0d1e2f3a4b",
			"0x0000000000000000000000002222222222222222222222222222222222222222",
		},
		Data:       "0x",
		Removed:    true,
		Timestamp:  1714000000,
		IngestedAt: "2024-04-25T00:00:00Z",
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded LogRecord
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !decoded.Removed {
		t.Fatalf("removed flag lost in round trip")
	}
	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
}

func TestLogRecordJSONKeys(t *testing.T) {
	b, err := json.Marshal(LogRecord{TxHash: "0x5555"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	for _, key := range []string{`"tx_hash"`, `"log_index"`, `"block_number"`, `"removed"`} {
		if !strings.Contains(string(b), key) {
			t.Fatalf("expected key %s in %s", key, b)
		}
	}
}
