package model

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestLogRecordJSONRoundTrip(t *testing.T) {
	original := LogRecord{
		ChainID:     43114,
		BlockNumber: 42,
		BlockHash:   "0xabc123",
		TxHash:      "0xdef456",
		LogIndex:    3,
		Address:     "0x1111111111111111111111111111111111111111",
		Topics:      []string{"0xAAA", "0xbbb"},
		Data:        "0xdeadbeef",
		Timestamp:   1700000000,
		IngestedAt:  "2024-01-01T00:00:00Z",
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded LogRecord
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
	if decoded.Topic0() != "0xaaa" {
		t.Fatalf("topic0 mismatch: %s", decoded.Topic0())
	}
}

func TestLogRecordNullTopics(t *testing.T) {
	var decoded LogRecord
	if err := json.Unmarshal([]byte(`{"tx_hash":"0xAB","address":"0xCD","log_index":12,"topics":null}`), &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Topics == nil || decoded.Topic0() != "" {
		t.Fatalf("expected empty topics: %+v", decoded.Topics)
	}
	if decoded.Key() != "0xab:0xcd:12" {
		t.Fatalf("key mismatch: %s", decoded.Key())
	}
}
