package model

import "encoding/json"

// TypedEventRecord is the JSON form of TypedEvent read back for aggregation;
// Decoded stays raw until the event name is known.
type TypedEventRecord struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	BlockHash   string          `json:"block_hash"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	Address     string          `json:"address"`
	EventName   string          `json:"event_name"`
	Timestamp   uint64          `json:"timestamp"`
	Decoded     json.RawMessage `json:"decoded"`
	FarmMeta    FarmMeta        `json:"farm_meta"`
	Raw         *RawLogRef      `json:"raw,omitempty"`
}
