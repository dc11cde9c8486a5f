package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// LogRecord is the normalized representation of an event log, either emitted
// by the in-process ledger or fetched from a chain.
type LogRecord struct {
	ChainID     uint64   `json:"chain_id"`
	BlockNumber uint64   `json:"block_number"`
	BlockHash   string   `json:"block_hash"`
	TxHash      string   `json:"tx_hash"`
	TxIndex     uint64   `json:"tx_index"`
	LogIndex    uint64   `json:"log_index"`
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	Removed     bool     `json:"removed"`
	Timestamp   uint64   `json:"timestamp"`
	IngestedAt  string   `json:"ingested_at"`
}

// Topic0 returns the lower-cased event signature hash, or "" when absent.
func (lr LogRecord) Topic0() string {
	if len(lr.Topics) == 0 {
		return ""
	}
	return strings.ToLower(lr.Topics[0])
}

// Key identifies a log uniquely within a chain.
func (lr LogRecord) Key() string {
	return strings.ToLower(lr.TxHash) + ":" + strings.ToLower(lr.Address) + ":" + strconv.FormatUint(lr.LogIndex, 10)
}

// UnmarshalJSON decodes a LogRecord, tolerating a null topics array.
func (lr *LogRecord) UnmarshalJSON(data []byte) error {
	type Alias LogRecord
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Topics == nil {
		a.Topics = []string{}
	}
	*lr = LogRecord(a)
	return nil
}
