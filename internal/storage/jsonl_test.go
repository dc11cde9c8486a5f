package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"farmScope/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs.jsonl")
	s := NewJsonlStorage(path)

	if err := s.PutLogBatch([]model.LogRecord{{BlockNumber: 1, Topics: []string{"0x01"}}}); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if err := s.PutLogBatch([]model.LogRecord{{BlockNumber: 2}, {BlockNumber: 3}}); err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if err := s.PutLogBatch(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[2], `"block_number":3`) {
		t.Fatalf("unexpected line: %s", lines[2])
	}
}

func TestFarmFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "farms.jsonl")
	farms := []model.Farm{
		{ChainID: 1, Address: "0xfarm1", StakedAsset: "0xlp", RewardAssets: []string{"0xr1"}},
		{ChainID: 1, Address: "0xfarm2", StakedAsset: "0xlp", Permissioned: true},
	}
	if err := (FarmFile{Path: path}).PutFarms(farms); err != nil {
		t.Fatalf("put: %v", err)
	}
	// Rewriting replaces the registry.
	if err := (FarmFile{Path: path}).PutFarms(farms[1:]); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := ReadFarms(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].Address != "0xfarm2" || !got[0].Permissioned {
		t.Fatalf("unexpected farms: %+v", got)
	}
}

func TestScanLinesSkipsBlank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.jsonl")
	if err := os.WriteFile(path, []byte("{}\n\n  \n{}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	count := 0
	if err := ScanLines(path, func([]byte) error { count++; return nil }); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 lines, got %d", count)
	}
}

func TestWriterCloseTwiceAndWriteAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "errors.jsonl")
	w, err := NewWriter(path, false)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.Write(model.DecodeError{Error: "bad"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := w.Write(model.DecodeError{Error: "late"}); err == nil {
		t.Fatalf("expected write after close to fail")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := strings.Count(string(data), "\n"); got != 1 {
		t.Fatalf("expected 1 line, got %d", got)
	}
}
