package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"farmScope/internal/farmabi"
	"farmScope/internal/model"
)

type sliceWriter struct {
	values []interface{}
	err    error
}

func (w *sliceWriter) Write(value interface{}) error {
	if w.err != nil {
		return w.err
	}
	w.values = append(w.values, value)
	return nil
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func newTestDecoder(t *testing.T) *farmabi.Decoder {
	t.Helper()
	decoder, err := farmabi.NewDecoder(farmabi.DecoderConfig{})
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}
	return decoder
}

func TestDecodeLinesRecordsFailures(t *testing.T) {
	path := writeInput(t, "not json\n{\"chain_id\":1,\"block_number\":7,\"topics\":[]}\n")
	out := &sliceWriter{}
	errs := &sliceWriter{}

	stats, err := decodeLines(path, newTestDecoder(t), farmabi.DecodeContext{}, out, errs)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.total != 2 || stats.failed != 2 || stats.decoded != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(errs.values) != 2 {
		t.Fatalf("expected 2 decode errors, got %d", len(errs.values))
	}
	if rec := errs.values[1].(model.DecodeError); rec.BlockNumber != 7 || rec.Error != "missing topic0" {
		t.Fatalf("unexpected decode error %+v", rec)
	}
}

func TestDecodeLinesStopsOnErrorSinkFailure(t *testing.T) {
	path := writeInput(t, "not json\nnot json either\n")
	sinkErr := errors.New("disk full")
	errs := &sliceWriter{err: sinkErr}

	stats, err := decodeLines(path, newTestDecoder(t), farmabi.DecodeContext{}, &sliceWriter{}, errs)
	if !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink failure, got %v", err)
	}
	if stats.total != 1 {
		t.Fatalf("expected the run to stop at the first line, got %+v", stats)
	}
}
