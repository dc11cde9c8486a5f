package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"farmScope/internal/model"
)

// JsonlStorage appends log records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutLogBatch appends a batch of log records as JSON lines.
func (s *JsonlStorage) PutLogBatch(logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := NewWriter(s.path, true)
	if err != nil {
		return err
	}
	for _, record := range logs {
		if err := w.Write(record); err != nil {
			w.Close()
			return fmt.Errorf("write log record: %w", err)
		}
	}
	return w.Close()
}

// FarmFile writes the farm registry to a JSONL file, replacing previous
// contents.
type FarmFile struct {
	Path string
}

func (f FarmFile) PutFarms(farms []model.Farm) error {
	w, err := NewWriter(f.Path, false)
	if err != nil {
		return err
	}
	for _, farm := range farms {
		if err := w.Write(farm); err != nil {
			w.Close()
			return fmt.Errorf("write farm: %w", err)
		}
	}
	return w.Close()
}

// ReadFarms loads a farm registry written by FarmFile.
func ReadFarms(path string) ([]model.Farm, error) {
	var farms []model.Farm
	err := ScanLines(path, func(line []byte) error {
		var farm model.Farm
		if err := json.Unmarshal(line, &farm); err != nil {
			return fmt.Errorf("parse farm: %w", err)
		}
		farms = append(farms, farm)
		return nil
	})
	return farms, err
}

// ScanLines calls fn for every non-blank line of a JSONL file. Lines may be
// up to 10 MiB.
func ScanLines(path string, fn func(line []byte) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}
	return nil
}

// Writer writes JSON values one per line.
type Writer struct {
	file   *os.File
	writer *bufio.Writer
}

// NewWriter opens path for writing, creating parent directories. With
// appendMode unset the file is truncated.
func NewWriter(path string, appendMode bool) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return &Writer{file: file, writer: bufio.NewWriter(file)}, nil
}

func (w *Writer) Write(value interface{}) error {
	if w.file == nil {
		return fmt.Errorf("write: writer closed")
	}
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

// Close flushes and closes the file. Closing twice is a no-op.
func (w *Writer) Close() error {
	if w == nil || w.file == nil {
		return nil
	}
	file := w.file
	w.file = nil
	if err := w.writer.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flush output: %w", err)
	}
	return file.Close()
}
