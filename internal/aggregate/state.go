package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StateStore persists the last aggregated event timestamp. Events at or
// before it are skipped on the next run.
type StateStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, ts uint64) error
}

// StateName names the progress of one aggregation series. Runs with
// different window sizes produce different rows and keep separate progress.
func StateName(windowSeconds uint64) string {
	return fmt.Sprintf("aggregator:%d", windowSeconds)
}

// FileStateStore keeps progress for the series Name in a local JSON file.
// A file written for another series is rejected, so switching the window
// size cannot skip events that the new series never aggregated.
type FileStateStore struct {
	Path string
	Name string
}

type fileState struct {
	Name      string `json:"name,omitempty"`
	LastTS    uint64 `json:"last_processed_ts"`
	UpdatedAt string `json:"updated_at"`
}

func (s *FileStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read state: %w", err)
	}

	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return 0, false, fmt.Errorf("parse state %s: %w", s.Path, err)
	}
	if st.Name != "" && s.Name != "" && st.Name != s.Name {
		return 0, false, fmt.Errorf("state %s belongs to %s, not %s", s.Path, st.Name, s.Name)
	}
	return st.LastTS, true, nil
}

func (s *FileStateStore) Save(ctx context.Context, ts uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	data, err := json.Marshal(fileState{
		Name:      s.Name,
		LastTS:    ts,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}
