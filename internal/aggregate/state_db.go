package aggregate

import "context"

// StateTable is the named progress table, implemented by postgres.Store.
type StateTable interface {
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, ts uint64) error
}

// DBStateStore stores aggregation progress in the indexer_state table under Name.
type DBStateStore struct {
	Table StateTable
	Name  string
}

func (s *DBStateStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Table == nil {
		return 0, false, nil
	}
	return s.Table.LoadState(ctx, s.Name)
}

func (s *DBStateStore) Save(ctx context.Context, ts uint64) error {
	if s == nil || s.Table == nil {
		return nil
	}
	return s.Table.SaveState(ctx, s.Name, ts)
}
