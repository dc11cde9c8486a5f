package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"farmScope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS farms (
	chain_id BIGINT NOT NULL,
	farm_address TEXT NOT NULL,
	creator TEXT NOT NULL DEFAULT '',
	owner TEXT NOT NULL DEFAULT '',
	staked_asset TEXT NOT NULL,
	reward_assets JSONB NOT NULL DEFAULT '[]',
	coverage_asset TEXT NOT NULL DEFAULT '',
	coverage_amount NUMERIC,
	coverage_vesting_duration BIGINT NOT NULL DEFAULT 0,
	deposit_fee_bps BIGINT NOT NULL DEFAULT 0,
	withdrawal_fees_bps JSONB NOT NULL DEFAULT '[]',
	withdrawal_fee_schedule JSONB NOT NULL DEFAULT '[]',
	permissioned BOOLEAN NOT NULL DEFAULT false,
	first_seen_block BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, farm_address)
);

CREATE TABLE IF NOT EXISTS farm_events (
	chain_id BIGINT NOT NULL,
	block_number BIGINT NOT NULL,
	tx_hash TEXT NOT NULL,
	log_index BIGINT NOT NULL,
	address TEXT NOT NULL,
	topics JSONB NOT NULL,
	data TEXT NOT NULL,
	block_timestamp BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, tx_hash, log_index)
);

CREATE TABLE IF NOT EXISTS farm_window_metrics (
	chain_id BIGINT NOT NULL,
	farm_address TEXT NOT NULL,
	window_size_seconds BIGINT NOT NULL,
	window_start_ts TIMESTAMPTZ NOT NULL,
	window_end_ts TIMESTAMPTZ NOT NULL,
	staked_asset TEXT NOT NULL,
	stake_count BIGINT NOT NULL,
	withdraw_count BIGINT NOT NULL,
	staked NUMERIC NOT NULL,
	withdrawn NUMERIC NOT NULL,
	net_flow NUMERIC NOT NULL,
	rewards_paid JSONB NOT NULL,
	reward_claims BIGINT NOT NULL,
	fees_recovered NUMERIC NOT NULL,
	emissions_started BIGINT NOT NULL,
	emissions_ended BIGINT NOT NULL,
	total_staked NUMERIC,
	total_staked_method TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, farm_address, window_size_seconds, window_start_ts)
);

CREATE TABLE IF NOT EXISTS indexer_state (
	name TEXT PRIMARY KEY,
	last_processed_ts BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for farms, events and metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables used by farmscope if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertFarms inserts or updates farm registry records. Empty creator and
// owner values never overwrite known ones.
func (s *Store) UpsertFarms(ctx context.Context, farms []model.Farm) error {
	if len(farms) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, farm := range farms {
		rewards, err := jsonArray(farm.RewardAssets)
		if err != nil {
			return err
		}
		fees, err := jsonArray(farm.WithdrawalFeesBps)
		if err != nil {
			return err
		}
		schedule, err := jsonArray(farm.WithdrawalFeeSchedule)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO farms (
				chain_id, farm_address, creator, owner, staked_asset, reward_assets,
				coverage_asset, coverage_amount, coverage_vesting_duration, deposit_fee_bps,
				withdrawal_fees_bps, withdrawal_fee_schedule, permissioned, first_seen_block,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now(),now())
			ON CONFLICT (chain_id, farm_address)
			DO UPDATE SET
				creator = COALESCE(NULLIF(EXCLUDED.creator, ''), farms.creator),
				owner = COALESCE(NULLIF(EXCLUDED.owner, ''), farms.owner),
				staked_asset = EXCLUDED.staked_asset,
				reward_assets = EXCLUDED.reward_assets,
				coverage_asset = EXCLUDED.coverage_asset,
				coverage_amount = COALESCE(EXCLUDED.coverage_amount, farms.coverage_amount),
				coverage_vesting_duration = EXCLUDED.coverage_vesting_duration,
				deposit_fee_bps = EXCLUDED.deposit_fee_bps,
				withdrawal_fees_bps = EXCLUDED.withdrawal_fees_bps,
				withdrawal_fee_schedule = EXCLUDED.withdrawal_fee_schedule,
				permissioned = EXCLUDED.permissioned,
				first_seen_block = LEAST(NULLIF(farms.first_seen_block, 0), NULLIF(EXCLUDED.first_seen_block, 0), GREATEST(farms.first_seen_block, EXCLUDED.first_seen_block)),
				updated_at = now()
		`,
			int64(farm.ChainID),
			farm.Address,
			farm.Creator,
			farm.Owner,
			farm.StakedAsset,
			rewards,
			farm.CoverageAsset,
			nullableNumeric(farm.CoverageAmount),
			int64(farm.CoverageVestingDuration),
			int64(farm.DepositFeeBps),
			fees,
			schedule,
			farm.Permissioned,
			int64(farm.FirstSeenBlock),
		)
	}
	return s.sendBatch(ctx, batch, len(farms))
}

// InsertEvents stores raw event logs. Logs already stored are ignored.
func (s *Store) InsertEvents(ctx context.Context, logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, log := range logs {
		topics, err := jsonArray(log.Topics)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO farm_events (
				chain_id, block_number, tx_hash, log_index, address, topics, data, block_timestamp, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
			ON CONFLICT (chain_id, tx_hash, log_index) DO NOTHING
		`,
			int64(log.ChainID),
			int64(log.BlockNumber),
			log.TxHash,
			int64(log.LogIndex),
			log.Address,
			topics,
			log.Data,
			int64(log.Timestamp),
		)
	}
	return s.sendBatch(ctx, batch, len(logs))
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.FarmWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		rewards, err := json.Marshal(m.RewardsPaid)
		if err != nil {
			return fmt.Errorf("marshal rewards paid: %w", err)
		}
		batch.Queue(`
			INSERT INTO farm_window_metrics (
				chain_id, farm_address, window_size_seconds, window_start_ts, window_end_ts,
				staked_asset, stake_count, withdraw_count, staked, withdrawn, net_flow,
				rewards_paid, reward_claims, fees_recovered, emissions_started, emissions_ended,
				total_staked, total_staked_method, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,now(),now())
			ON CONFLICT (chain_id, farm_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				staked_asset = EXCLUDED.staked_asset,
				stake_count = EXCLUDED.stake_count,
				withdraw_count = EXCLUDED.withdraw_count,
				staked = EXCLUDED.staked,
				withdrawn = EXCLUDED.withdrawn,
				net_flow = EXCLUDED.net_flow,
				rewards_paid = EXCLUDED.rewards_paid,
				reward_claims = EXCLUDED.reward_claims,
				fees_recovered = EXCLUDED.fees_recovered,
				emissions_started = EXCLUDED.emissions_started,
				emissions_ended = EXCLUDED.emissions_ended,
				total_staked = EXCLUDED.total_staked,
				total_staked_method = EXCLUDED.total_staked_method,
				updated_at = now()
		`,
			int64(m.ChainID),
			m.FarmAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			m.StakedAsset,
			int64(m.StakeCount),
			int64(m.WithdrawCount),
			m.Staked,
			m.Withdrawn,
			m.NetFlow,
			string(rewards),
			int64(m.RewardClaims),
			m.FeesRecovered,
			int64(m.EmissionsStarted),
			int64(m.EmissionsEnded),
			m.TotalStaked,
			m.TotalStakedMethod,
		)
	}
	return s.sendBatch(ctx, batch, len(metrics))
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// jsonArray renders a slice as a JSON array, never null.
func jsonArray[T any](values []T) (string, error) {
	if values == nil {
		values = []T{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("marshal json array: %w", err)
	}
	return string(data), nil
}

func nullableNumeric(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
