package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"openamm/internal/model"
	"openamm/internal/storage"
)

//go:embed schema.sql
var schema string

var (
	_ storage.PoolStore = (*Store)(nil)
	_ storage.Journal   = (*Store)(nil)
)

// Store provides Postgres persistence for pools, events and metrics.
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

// EnsureSchema creates the tables if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func addressKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// GetPool loads the latest snapshot of a pool.
func (s *Store) GetPool(ctx context.Context, addr common.Address) (model.Pool, bool, error) {
	var data []byte
	row := s.pool.QueryRow(ctx, `SELECT snapshot FROM pools WHERE address=$1`, addressKey(addr))
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Pool{}, false, nil
		}
		return model.Pool{}, false, err
	}
	var pool model.Pool
	if err := json.Unmarshal(data, &pool); err != nil {
		return model.Pool{}, false, fmt.Errorf("parse pool snapshot: %w", err)
	}
	return pool, true, nil
}

// CreatePool inserts the first snapshot. A pool already registered for the
// address or for the (market, curve kind) pair is rejected.
func (s *Store) CreatePool(ctx context.Context, pool model.Pool) error {
	data, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("marshal pool: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO pools (address, market, curve_kind, sequence, snapshot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT DO NOTHING
	`,
		addressKey(pool.Address),
		pool.Market,
		pool.CurveKind.String(),
		int64(pool.Sequence),
		data,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("create %s: %w", pool.Address.Hex(), storage.ErrPoolExists)
	}
	return nil
}

// SavePool replaces the snapshot if the stored sequence still equals prevSeq.
func (s *Store) SavePool(ctx context.Context, pool model.Pool, prevSeq uint64) error {
	data, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("marshal pool: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE pools
		SET snapshot = $2, sequence = $3, updated_at = now()
		WHERE address = $1 AND sequence = $4
	`,
		addressKey(pool.Address),
		data,
		int64(pool.Sequence),
		int64(prevSeq),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save %s at sequence %d: %w", pool.Address.Hex(), prevSeq, storage.ErrSequenceConflict)
	}
	return nil
}

// PutEventBatch inserts journal events, ignoring ones already stored.
func (s *Store) PutEventBatch(ctx context.Context, events []model.PoolEvent) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal pool event: %w", err)
		}
		batch.Queue(`
			INSERT INTO pool_events (
				pool_address, sequence, kind, market, curve_kind, event_ts,
				end_base, end_quote, end_lp, cranker_base, cranker_quote,
				orders_placed, paused, payload, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now())
			ON CONFLICT (pool_address, sequence) DO NOTHING
		`,
			strings.ToLower(ev.Pool),
			int64(ev.Sequence),
			string(ev.Kind),
			ev.Market,
			ev.CurveKind.String(),
			int64(ev.Timestamp),
			strconv.FormatUint(ev.EndBase, 10),
			strconv.FormatUint(ev.EndQuote, 10),
			strconv.FormatUint(ev.EndLP, 10),
			strconv.FormatUint(ev.CrankerBase, 10),
			strconv.FormatUint(ev.CrankerQuote, 10),
			ev.OrdersPlaced,
			ev.Paused,
			payload,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range events {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_address, market, curve_kind, window_size_seconds, window_start_ts, window_end_ts,
				event_count, fill_count, base_volume, quote_volume, cranker_base, cranker_quote,
				deposit_count, withdraw_count, end_base, end_quote, end_lp, turnover, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,now(),now())
			ON CONFLICT (pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				event_count = EXCLUDED.event_count,
				fill_count = EXCLUDED.fill_count,
				base_volume = EXCLUDED.base_volume,
				quote_volume = EXCLUDED.quote_volume,
				cranker_base = EXCLUDED.cranker_base,
				cranker_quote = EXCLUDED.cranker_quote,
				deposit_count = EXCLUDED.deposit_count,
				withdraw_count = EXCLUDED.withdraw_count,
				end_base = EXCLUDED.end_base,
				end_quote = EXCLUDED.end_quote,
				end_lp = EXCLUDED.end_lp,
				turnover = EXCLUDED.turnover,
				updated_at = now()
		`,
			m.PoolAddress,
			m.Market,
			m.CurveKind,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.EventCount),
			int64(m.FillCount),
			m.BaseVolume,
			m.QuoteVolume,
			m.CrankerBase,
			m.CrankerQuote,
			int64(m.DepositCount),
			int64(m.WithdrawCount),
			m.EndBase,
			m.EndQuote,
			strconv.FormatUint(m.EndLP, 10),
			m.Turnover,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM aggregate_state WHERE name=$1`, name)
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
		INSERT INTO aggregate_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}
