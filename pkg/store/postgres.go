package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/castellan-labs/disburse/pkg/schedule"

	_ "github.com/lib/pq"
)

// PostgresStore implements ObligationStore using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

var _ ObligationStore = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the schema. Separate from the constructor so deployments
// that manage schema externally can skip it.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS obligations (
		id BIGINT PRIMARY KEY,
		recipient TEXT NOT NULL,
		asset_kind TEXT NOT NULL,
		denom TEXT NOT NULL DEFAULT '',
		contract TEXT NOT NULL DEFAULT '',
		amount BIGINT NOT NULL,
		trigger_kind TEXT NOT NULL,
		trigger_height BIGINT NOT NULL DEFAULT 0,
		trigger_time TIMESTAMPTZ,
		paid BOOLEAN NOT NULL DEFAULT FALSE,
		stopped BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE TABLE IF NOT EXISTS engine_config (
		slot INT PRIMARY KEY CHECK (slot = 1),
		owner TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS obligation_counter (
		slot INT PRIMARY KEY CHECK (slot = 1),
		last_id BIGINT NOT NULL
	);`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *PostgresStore) AllocateID(ctx context.Context) (uint64, error) {
	var id uint64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO obligation_counter (slot, last_id) VALUES (1, 1)
		ON CONFLICT (slot) DO UPDATE SET last_id = obligation_counter.last_id + 1
		RETURNING last_id`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) Put(ctx context.Context, ob schedule.Obligation) error {
	query := `
		INSERT INTO obligations (id, recipient, asset_kind, denom, contract, amount, trigger_kind, trigger_height, trigger_time, paid, stopped)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			recipient = EXCLUDED.recipient,
			asset_kind = EXCLUDED.asset_kind,
			denom = EXCLUDED.denom,
			contract = EXCLUDED.contract,
			amount = EXCLUDED.amount,
			trigger_kind = EXCLUDED.trigger_kind,
			trigger_height = EXCLUDED.trigger_height,
			trigger_time = EXCLUDED.trigger_time,
			paid = EXCLUDED.paid,
			stopped = EXCLUDED.stopped`

	var trigTime sql.NullTime
	if ob.Trigger.Kind == schedule.TriggerAtTime {
		trigTime = sql.NullTime{Time: ob.Trigger.Time.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		int64(ob.ID), ob.Recipient, string(ob.Asset.Kind), ob.Asset.Denom, ob.Asset.Contract, ob.Asset.Amount,
		string(ob.Trigger.Kind), int64(ob.Trigger.Height), trigTime, ob.Paid, ob.Stopped,
	)
	if err != nil {
		return fmt.Errorf("failed to persist obligation %d: %w", ob.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uint64) (schedule.Obligation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, recipient, asset_kind, denom, contract, amount, trigger_kind, trigger_height, trigger_time, paid, stopped
		FROM obligations WHERE id = $1`, int64(id))
	ob, err := scanPgObligation(row)
	if err == sql.ErrNoRows {
		return schedule.Obligation{}, ErrNotFound
	}
	if err != nil {
		return schedule.Obligation{}, fmt.Errorf("failed to get obligation %d: %w", id, err)
	}
	return ob, nil
}

func (s *PostgresStore) Scan(ctx context.Context) ([]schedule.Obligation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient, asset_kind, denom, contract, amount, trigger_kind, trigger_height, trigger_time, paid, stopped
		FROM obligations ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan obligations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []schedule.Obligation
	for rows.Next() {
		ob, err := scanPgObligation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ob)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) GetConfig(ctx context.Context) (Config, error) {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT owner FROM engine_config WHERE slot = 1`).Scan(&owner)
	if err == sql.ErrNoRows {
		return Config{}, ErrNotInitialized
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to get config: %w", err)
	}
	return Config{Owner: owner}, nil
}

func (s *PostgresStore) SetConfig(ctx context.Context, cfg Config) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engine_config (slot, owner) VALUES (1, $1)
		ON CONFLICT (slot) DO UPDATE SET owner = EXCLUDED.owner`, cfg.Owner)
	if err != nil {
		return fmt.Errorf("failed to set config: %w", err)
	}
	return nil
}

func scanPgObligation(row rowScanner) (schedule.Obligation, error) {
	var (
		ob        schedule.Obligation
		id        int64
		height    int64
		assetKind string
		trigKind  string
		trigTime  sql.NullTime
	)
	err := row.Scan(&id, &ob.Recipient, &assetKind, &ob.Asset.Denom, &ob.Asset.Contract, &ob.Asset.Amount,
		&trigKind, &height, &trigTime, &ob.Paid, &ob.Stopped)
	if err != nil {
		return schedule.Obligation{}, err
	}
	ob.ID = uint64(id)
	ob.Asset.Kind = schedule.AssetKind(assetKind)
	ob.Trigger.Kind = schedule.TriggerKind(trigKind)
	ob.Trigger.Height = uint64(height)
	if trigTime.Valid {
		ob.Trigger.Time = trigTime.Time.UTC()
	}
	return ob, nil
}
