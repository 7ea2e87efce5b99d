package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/castellan-labs/disburse/pkg/schedule"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements ObligationStore on an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ ObligationStore = (*SQLiteStore)(nil)

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS obligations (
		id INTEGER PRIMARY KEY,
		recipient TEXT NOT NULL,
		asset_kind TEXT NOT NULL,
		denom TEXT NOT NULL DEFAULT '',
		contract TEXT NOT NULL DEFAULT '',
		amount INTEGER NOT NULL,
		trigger_kind TEXT NOT NULL,
		trigger_height INTEGER NOT NULL DEFAULT 0,
		trigger_time TEXT NOT NULL DEFAULT '',
		paid INTEGER NOT NULL DEFAULT 0,
		stopped INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS engine_config (
		slot INTEGER PRIMARY KEY CHECK (slot = 1),
		owner TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS obligation_counter (
		slot INTEGER PRIMARY KEY CHECK (slot = 1),
		last_id INTEGER NOT NULL
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// AllocateID advances the persisted counter inside one transaction so the
// returned id is durable before any obligation is stamped with it.
func (s *SQLiteStore) AllocateID(ctx context.Context) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin allocate tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO obligation_counter (slot, last_id) VALUES (1, 1)
		ON CONFLICT (slot) DO UPDATE SET last_id = last_id + 1`)
	if err != nil {
		return 0, fmt.Errorf("failed to advance id counter: %w", err)
	}

	var id uint64
	if err := tx.QueryRowContext(ctx, `SELECT last_id FROM obligation_counter WHERE slot = 1`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read id counter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit allocate tx: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) Put(ctx context.Context, ob schedule.Obligation) error {
	query := `
		INSERT INTO obligations (id, recipient, asset_kind, denom, contract, amount, trigger_kind, trigger_height, trigger_time, paid, stopped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			recipient = excluded.recipient,
			asset_kind = excluded.asset_kind,
			denom = excluded.denom,
			contract = excluded.contract,
			amount = excluded.amount,
			trigger_kind = excluded.trigger_kind,
			trigger_height = excluded.trigger_height,
			trigger_time = excluded.trigger_time,
			paid = excluded.paid,
			stopped = excluded.stopped`

	var trigTime string
	if ob.Trigger.Kind == schedule.TriggerAtTime {
		trigTime = ob.Trigger.Time.UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, query,
		ob.ID, ob.Recipient, string(ob.Asset.Kind), ob.Asset.Denom, ob.Asset.Contract, ob.Asset.Amount,
		string(ob.Trigger.Kind), ob.Trigger.Height, trigTime, boolToInt(ob.Paid), boolToInt(ob.Stopped),
	)
	if err != nil {
		return fmt.Errorf("failed to persist obligation %d: %w", ob.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id uint64) (schedule.Obligation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, recipient, asset_kind, denom, contract, amount, trigger_kind, trigger_height, trigger_time, paid, stopped
		FROM obligations WHERE id = ?`, id)
	ob, err := scanObligation(row)
	if err == sql.ErrNoRows {
		return schedule.Obligation{}, ErrNotFound
	}
	if err != nil {
		return schedule.Obligation{}, fmt.Errorf("failed to get obligation %d: %w", id, err)
	}
	return ob, nil
}

func (s *SQLiteStore) Scan(ctx context.Context) ([]schedule.Obligation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recipient, asset_kind, denom, contract, amount, trigger_kind, trigger_height, trigger_time, paid, stopped
		FROM obligations ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan obligations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []schedule.Obligation
	for rows.Next() {
		ob, err := scanObligation(rows)
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

func (s *SQLiteStore) GetConfig(ctx context.Context) (Config, error) {
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

func (s *SQLiteStore) SetConfig(ctx context.Context, cfg Config) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engine_config (slot, owner) VALUES (1, ?)
		ON CONFLICT (slot) DO UPDATE SET owner = excluded.owner`, cfg.Owner)
	if err != nil {
		return fmt.Errorf("failed to set config: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObligation(row rowScanner) (schedule.Obligation, error) {
	var (
		ob         schedule.Obligation
		assetKind  string
		trigKind   string
		trigTime   string
		paidInt    int
		stoppedInt int
	)
	err := row.Scan(&ob.ID, &ob.Recipient, &assetKind, &ob.Asset.Denom, &ob.Asset.Contract, &ob.Asset.Amount,
		&trigKind, &ob.Trigger.Height, &trigTime, &paidInt, &stoppedInt)
	if err != nil {
		return schedule.Obligation{}, err
	}
	ob.Asset.Kind = schedule.AssetKind(assetKind)
	ob.Trigger.Kind = schedule.TriggerKind(trigKind)
	if trigTime != "" {
		if t, err := time.Parse(time.RFC3339Nano, trigTime); err == nil {
			ob.Trigger.Time = t
		}
	}
	ob.Paid = paidInt != 0
	ob.Stopped = stoppedInt != 0
	return ob, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
