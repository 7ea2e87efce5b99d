// Package store persists obligations, the owner configuration singleton, and
// the monotonic id counter behind a single contract with memory, SQLite, and
// Postgres backends.
package store

import (
	"context"
	"errors"

	"github.com/castellan-labs/disburse/pkg/schedule"
)

var (
	// ErrNotFound is returned by Get for an id with no record.
	ErrNotFound = errors.New("store: obligation not found")

	// ErrNotInitialized is returned by GetConfig before SetConfig has run.
	ErrNotInitialized = errors.New("store: config not initialized")
)

// Config is the singleton engine configuration.
type Config struct {
	Owner string `json:"owner"`
}

// ObligationStore is the persistence contract for the disbursement engine.
//
// AllocateID returns ids strictly greater than every previously allocated id
// and persists the advanced counter before returning; the counter never
// resets and never reuses a value. Put is total replacement, not a merge.
// Scan returns all records in ascending id order, deterministically.
type ObligationStore interface {
	AllocateID(ctx context.Context) (uint64, error)
	Put(ctx context.Context, ob schedule.Obligation) error
	Get(ctx context.Context, id uint64) (schedule.Obligation, error)
	Scan(ctx context.Context) ([]schedule.Obligation, error)

	GetConfig(ctx context.Context) (Config, error)
	SetConfig(ctx context.Context, cfg Config) error
}
