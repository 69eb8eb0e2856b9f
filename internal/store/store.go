// Package store persists enrichment runs. Two backends exist: an embedded
// sqlite database for local CLI use and postgres for server deployments.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/clearbound/enrich-cli/internal/config"
	"github.com/clearbound/enrich-cli/internal/model"
)

// ErrNotFound indicates the requested run does not exist.
var ErrNotFound = eris.New("store: run not found")

// RunSummary is the listing projection of a run, without profile or stages.
type RunSummary struct {
	ID        string          `json:"id"`
	Name      string          `json:"name,omitempty"`
	Website   string          `json:"website,omitempty"`
	Status    model.RunStatus `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store persists runs across their lifecycle.
type Store interface {
	// Migrate creates or upgrades the backing schema.
	Migrate(ctx context.Context) error
	// CreateRun inserts a run in its current state.
	CreateRun(ctx context.Context, run *model.Run) error
	// UpdateRunStatus advances a run's status marker.
	UpdateRunStatus(ctx context.Context, id string, status model.RunStatus) error
	// CompleteRun writes the final status, profile, and stage audit.
	CompleteRun(ctx context.Context, run *model.Run) error
	// GetRun loads one run by ID; ErrNotFound when absent.
	GetRun(ctx context.Context, id string) (*model.Run, error)
	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	Close() error
}

// New opens the store selected by configuration.
func New(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLite(cfg.Path)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
