// Package directory maintains the local snapshot of connectable entities.
package directory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finanze/finanze-sub000/internal/model"
	"github.com/finanze/finanze-sub000/internal/service"
)

// EntityLister supplies the connectable entity directory.
type EntityLister interface {
	Entities(ctx context.Context) ([]model.Entity, error)
}

// Refresher pulls the entity directory and reconciles it into the local
// store. Statuses applied optimistically by the orchestrator between
// refreshes are overwritten by the directory's authoritative values.
type Refresher struct {
	lister EntityLister
	store  service.EntityStore
	logger *slog.Logger
}

// NewRefresher creates a directory refresher.
func NewRefresher(lister EntityLister, store service.EntityStore) *Refresher {
	return &Refresher{
		lister: lister,
		store:  store,
		logger: slog.Default().With("component", "directory"),
	}
}

// Refresh fetches the directory, persists the snapshot, and returns the
// stored entities with their last-fetch timestamps attached.
func (r *Refresher) Refresh(ctx context.Context) ([]model.Entity, error) {
	entities, err := r.lister.Entities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}

	r.logger.Info("Refreshed entity directory", "count", len(entities))

	if r.store != nil {
		if err := r.store.SaveEntities(ctx, entities); err != nil {
			return nil, fmt.Errorf("failed to save entity snapshot: %w", err)
		}
		return r.store.GetEntities(ctx)
	}
	return entities, nil
}

// Load returns the stored snapshot without contacting the directory.
func (r *Refresher) Load(ctx context.Context) ([]model.Entity, error) {
	if r.store == nil {
		return nil, fmt.Errorf("no entity store configured")
	}
	return r.store.GetEntities(ctx)
}
