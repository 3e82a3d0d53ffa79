// Package tiered combines a bounded hot store, an overflow store and an archive into one
// GraphStore.
package tiered

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/persistence"
)

// Deleter is implemented by tiers that can drop a stale copy of a graph.
type Deleter interface {
	Delete(ctx context.Context, executionID string) error
}

// Store routes graphs between tiers. Archive may be nil.
type Store struct {
	hot      persistence.GraphStore
	overflow persistence.GraphStore
	archive  persistence.GraphStore
	logger   *slog.Logger
}

// NewStore creates a tiered store.
func NewStore(logger *slog.Logger, hot, overflow, archive persistence.GraphStore) *Store {
	return &Store{
		hot:      hot,
		overflow: overflow,
		archive:  archive,
		logger:   logger.With("module", "tiered_store"),
	}
}

// Load tries the hot store, then the overflow store, then the archive.
func (s *Store) Load(ctx context.Context, executionID string) (*models.ExecutionGraph, error) {
	for _, tier := range s.tiers() {
		graph, err := tier.Load(ctx, executionID)
		if err == nil {
			return graph, nil
		}

		if !persistence.IsGraphNotFound(err) {
			return nil, err
		}
	}

	return nil, persistence.NewGraphError("Load", executionID, persistence.ErrGraphNotFound)
}

// Save writes to the hot store, falling back to the overflow store when the graph is too
// large for it. Terminal graphs are also written to the archive.
func (s *Store) Save(ctx context.Context, graph *models.ExecutionGraph) error {
	if err := persistence.CheckGraph("Save", graph); err != nil {
		return err
	}

	err := s.hot.Save(ctx, graph)

	switch {
	case err == nil:
	case persistence.IsGraphTooLarge(err):
		s.logger.InfoContext(ctx, "Moving execution graph to overflow store", "execution_id", graph.ExecutionID)

		err = s.overflow.Save(ctx, graph)
		if err != nil {
			return fmt.Errorf("failed to save execution graph to overflow store: %w", err)
		}

		// A smaller earlier version may still sit in the hot store and would shadow this one.
		if deleter, ok := s.hot.(Deleter); ok {
			err = deleter.Delete(ctx, graph.ExecutionID)
			if err != nil {
				return fmt.Errorf("failed to drop stale hot copy: %w", err)
			}
		}
	default:
		return err
	}

	if s.archive != nil && graph.IsTerminal() {
		err = s.archive.Save(ctx, graph)
		if err != nil {
			return fmt.Errorf("failed to archive execution graph: %w", err)
		}

		s.logger.InfoContext(ctx, "Archived execution graph", "execution_id", graph.ExecutionID, "status", graph.Status)
	}

	return nil
}

// SaveTasks replaces the given nodes of a stored graph.
func (s *Store) SaveTasks(ctx context.Context, executionID string, tasks []*models.TaskNode) error {
	return persistence.SaveTasksWith(ctx, s, executionID, tasks)
}

// HealthCheck checks every tier.
func (s *Store) HealthCheck(ctx context.Context) error {
	for _, tier := range s.tiers() {
		if err := tier.HealthCheck(ctx); err != nil {
			return err
		}
	}

	return nil
}

// Close closes every tier and reports all failures.
func (s *Store) Close(ctx context.Context) error {
	var errs []error

	for _, tier := range s.tiers() {
		errs = append(errs, tier.Close(ctx))
	}

	return errors.Join(errs...)
}

func (s *Store) tiers() []persistence.GraphStore {
	if s.archive == nil {
		return []persistence.GraphStore{s.hot, s.overflow}
	}

	return []persistence.GraphStore{s.hot, s.overflow, s.archive}
}
