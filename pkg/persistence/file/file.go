// Package file provides the file-based overflow store for execution graphs.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/persistence"
)

const graphsDir = "graphs"

var errInvalidExecutionID = errors.New("execution ID contains invalid characters")

// Store keeps one JSON document per execution graph under root/graphs.
type Store struct {
	root   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewStore creates a file store rooted at root. A "file://" prefix is accepted.
func NewStore(root string, logger *slog.Logger) *Store {
	return &Store{
		root:   strings.Replace(root, "file://", "", 1),
		logger: logger.With("module", "file_store"),
	}
}

// validateExecutionID validates that the execution ID is safe for file operations.
func validateExecutionID(executionID string) error {
	if executionID == "" {
		return errors.New("execution ID cannot be empty")
	}

	if strings.Contains(executionID, "..") || strings.ContainsAny(executionID, "/\\") {
		return errInvalidExecutionID
	}

	return nil
}

func (s *Store) path(executionID string) string {
	return filepath.Join(s.root, graphsDir, executionID+".json")
}

// Load reads the graph of executionID.
func (s *Store) Load(_ context.Context, executionID string) (*models.ExecutionGraph, error) {
	if err := validateExecutionID(executionID); err != nil {
		return nil, persistence.NewGraphError("Load", executionID, fmt.Errorf("%w: %w", persistence.ErrInvalidGraph, err))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.read(executionID)
}

func (s *Store) read(executionID string) (*models.ExecutionGraph, error) {
	data, err := os.ReadFile(s.path(executionID)) // #nosec G304 -- executionID is validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewGraphError("Load", executionID, persistence.ErrGraphNotFound)
		}

		return nil, fmt.Errorf("failed to read execution graph %s: %w", executionID, err)
	}

	var graph models.ExecutionGraph

	err = json.Unmarshal(data, &graph)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution graph %s: %w", executionID, err)
	}

	return &graph, nil
}

// Save writes the whole graph, replacing any previous version.
func (s *Store) Save(_ context.Context, graph *models.ExecutionGraph) error {
	if err := persistence.CheckGraph("Save", graph); err != nil {
		return err
	}

	if err := validateExecutionID(graph.ExecutionID); err != nil {
		return persistence.NewGraphError("Save", graph.ExecutionID, fmt.Errorf("%w: %w", persistence.ErrInvalidGraph, err))
	}

	data, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("failed to marshal execution graph %s: %w", graph.ExecutionID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = os.MkdirAll(filepath.Join(s.root, graphsDir), 0750)
	if err != nil {
		return fmt.Errorf("failed to create graphs directory: %w", err)
	}

	// Write to a temporary file first so readers never observe a partial document.
	tmp := s.path(graph.ExecutionID) + ".tmp"

	err = os.WriteFile(tmp, data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write execution graph %s: %w", graph.ExecutionID, err)
	}

	err = os.Rename(tmp, s.path(graph.ExecutionID))
	if err != nil {
		return fmt.Errorf("failed to commit execution graph %s: %w", graph.ExecutionID, err)
	}

	return nil
}

// SaveTasks replaces the given nodes of a stored graph.
func (s *Store) SaveTasks(ctx context.Context, executionID string, tasks []*models.TaskNode) error {
	return persistence.SaveTasksWith(ctx, s, executionID, tasks)
}

// Delete removes the graph of executionID. Deleting a missing graph is not an error.
func (s *Store) Delete(_ context.Context, executionID string) error {
	if err := validateExecutionID(executionID); err != nil {
		return persistence.NewGraphError("Delete", executionID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(executionID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete execution graph %s: %w", executionID, err)
	}

	return nil
}

// Expire deletes terminal graphs whose last update is older than olderThan and returns
// how many were removed. Running graphs are never expired.
func (s *Store) Expire(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root := os.DirFS(filepath.Join(s.root, graphsDir))

	files, err := fs.Glob(root, "*.json")
	if err != nil {
		return 0, fmt.Errorf("failed to list graph files: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0

	for _, file := range files {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}

		executionID := strings.TrimSuffix(file, ".json")

		graph, err := s.read(executionID)
		if err != nil {
			s.logger.Warn("Skipping unreadable graph file", "execution_id", executionID, "error", err)

			continue
		}

		if !graph.IsTerminal() || graph.UpdatedAt.After(cutoff) {
			continue
		}

		err = os.Remove(s.path(executionID))
		if err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to expire execution graph %s: %w", executionID, err)
		}

		removed++
	}

	if removed > 0 {
		s.logger.InfoContext(ctx, "Expired execution graphs", "count", removed, "older_than", olderThan)
	}

	return removed, nil
}

// HealthCheck checks if the store is healthy by verifying the root directory exists.
func (s *Store) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For the file store, there is nothing to clean up.
func (s *Store) Close(_ context.Context) error {
	return nil
}
