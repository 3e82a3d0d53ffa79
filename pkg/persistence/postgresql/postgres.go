// Package postgresql provides the PostgreSQL archive store for execution graphs.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/persistence"
	"github.com/dukex/flowengine/pkg/persistence/sqlbase"

	// Registers the "postgres" driver.
	_ "github.com/lib/pq"
)

// Store archives execution graphs as jsonb documents.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore connects to databaseURL, runs the schema migrations and returns the store.
func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) (*Store, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger = logger.With("module", "postgres_archive")

	err = sqlbase.NewMigrationManager(logger, database, migrations()).RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: database, logger: logger}, nil
}

// Load returns the archived graph of executionID.
func (s *Store) Load(ctx context.Context, executionID string) (*models.ExecutionGraph, error) {
	var document []byte

	err := s.db.QueryRowContext(ctx,
		`SELECT graph FROM execution_graphs WHERE execution_id = $1`, executionID,
	).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewGraphError("Load", executionID, persistence.ErrGraphNotFound)
		}

		return nil, fmt.Errorf("failed to query execution graph %s: %w", executionID, err)
	}

	var graph models.ExecutionGraph

	err = json.Unmarshal(document, &graph)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution graph %s: %w", executionID, err)
	}

	return &graph, nil
}

// Save upserts the whole graph document.
func (s *Store) Save(ctx context.Context, graph *models.ExecutionGraph) error {
	if err := persistence.CheckGraph("Save", graph); err != nil {
		return err
	}

	document, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("failed to marshal execution graph %s: %w", graph.ExecutionID, err)
	}

	name := ""
	if graph.Definition != nil {
		name = graph.Definition.Name
	}

	var failureCode, failureMessage sql.NullString
	if graph.Invocation != nil && graph.Status == models.StatusFailed {
		failureCode = sql.NullString{String: graph.Invocation.Code, Valid: true}
		failureMessage = sql.NullString{String: graph.Invocation.Message, Valid: true}
	}

	createdAt, updatedAt := graph.CreatedAt, graph.UpdatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	query := `
		INSERT INTO execution_graphs (
			execution_id, graph_name, status, graph, failure_code, failure_message,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (execution_id) DO UPDATE SET
			graph_name = EXCLUDED.graph_name,
			status = EXCLUDED.status,
			graph = EXCLUDED.graph,
			failure_code = EXCLUDED.failure_code,
			failure_message = EXCLUDED.failure_message,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		graph.ExecutionID,
		name,
		string(graph.Status),
		document,
		failureCode,
		failureMessage,
		createdAt,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution graph %s: %w", graph.ExecutionID, err)
	}

	s.logger.DebugContext(ctx, "Archived execution graph", "execution_id", graph.ExecutionID, "status", graph.Status)

	return nil
}

// SaveTasks replaces the given nodes of an archived graph.
func (s *Store) SaveTasks(ctx context.Context, executionID string, tasks []*models.TaskNode) error {
	return persistence.SaveTasksWith(ctx, s, executionID, tasks)
}

// Summary is the row-level view of an archived graph.
type Summary struct {
	ExecutionID    string
	Name           string
	Status         models.Status
	FailureCode    string
	FailureMessage string
	UpdatedAt      time.Time
}

// ListByStatus returns the most recently updated archived graphs with the given status.
func (s *Store) ListByStatus(ctx context.Context, status models.Status, limit int) ([]Summary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT execution_id, graph_name, status, failure_code, failure_message, updated_at
		FROM execution_graphs
		WHERE status = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution graphs: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	summaries := make([]Summary, 0)

	for rows.Next() {
		var (
			summary                     Summary
			rawStatus                   string
			failureCode, failureMessage sql.NullString
		)

		err := rows.Scan(&summary.ExecutionID, &summary.Name, &rawStatus, &failureCode, &failureMessage, &summary.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution graph row: %w", err)
		}

		summary.Status = models.Status(rawStatus)
		summary.FailureCode = failureCode.String
		summary.FailureMessage = failureMessage.String
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate execution graph rows: %w", err)
	}

	return summaries, nil
}

// Close closes the database connection.
func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
