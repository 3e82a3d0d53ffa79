// Package redis provides the hot execution graph store backed by Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL bounds how long a graph stays in the hot store after its last save.
	DefaultTTL = 24 * time.Hour
	// DefaultMaxSize is the largest encoded graph accepted, in bytes.
	DefaultMaxSize = 512 * 1024

	graphPrefix = "flowengine:graph:"
)

// Config tunes the retention of the hot store.
type Config struct {
	TTL     time.Duration
	MaxSize int
}

// Store keeps encoded graphs under one key per execution.
type Store struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
	max    int
}

// NewStore parses redisURL, checks the connection and returns the store.
func NewStore(ctx context.Context, logger *slog.Logger, redisURL string, config Config) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	_, err = client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewStoreWithClient(client, logger, config), nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *redis.Client, logger *slog.Logger, config Config) *Store {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}

	if config.MaxSize <= 0 {
		config.MaxSize = DefaultMaxSize
	}

	return &Store{
		client: client,
		logger: logger.With("module", "redis_store"),
		ttl:    config.TTL,
		max:    config.MaxSize,
	}
}

func key(executionID string) string {
	return graphPrefix + executionID
}

// Load reads the graph of executionID.
func (s *Store) Load(ctx context.Context, executionID string) (*models.ExecutionGraph, error) {
	data, err := s.client.Get(ctx, key(executionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewGraphError("Load", executionID, persistence.ErrGraphNotFound)
		}

		return nil, fmt.Errorf("failed to get execution graph %s: %w", executionID, err)
	}

	var graph models.ExecutionGraph

	err = json.Unmarshal(data, &graph)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution graph %s: %w", executionID, err)
	}

	return &graph, nil
}

// Save stores the graph with the configured TTL. Graphs whose encoding exceeds the
// configured size are rejected with ErrGraphTooLarge and nothing is written.
func (s *Store) Save(ctx context.Context, graph *models.ExecutionGraph) error {
	if err := persistence.CheckGraph("Save", graph); err != nil {
		return err
	}

	data, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("failed to marshal execution graph %s: %w", graph.ExecutionID, err)
	}

	if len(data) > s.max {
		s.logger.DebugContext(ctx, "Execution graph exceeds hot store size",
			"execution_id", graph.ExecutionID, "size", len(data), "max", s.max)

		return persistence.NewGraphError("Save", graph.ExecutionID,
			fmt.Errorf("%w: %d bytes, limit %d", persistence.ErrGraphTooLarge, len(data), s.max))
	}

	err = s.client.Set(ctx, key(graph.ExecutionID), data, s.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set execution graph %s: %w", graph.ExecutionID, err)
	}

	return nil
}

// SaveTasks replaces the given nodes of a stored graph.
func (s *Store) SaveTasks(ctx context.Context, executionID string, tasks []*models.TaskNode) error {
	return persistence.SaveTasksWith(ctx, s, executionID, tasks)
}

// Delete removes the graph of executionID.
func (s *Store) Delete(ctx context.Context, executionID string) error {
	err := s.client.Del(ctx, key(executionID)).Err()
	if err != nil {
		return fmt.Errorf("failed to delete execution graph %s: %w", executionID, err)
	}

	return nil
}

// HealthCheck pings the server.
func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// Close closes the client.
func (s *Store) Close(_ context.Context) error {
	err := s.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}
