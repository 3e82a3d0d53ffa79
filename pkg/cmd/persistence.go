package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/flowengine/pkg/persistence"
	"github.com/dukex/flowengine/pkg/persistence/file"
	"github.com/dukex/flowengine/pkg/persistence/postgresql"
	"github.com/dukex/flowengine/pkg/persistence/redis"
	"github.com/dukex/flowengine/pkg/persistence/tiered"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql", "redis", "rediss"}

// StoreConfig describes where execution graphs live. URL selects the primary store. With a
// redis primary, graphs over MaxSize go to the file store at OverflowPath and terminal graphs
// are copied to ArchiveURL when it is set.
type StoreConfig struct {
	URL          string
	OverflowPath string
	ArchiveURL   string
	TTL          time.Duration
	MaxSize      int
}

// Stores is the assembled graph store plus the file tier the retention sweeper expires.
// Expirable is nil when no file store is in use.
type Stores struct {
	Graphs    persistence.GraphStore
	Expirable *file.Store
}

// NewStores opens every store config asks for.
func NewStores(ctx context.Context, logger *slog.Logger, config StoreConfig) (*Stores, error) {
	provider := parsePersistenceProvider(config.URL)

	switch provider {
	case "redis", "rediss":
		hot, err := redis.NewStore(ctx, logger, config.URL, redis.Config{TTL: config.TTL, MaxSize: config.MaxSize})
		if err != nil {
			return nil, err
		}

		overflowPath := config.OverflowPath
		if overflowPath == "" {
			overflowPath = "./data/overflow"
		}

		overflow := file.NewStore(overflowPath, logger)

		var archive persistence.GraphStore

		if config.ArchiveURL != "" {
			archiveStore, err := postgresql.NewStore(ctx, logger, config.ArchiveURL)
			if err != nil {
				_ = hot.Close(ctx)

				return nil, fmt.Errorf("failed to open archive: %w", err)
			}

			archive = archiveStore
		}

		return &Stores{
			Graphs:    tiered.NewStore(logger, hot, overflow, archive),
			Expirable: overflow,
		}, nil
	case "postgres", "postgresql":
		store, err := postgresql.NewStore(ctx, logger, config.URL)
		if err != nil {
			return nil, err
		}

		return &Stores{Graphs: store}, nil
	default:
		store := file.NewStore(config.URL, logger)

		return &Stores{Graphs: store, Expirable: store}, nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
