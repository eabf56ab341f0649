// Package bootstrap opens the storage backends selected by configuration.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"culturehub-api/internal/cache"
	"culturehub-api/internal/config"
	"culturehub-api/internal/repository"
)

// Catalog is a site repository that owns its connection.
type Catalog interface {
	repository.SiteRepository
	Ping(ctx context.Context) error
	Close() error
}

// OpenStore opens the document store holding accounts, codes, reviews and
// transfers.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (repository.Store, error) {
	switch strings.ToLower(cfg.Type) {
	case "mongodb", "mongo":
		store, err := repository.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
		}
		logger.Info("MongoDB store initialized", zap.String("database", cfg.MongoDatabase))
		return store, nil
	case "memory", "":
		logger.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store type %q", cfg.Type)
	}
}

// storeCatalog serves sites from the document store, whose lifetime is
// managed by the caller.
type storeCatalog struct {
	repository.SiteRepository
	store repository.Store
}

func (c storeCatalog) Ping(ctx context.Context) error { return c.store.Ping(ctx) }
func (c storeCatalog) Close() error                   { return nil }

// OpenCatalog opens the site catalog. The "store" type reuses the document
// store; sqlite, postgres and mysql open a dedicated SQL database.
func OpenCatalog(ctx context.Context, cfg config.CatalogConfig, store repository.Store, logger *zap.Logger) (Catalog, error) {
	var (
		dialect repository.Dialect
		dsn     string
	)
	switch strings.ToLower(cfg.Type) {
	case "store", "":
		if store == nil {
			return nil, fmt.Errorf("catalog type %q needs a document store", cfg.Type)
		}
		return storeCatalog{SiteRepository: store.Sites(), store: store}, nil
	case "sqlite":
		dialect, dsn = repository.DialectSQLite, cfg.Path
	case "postgres", "postgresql":
		dialect, dsn = repository.DialectPostgres, cfg.PostgresDSN()
	case "mysql":
		dialect, dsn = repository.DialectMySQL, cfg.MySQLDSN()
	default:
		return nil, fmt.Errorf("unsupported catalog type %q", cfg.Type)
	}

	repo, err := repository.OpenSQLSiteRepository(ctx, dialect, dsn, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s catalog: %w", dialect, err)
	}
	return repo, nil
}

// OpenCache opens the cache used for sessions and catalog lookups. When
// Redis is selected but unreachable the in-memory cache is used instead, so
// sessions then live only as long as the process.
func OpenCache(cfg config.CacheConfig, logger *zap.Logger) cache.Cache {
	if strings.ToLower(cfg.Type) != "redis" {
		logger.Info("in-memory cache initialized")
		return cache.NewMemoryCache()
	}

	redisCache, err := cache.NewRedisCache(cache.RedisConfig{
		Addr:      cfg.RedisAddress(),
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: cfg.KeyPrefix,
	})
	if err != nil {
		logger.Warn("Redis unavailable, falling back to in-memory cache",
			zap.String("addr", cfg.RedisAddress()), zap.Error(err))
		return cache.NewMemoryCache()
	}

	logger.Info("Redis cache initialized", zap.String("addr", cfg.RedisAddress()))
	return redisCache
}
