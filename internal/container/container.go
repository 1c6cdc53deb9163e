package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/go-redirector/internal/health"
	"github.com/serroba/go-redirector/internal/redirect"
	"github.com/serroba/go-redirector/internal/store"
	"go.uber.org/zap"
)

type Options struct {
	Port            int    `default:"8888"           help:"Port to listen on"                                      short:"p"`
	RedisAddr       string `default:"localhost:6379" help:"Redis server address, empty keeps the cache in process"  short:"r"`
	CachePrefix     string `default:"redirector:"    help:"Prefix applied to every cache key"`
	CacheTTLMinutes int    `default:"120"            help:"Sliding expiration of cache entries in minutes"`
	DatabaseURL     string `help:"PostgreSQL connection URL, empty uses sqlite-path"                              short:"d"`
	SQLitePath      string `default:"redirector.db"  help:"SQLite file or libsql:// URL"`
	DefaultLink     string `help:"Static link used when nothing else resolves"`
	OnStoreError    string `default:"fail"           help:"Behaviour when the record store fails: fail or fallback"`
	VisitMode       string `default:"inline"         help:"Where visits are applied: inline or stream"`
	VisitWorkers    int    `default:"4"              help:"Goroutines applying visits"`
	VisitQueueSize  int    `default:"1024"           help:"Visits buffered before new ones are dropped"`
	ConsumerGroup   string `default:"redirector"     help:"Redis stream consumer group"`
	LogFormat       string `default:"console"        help:"Log format: console or json"`
}

// Visit modes.
const (
	VisitModeInline = "inline"
	VisitModeStream = "stream"
)

// RecordStore is the database holding domains, groups, records and visit counters.
type RecordStore interface {
	redirect.Repository
	redirect.VisitStore
	health.Checker
}

// redisConn closes the shared client on injector shutdown.
type redisConn struct {
	*redis.Client
}

func (c *redisConn) Shutdown() error {
	return c.Close()
}

func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.LogFormat == "json" {
			return zap.NewProduction()
		}

		return zap.NewDevelopment()
	})
}

func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*redisConn, error) {
		opts := do.MustInvoke[*Options](i)
		if opts.RedisAddr == "" {
			return nil, errors.New("redis-addr is required")
		}

		return &redisConn{Client: redis.NewClient(&redis.Options{Addr: opts.RedisAddr})}, nil
	})
}

func CachePackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (redirect.Cache, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if opts.RedisAddr == "" {
			logger.Info("using in-process cache")

			return store.NewMemoryCache(), nil
		}

		conn := do.MustInvoke[*redisConn](i)

		return store.NewRedisCache(conn.Client, opts.CachePrefix), nil
	})
}

func RepositoryPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (RecordStore, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if opts.DatabaseURL != "" {
			pool, err := pgxpool.New(ctx, opts.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("connect postgres: %w", err)
			}

			logger.Info("using postgres record store")

			return store.NewPostgresStore(pool), nil
		}

		sqlStore, err := store.OpenSQLStore(opts.SQLitePath)
		if err != nil {
			return nil, err
		}

		if err := sqlStore.EnsureSchema(ctx); err != nil {
			_ = sqlStore.Shutdown()

			return nil, fmt.Errorf("create schema: %w", err)
		}

		logger.Info("using sql record store", zap.String("dsn", opts.SQLitePath))

		return sqlStore, nil
	})
}

func RedirectPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*redirect.Service, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		policy, err := redirect.ParseOutagePolicy(opts.OnStoreError)
		if err != nil {
			return nil, err
		}

		resolver := redirect.NewResolver(
			do.MustInvoke[redirect.Cache](i),
			do.MustInvoke[RecordStore](i),
			time.Duration(opts.CacheTTLMinutes)*time.Minute,
			logger,
		)

		if opts.DefaultLink == "" {
			logger.Warn("no default link configured, unresolved requests will fail")
		}

		return redirect.NewService(
			resolver,
			do.MustInvoke[redirect.VisitRecorder](i),
			opts.DefaultLink,
			policy,
			logger,
		), nil
	})
}
