// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/socialgraph-parser/internal/api"
	"github.com/JakeFAU/socialgraph-parser/internal/config"
	memorydedup "github.com/JakeFAU/socialgraph-parser/internal/dedup/memory"
	redisdedup "github.com/JakeFAU/socialgraph-parser/internal/dedup/redis"
	memoryfrontier "github.com/JakeFAU/socialgraph-parser/internal/frontier/memory"
	pubsubfrontier "github.com/JakeFAU/socialgraph-parser/internal/frontier/pubsub"
	"github.com/JakeFAU/socialgraph-parser/internal/id/uuid"
	"github.com/JakeFAU/socialgraph-parser/internal/metrics"
	"github.com/JakeFAU/socialgraph-parser/internal/parser"
	"github.com/JakeFAU/socialgraph-parser/internal/pipeline"
	"github.com/JakeFAU/socialgraph-parser/internal/queue/memory"
	"github.com/JakeFAU/socialgraph-parser/internal/storage/gcs"
	"github.com/JakeFAU/socialgraph-parser/internal/storage/local"
	memorystorage "github.com/JakeFAU/socialgraph-parser/internal/storage/memory"
	"github.com/JakeFAU/socialgraph-parser/internal/storage/postgres"
	"github.com/JakeFAU/socialgraph-parser/internal/supervisor"
)

const readHeaderTimeout = 10 * time.Second

// Factories builds the remote backends. Tests replace individual fields.
type Factories struct {
	UserStore  func(ctx context.Context, cfg config.Config) (parser.UserSink, func() error, error)
	Frontier   func(ctx context.Context, cfg config.Config) (parser.Frontier, func() error, error)
	Dedup      func(ctx context.Context, cfg config.Config) (parser.DedupFilter, func() error, error)
	Quarantine func(ctx context.Context, cfg config.Config) (parser.BlobStore, func() error, error)
}

// DefaultFactories selects each backend from cfg.
func DefaultFactories() Factories {
	return Factories{
		UserStore:  newUserStore,
		Frontier:   newFrontier,
		Dedup:      newDedup,
		Quarantine: newQuarantine,
	}
}

// App holds all the shared, long-lived services for the application.
// It is built once at startup and owns the queues, the supervisor, and the
// backends they write to.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	users      parser.UserSink
	frontier   parser.Frontier
	dedup      parser.DedupFilter
	quarantine parser.BlobStore

	queues     map[parser.Kind]*memory.Queue[parser.PageTask]
	handlers   *pipeline.Handlers
	supervisor *supervisor.Supervisor
	server     *api.Server

	closers []func() error
}

// New creates and initializes an App with the default backend factories.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	return NewWithFactories(ctx, cfg, logger, DefaultFactories())
}

// NewWithFactories creates an App. It fails fast if any backend cannot be
// initialized, releasing the ones already opened.
func NewWithFactories(ctx context.Context, cfg config.Config, logger *zap.Logger, f Factories) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	metrics.Init()
	logger.Info("initializing application services",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("frontier", cfg.Frontier.Backend),
		zap.String("dedup", cfg.Dedup.Backend),
		zap.String("quarantine", cfg.Quarantine.Backend),
	)

	a := &App{cfg: cfg, logger: logger}
	var err error
	if a.users, err = open(ctx, a, "user store", cfg, f.UserStore); err != nil {
		return nil, a.abort(err)
	}
	if a.frontier, err = open(ctx, a, "frontier", cfg, f.Frontier); err != nil {
		return nil, a.abort(err)
	}
	if a.dedup, err = open(ctx, a, "dedup filter", cfg, f.Dedup); err != nil {
		return nil, a.abort(err)
	}
	if a.quarantine, err = open(ctx, a, "quarantine store", cfg, f.Quarantine); err != nil {
		return nil, a.abort(err)
	}

	a.handlers, err = pipeline.New(pipeline.Deps{
		Users:            a.users,
		Frontier:         a.frontier,
		Dedup:            a.dedup,
		Quarantine:       a.quarantine,
		QuarantinePrefix: cfg.Quarantine.Prefix,
		ContentCacheSize: cfg.Pipeline.ContentCacheSize,
		Logger:           logger.Named("pipeline"),
	})
	if err != nil {
		return nil, a.abort(err)
	}

	a.queues = map[parser.Kind]*memory.Queue[parser.PageTask]{
		parser.KindProfile: memory.NewQueue[parser.PageTask](cfg.Queues.ProfileCapacity),
		parser.KindFollow:  memory.NewQueue[parser.PageTask](cfg.Queues.FollowCapacity),
	}
	a.supervisor, err = supervisor.NewWithMemoryQueues(a.queues, a.handlers, logger.Named("supervisor"))
	if err != nil {
		return nil, a.abort(err)
	}

	enqueuers := make(map[parser.Kind]api.Enqueuer, len(a.queues))
	for kind, q := range a.queues {
		enqueuers[kind] = q
	}
	a.server = api.NewServer(enqueuers, a.supervisor, uuid.New(), cfg, logger.Named("api"))

	logger.Info("application services initialized")
	return a, nil
}

func open[T any](
	ctx context.Context,
	a *App,
	what string,
	cfg config.Config,
	factory func(context.Context, config.Config) (T, func() error, error),
) (T, error) {
	var zero T
	if factory == nil {
		return zero, fmt.Errorf("no factory for %s", what)
	}
	v, closer, err := factory(ctx, cfg)
	if err != nil {
		return zero, fmt.Errorf("failed to initialize %s: %w", what, err)
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	return v, nil
}

func (a *App) abort(err error) error {
	return errors.Join(err, a.closeBackends())
}

// Handler exposes the HTTP API.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Supervisor exposes the worker supervisor.
func (a *App) Supervisor() *supervisor.Supervisor {
	return a.supervisor
}

// Run listens on the configured port and serves until ctx ends.
func (a *App) Run(ctx context.Context) error {
	addr := net.JoinHostPort("", strconv.Itoa(a.cfg.Server.Port))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve starts the workers, the supervisor loop, and the HTTP server on ln.
// When ctx ends the server is drained, the queues are closed, and Serve
// returns once every worker has exited.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := a.supervisor.StartAll(gctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("start workers: %w", err)
	}

	g.Go(func() error {
		a.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down http server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.supervisor.Watch(gctx, a.cfg.Supervisor.PollInterval)
	})

	err := g.Wait()
	for _, q := range a.queues {
		q.Close()
	}
	a.supervisor.Wait()
	a.logger.Info("workers stopped")
	return err
}

// Close gracefully shuts down all backends in the App container.
func (a *App) Close() error {
	a.logger.Info("shutting down application services")
	return a.closeBackends()
}

func (a *App) closeBackends() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing backend", zap.Error(err))
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newUserStore(ctx context.Context, cfg config.Config) (parser.UserSink, func() error, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return memorystorage.NewUserStore(), nil, nil
	case config.BackendPostgres:
		store, err := postgres.NewUserStore(ctx, postgres.UserStoreConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		return store, func() error { store.Close(); return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

func newFrontier(ctx context.Context, cfg config.Config) (parser.Frontier, func() error, error) {
	switch cfg.Frontier.Backend {
	case config.BackendMemory:
		return memoryfrontier.New(), nil, nil
	case config.BackendPubSub:
		f, err := pubsubfrontier.New(ctx, pubsubfrontier.Config{
			ProjectID: cfg.PubSub.ProjectID,
			TopicName: cfg.PubSub.TopicName,
		})
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown frontier backend: %s", cfg.Frontier.Backend)
	}
}

func newDedup(ctx context.Context, cfg config.Config) (parser.DedupFilter, func() error, error) {
	switch cfg.Dedup.Backend {
	case config.BackendMemory:
		return memorydedup.NewFilter(), nil, nil
	case config.BackendRedis:
		f, err := redisdedup.New(redisdedup.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := f.Ping(ctx); err != nil {
			return nil, nil, errors.Join(err, f.Close())
		}
		return f, f.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown dedup backend: %s", cfg.Dedup.Backend)
	}
}

func newQuarantine(ctx context.Context, cfg config.Config) (parser.BlobStore, func() error, error) {
	switch cfg.Quarantine.Backend {
	case config.BackendNone:
		return nil, nil, nil
	case config.BackendMemory:
		return memorystorage.NewBlobStore(), nil, nil
	case config.BackendLocal:
		store, err := local.New(local.Config{BaseDir: cfg.Quarantine.BaseDir})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case config.BackendGCS:
		store, err := gcs.Open(ctx, gcs.DefaultClientFactory{}, gcs.Config{Bucket: cfg.Quarantine.GCSBucket})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown quarantine backend: %s", cfg.Quarantine.Backend)
	}
}
