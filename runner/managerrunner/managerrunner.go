package managerrunner

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"github.com/scones-unlimited/image-workflows/internal/api"
	"github.com/scones-unlimited/image-workflows/internal/api/handlers"
	"github.com/scones-unlimited/image-workflows/internal/cache"
	"github.com/scones-unlimited/image-workflows/internal/domain"
	"github.com/scones-unlimited/image-workflows/internal/heartbeat"
	"github.com/scones-unlimited/image-workflows/internal/mq"
	"github.com/scones-unlimited/image-workflows/internal/queue"
	"github.com/scones-unlimited/image-workflows/internal/repository/postgres"
	"github.com/scones-unlimited/image-workflows/internal/repository/sqlite"
	"github.com/scones-unlimited/image-workflows/internal/service"
	"github.com/scones-unlimited/image-workflows/internal/spawner"
	"github.com/scones-unlimited/image-workflows/runner"
)

// Config holds configuration for the manager runner
type Config struct {
	// DatabaseURL is the PostgreSQL connection string or SQLite file path
	DatabaseURL string

	// Address is the HTTP server address
	Address string

	// DataFolder is where to store temporary files
	DataFolder string

	// StaticFolder is the path to static frontend files (optional)
	StaticFolder string

	// Redis configuration for the cache and fallback queue
	RedisURL  string
	RedisAddr string
	RedisPass string
	RedisDB   int

	// RabbitMQ configuration for the execution queue
	RabbitMQURL string

	// Spawner configuration
	SpawnerType             string
	SpawnerImage            string
	SpawnerNetwork          string
	SpawnerMaxWorkers       int
	SpawnerAutoRemove       bool
	SpawnerManagerURL       string
	SpawnerLambdaFunction   string
	SpawnerLambdaRegion     string
	SpawnerLambdaInvocation string
	SpawnerLambdaMaxConc    int
}

// ManagerRunner runs the manager API without doing pipeline work itself
type ManagerRunner struct {
	cfg       *Config
	db        *sql.DB
	srv       *http.Server
	execSvc   *service.ExecutionService
	workerSvc *service.WorkerService
	statsSvc  *service.StatsService
	hbMonitor *heartbeat.Monitor
	cache     cache.Cache
	queue     *queue.Queue
	mqPub     mq.Publisher
	spawner   spawner.Spawner
}

// New creates a new ManagerRunner
func New(cfg *Config) (runner.Runner, error) {
	if cfg.Address == "" {
		cfg.Address = ":8080"
	}
	if cfg.DataFolder == "" {
		cfg.DataFolder = "."
	}

	if err := os.MkdirAll(cfg.DataFolder, os.ModePerm); err != nil {
		return nil, err
	}

	db, execRepo, workerRepo, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// RabbitMQ is the preferred queue; Redis (asynq) is the fallback.
	var (
		mqPub mq.Publisher
		q     *queue.Queue
	)

	if cfg.RabbitMQURL != "" {
		mqPub, err = mq.NewPublisher(mq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			log.Printf("[Manager] WARNING: RabbitMQ unavailable, executions will not be queued: %v", err)
			mqPub = nil
		}
	}

	if mqPub == nil && (cfg.RedisURL != "" || cfg.RedisAddr != "") {
		q, err = queue.New(&queue.Config{
			RedisURL:  cfg.RedisURL,
			RedisAddr: cfg.RedisAddr,
			Password:  cfg.RedisPass,
			DB:        cfg.RedisDB,
		})
		if err != nil {
			log.Printf("[Manager] WARNING: Redis queue unavailable: %v", err)
			q = nil
		}
	}

	// Dashboard cache. Falls back to a no-op when Redis is absent.
	var c cache.Cache = cache.NewNoopCache()
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Printf("[Manager] WARNING: Redis cache unavailable: %v", err)
		} else {
			c = rc
		}
	}

	var execSvc *service.ExecutionService
	if mqPub != nil {
		execSvc = service.NewExecutionServiceWithMQ(execRepo, mqPub)
	} else {
		execSvc = service.NewExecutionService(execRepo, q)
	}

	workerSvc := service.NewWorkerService(workerRepo, execRepo)
	statsSvc := service.NewStatsService(execRepo, workerRepo)

	sp, err := newSpawner(cfg)
	if err != nil {
		return nil, err
	}
	if sp != nil {
		execSvc.SetSpawner(sp)
	}

	execHandler := handlers.NewExecutionHandlerWithCache(execSvc, c)
	workerHandler := handlers.NewWorkerHandler(workerSvc)
	statsHandler := handlers.NewStatsHandlerWithCache(statsSvc, c)

	router := api.NewRouter(execHandler, workerHandler, statsHandler)
	if cfg.StaticFolder != "" {
		router.ServeStatic(cfg.StaticFolder)
	}

	apiToken := os.Getenv("API_TOKEN")
	if apiToken == "" {
		apiToken = os.Getenv("API_KEY")
	}
	handler := router.Setup(apiToken)

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	hbMonitor := heartbeat.NewMonitor(workerSvc, 0)

	return &ManagerRunner{
		cfg:       cfg,
		db:        db,
		srv:       srv,
		execSvc:   execSvc,
		workerSvc: workerSvc,
		statsSvc:  statsSvc,
		hbMonitor: hbMonitor,
		cache:     c,
		queue:     q,
		mqPub:     mqPub,
		spawner:   sp,
	}, nil
}

// Run starts the manager
func (m *ManagerRunner) Run(ctx context.Context) error {
	egroup, ctx := errgroup.WithContext(ctx)

	egroup.Go(func() error {
		return m.hbMonitor.Run(ctx)
	})

	egroup.Go(func() error {
		return m.startServer(ctx)
	})

	return egroup.Wait()
}

// Close cleans up resources
func (m *ManagerRunner) Close(_ context.Context) error {
	if m.spawner != nil {
		_ = m.spawner.Close()
	}
	if m.mqPub != nil {
		_ = m.mqPub.Close()
	}
	if m.queue != nil {
		_ = m.queue.Close()
	}
	if m.cache != nil {
		_ = m.cache.Close()
	}
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

func (m *ManagerRunner) startServer(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := m.srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("error shutting down server: %v", err)
		}
	}()

	log.Printf("manager API server starting on http://localhost%s", m.cfg.Address)
	if strings.HasPrefix(m.cfg.DatabaseURL, "postgres") {
		log.Printf("using PostgreSQL database")
	} else {
		log.Printf("using SQLite database: %s", m.cfg.DatabaseURL)
	}
	log.Printf("API endpoints available at /api/v2/")

	err := m.srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func openDatabase(databaseURL string) (*sql.DB, domain.ExecutionRepository, domain.WorkerRepository, error) {
	isPostgres := strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://")

	if isPostgres {
		db, err := postgres.OpenConnection(databaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := postgres.RunMigrations(db); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		repos := postgres.NewRepositories(db)
		return db, repos.Executions, repos.Workers, nil
	}

	if databaseURL == "" {
		databaseURL = "workflows.db"
	}

	db, err := sqlite.OpenConnection(databaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := sqlite.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	repos := sqlite.NewRepositories(db)
	return db, repos.Executions, repos.Workers, nil
}

func newSpawner(cfg *Config) (spawner.Spawner, error) {
	if cfg.SpawnerType == "" || cfg.SpawnerType == string(spawner.SpawnerTypeNone) {
		return nil, nil
	}

	managerURL := cfg.SpawnerManagerURL
	if managerURL == "" {
		managerURL = "http://localhost" + cfg.Address
	}

	sp, err := spawner.New(&spawner.Config{
		Type:        spawner.SpawnerType(cfg.SpawnerType),
		ManagerURL:  managerURL,
		RabbitMQURL: cfg.RabbitMQURL,
		RedisAddr:   cfg.RedisAddr,
		Docker: spawner.DockerConfig{
			Image:      cfg.SpawnerImage,
			Network:    cfg.SpawnerNetwork,
			AutoRemove: cfg.SpawnerAutoRemove,
			MaxWorkers: cfg.SpawnerMaxWorkers,
		},
		Lambda: spawner.LambdaConfig{
			FunctionName:   cfg.SpawnerLambdaFunction,
			Region:         cfg.SpawnerLambdaRegion,
			InvocationType: cfg.SpawnerLambdaInvocation,
			MaxConcurrent:  cfg.SpawnerLambdaMaxConc,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s spawner: %w", cfg.SpawnerType, err)
	}

	log.Printf("[Manager] Auto-spawn enabled (type: %s)", sp.Name())
	return sp, nil
}
