package laboneq

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	"github.com/royglick/laboneq/internal/engine"
	"github.com/royglick/laboneq/internal/store"
	"github.com/royglick/laboneq/pkg/workflow"
	"go.mongodb.org/mongo-driver/mongo"
)

// Re-export key types so users don't need to dig into pkg/workflow.

type (
	Engine               = workflow.Engine
	Workflow             = workflow.Workflow
	Builder              = workflow.Builder
	Run                  = workflow.Run
	RunListOptions       = workflow.RunListOptions
	TaskRecord           = workflow.TaskRecord
	TaskFunc             = workflow.TaskFunc
	Reference            = workflow.Reference
	Condition            = workflow.Condition
	RetryPolicy          = workflow.RetryPolicy
	Status               = workflow.Status
	Observer             = workflow.Observer
	LoggingObserver      = workflow.LoggingObserver
	BasicMetrics         = workflow.BasicMetrics
	BasicMetricsSnapshot = workflow.BasicMetricsSnapshot
	CompositeObserver    = workflow.CompositeObserver
	NoopObserver         = workflow.NoopObserver
)

// Re-export common builder and observer helpers.

var (
	NewBuilder           = workflow.NewBuilder
	WithRetry            = workflow.WithRetry
	Eq                   = workflow.Eq
	Gt                   = workflow.Gt
	Lt                   = workflow.Lt
	Truthy               = workflow.Truthy
	NewLoggingObserver   = workflow.NewLoggingObserver
	NewCompositeObserver = workflow.NewCompositeObserver
)

// Re-export status values for convenience.

const (
	StatusPending   = workflow.StatusPending
	StatusRunning   = workflow.StatusRunning
	StatusFailed    = workflow.StatusFailed
	StatusCompleted = workflow.StatusCompleted
)

// Engine constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewInMemoryEngine returns an Engine backed entirely by an in-memory store.
func NewInMemoryEngine() Engine {
	return engine.New(engine.Config{})
}

// NewInMemoryEngineWithObserver returns an in-memory Engine with the given Observer.
func NewInMemoryEngineWithObserver(obs Observer) Engine {
	return engine.New(engine.Config{Observer: obs})
}

// NewSQLiteEngine returns an Engine that persists runs in a SQLite database.
// Workflow definitions are kept in-memory.
func NewSQLiteEngine(db *sql.DB) (Engine, error) {
	st, err := store.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Config{Store: st}), nil
}

// NewSQLiteEngineWithObserver returns a SQLite-backed Engine with the given Observer.
func NewSQLiteEngineWithObserver(db *sql.DB, obs Observer) (Engine, error) {
	st, err := store.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Config{Store: st, Observer: obs}), nil
}

// NewPostgresEngine returns an Engine that persists runs in PostgreSQL.
func NewPostgresEngine(db *sql.DB) (Engine, error) {
	st, err := store.NewPostgresStore(db)
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Config{Store: st}), nil
}

// NewPostgresEngineWithObserver returns a Postgres-backed Engine with the given Observer.
func NewPostgresEngineWithObserver(db *sql.DB, obs Observer) (Engine, error) {
	st, err := store.NewPostgresStore(db)
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Config{Store: st, Observer: obs}), nil
}

// NewRedisEngine returns an Engine that persists runs in Redis.
func NewRedisEngine(client *redis.Client) Engine {
	return engine.New(engine.Config{Store: store.NewRedisStore(client, "")})
}

// NewRedisEngineWithObserver returns a Redis-backed Engine with the given Observer.
func NewRedisEngineWithObserver(client *redis.Client, obs Observer) Engine {
	return engine.New(engine.Config{Store: store.NewRedisStore(client, ""), Observer: obs})
}

// NewMongoEngine returns an Engine that persists runs in MongoDB.
func NewMongoEngine(client *mongo.Client) Engine {
	return engine.New(engine.Config{Store: store.NewMongoStore(client, "", "")})
}

// NewMongoEngineWithObserver returns a Mongo-backed Engine with the given Observer.
func NewMongoEngineWithObserver(client *mongo.Client, obs Observer) Engine {
	return engine.New(engine.Config{Store: store.NewMongoStore(client, "", ""), Observer: obs})
}

// Convenience helpers that just forward to the underlying Engine.

// RunWorkflow runs a registered workflow synchronously.
func RunWorkflow(ctx context.Context, eng Engine, name string, input map[string]any) (*Run, error) {
	return eng.Run(ctx, name, input)
}

// GetRun fetches a run by ID.
func GetRun(ctx context.Context, eng Engine, id string) (*Run, error) {
	return eng.GetRun(ctx, id)
}

// ListRuns lists runs according to the given options.
func ListRuns(ctx context.Context, eng Engine, opts RunListOptions) ([]*Run, error) {
	return eng.ListRuns(ctx, opts)
}

// Resume replays a previously failed run.
func Resume(ctx context.Context, eng Engine, id string) (*Run, error) {
	return eng.Resume(ctx, id)
}

// RecoverStuckRuns delegates to eng.RecoverStuckRuns.
//
// It is typically called on process startup before accepting new work:
//
//	count, err := laboneq.RecoverStuckRuns(ctx, engine)
func RecoverStuckRuns(ctx context.Context, eng Engine) (int, error) {
	return eng.RecoverStuckRuns(ctx)
}
