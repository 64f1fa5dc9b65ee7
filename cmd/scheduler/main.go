package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/forgeci/buildqueue/internal/persistence"
	"github.com/forgeci/buildqueue/internal/queue"
	"github.com/forgeci/buildqueue/internal/queueapi"
	"github.com/forgeci/buildqueue/internal/queueconfig"
	"github.com/forgeci/buildqueue/internal/queuedemo"
)

func main() {
	_ = godotenv.Load()

	logger := slog.Default()
	registry := queuedemo.NewRegistry()

	q := queue.NewQueue(nil, logger)
	defer q.Close()

	if err := loadQueueState(q, registry); err != nil {
		logger.Error("failed to load persisted queue state", "error", err)
	}

	feed := queueapi.NewFeed(logger)
	server := queueapi.NewServer(q, registry.Resolve, feed, logger)

	applyPolicy(q, server, logger)

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server.RegisterRoutes(e)

	go func() {
		if err := e.Start(":8080"); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	e.Logger.Info("shutting down scheduler...")

	if err := q.Save(queueStatePath()); err != nil {
		logger.Error("failed to save queue state", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	archiveQueueState(ctx, q, logger)

	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}

	e.Logger.Info("scheduler stopped")
}

// applyPolicy loads the optional declarative scheduler.hcl policy file
// and wires its fields into q and server. A missing SCHEDULER_POLICY_PATH
// is not an error; the scheduler runs with zero-value defaults (no
// default quiet period, no resource groups, node weights purely from
// executor counts) the same way it always has.
func applyPolicy(q *queue.Queue, server *queueapi.Server, logger *slog.Logger) {
	path := os.Getenv("SCHEDULER_POLICY_PATH")
	if path == "" {
		return
	}

	policy, err := queueconfig.Load(path)
	if err != nil {
		logger.Error("failed to load scheduler policy", "path", path, "error", err)
		return
	}

	server.SetDefaultQuietPeriod(policy.DefaultQuietPeriod)
	q.SetResourceGroups(policy.Resources)
	q.SetNodeWeights(policy.NodeWeights)
	logger.Info("applied scheduler policy", "path", path,
		"defaultQuietPeriod", policy.DefaultQuietPeriod,
		"resourceGroups", len(policy.Resources),
		"nodeWeights", len(policy.NodeWeights))
}

// loadQueueState restores persisted items from the configured backend.
// STORE_TYPE selects between the plain queue.xml file (default) and an
// optional Postgres-backed store; neither existing is not an error.
func loadQueueState(q *queue.Queue, registry *queuedemo.Registry) error {
	switch os.Getenv("STORE_TYPE") {
	case "postgres":
		dbURL := os.Getenv("DATABASE_URL")
		if dbURL == "" {
			log.Fatal("DATABASE_URL environment variable is required when STORE_TYPE=postgres")
		}
		store, err := persistence.NewPostgresStore(dbURL)
		if err != nil {
			return err
		}
		entries, err := store.Load()
		if err != nil {
			return err
		}
		q.Import(entries, registry.Resolve)
		return nil
	default:
		return q.Load(queueStatePath(), legacyQueueStatePath(), registry.Resolve)
	}
}

// archiveQueueState uploads the persisted snapshot to S3 when
// ARCHIVE_BUCKET is configured, as an off-box retention copy alongside
// the local queue.xml written by Save above. A missing bucket is not an
// error; archival is opt-in.
func archiveQueueState(ctx context.Context, q *queue.Queue, logger *slog.Logger) {
	bucket := os.Getenv("ARCHIVE_BUCKET")
	if bucket == "" {
		return
	}

	archiver, err := persistence.NewArchiver(ctx, bucket, os.Getenv("ARCHIVE_PREFIX"))
	if err != nil {
		logger.Error("failed to build archive uploader", "error", err)
		return
	}
	if err := archiver.Upload(ctx, q.Export(), time.Now()); err != nil {
		logger.Error("failed to archive queue state", "error", err)
	}
}

func queueStatePath() string {
	if p := os.Getenv("QUEUE_STATE_PATH"); p != "" {
		return p
	}
	return "queue.xml"
}

func legacyQueueStatePath() string {
	if p := os.Getenv("QUEUE_LEGACY_STATE_PATH"); p != "" {
		return p
	}
	return "queue.txt"
}
