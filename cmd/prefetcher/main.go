package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/dirtio/soilmap/internal/adapters/postgres"
	"github.com/dirtio/soilmap/internal/adapters/sda"
	"github.com/dirtio/soilmap/internal/adapters/valkey"
	"github.com/dirtio/soilmap/internal/core/domain"
	"github.com/dirtio/soilmap/internal/core/ports"
	"github.com/dirtio/soilmap/internal/core/usecases"
	"github.com/dirtio/soilmap/internal/pkg/config"
	"github.com/dirtio/soilmap/internal/pkg/logging"
	"github.com/dirtio/soilmap/internal/workflows"
)

func main() {
	cfg, err := config.Load("soilmap-prefetcher")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	points, err := workflows.ParsePoints(cfg.Prefetch.Points)
	if err != nil {
		log.Fatalf("prefetch points: %v", err)
	}

	ctx := context.Background()

	var store ports.MapUnitRepository
	if cfg.Database.Enabled && cfg.Soil.StoreEnabled {
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		store = postgres.NewMapUnitRepo(db)
	}

	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr, "soilmap"); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vc.Close()
		cache = vc
	}

	soil := usecases.NewSoilService(sda.New(cfg.SDA.URL, cfg.SDA.Timeout), store, cache, cfg.Soil.CacheTTL)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.PrefetchWorkflow)
	w.RegisterActivity(&workflows.PrefetchActivities{Soil: soil})

	if cfg.Prefetch.Schedule != "" {
		sched := cron.New()
		_, err := sched.AddFunc(cfg.Prefetch.Schedule, func() {
			startPrefetch(c, cfg.Temporal.TaskQueue, points)
		})
		if err != nil {
			log.Fatalf("prefetch schedule %q: %v", cfg.Prefetch.Schedule, err)
		}
		sched.Start()
		defer sched.Stop()
		slog.Info("prefetch scheduled", "schedule", cfg.Prefetch.Schedule, "points", len(points))
	}

	slog.Info("prefetch worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

func startPrefetch(c client.Client, taskQueue string, points []domain.Coordinate) {
	if len(points) == 0 {
		slog.Warn("prefetch skipped, no points configured")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        fmt.Sprintf("soil-prefetch-%s", uuid.NewString()),
		TaskQueue: taskQueue,
	}, workflows.PrefetchWorkflow, workflows.PrefetchInput{Points: points})
	if err != nil {
		slog.Error("start prefetch workflow failed", "error", err)
		return
	}
	slog.Info("prefetch workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())
}
