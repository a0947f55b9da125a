package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/dirtio/soilmap/internal/adapters/http"
	natsadapter "github.com/dirtio/soilmap/internal/adapters/nats"
	"github.com/dirtio/soilmap/internal/adapters/postgres"
	"github.com/dirtio/soilmap/internal/adapters/sda"
	"github.com/dirtio/soilmap/internal/adapters/soilapi"
	"github.com/dirtio/soilmap/internal/adapters/valkey"
	"github.com/dirtio/soilmap/internal/core/domain"
	"github.com/dirtio/soilmap/internal/core/ports"
	"github.com/dirtio/soilmap/internal/core/usecases"
	"github.com/dirtio/soilmap/internal/pkg/config"
	"github.com/dirtio/soilmap/internal/pkg/logging"
	"github.com/dirtio/soilmap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("soilmap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	deps := &http.Dependencies{
		MapConfig: domain.MapConfig{
			APIKey:          cfg.Maps.APIKey,
			Center:          domain.Coordinate{Lat: cfg.Maps.CenterLat, Lng: cfg.Maps.CenterLng},
			Zoom:            cfg.Maps.Zoom,
			ControlPosition: cfg.Maps.ControlPosition,
		},
	}

	// Map unit store (optional)
	var store ports.MapUnitRepository
	if cfg.Database.Enabled {
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		go db.ReportPoolStats(ctx, 15*time.Second)
		deps.DB = db
		if cfg.Soil.StoreEnabled {
			store = postgres.NewMapUnitRepo(db)
		}
	}

	// Cache
	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr, "soilmap"); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer vc.Close()
		cache = vc
		deps.Cache = vc
	}

	deps.Soil = usecases.NewSoilService(sda.New(cfg.SDA.URL, cfg.SDA.Timeout), store, cache, cfg.Soil.CacheTTL)

	deps.Resolver = newResolver(cfg, deps.Soil)

	deps.Hub = http.NewHub()
	unsubscribeHub := deps.Resolver.Subscribe(deps.Hub)
	defer unsubscribeHub()

	// NATS (optional): mirror click events onto the bus
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		defer deps.Resolver.Subscribe(pub)()
		deps.NATS = pub
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "Soilmap API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:3000, http://localhost:5173, http://localhost:6006",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "lookup_mode", cfg.Lookup.Mode)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// newResolver wires the click resolver. In the default local mode lookups
// stay in-process and never pass through the API's own rate limiter.
func newResolver(cfg *config.Config, soil *usecases.SoilService) *usecases.ClickResolver {
	var lookup ports.PolygonLookupService = soil
	if cfg.Lookup.Mode == "http" {
		lookup = soilapi.New(cfg.Lookup.BaseURL, cfg.Lookup.Timeout)
	}
	return usecases.NewClickResolver(lookup, usecases.ResolverOptions{
		LookupTimeout:     cfg.Lookup.Timeout,
		FallbackHalfWidth: cfg.Resolver.FallbackHalfWidth,
		DisableFallback:   !cfg.Resolver.FallbackEnabled,
	})
}
