package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	natsadapter "github.com/dirtio/soilmap/internal/adapters/nats"
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

// The resolver process turns clicks published on NATS into resolved results
// published back onto the bus.
func main() {
	cfg, err := config.Load("soilmap-resolver")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	var lookup ports.PolygonLookupService
	switch cfg.Lookup.Mode {
	case "local":
		var cache ports.CacheService
		if vc, err := valkey.New(cfg.Valkey.Addr, "soilmap"); err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer vc.Close()
			cache = vc
		}
		lookup = usecases.NewSoilService(sda.New(cfg.SDA.URL, cfg.SDA.Timeout), nil, cache, cfg.Soil.CacheTTL)
	default:
		lookup = soilapi.New(cfg.Lookup.BaseURL, cfg.Lookup.Timeout)
	}

	resolver := usecases.NewClickResolver(lookup, usecases.ResolverOptions{
		LookupTimeout:     cfg.Lookup.Timeout,
		FallbackHalfWidth: cfg.Resolver.FallbackHalfWidth,
		DisableFallback:   !cfg.Resolver.FallbackEnabled,
	})

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()
	defer resolver.Subscribe(pub)()

	// No queue group: every resolver instance must see every click to keep
	// last-click-wins ordering.
	sub, err := natsadapter.NewClickSubscriber(cfg.NATS.URL, cfg.NATS.ClickSubject, "")
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	stop, err := sub.Listen(ctx, func(ctx context.Context, click domain.Coordinate) {
		gen := resolver.Click(ctx, click)
		logging.FromContext(ctx).Debug("click received", "generation", gen, "lat", click.Lat, "lng", click.Lng)
	})
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer stop()

	slog.Info("resolver listening", "subject", cfg.NATS.ClickSubject, "lookup_mode", cfg.Lookup.Mode)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutting down resolver", "signal", sig.String())
}
