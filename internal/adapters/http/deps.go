package http

import (
	natsadapter "github.com/dirtio/soilmap/internal/adapters/nats"
	"github.com/dirtio/soilmap/internal/adapters/postgres"
	"github.com/dirtio/soilmap/internal/adapters/valkey"
	"github.com/dirtio/soilmap/internal/core/domain"
	"github.com/dirtio/soilmap/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
// Resolver, Soil and MapConfig are required; the rest may be nil.
type Dependencies struct {
	Resolver  *usecases.ClickResolver
	Soil      *usecases.SoilService
	MapConfig domain.MapConfig
	Hub       *Hub
	NATS      *natsadapter.Publisher
	DB        *postgres.DB
	Cache     *valkey.Cache
}
