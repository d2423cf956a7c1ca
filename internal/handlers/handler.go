package handlers

import (
	"github.com/AlfRonDon/neurareport/internal/bus"
	"github.com/AlfRonDon/neurareport/internal/cache"
	"github.com/AlfRonDon/neurareport/internal/logging"
	"github.com/AlfRonDon/neurareport/internal/registry"
	"github.com/AlfRonDon/neurareport/internal/services"
)

// Handler contains all HTTP handlers
type Handler struct {
	logger   *logging.Logger
	registry registry.Manager
	store    *cache.Store
	// Services
	discoveryService *services.DiscoveryService
	generateService  *services.GenerateService
}

// New creates a new handler instance
func New(logger *logging.Logger, reg registry.Manager, client services.BatchDiscoverer,
	store *cache.Store, pub bus.Publisher, jobsSubject string,
) *Handler {
	discoveryService := services.NewDiscoveryService(logger, reg, client, store)
	generateService := services.NewGenerateService(logger, store, pub, jobsSubject)

	return &Handler{
		logger:           logger,
		registry:         reg,
		store:            store,
		discoveryService: discoveryService,
		generateService:  generateService,
	}
}
