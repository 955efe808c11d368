package apiapp

import (
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/modactions/internal/config"
	actionssvc "github.com/ivankudzin/modactions/internal/services/actions"
	"github.com/ivankudzin/modactions/internal/transport/http/handlers"
)

type Dependencies struct {
	ActionService *actionssvc.Service
	DeadLetters   handlers.DeadLetterStore
	Warnings      handlers.WarningStore
	Logger        *zap.Logger
	Config        config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	var batchTimeout time.Duration
	if deps.Config.Executor.BatchTimeout > 0 {
		batchTimeout = deps.Config.Executor.BatchTimeout
	}

	actionsHandler := handlers.NewActionsHandler(deps.ActionService, batchTimeout)
	deadLetterHandler := handlers.NewDeadLetterHandler(deps.DeadLetters)
	warningsHandler := handlers.NewWarningsHandler(deps.Warnings)
	healthHandler := handlers.NewHealthHandler(deps.ActionService)

	apiKeyMW := APIKeyMiddleware(deps.Config.Auth.APIKey, deps.Logger)

	r.Get("/health", healthHandler.Get)
	r.Get("/healthz", healthHandler.Get)

	actionRoutes := func(r chi.Router) {
		r.Use(apiKeyMW)
		r.Post("/execute", actionsHandler.Execute)
		r.Post("/batch", actionsHandler.Batch)
		r.Get("/status/{action_id}", actionsHandler.Status)
		r.Post("/cancel/{action_id}", actionsHandler.Cancel)
		r.Delete("/cancel/{action_id}", actionsHandler.Cancel)
		r.Get("/history", actionsHandler.History)
		r.Get("/pending-count", actionsHandler.PendingCount)
		r.Get("/stats/{group_id}", actionsHandler.Stats)
		r.Get("/dead-letters", deadLetterHandler.List)
		r.Post("/dead-letters/{id}/resolve", deadLetterHandler.Resolve)
	}
	warningRoutes := func(r chi.Router) {
		r.Use(apiKeyMW)
		r.Get("/{group_id}/{user_id}", warningsHandler.Get)
		r.Post("/{group_id}/{user_id}/reset", warningsHandler.Reset)
	}

	r.Route("/actions", actionRoutes)
	r.Route("/warnings", warningRoutes)

	// Versioned aliases for callers that expect the original path shape.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Get)
		r.Route("/actions", actionRoutes)
		r.Route("/warnings", warningRoutes)
	})
}
