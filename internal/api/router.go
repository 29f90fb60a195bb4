package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Health check (no auth required)
	r.Get("/health", s.handleHealth)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Pairing
		r.Post("/pair/start", s.handlePairStart)
		r.Post("/pair/complete", s.handlePairComplete)
		r.Post("/unpair", s.handleUnpair)

		// Connection lifecycle and direct control
		r.Post("/connect", s.handleConnect)
		r.Post("/disconnect", s.handleDisconnect)
		r.Get("/status/{deviceId}", s.handleStatus)
		r.Get("/devices", s.handleListDevices)
		r.Post("/key", s.handleKey)
		r.Post("/app/launch", s.handleAppLaunch)
		r.Post("/text", s.handleText)

		// Scenes
		r.Post("/scene/save", s.handleSceneSave)
		r.Post("/scene/execute", s.handleSceneExecute)
		r.Get("/scenes", s.handleListScenes)
		r.Delete("/scene/{name}", s.handleSceneDelete)

		// Sync groups
		r.Post("/sync/create", s.handleSyncCreate)
		r.Post("/sync/command", s.handleSyncCommand)
		r.Get("/sync/groups", s.handleListSyncGroups)
		r.Delete("/sync/{groupName}", s.handleSyncDelete)

		// WebSocket state stream
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
