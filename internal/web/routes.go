package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/speaker-labeler/internal/web/handlers"
)

func (s *Server) setupRoutes(deps Deps) {
	// Create handlers
	recordingsHandler := handlers.NewRecordingsHandler(s.config, deps.Store, deps.Log)
	processHandler := handlers.NewProcessHandler(deps.Store, deps.Log, s.jobManager, deps.Runner, deps.Metrics)
	namesHandler := handlers.NewNamesHandler(deps.Store, deps.Log, deps.Assist)
	healthHandler := handlers.NewHealthHandler(deps.Services)

	// Health check and metrics
	s.router.Get("/api/v1/health", healthHandler.Get)
	s.router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Recordings
		r.Post("/recordings", recordingsHandler.Upload)
		r.Get("/recordings", recordingsHandler.List)
		r.Get("/recordings/{id}", recordingsHandler.Get)
		r.Delete("/recordings/{id}", recordingsHandler.Delete)
		r.Get("/recordings/{id}/subtitles", recordingsHandler.Subtitles)
		r.Put("/recordings/{id}/speakers/{speakerId}", recordingsHandler.RenameSpeaker)
		r.Post("/recordings/{id}/suggest-names", namesHandler.Suggest)
		r.Get("/provider", namesHandler.Provider)

		// Processing (long-running operations)
		r.Post("/recordings/{id}/process", processHandler.Start)
		r.Get("/jobs/{jobId}", processHandler.Status)
		r.Get("/jobs/{jobId}/events", processHandler.Events)
		r.Delete("/jobs/{jobId}", processHandler.Cancel)
	})

	// Landing page for humans poking at the API
	s.router.Get("/", s.serveIndex)
}

// serveIndex serves a minimal status page.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Speaker Labeler</title>
    <style>
        body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #1a1a2e; color: #eee; }
        .container { text-align: center; }
        h1 { color: #00d9ff; }
        p { color: #aaa; }
        a { color: #00d9ff; }
        code { background: #2a2a3e; padding: 2px 8px; border-radius: 4px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Speaker Labeler</h1>
        <p>Upload a recording with <code>POST /api/v1/recordings</code> and start a job with <code>POST /api/v1/recordings/{id}/process</code>.</p>
        <p>API health is at <a href="/api/v1/health">/api/v1/health</a></p>
    </div>
</body>
</html>`))
}
