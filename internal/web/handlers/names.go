package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/speaker-labeler/internal/ai"
	"github.com/kozaktomas/speaker-labeler/internal/store"
)

// NamesHandler exposes LLM-backed name suggestions for processed recordings.
type NamesHandler struct {
	store    store.Store
	log      *slog.Logger
	provider ai.Provider // nil when no assist provider is configured
}

// NewNamesHandler creates a new names handler.
func NewNamesHandler(st store.Store, log *slog.Logger, provider ai.Provider) *NamesHandler {
	return &NamesHandler{
		store:    st,
		log:      log,
		provider: provider,
	}
}

// Suggest asks the configured assist provider for names of speakers that
// still carry a synthetic fallback name. Suggestions are returned to the
// caller; applying one goes through the rename endpoint.
func (h *NamesHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		respondError(w, http.StatusServiceUnavailable, "no naming assist provider configured")
		return
	}

	rec, err := h.store.GetRecording(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "recording not found")
		return
	}
	if rec.Result == nil {
		respondError(w, http.StatusConflict, "recording is not processed yet")
		return
	}

	clusters := make([]ai.ClusterContext, 0, len(rec.Result.Speakers))
	for _, s := range rec.Result.Speakers {
		if s.Confidence > 0 {
			// Extracted or manually set names are not second-guessed.
			continue
		}
		clusters = append(clusters, ai.ClusterContext{
			SpeakerID:    s.SpeakerID,
			CurrentName:  s.Name,
			SpeakingTime: rec.Result.AudioStats[s.SpeakerID].TotalDuration,
		})
	}
	if len(clusters) == 0 {
		respondJSON(w, http.StatusOK, map[string]any{"suggestions": []ai.NameSuggestion{}})
		return
	}

	suggestions, err := h.provider.SuggestNames(r.Context(), "", clusters)
	if err != nil {
		h.log.Error("naming assist failed", "provider", h.provider.Name(), "error", err)
		respondError(w, http.StatusBadGateway, "naming assist failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"provider":    h.provider.Name(),
		"suggestions": suggestions,
		"usage":       h.provider.GetUsage(),
	})
}

// Provider reports which naming assist provider is configured and how many
// tokens it has consumed so far.
func (h *NamesHandler) Provider(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		respondJSON(w, http.StatusOK, map[string]any{"configured": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"configured": true,
		"provider":   h.provider.Name(),
		"usage":      h.provider.GetUsage(),
	})
}
