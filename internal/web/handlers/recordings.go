package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/speaker-labeler/internal/config"
	"github.com/kozaktomas/speaker-labeler/internal/constants"
	"github.com/kozaktomas/speaker-labeler/internal/output"
	"github.com/kozaktomas/speaker-labeler/internal/store"
)

// RecordingsHandler handles recording CRUD and result endpoints.
type RecordingsHandler struct {
	config *config.Config
	store  store.Store
	log    *slog.Logger
}

// NewRecordingsHandler creates a new recordings handler.
func NewRecordingsHandler(cfg *config.Config, st store.Store, log *slog.Logger) *RecordingsHandler {
	return &RecordingsHandler{
		config: cfg,
		store:  st,
		log:    log,
	}
}

// videoExtensions lists the upload formats ffmpeg is expected to handle.
var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".mov": true, ".webm": true, ".avi": true,
}

// Upload accepts a video file via multipart form and registers a recording.
func (h *RecordingsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	safeName := filepath.Base(header.Filename)
	if ext := strings.ToLower(filepath.Ext(safeName)); !videoExtensions[ext] {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported video format: %s", ext))
		return
	}

	if err := os.MkdirAll(h.config.Processing.UploadDir, 0o755); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create upload directory")
		return
	}

	id := uuid.New().String()
	videoPath := filepath.Join(h.config.Processing.UploadDir, id+"_"+safeName)
	out, err := os.Create(videoPath) //nolint:gosec // filename sanitized via filepath.Base
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create file")
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(videoPath)
		respondError(w, http.StatusInternalServerError, "failed to save file")
		return
	}
	out.Close()

	rec := &store.Recording{
		ID:        id,
		FileName:  safeName,
		VideoPath: videoPath,
		Status:    store.StatusPending,
	}
	if err := h.store.CreateRecording(r.Context(), rec); err != nil {
		os.Remove(videoPath)
		respondError(w, http.StatusInternalServerError, "failed to register recording")
		return
	}

	h.log.Info("recording uploaded", "id", id, "file", sanitizeForLog(safeName))
	respondJSON(w, http.StatusCreated, rec)
}

// List returns all recordings, newest first.
func (h *RecordingsHandler) List(w http.ResponseWriter, r *http.Request) {
	recordings, err := h.store.ListRecordings(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list recordings")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"recordings": recordings,
		"count":      len(recordings),
	})
}

// Get returns one recording, including its result document when processed.
func (h *RecordingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Delete removes a recording and its uploaded video file.
func (h *RecordingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteRecording(r.Context(), rec.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete recording")
		return
	}
	if rec.VideoPath != "" {
		if err := os.Remove(rec.VideoPath); err != nil && !os.IsNotExist(err) {
			h.log.Warn("failed to remove video file", "path", rec.VideoPath, "error", err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Subtitles serves the labeled SRT file produced for a completed recording.
func (h *RecordingsHandler) Subtitles(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if rec.Status != store.StatusCompleted {
		respondError(w, http.StatusConflict, "recording is not processed yet")
		return
	}

	base := strings.TrimSuffix(filepath.Base(rec.VideoPath), filepath.Ext(rec.VideoPath))
	srtPath := filepath.Join(h.config.Processing.OutputDir, base+".srt")
	data, err := os.ReadFile(srtPath)
	if err != nil {
		respondError(w, http.StatusNotFound, "no subtitles available for this recording")
		return
	}

	w.Header().Set("Content-Type", "application/x-subrip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base+".srt"))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// renameRequest is the body of a speaker rename call.
type renameRequest struct {
	Name string `json:"name"`
}

// RenameSpeaker overrides one speaker's name in a processed recording.
func (h *RecordingsHandler) RenameSpeaker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	speakerID := chi.URLParam(r, "speakerId")

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	rec, err := h.store.GetRecording(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "recording not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load recording")
		return
	}

	oldName := ""
	if rec.Result != nil {
		for _, sp := range rec.Result.Speakers {
			if sp.SpeakerID == speakerID {
				oldName = sp.Name
				break
			}
		}
	}

	if err := h.store.RenameSpeaker(r.Context(), id, speakerID, req.Name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "recording not found")
			return
		}
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	if oldName != "" && oldName != req.Name {
		h.regenerateSubtitles(rec, oldName, req.Name)
	}

	h.log.Info("speaker renamed", "recording", id, "speaker", speakerID, "name", sanitizeForLog(req.Name))
	respondJSON(w, http.StatusOK, map[string]bool{"renamed": true})
}

// regenerateSubtitles rewrites the stored SRT file so its cue prefixes match
// the renamed speaker. Best effort, a missing file is not an error.
func (h *RecordingsHandler) regenerateSubtitles(rec *store.Recording, oldName, newName string) {
	base := strings.TrimSuffix(filepath.Base(rec.VideoPath), filepath.Ext(rec.VideoPath))
	srtPath := filepath.Join(h.config.Processing.OutputDir, base+".srt")
	data, err := os.ReadFile(srtPath)
	if err != nil {
		return
	}
	updated := output.RenameInSRT(string(data), oldName, newName)
	if err := os.WriteFile(srtPath, []byte(updated), 0o644); err != nil {
		h.log.Warn("failed to rewrite subtitles", "path", srtPath, "error", err)
	}
}

// lookup loads the recording from the URL parameter, writing the error
// response itself on failure.
func (h *RecordingsHandler) lookup(w http.ResponseWriter, r *http.Request) (*store.Recording, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing recording ID")
		return nil, false
	}

	rec, err := h.store.GetRecording(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "recording not found")
			return nil, false
		}
		respondError(w, http.StatusInternalServerError, "failed to load recording")
		return nil, false
	}
	return rec, true
}
