package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/albydefault/notes-app/internal/models"
	"github.com/albydefault/notes-app/internal/processor"
	"github.com/albydefault/notes-app/internal/store"
)

type generatedFile struct {
	Type models.FileType `json:"type"`
	File string          `json:"file"`
}

// HandleProcessNotes runs the three-stage generation pipeline for one
// session and returns the generated documents.
func (h *Handler) HandleProcessNotes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/api/process-notes/")
	if sessionID == "" {
		h.writeError(w, "Session id required", http.StatusBadRequest)
		return
	}

	session, err := h.processor.ProcessSession(r.Context(), sessionID)
	if err != nil {
		var stageErr *processor.StageError
		switch {
		case errors.Is(err, store.ErrNotFound):
			h.writeError(w, "Session not found", http.StatusNotFound)
		case errors.Is(err, processor.ErrNoScannedFiles):
			h.writeError(w, "Session has no scanned images to process", http.StatusBadRequest)
		case errors.Is(err, store.ErrAlreadyProcessing):
			h.writeError(w, "Session is already processing", http.StatusConflict)
		case errors.Is(err, processor.ErrNoGenerator):
			h.writeError(w, "Generative model is not configured", http.StatusServiceUnavailable)
		case errors.As(err, &stageErr):
			h.writeError(w, "Failed to process notes at stage "+string(stageErr.Stage)+": "+stageErr.Err.Error(), http.StatusInternalServerError)
		default:
			h.writeError(w, "Failed to process notes: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	var files []generatedFile
	for _, record := range session.Files {
		if record.FileType == models.FileTypeScanned {
			continue
		}
		files = append(files, generatedFile{Type: record.FileType, File: viewURL(record)})
	}

	h.writeJSON(w, map[string]any{
		"title":   session.Title,
		"summary": session.Summary,
		"files":   files,
	})
}
