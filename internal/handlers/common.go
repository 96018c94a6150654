package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/albydefault/notes-app/internal/config"
	"github.com/albydefault/notes-app/internal/models"
	"github.com/albydefault/notes-app/internal/processor"
	"github.com/albydefault/notes-app/internal/scanner"
	"github.com/albydefault/notes-app/internal/store"
)

// Handler serves the notes HTTP API. All collaborators are injected once
// at startup.
type Handler struct {
	store     *store.Store
	scanner   *scanner.Scanner
	processor *processor.Processor
	cfg       *config.Config
}

func New(st *store.Store, sc *scanner.Scanner, proc *processor.Processor, cfg *config.Config) *Handler {
	return &Handler{
		store:     st,
		scanner:   sc,
		processor: proc,
		cfg:       cfg,
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	http.Error(w, message, code)
}

func (h *Handler) getSessionOrError(w http.ResponseWriter, r *http.Request, sessionID string) (*models.Session, bool) {
	session, err := h.store.GetSession(r.Context(), sessionID)
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		h.writeError(w, "Failed to load session: "+err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return session, true
}

// viewURL returns the serving path for a recorded artifact.
func viewURL(record models.FileRecord) string {
	return "/view/" + record.Path
}
