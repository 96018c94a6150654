package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/albydefault/notes-app/internal/models"
	"github.com/albydefault/notes-app/internal/store"
)

// HandleSessions lists all sessions, newest first.
func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessions, err := h.store.ListSessions(r.Context())
		if err != nil {
			h.writeError(w, "Failed to list sessions: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if sessions == nil {
			sessions = []*models.Session{}
		}
		h.writeJSON(w, map[string]any{"sessions": sessions})
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type sessionDetail struct {
	*models.Session
	Scanned   []fileView `json:"scanned"`
	Generated []fileView `json:"generated"`
}

type fileView struct {
	Name     string          `json:"name"`
	File     string          `json:"file"`
	FileType models.FileType `json:"file_type"`
}

// HandleSessionDetail returns one session with its files split into
// scanned images and generated documents, or deletes the session.
func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/api/sessions/")

	session, ok := h.getSessionOrError(w, r, sessionID)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		detail := sessionDetail{
			Session:   session,
			Scanned:   []fileView{},
			Generated: []fileView{},
		}
		for _, record := range session.Files {
			view := fileView{Name: record.Name, File: viewURL(record), FileType: record.FileType}
			if record.FileType == models.FileTypeScanned {
				detail.Scanned = append(detail.Scanned, view)
			} else {
				detail.Generated = append(detail.Generated, view)
			}
		}
		// file records appear under scanned/generated, not twice
		detail.Files = nil
		h.writeJSON(w, detail)
	case http.MethodDelete:
		if err := h.store.DeleteSession(r.Context(), sessionID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				h.writeError(w, "Session not found", http.StatusNotFound)
				return
			}
			h.writeError(w, "Failed to delete session: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if err := os.RemoveAll(h.cfg.SessionDir(sessionID)); err != nil {
			slog.Warn("Failed to remove session directory", "session_id", sessionID, "error", err)
		}
		slog.Info("Session deleted", "session_id", sessionID)
		h.writeJSON(w, map[string]any{"deleted": sessionID})
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
