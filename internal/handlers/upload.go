package handlers

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/albydefault/notes-app/internal/config"
	"github.com/albydefault/notes-app/internal/models"
	"github.com/albydefault/notes-app/internal/scanner"
)

type uploadedFile struct {
	name string
	data []byte
}

// HandleUpload accepts a multipart list of note images, creates a session
// and runs the enhancer over each image. Input validation happens before
// the session is created so a bad upload has no side effects.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.writeError(w, "Failed to parse upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		fileHeaders = r.MultipartForm.File["file"]
	}
	if len(fileHeaders) == 0 {
		h.writeError(w, "No files provided", http.StatusBadRequest)
		return
	}
	if len(fileHeaders) > h.cfg.MaxFilesPerSession {
		h.writeError(w, fmt.Sprintf("Too many files (max %d)", h.cfg.MaxFilesPerSession), http.StatusBadRequest)
		return
	}

	files := make([]uploadedFile, 0, len(fileHeaders))
	for _, header := range fileHeaders {
		file, err := h.readUpload(header)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		files = append(files, *file)
	}

	session, err := h.store.CreateSession(r.Context())
	if err != nil {
		h.writeError(w, "Failed to create session: "+err.Error(), http.StatusInternalServerError)
		return
	}

	sessionDir := h.cfg.SessionDir(session.ID)
	uploadsDir := filepath.Join(sessionDir, "uploads")
	if err := os.MkdirAll(uploadsDir, 0755); err != nil {
		h.writeError(w, "Failed to create session directory: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var processed []string
	for _, file := range files {
		name := scanner.SanitizeFilename(file.name)
		originalPath := filepath.Join(uploadsDir, name)
		if err := os.WriteFile(originalPath, file.data, 0644); err != nil {
			h.writeError(w, "Failed to save upload: "+err.Error(), http.StatusInternalServerError)
			return
		}

		result, err := h.scanner.ScanImage(originalPath, sessionDir)
		if err != nil {
			h.writeError(w, "Failed to process image: "+err.Error(), http.StatusInternalServerError)
			return
		}

		record, err := h.store.AddFile(r.Context(), &models.FileRecord{
			SessionID: session.ID,
			Name:      filepath.Base(result.Path),
			Path:      "sessions/" + session.ID + "/" + filepath.Base(result.Path),
			FileType:  models.FileTypeScanned,
		})
		if err != nil {
			h.writeError(w, "Failed to record file: "+err.Error(), http.StatusInternalServerError)
			return
		}
		processed = append(processed, viewURL(*record))
	}

	slog.Info("Upload processed", "session_id", session.ID, "files", len(processed))

	h.writeJSON(w, map[string]any{
		"session_id":      session.ID,
		"message":         fmt.Sprintf("Successfully processed %d files", len(processed)),
		"processed_files": processed,
	})
}

// readUpload validates one multipart file: extension, size cap and that it
// decodes as an image.
func (h *Handler) readUpload(header *multipart.FileHeader) (*uploadedFile, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !config.AllowedExtension(ext) {
		return nil, fmt.Errorf("unsupported file type %q (allowed: .jpg, .jpeg, .png)", ext)
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %v", header.Filename, err)
	}
	defer file.Close()

	maxBytes := h.cfg.MaxUploadBytes()
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %v", header.Filename, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("file %s too large (max %dMB)", header.Filename, h.cfg.MaxUploadMB)
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("file %s is not a readable image", header.Filename)
	}

	return &uploadedFile{name: header.Filename, data: data}, nil
}
