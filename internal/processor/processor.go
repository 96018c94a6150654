package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/albydefault/notes-app/internal/config"
	"github.com/albydefault/notes-app/internal/models"
	"github.com/albydefault/notes-app/internal/prompts"
	"github.com/albydefault/notes-app/internal/store"
)

// Generator is the remote content generator backing the three stages.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateFromImages(ctx context.Context, prompt string, imagePaths []string) (string, error)
}

// ErrNoScannedFiles is returned when a session has nothing to process.
var ErrNoScannedFiles = errors.New("session has no scanned images")

// ErrNoGenerator is returned when no generative model is configured.
var ErrNoGenerator = errors.New("no generative model configured")

// StageError reports which generation stage failed.
type StageError struct {
	Stage models.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Processor runs the three-stage generation pipeline for one session:
// transcription over the scanned images, exposition over the transcription,
// questions over the exposition. Stages are strictly sequential; a failure
// marks the session and halts.
type Processor struct {
	store *store.Store
	gen   Generator
	cfg   *config.Config
}

func New(st *store.Store, gen Generator, cfg *config.Config) *Processor {
	return &Processor{store: st, gen: gen, cfg: cfg}
}

type metadata struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// ProcessSession runs the full pipeline and returns the updated session.
// Re-running a session that previously failed starts over from stage one;
// its stale generated records are cleared first.
func (p *Processor) ProcessSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if p.gen == nil {
		return nil, ErrNoGenerator
	}

	scanned, err := p.store.ListFiles(ctx, sessionID, models.FileTypeScanned)
	if err != nil {
		return nil, err
	}
	if len(scanned) == 0 {
		if _, err := p.store.GetSession(ctx, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrNoScannedFiles
	}

	if err := p.store.BeginProcessing(ctx, sessionID); err != nil {
		return nil, err
	}
	if err := p.store.ClearGenerated(ctx, sessionID); err != nil {
		return nil, err
	}

	imagePaths := make([]string, 0, len(scanned))
	for _, f := range scanned {
		imagePaths = append(imagePaths, filepath.Join(p.cfg.DataDir, filepath.FromSlash(f.Path)))
	}

	slog.Info("Processing session", "session_id", sessionID, "images", len(imagePaths))

	meta, doc, err := p.transcribe(ctx, imagePaths)
	if err != nil {
		return nil, p.failStage(ctx, sessionID, models.StageTranscription, err)
	}
	if err := p.recordStageOutput(ctx, sessionID, models.StageTranscription, doc); err != nil {
		return nil, err
	}
	if err := p.store.UpdateSession(ctx, &store.UpdateSession{
		ID:      sessionID,
		Title:   &meta.Title,
		Summary: &meta.Summary,
	}); err != nil {
		return nil, err
	}

	expositionPrompt, err := prompts.Exposition(doc)
	if err != nil {
		return nil, p.failStage(ctx, sessionID, models.StageExposition, err)
	}
	exposition, err := p.gen.GenerateText(ctx, expositionPrompt)
	if err != nil {
		return nil, p.failStage(ctx, sessionID, models.StageExposition, err)
	}
	if err := p.recordStageOutput(ctx, sessionID, models.StageExposition, exposition); err != nil {
		return nil, err
	}

	questionsPrompt, err := prompts.Questions(exposition)
	if err != nil {
		return nil, p.failStage(ctx, sessionID, models.StageQuestions, err)
	}
	questions, err := p.gen.GenerateText(ctx, questionsPrompt)
	if err != nil {
		return nil, p.failStage(ctx, sessionID, models.StageQuestions, err)
	}
	if err := p.recordStageOutput(ctx, sessionID, models.StageQuestions, questions); err != nil {
		return nil, err
	}

	completed := models.StatusCompleted
	if err := p.store.UpdateSession(ctx, &store.UpdateSession{ID: sessionID, Status: &completed}); err != nil {
		return nil, err
	}

	slog.Info("Session processed", "session_id", sessionID, "title", meta.Title)
	return p.store.GetSession(ctx, sessionID)
}

// transcribe runs the stage-one calls: a small JSON metadata request for
// title/summary, then the full transcription. A malformed metadata response
// degrades to a placeholder title rather than failing the stage.
func (p *Processor) transcribe(ctx context.Context, imagePaths []string) (metadata, string, error) {
	metadataPrompt, err := prompts.Metadata()
	if err != nil {
		return metadata{}, "", err
	}
	rawMeta, err := p.gen.GenerateFromImages(ctx, metadataPrompt, imagePaths)
	if err != nil {
		return metadata{}, "", err
	}
	meta, ok := parseMetadata(rawMeta)
	if !ok {
		slog.Warn("Could not parse metadata response, using placeholder title")
	}

	transcriptionPrompt, err := prompts.Transcription(meta.Title)
	if err != nil {
		return metadata{}, "", err
	}
	content, err := p.gen.GenerateFromImages(ctx, transcriptionPrompt, imagePaths)
	if err != nil {
		return metadata{}, "", err
	}

	doc := fmt.Sprintf("# %s\n\n*Summary: %s*\n\n---\n\n%s", meta.Title, meta.Summary, content)
	return meta, doc, nil
}

func parseMetadata(raw string) (metadata, bool) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var meta metadata
	if err := json.Unmarshal([]byte(text), &meta); err != nil || meta.Title == "" {
		return metadata{
			Title:   "Untitled Notes",
			Summary: "Content could not be summarized.",
		}, false
	}
	return meta, true
}

// recordStageOutput writes the stage's markdown artifact and records it.
// Write failures are storage errors, not stage errors: the session is left
// at its last persisted state.
func (p *Processor) recordStageOutput(ctx context.Context, sessionID string, stage models.Stage, content string) error {
	name := string(stage) + ".md"
	dir := p.cfg.SessionDir(sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	_, err := p.store.AddFile(ctx, &models.FileRecord{
		SessionID: sessionID,
		Name:      name,
		Path:      "sessions/" + sessionID + "/" + name,
		FileType:  stage.OutputType(),
	})
	return err
}

// failStage marks the session as errored at the given stage. Artifacts from
// earlier stages stay recorded.
func (p *Processor) failStage(ctx context.Context, sessionID string, stage models.Stage, cause error) error {
	slog.Error("Generation stage failed", "session_id", sessionID, "stage", stage, "error", cause)

	errStatus := models.StatusError
	if err := p.store.UpdateSession(ctx, &store.UpdateSession{
		ID:         sessionID,
		Status:     &errStatus,
		ErrorStage: &stage,
	}); err != nil {
		slog.Error("Failed to record error status", "session_id", sessionID, "error", err)
	}
	return &StageError{Stage: stage, Err: cause}
}
