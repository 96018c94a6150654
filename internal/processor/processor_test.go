package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/albydefault/notes-app/internal/config"
	"github.com/albydefault/notes-app/internal/models"
	"github.com/albydefault/notes-app/internal/store"
	"github.com/albydefault/notes-app/internal/store/db/sqlite"
)

type fakeGenerator struct {
	generateText       func(ctx context.Context, prompt string) (string, error)
	generateFromImages func(ctx context.Context, prompt string, imagePaths []string) (string, error)
}

func (f *fakeGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	return f.generateText(ctx, prompt)
}

func (f *fakeGenerator) GenerateFromImages(ctx context.Context, prompt string, imagePaths []string) (string, error) {
	return f.generateFromImages(ctx, prompt, imagePaths)
}

// happyGenerator answers the metadata call with JSON and every other call
// with canned stage content.
func happyGenerator() *fakeGenerator {
	return &fakeGenerator{
		generateFromImages: func(ctx context.Context, prompt string, imagePaths []string) (string, error) {
			if strings.Contains(prompt, "JSON object") {
				return `{"title": "Calculus Review", "summary": "Limits and derivatives."}`, nil
			}
			return "--- Page 1 ---\n\nThe limit of f(x).", nil
		},
		generateText: func(ctx context.Context, prompt string) (string, error) {
			if strings.Contains(prompt, "exam") {
				return "1. Define the derivative.", nil
			}
			return "## Limits\n\nA limit describes behavior near a point.", nil
		},
	}
}

func newTestEnv(t *testing.T, gen Generator) (*Processor, *store.Store, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("Failed to create data dirs: %v", err)
	}

	db, err := sqlite.Open(cfg.DBPath())
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	st := store.New(db)
	t.Cleanup(func() { st.Close() })

	return New(st, gen, cfg), st, cfg
}

// seedSession creates a session with one scanned image record backed by a
// real file under the session directory.
func seedSession(t *testing.T, st *store.Store, cfg *config.Config) string {
	t.Helper()
	ctx := context.Background()
	session, err := st.CreateSession(ctx)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	dir := cfg.SessionDir(session.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create session dir: %v", err)
	}
	name := "scan_page1.jpg"
	if err := os.WriteFile(filepath.Join(dir, name), []byte("not a real jpeg"), 0644); err != nil {
		t.Fatalf("Failed to write scanned file: %v", err)
	}
	if _, err := st.AddFile(ctx, &models.FileRecord{
		SessionID: session.ID,
		Name:      name,
		Path:      "sessions/" + session.ID + "/" + name,
		FileType:  models.FileTypeScanned,
	}); err != nil {
		t.Fatalf("Failed to add file record: %v", err)
	}
	return session.ID
}

func TestProcessSessionNoGenerator(t *testing.T) {
	p, st, cfg := newTestEnv(t, nil)
	id := seedSession(t, st, cfg)

	if _, err := p.ProcessSession(context.Background(), id); !errors.Is(err, ErrNoGenerator) {
		t.Errorf("Expected ErrNoGenerator, got %v", err)
	}
}

func TestProcessSessionNotFound(t *testing.T) {
	p, _, _ := newTestEnv(t, happyGenerator())

	_, err := p.ProcessSession(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestProcessSessionNoScannedFiles(t *testing.T) {
	p, st, _ := newTestEnv(t, happyGenerator())
	ctx := context.Background()

	session, err := st.CreateSession(ctx)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	if _, err := p.ProcessSession(ctx, session.ID); !errors.Is(err, ErrNoScannedFiles) {
		t.Errorf("Expected ErrNoScannedFiles, got %v", err)
	}

	got, err := st.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if got.Status != models.StatusPending {
		t.Errorf("Expected status to stay pending, got %s", got.Status)
	}
}

func TestProcessSessionSuccess(t *testing.T) {
	p, st, cfg := newTestEnv(t, happyGenerator())
	ctx := context.Background()
	id := seedSession(t, st, cfg)

	session, err := p.ProcessSession(ctx, id)
	if err != nil {
		t.Fatalf("Failed to process session: %v", err)
	}

	if session.Status != models.StatusCompleted {
		t.Errorf("Expected status completed, got %s", session.Status)
	}
	if session.Title != "Calculus Review" {
		t.Errorf("Expected generated title, got %q", session.Title)
	}
	if session.Summary != "Limits and derivatives." {
		t.Errorf("Expected generated summary, got %q", session.Summary)
	}

	wantTypes := []models.FileType{
		models.FileTypeTranscription,
		models.FileTypeExposition,
		models.FileTypeQuestions,
	}
	var generated []models.FileType
	for _, f := range session.Files {
		if f.FileType != models.FileTypeScanned {
			generated = append(generated, f.FileType)
		}
	}
	if len(generated) != len(wantTypes) {
		t.Fatalf("Expected %d generated files, got %d", len(wantTypes), len(generated))
	}
	for i, ft := range wantTypes {
		if generated[i] != ft {
			t.Errorf("Expected generated file %d to be %s, got %s", i, ft, generated[i])
		}
	}

	// The transcription artifact carries the title/summary header.
	data, err := os.ReadFile(filepath.Join(cfg.SessionDir(id), "transcription.md"))
	if err != nil {
		t.Fatalf("Failed to read transcription artifact: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "# Calculus Review\n\n*Summary: Limits and derivatives.*\n\n---\n\n") {
		t.Errorf("Unexpected transcription header:\n%s", content)
	}

	for _, name := range []string{"exposition.md", "questions.md"} {
		if _, err := os.Stat(filepath.Join(cfg.SessionDir(id), name)); err != nil {
			t.Errorf("Expected %s on disk: %v", name, err)
		}
	}
}

func TestProcessSessionMalformedMetadata(t *testing.T) {
	gen := happyGenerator()
	gen.generateFromImages = func(ctx context.Context, prompt string, imagePaths []string) (string, error) {
		if strings.Contains(prompt, "JSON object") {
			return "I cannot produce JSON today.", nil
		}
		return "--- Page 1 ---\n\nSome notes.", nil
	}

	p, st, cfg := newTestEnv(t, gen)
	id := seedSession(t, st, cfg)

	session, err := p.ProcessSession(context.Background(), id)
	if err != nil {
		t.Fatalf("Failed to process session: %v", err)
	}
	if session.Title != "Untitled Notes" {
		t.Errorf("Expected placeholder title, got %q", session.Title)
	}
	if session.Summary != "Content could not be summarized." {
		t.Errorf("Expected placeholder summary, got %q", session.Summary)
	}
	if session.Status != models.StatusCompleted {
		t.Errorf("Expected status completed, got %s", session.Status)
	}
}

func TestProcessSessionFencedMetadata(t *testing.T) {
	gen := happyGenerator()
	gen.generateFromImages = func(ctx context.Context, prompt string, imagePaths []string) (string, error) {
		if strings.Contains(prompt, "JSON object") {
			return "```json\n{\"title\": \"Fenced Title\", \"summary\": \"From a code fence.\"}\n```", nil
		}
		return "notes", nil
	}

	p, st, cfg := newTestEnv(t, gen)
	id := seedSession(t, st, cfg)

	session, err := p.ProcessSession(context.Background(), id)
	if err != nil {
		t.Fatalf("Failed to process session: %v", err)
	}
	if session.Title != "Fenced Title" {
		t.Errorf("Expected fenced metadata to parse, got title %q", session.Title)
	}
}

func TestProcessSessionStageFailure(t *testing.T) {
	boom := errors.New("model unavailable")
	gen := happyGenerator()
	gen.generateText = func(ctx context.Context, prompt string) (string, error) {
		return "", boom
	}

	p, st, cfg := newTestEnv(t, gen)
	ctx := context.Background()
	id := seedSession(t, st, cfg)

	_, err := p.ProcessSession(ctx, id)
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("Expected a StageError, got %v", err)
	}
	if stageErr.Stage != models.StageExposition {
		t.Errorf("Expected exposition stage, got %s", stageErr.Stage)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped cause, got %v", err)
	}

	session, err := st.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get session: %v", err)
	}
	if session.Status != models.StatusError {
		t.Errorf("Expected status error, got %s", session.Status)
	}
	if session.ErrorStage != models.StageExposition {
		t.Errorf("Expected error stage exposition, got %s", session.ErrorStage)
	}

	// The transcription from the completed first stage stays recorded.
	files, err := st.ListFiles(ctx, id, models.FileTypeTranscription)
	if err != nil {
		t.Fatalf("Failed to list files: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("Expected the transcription record to survive, got %d", len(files))
	}
	if n, err := st.ListFiles(ctx, id, models.FileTypeExposition); err != nil || len(n) != 0 {
		t.Errorf("Expected no exposition record, got %d (err %v)", len(n), err)
	}
}

func TestProcessSessionRerunAfterFailure(t *testing.T) {
	boom := errors.New("model unavailable")
	gen := happyGenerator()
	happyText := gen.generateText
	gen.generateText = func(ctx context.Context, prompt string) (string, error) {
		return "", boom
	}

	p, st, cfg := newTestEnv(t, gen)
	ctx := context.Background()
	id := seedSession(t, st, cfg)

	if _, err := p.ProcessSession(ctx, id); err == nil {
		t.Fatal("Expected the first run to fail")
	}

	// Second run starts over from stage one and completes.
	gen.generateText = happyText
	session, err := p.ProcessSession(ctx, id)
	if err != nil {
		t.Fatalf("Failed to reprocess session: %v", err)
	}
	if session.Status != models.StatusCompleted {
		t.Errorf("Expected status completed, got %s", session.Status)
	}
	if session.ErrorStage != "" {
		t.Errorf("Expected cleared error stage, got %s", session.ErrorStage)
	}

	// Exactly one record per generated type after the rerun.
	for _, ft := range models.GeneratedTypes {
		files, err := st.ListFiles(ctx, id, ft)
		if err != nil {
			t.Fatalf("Failed to list files: %v", err)
		}
		if len(files) != 1 {
			t.Errorf("Expected one %s record after rerun, got %d", ft, len(files))
		}
	}
}
