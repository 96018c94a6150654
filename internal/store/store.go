package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/albydefault/notes-app/internal/models"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// ErrAlreadyProcessing is returned when a generation run is already in
// flight for the session.
var ErrAlreadyProcessing = errors.New("session is already processing")

// UpdateSession describes a partial mutation of a session record. Nil
// fields are left untouched.
type UpdateSession struct {
	ID         string
	Title      *string
	Summary    *string
	Status     *models.Status
	ErrorStage *models.Stage
}

// Driver is the persistence backend for sessions and file records.
type Driver interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context) ([]*models.Session, error)
	UpdateSession(ctx context.Context, update *UpdateSession) error
	// BeginProcessing transitions the session to processing unless a run
	// is already in flight.
	BeginProcessing(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error

	AddFile(ctx context.Context, file *models.FileRecord) (*models.FileRecord, error)
	ListFiles(ctx context.Context, sessionID string, fileType models.FileType) ([]models.FileRecord, error)
	DeleteFilesByType(ctx context.Context, sessionID string, fileTypes []models.FileType) error

	Close() error
}

// Store owns all session state. It is constructed once at startup and
// injected into request handlers.
type Store struct {
	driver Driver
}

func New(driver Driver) *Store {
	return &Store{driver: driver}
}

// CreateSession creates and persists a fresh pending session.
func (s *Store) CreateSession(ctx context.Context) (*models.Session, error) {
	session := &models.Session{
		ID:        uuid.NewString(),
		Status:    models.StatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.driver.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession returns the session with its file records attached, ordered
// by insertion.
func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.driver.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	files, err := s.driver.ListFiles(ctx, id, "")
	if err != nil {
		return nil, err
	}
	session.Files = files
	return session, nil
}

// ListSessions returns all sessions ordered by creation time descending.
func (s *Store) ListSessions(ctx context.Context) ([]*models.Session, error) {
	return s.driver.ListSessions(ctx)
}

func (s *Store) UpdateSession(ctx context.Context, update *UpdateSession) error {
	return s.driver.UpdateSession(ctx, update)
}

func (s *Store) BeginProcessing(ctx context.Context, id string) error {
	return s.driver.BeginProcessing(ctx, id)
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.driver.DeleteSession(ctx, id)
}

func (s *Store) AddFile(ctx context.Context, file *models.FileRecord) (*models.FileRecord, error) {
	return s.driver.AddFile(ctx, file)
}

// ListFiles returns a session's file records in insertion order,
// optionally filtered by type.
func (s *Store) ListFiles(ctx context.Context, sessionID string, fileType models.FileType) ([]models.FileRecord, error) {
	return s.driver.ListFiles(ctx, sessionID, fileType)
}

// ClearGenerated removes generated file records before a rerun. Scanned
// records are never touched.
func (s *Store) ClearGenerated(ctx context.Context, sessionID string) error {
	return s.driver.DeleteFilesByType(ctx, sessionID, models.GeneratedTypes)
}

func (s *Store) Close() error {
	return s.driver.Close()
}
