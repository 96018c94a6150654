package models

import "time"

// Status of a note session as it moves through the pipeline.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// FileType classifies an artifact recorded against a session.
type FileType string

const (
	FileTypeScanned       FileType = "scanned"
	FileTypeTranscription FileType = "transcription"
	FileTypeExposition    FileType = "exposition"
	FileTypeQuestions     FileType = "questions"
)

// Stage names one of the three generation steps.
type Stage string

const (
	StageTranscription Stage = "transcription"
	StageExposition    Stage = "exposition"
	StageQuestions     Stage = "questions"
)

// OutputType returns the file type produced by the stage.
func (s Stage) OutputType() FileType {
	return FileType(s)
}

// Session represents one batch of uploaded notes and its generated materials.
type Session struct {
	ID         string       `json:"id"`
	Title      string       `json:"title,omitempty"`
	Summary    string       `json:"summary,omitempty"`
	Status     Status       `json:"status"`
	ErrorStage Stage        `json:"error_stage,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	Files      []FileRecord `json:"files,omitempty"`
}

// FileRecord represents one artifact belonging to a session. Paths are
// relative to the data directory. Records are immutable once created and
// keep insertion order.
type FileRecord struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	FileType  FileType  `json:"file_type"`
	CreatedAt time.Time `json:"created_at"`
}

// GeneratedTypes lists the file types produced by the pipeline, in stage order.
var GeneratedTypes = []FileType{FileTypeTranscription, FileTypeExposition, FileTypeQuestions}
