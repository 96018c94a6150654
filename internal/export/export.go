// Package export writes session records to parquet or JSONL files for
// offline analysis.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/albydefault/notes-app/internal/models"
)

// Record is one exported row: a session joined with one of its file
// records. Sessions without files export a single row with empty file
// columns.
type Record struct {
	SessionID  string `parquet:"session_id" json:"session_id"`
	Title      string `parquet:"title" json:"title"`
	Summary    string `parquet:"summary" json:"summary"`
	Status     string `parquet:"status" json:"status"`
	ErrorStage string `parquet:"error_stage" json:"error_stage"`
	CreatedTs  int64  `parquet:"created_ts" json:"created_ts"`
	FileName   string `parquet:"file_name" json:"file_name"`
	FilePath   string `parquet:"file_path" json:"file_path"`
	FileType   string `parquet:"file_type" json:"file_type"`
}

// Flatten joins sessions with their file records, one row per file.
func Flatten(sessions []*models.Session) []Record {
	var records []Record
	for _, session := range sessions {
		base := Record{
			SessionID:  session.ID,
			Title:      session.Title,
			Summary:    session.Summary,
			Status:     string(session.Status),
			ErrorStage: string(session.ErrorStage),
			CreatedTs:  session.CreatedAt.Unix(),
		}
		if len(session.Files) == 0 {
			records = append(records, base)
			continue
		}
		for _, file := range session.Files {
			row := base
			row.FileName = file.Name
			row.FilePath = file.Path
			row.FileType = string(file.FileType)
			records = append(records, row)
		}
	}
	return records
}

// Write writes records to path; the format is detected from the extension
// (.parquet or .jsonl).
func Write(path string, records []Record) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".parquet":
		return writeParquet(path, records)
	case ".jsonl", ".json":
		return writeJSONL(path, records)
	default:
		return fmt.Errorf("unsupported export format: %s (supported: .parquet, .jsonl)", ext)
	}
}

func writeParquet(path string, records []Record) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[Record](file)
	if _, err := writer.Write(records); err != nil {
		return fmt.Errorf("failed to write parquet records: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

func writeJSONL(path string, records []Record) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	return nil
}

// Read loads previously exported records (parquet only), mostly for
// round-trip verification.
func Read(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewGenericReader[Record](file)
	defer reader.Close()

	var out []Record
	buf := make([]Record, 64)
	for {
		n, err := reader.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("failed to read parquet records: %w", err)
		}
	}
}
