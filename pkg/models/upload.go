// Package models contains shared data models used across the ednaflow codebase.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileType is the declared format of an uploaded sequence file.
type FileType string

const (
	FileTypeFASTA FileType = "fasta"
	FileTypeFASTQ FileType = "fastq"
	FileTypeCSV   FileType = "csv"
)

// ParseFileType matches s case-insensitively against the supported file types.
func ParseFileType(s string) (FileType, bool) {
	switch ft := FileType(strings.ToLower(strings.TrimSpace(s))); ft {
	case FileTypeFASTA, FileTypeFASTQ, FileTypeCSV:
		return ft, true
	default:
		return "", false
	}
}

const (
	UploadStatusPending   = "pending"
	UploadStatusCompleted = "completed"
	UploadStatusFailed    = "failed"
)

// Upload is one stored sequence file. It is created as pending and settled
// exactly once into completed (with a Result) or failed (without one).
type Upload struct {
	ID         uuid.UUID  `db:"id"          json:"id"`
	UserID     string     `db:"user_id"     json:"user_id"`
	FileName   string     `db:"file_name"   json:"file_name"`
	FileType   FileType   `db:"file_type"   json:"file_type"`
	FilePath   string     `db:"file_path"   json:"file_path"`
	Status     string     `db:"status"      json:"status"`
	ResultID   *uuid.UUID `db:"result_id"   json:"result_id"`
	UploadedAt time.Time  `db:"uploaded_at" json:"uploaded_at"`
}
