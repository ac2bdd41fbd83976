// Package models contains domain types for tabula.
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/tabula/pkg/tabular"
)

// DataFile is an uploaded or derived file kept in the upload directory.
// Records are immutable once stored.
type DataFile struct {
	ID               uuid.UUID        `json:"id"`
	Filename         string           `json:"filename"`
	FileType         tabular.FileType `json:"file_type"`
	FileSize         int64            `json:"file_size"`
	OriginalFilename string           `json:"original_filename"`
	UploadDate       time.Time        `json:"upload_date"`
	IsCleaned        bool             `json:"is_cleaned"`
}
