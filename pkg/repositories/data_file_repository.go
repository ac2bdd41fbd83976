package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/tabula/pkg/apperrors"
	"github.com/ekaya-inc/tabula/pkg/database"
	"github.com/ekaya-inc/tabula/pkg/models"
	"github.com/ekaya-inc/tabula/pkg/tabular"
)

// DataFileRepository defines the interface for file record access.
type DataFileRepository interface {
	Create(ctx context.Context, file *models.DataFile) error
	Get(ctx context.Context, id uuid.UUID) (*models.DataFile, error)
	FilenameExists(ctx context.Context, filename string) (bool, error)
}

// dataFileRepository implements DataFileRepository using PostgreSQL.
type dataFileRepository struct{}

// NewDataFileRepository creates a new file record repository.
func NewDataFileRepository() DataFileRepository {
	return &dataFileRepository{}
}

// Create inserts a file record. ID and UploadDate are assigned when empty.
func (r *dataFileRepository) Create(ctx context.Context, file *models.DataFile) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	if file.UploadDate.IsZero() {
		file.UploadDate = time.Now()
	}

	query := `
		INSERT INTO data_files (id, filename, file_type, file_size, original_filename, upload_date, is_cleaned)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := scope.Querier().Exec(ctx, query,
		file.ID,
		file.Filename,
		string(file.FileType),
		file.FileSize,
		file.OriginalFilename,
		file.UploadDate,
		file.IsCleaned,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("filename %q already stored: %w", file.Filename, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create data file: %w", err)
	}

	return nil
}

// Get retrieves a file record by ID.
func (r *dataFileRepository) Get(ctx context.Context, id uuid.UUID) (*models.DataFile, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, filename, file_type, file_size, original_filename, upload_date, is_cleaned
		FROM data_files
		WHERE id = $1`

	var file models.DataFile
	var fileType string
	err := scope.Querier().QueryRow(ctx, query, id).Scan(
		&file.ID,
		&file.Filename,
		&fileType,
		&file.FileSize,
		&file.OriginalFilename,
		&file.UploadDate,
		&file.IsCleaned,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get data file: %w", err)
	}
	file.FileType = tabular.FileType(fileType)

	return &file, nil
}

// FilenameExists reports whether a record already uses the storage name.
func (r *dataFileRepository) FilenameExists(ctx context.Context, filename string) (bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, fmt.Errorf("no database scope in context")
	}

	var exists bool
	err := scope.Querier().QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM data_files WHERE filename = $1)", filename).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check filename: %w", err)
	}
	return exists, nil
}
