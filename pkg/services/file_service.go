package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/tabula/pkg/apperrors"
	"github.com/ekaya-inc/tabula/pkg/database"
	"github.com/ekaya-inc/tabula/pkg/logging"
	"github.com/ekaya-inc/tabula/pkg/metrics"
	"github.com/ekaya-inc/tabula/pkg/models"
	"github.com/ekaya-inc/tabula/pkg/repositories"
	"github.com/ekaya-inc/tabula/pkg/storage"
	"github.com/ekaya-inc/tabula/pkg/tabular"
)

// FileStore is the file storage used by the services.
type FileStore interface {
	UniqueName(ctx context.Context, name string, taken storage.NameTaken) (string, error)
	Write(name string, r io.Reader) (int64, error)
	Open(name string) (io.ReadCloser, error)
	Remove(name string) error
}

// FileService stores uploaded files and loads them back as tables.
type FileService interface {
	// Upload stores content under a sanitized, collision-free name and records it.
	Upload(ctx context.Context, content io.Reader, declaredName string) (*models.DataFile, error)

	// Get returns the file record.
	Get(ctx context.Context, id uuid.UUID) (*models.DataFile, error)

	// Open returns the record and a reader over its stored content. The caller closes it.
	Open(ctx context.Context, id uuid.UUID) (*models.DataFile, io.ReadCloser, error)

	// LoadTable reads the stored file of a record into memory.
	LoadTable(ctx context.Context, id uuid.UUID) (*models.DataFile, *tabular.Table, error)
}

type fileService struct {
	files   repositories.DataFileRepository
	store   FileStore
	tx      database.TxRunner
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewFileService creates a new file service.
func NewFileService(
	files repositories.DataFileRepository,
	store FileStore,
	tx database.TxRunner,
	m *metrics.Metrics,
	logger *zap.Logger,
) FileService {
	return &fileService{
		files:   files,
		store:   store,
		tx:      tx,
		metrics: m,
		logger:  logger.Named("file-service"),
	}
}

func (s *fileService) Upload(ctx context.Context, content io.Reader, declaredName string) (*models.DataFile, error) {
	if content == nil || strings.TrimSpace(declaredName) == "" {
		return nil, fmt.Errorf("%w: no file selected", apperrors.ErrNoFile)
	}

	fileType, err := tabular.FileTypeFromName(declaredName)
	if err != nil {
		return nil, fmt.Errorf("%w: only CSV and Excel files are allowed", apperrors.ErrInvalidType)
	}

	body := bufio.NewReader(content)
	if _, err := body.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: file is empty", apperrors.ErrNoFile)
		}
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	record := &models.DataFile{
		FileType:         fileType,
		OriginalFilename: declaredName,
		UploadDate:       time.Now(),
	}
	err = writeAndRecord(ctx, s.store, s.files, s.tx, secureName(declaredName, fileType), body, record, nil)
	if err != nil {
		return nil, err
	}
	s.metrics.FileStored("upload", record.FileSize)

	s.logger.Info("File uploaded",
		zap.String("file_id", record.ID.String()),
		zap.String("filename", record.Filename),
		zap.String("original_filename", logging.SanitizeFilename(declaredName)),
		zap.Int64("size", record.FileSize))
	return record, nil
}

func (s *fileService) Get(ctx context.Context, id uuid.UUID) (*models.DataFile, error) {
	file, err := s.files.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get data file: %w", err)
	}
	return file, nil
}

func (s *fileService) Open(ctx context.Context, id uuid.UUID) (*models.DataFile, io.ReadCloser, error) {
	file, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.store.Open(file.Filename)
	if err != nil {
		s.logger.Error("Stored file is unreadable",
			zap.String("file_id", id.String()),
			zap.String("filename", file.Filename),
			zap.Error(err))
		return nil, nil, apperrors.ProcessingFailure(err)
	}
	return file, rc, nil
}

func (s *fileService) LoadTable(ctx context.Context, id uuid.UUID) (*models.DataFile, *tabular.Table, error) {
	file, rc, err := s.Open(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()

	table, err := tabular.Load(rc, file.FileType)
	if err != nil {
		return nil, nil, apperrors.ProcessingFailure(fmt.Errorf("failed to load %s: %w", file.Filename, err))
	}
	return file, table, nil
}

// writeAndRecord picks a free storage name, writes content, then runs the record inserts
// in a single transaction: file.Create followed by extra. On any failure after the write
// the stored file is removed.
func writeAndRecord(
	ctx context.Context,
	store FileStore,
	files repositories.DataFileRepository,
	tx database.TxRunner,
	name string,
	content io.Reader,
	file *models.DataFile,
	extra func(ctx context.Context) error,
) error {
	storageName, err := store.UniqueName(ctx, name, files.FilenameExists)
	if err != nil {
		return fmt.Errorf("failed to choose storage name: %w", err)
	}

	size, err := store.Write(storageName, content)
	if err != nil {
		return fmt.Errorf("failed to store file: %w", err)
	}
	file.Filename = storageName
	file.FileSize = size

	err = tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := files.Create(ctx, file); err != nil {
			return err
		}
		if extra != nil {
			return extra(ctx)
		}
		return nil
	})
	if err != nil {
		if rmErr := store.Remove(storageName); rmErr != nil {
			err = errors.Join(err, rmErr)
		}
		return fmt.Errorf("failed to record file: %w", err)
	}
	return nil
}

// secureName sanitizes a declared name, falling back to "file.<ext>" when nothing
// usable is left.
func secureName(declared string, ft tabular.FileType) string {
	name := storage.SecureFilename(declared)
	if _, err := tabular.FileTypeFromName(name); err != nil || strings.TrimSuffix(name, filepath.Ext(name)) == "" {
		return "file." + string(ft)
	}
	return name
}
