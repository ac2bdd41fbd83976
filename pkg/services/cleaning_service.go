package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/tabula/pkg/apperrors"
	"github.com/ekaya-inc/tabula/pkg/cleaning"
	"github.com/ekaya-inc/tabula/pkg/database"
	"github.com/ekaya-inc/tabula/pkg/metrics"
	"github.com/ekaya-inc/tabula/pkg/models"
	"github.com/ekaya-inc/tabula/pkg/repositories"
	"github.com/ekaya-inc/tabula/pkg/tabular"
)

// CleanedFilePrefix is prepended to the source storage name of a cleaned file.
const CleanedFilePrefix = "cleaned_"

// CleaningService cleans stored files into new derived files.
type CleaningService interface {
	// CleanData returns the newest stored cleaning result for the file unless force is
	// set or none exists, in which case it cleans the file, stores the cleaned copy as a
	// new DataFile and records the result.
	CleanData(ctx context.Context, fileID uuid.UUID, opts cleaning.Options, force bool) (*models.CleaningResult, error)
}

type cleaningService struct {
	files    FileService
	fileRepo repositories.DataFileRepository
	analyses repositories.AnalysisRepository
	store    FileStore
	tx       database.TxRunner
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewCleaningService creates a new cleaning service.
func NewCleaningService(
	files FileService,
	fileRepo repositories.DataFileRepository,
	analyses repositories.AnalysisRepository,
	store FileStore,
	tx database.TxRunner,
	m *metrics.Metrics,
	logger *zap.Logger,
) CleaningService {
	return &cleaningService{
		files:    files,
		fileRepo: fileRepo,
		analyses: analyses,
		store:    store,
		tx:       tx,
		metrics:  m,
		logger:   logger.Named("cleaning-service"),
	}
}

func (s *cleaningService) CleanData(ctx context.Context, fileID uuid.UUID, opts cleaning.Options, force bool) (*models.CleaningResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if !force {
		existing, err := s.analyses.FindByFileAndType(ctx, fileID, models.AnalysisCleaning)
		if err != nil {
			return nil, fmt.Errorf("failed to look up cleaning result: %w", err)
		}
		if existing != nil {
			s.metrics.CacheLookup(metrics.KindCleaning, true)
			s.logger.Debug("Cleaning cache hit", zap.String("file_id", fileID.String()))
			return existing.CleaningResult()
		}
		s.metrics.CacheLookup(metrics.KindCleaning, false)
	}

	source, table, err := s.files.LoadTable(ctx, fileID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	cleaned, result, err := cleaning.Clean(table, opts)
	if err != nil {
		return nil, err
	}

	encoded, err := tabular.Encode(cleaned, source.FileType)
	if err != nil {
		return nil, apperrors.ProcessingFailure(fmt.Errorf("failed to encode cleaned data: %w", err))
	}

	derived := &models.DataFile{
		ID:               uuid.New(),
		FileType:         source.FileType,
		OriginalFilename: source.Filename,
		UploadDate:       time.Now(),
		IsCleaned:        true,
	}
	err = writeAndRecord(ctx, s.store, s.fileRepo, s.tx, CleanedFilePrefix+source.Filename, bytes.NewReader(encoded), derived,
		func(ctx context.Context) error {
			result.CleaningReport.CleanedFileID = derived.ID
			result.CleaningReport.CleanedFilename = derived.Filename
			return s.analyses.Create(ctx, models.NewCleaningAnalysis(fileID, result))
		})
	if err != nil {
		return nil, fmt.Errorf("failed to store cleaned data: %w", err)
	}
	s.metrics.FileStored("cleaning", derived.FileSize)
	s.metrics.ObserveCompute(metrics.KindCleaning, time.Since(start))

	s.logger.Info("File cleaned",
		zap.String("file_id", fileID.String()),
		zap.String("cleaned_file_id", derived.ID.String()),
		zap.String("cleaned_filename", derived.Filename),
		zap.Int("duplicates_removed", result.DuplicatesRemoved),
		zap.Bool("forced", force))
	return result, nil
}
