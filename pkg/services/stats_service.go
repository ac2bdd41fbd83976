package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/tabula/pkg/apperrors"
	"github.com/ekaya-inc/tabula/pkg/database"
	"github.com/ekaya-inc/tabula/pkg/metrics"
	"github.com/ekaya-inc/tabula/pkg/models"
	"github.com/ekaya-inc/tabula/pkg/repositories"
	"github.com/ekaya-inc/tabula/pkg/stats"
)

// StatsService returns memoized descriptive statistics for stored files.
type StatsService interface {
	// GetStats returns the stored basic_stats result for the file, computing and storing
	// it on first use. Stored results are returned unchanged.
	GetStats(ctx context.Context, fileID uuid.UUID) (*models.StatsResult, error)
}

type statsService struct {
	files    FileService
	analyses repositories.AnalysisRepository
	tx       database.TxRunner
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewStatsService creates a new statistics service.
func NewStatsService(
	files FileService,
	analyses repositories.AnalysisRepository,
	tx database.TxRunner,
	m *metrics.Metrics,
	logger *zap.Logger,
) StatsService {
	return &statsService{
		files:    files,
		analyses: analyses,
		tx:       tx,
		metrics:  m,
		logger:   logger.Named("stats-service"),
	}
}

func (s *statsService) GetStats(ctx context.Context, fileID uuid.UUID) (*models.StatsResult, error) {
	existing, err := s.analyses.FindByFileAndType(ctx, fileID, models.AnalysisBasicStats)
	if err != nil {
		return nil, fmt.Errorf("failed to look up statistics: %w", err)
	}
	if existing != nil {
		s.metrics.CacheLookup(metrics.KindStats, true)
		s.logger.Debug("Statistics cache hit", zap.String("file_id", fileID.String()))
		return existing.StatsResult()
	}
	s.metrics.CacheLookup(metrics.KindStats, false)

	_, table, err := s.files.LoadTable(ctx, fileID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := stats.Compute(table)
	s.metrics.ObserveCompute(metrics.KindStats, time.Since(start))

	analysis := models.NewStatsAnalysis(fileID, result)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.analyses.Create(ctx, analysis)
	})
	if errors.Is(err, apperrors.ErrDuplicateAnalysis) {
		// Another request stored the result first; theirs is canonical.
		winner, findErr := s.analyses.FindByFileAndType(ctx, fileID, models.AnalysisBasicStats)
		if findErr != nil {
			return nil, fmt.Errorf("failed to re-read statistics: %w", findErr)
		}
		if winner == nil {
			return nil, fmt.Errorf("statistics vanished after duplicate insert: %w", err)
		}
		s.logger.Debug("Statistics stored concurrently, using existing result",
			zap.String("file_id", fileID.String()))
		return winner.StatsResult()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store statistics: %w", err)
	}

	s.logger.Info("Statistics computed",
		zap.String("file_id", fileID.String()),
		zap.Int("numeric_columns", len(result.Mean)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}
