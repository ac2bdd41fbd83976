package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/tabula/pkg/apperrors"
	"github.com/ekaya-inc/tabula/pkg/database"
	"github.com/ekaya-inc/tabula/pkg/models"
)

// AnalysisRepository defines the interface for stored analysis results.
// Records are written once and never updated.
type AnalysisRepository interface {
	// FindByFileAndType returns the canonical record for (fileID, analysisType), or nil
	// when none exists. When several exist the newest is canonical.
	FindByFileAndType(ctx context.Context, fileID uuid.UUID, analysisType models.AnalysisType) (*models.DataAnalysis, error)
	// Create inserts a record. A second basic_stats record for the same file fails with
	// apperrors.ErrDuplicateAnalysis.
	Create(ctx context.Context, analysis *models.DataAnalysis) error
}

type analysisRepository struct{}

// NewAnalysisRepository creates a new analysis repository.
func NewAnalysisRepository() AnalysisRepository {
	return &analysisRepository{}
}

var analysisColumns = `id, data_file_id, analysis_type, analysis_date,
		stats_mean, stats_median, stats_correlation, stats_std, stats_min, stats_max,
		duplicates_removed, missing_values_filled, cleaning_report`

func (r *analysisRepository) FindByFileAndType(ctx context.Context, fileID uuid.UUID, analysisType models.AnalysisType) (*models.DataAnalysis, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `SELECT ` + analysisColumns + `
		FROM data_analyses
		WHERE data_file_id = $1 AND analysis_type = $2
		ORDER BY analysis_date DESC, id
		LIMIT 1`

	analysis, err := scanAnalysis(scope.Querier().QueryRow(ctx, query, fileID, string(analysisType)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find analysis: %w", err)
	}
	return analysis, nil
}

func (r *analysisRepository) Create(ctx context.Context, analysis *models.DataAnalysis) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if analysis.ID == uuid.Nil {
		analysis.ID = uuid.New()
	}
	if analysis.AnalysisDate.IsZero() {
		analysis.AnalysisDate = time.Now()
	}

	jsonValues, err := marshalAll(
		analysis.StatsMean,
		analysis.StatsMedian,
		analysis.StatsCorrelation,
		analysis.StatsStd,
		analysis.StatsMin,
		analysis.StatsMax,
		analysis.MissingValuesFilled,
		analysis.CleaningReport,
	)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO data_analyses (` + analysisColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = scope.Querier().Exec(ctx, query,
		analysis.ID,
		analysis.DataFileID,
		string(analysis.AnalysisType),
		analysis.AnalysisDate,
		jsonValues[0], jsonValues[1], jsonValues[2], jsonValues[3], jsonValues[4], jsonValues[5],
		analysis.DuplicatesRemoved,
		jsonValues[6],
		jsonValues[7],
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicateAnalysis
		}
		return fmt.Errorf("failed to create analysis: %w", err)
	}
	return nil
}

func scanAnalysis(row pgx.Row) (*models.DataAnalysis, error) {
	var (
		a            models.DataAnalysis
		analysisType string
		raw          [8][]byte
	)
	err := row.Scan(
		&a.ID,
		&a.DataFileID,
		&analysisType,
		&a.AnalysisDate,
		&raw[0], &raw[1], &raw[2], &raw[3], &raw[4], &raw[5],
		&a.DuplicatesRemoved,
		&raw[6],
		&raw[7],
	)
	if err != nil {
		return nil, err
	}
	a.AnalysisType = models.AnalysisType(analysisType)

	targets := []any{
		&a.StatsMean, &a.StatsMedian, &a.StatsCorrelation, &a.StatsStd, &a.StatsMin, &a.StatsMax,
		&a.MissingValuesFilled, &a.CleaningReport,
	}
	for i, target := range targets {
		if raw[i] == nil {
			continue
		}
		if err := json.Unmarshal(raw[i], target); err != nil {
			return nil, fmt.Errorf("failed to unmarshal analysis %s: %w", a.ID, err)
		}
	}
	return &a, nil
}

// marshalAll encodes JSONB values, leaving nil values as SQL NULL.
func marshalAll(values ...any) ([][]byte, error) {
	out := make([][]byte, len(values))
	for i, v := range values {
		if isNil(v) {
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal jsonb value: %w", err)
		}
		out[i] = b
	}
	return out, nil
}

func isNil(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case map[string]float64:
		return t == nil
	case map[string]map[string]float64:
		return t == nil
	case *models.MissingValuesFilled:
		return t == nil
	case *models.CleaningReport:
		return t == nil
	}
	return false
}
