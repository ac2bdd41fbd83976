package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/tabula/pkg/database"
	"github.com/ekaya-inc/tabula/pkg/models"
)

// PlotRepository defines the interface for cached plot images.
type PlotRepository interface {
	// FindByColumn returns the oldest plot of plotType for fileID whose ColumnsUsed
	// contains column, or nil when there is none.
	FindByColumn(ctx context.Context, fileID uuid.UUID, plotType models.PlotType, column string) (*models.DataPlot, error)
	Create(ctx context.Context, plot *models.DataPlot) error
}

type plotRepository struct{}

// NewPlotRepository creates a new plot repository.
func NewPlotRepository() PlotRepository {
	return &plotRepository{}
}

func (r *plotRepository) FindByColumn(ctx context.Context, fileID uuid.UUID, plotType models.PlotType, column string) (*models.DataPlot, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, data_file_id, plot_type, plot_data, plot_json, columns_used, created_at
		FROM data_plots
		WHERE data_file_id = $1
		  AND plot_type = $2
		  AND columns_used @> jsonb_build_array($3::text)
		ORDER BY created_at, id
		LIMIT 1`

	var (
		plot        models.DataPlot
		plotTypeStr string
		plotJSON    []byte
		columnsUsed []byte
	)
	err := scope.Querier().QueryRow(ctx, query, fileID, string(plotType), column).Scan(
		&plot.ID,
		&plot.DataFileID,
		&plotTypeStr,
		&plot.PlotData,
		&plotJSON,
		&columnsUsed,
		&plot.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find plot: %w", err)
	}
	plot.PlotType = models.PlotType(plotTypeStr)

	if err := json.Unmarshal(plotJSON, &plot.PlotJSON); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plot data: %w", err)
	}
	if err := json.Unmarshal(columnsUsed, &plot.ColumnsUsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal columns used: %w", err)
	}

	return &plot, nil
}

func (r *plotRepository) Create(ctx context.Context, plot *models.DataPlot) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if plot.ID == uuid.Nil {
		plot.ID = uuid.New()
	}
	if plot.CreatedAt.IsZero() {
		plot.CreatedAt = time.Now()
	}

	plotJSON, err := json.Marshal(plot.PlotJSON)
	if err != nil {
		return fmt.Errorf("failed to marshal plot data: %w", err)
	}
	if plot.ColumnsUsed == nil {
		plot.ColumnsUsed = []string{}
	}
	columnsUsed, err := json.Marshal(plot.ColumnsUsed)
	if err != nil {
		return fmt.Errorf("failed to marshal columns used: %w", err)
	}

	query := `
		INSERT INTO data_plots (id, data_file_id, plot_type, plot_data, plot_json, columns_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = scope.Querier().Exec(ctx, query,
		plot.ID,
		plot.DataFileID,
		string(plot.PlotType),
		plot.PlotData,
		plotJSON,
		columnsUsed,
		plot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create plot: %w", err)
	}
	return nil
}
