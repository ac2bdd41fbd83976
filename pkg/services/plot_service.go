package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/tabula/pkg/database"
	"github.com/ekaya-inc/tabula/pkg/metrics"
	"github.com/ekaya-inc/tabula/pkg/models"
	"github.com/ekaya-inc/tabula/pkg/plotting"
	"github.com/ekaya-inc/tabula/pkg/repositories"
)

// PlotService returns memoized chart images for stored files.
type PlotService interface {
	// GetPlot returns a PNG for the request. A stored plot of the same kind whose columns
	// include req.ValueColumn is reused; req.XColumn does not take part in the lookup.
	GetPlot(ctx context.Context, fileID uuid.UUID, req plotting.Request) ([]byte, error)
}

type plotService struct {
	files    FileService
	plots    repositories.PlotRepository
	tx       database.TxRunner
	renderer *plotting.Renderer
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewPlotService creates a new plot service.
func NewPlotService(
	files FileService,
	plots repositories.PlotRepository,
	tx database.TxRunner,
	renderer *plotting.Renderer,
	m *metrics.Metrics,
	logger *zap.Logger,
) PlotService {
	if renderer == nil {
		renderer = plotting.NewRenderer(0, 0, 0)
	}
	return &plotService{
		files:    files,
		plots:    plots,
		tx:       tx,
		renderer: renderer,
		metrics:  m,
		logger:   logger.Named("plot-service"),
	}
}

func (s *plotService) GetPlot(ctx context.Context, fileID uuid.UUID, req plotting.Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.plots.FindByColumn(ctx, fileID, req.Kind, req.ValueColumn)
	if err != nil {
		return nil, fmt.Errorf("failed to look up plot: %w", err)
	}
	if existing != nil {
		s.metrics.CacheLookup(metrics.KindPlot, true)
		s.logger.Debug("Plot cache hit",
			zap.String("file_id", fileID.String()),
			zap.String("plot_type", string(req.Kind)),
			zap.String("column", req.ValueColumn))
		return existing.PlotData, nil
	}
	s.metrics.CacheLookup(metrics.KindPlot, false)

	_, table, err := s.files.LoadTable(ctx, fileID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rendered, err := s.renderer.Render(table, req)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveCompute(metrics.KindPlot, time.Since(start))

	record := &models.DataPlot{
		DataFileID:  fileID,
		PlotType:    req.Kind,
		PlotData:    rendered.Image,
		PlotJSON:    rendered.Data,
		ColumnsUsed: rendered.ColumnsUsed,
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		return s.plots.Create(ctx, record)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store plot: %w", err)
	}

	s.logger.Info("Plot rendered",
		zap.String("file_id", fileID.String()),
		zap.String("plot_type", string(req.Kind)),
		zap.Strings("columns_used", rendered.ColumnsUsed),
		zap.Int("bytes", len(rendered.Image)))
	return rendered.Image, nil
}
