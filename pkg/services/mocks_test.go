package services

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/tabula/pkg/apperrors"
	"github.com/ekaya-inc/tabula/pkg/models"
	"github.com/ekaya-inc/tabula/pkg/storage"
)

// mockFileRepo implements repositories.DataFileRepository for testing.
type mockFileRepo struct {
	mu        sync.Mutex
	files     map[uuid.UUID]*models.DataFile
	createErr error
}

func newMockFileRepo() *mockFileRepo {
	return &mockFileRepo{files: make(map[uuid.UUID]*models.DataFile)}
}

func (m *mockFileRepo) Create(_ context.Context, file *models.DataFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	copied := *file
	m.files[file.ID] = &copied
	return nil
}

func (m *mockFileRepo) Get(_ context.Context, id uuid.UUID) (*models.DataFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *file
	return &copied, nil
}

func (m *mockFileRepo) FilenameExists(_ context.Context, filename string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.files {
		if f.Filename == filename {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockFileRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

// mockAnalysisRepo implements repositories.AnalysisRepository for testing. It enforces
// the single basic_stats record per file like the database index does.
type mockAnalysisRepo struct {
	mu        sync.Mutex
	analyses  []*models.DataAnalysis
	createErr error
	finds     int
	// beforeCreate runs inside Create before the uniqueness check.
	beforeCreate func(a *models.DataAnalysis)
}

func (m *mockAnalysisRepo) FindByFileAndType(_ context.Context, fileID uuid.UUID, analysisType models.AnalysisType) (*models.DataAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	for _, a := range slices.Backward(m.analyses) {
		if a.DataFileID == fileID && a.AnalysisType == analysisType {
			return a, nil
		}
	}
	return nil, nil
}

func (m *mockAnalysisRepo) Create(_ context.Context, analysis *models.DataAnalysis) error {
	if m.beforeCreate != nil {
		m.beforeCreate(analysis)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if analysis.AnalysisType == models.AnalysisBasicStats {
		for _, a := range m.analyses {
			if a.DataFileID == analysis.DataFileID && a.AnalysisType == models.AnalysisBasicStats {
				return apperrors.ErrDuplicateAnalysis
			}
		}
	}
	analysis.ID = uuid.New()
	analysis.AnalysisDate = time.Now()
	m.analyses = append(m.analyses, analysis)
	return nil
}

func (m *mockAnalysisRepo) count(analysisType models.AnalysisType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.analyses {
		if a.AnalysisType == analysisType {
			n++
		}
	}
	return n
}

// mockPlotRepo implements repositories.PlotRepository for testing.
type mockPlotRepo struct {
	plots     []*models.DataPlot
	createErr error
}

func (m *mockPlotRepo) FindByColumn(_ context.Context, fileID uuid.UUID, plotType models.PlotType, column string) (*models.DataPlot, error) {
	for _, p := range m.plots {
		if p.DataFileID == fileID && p.PlotType == plotType && slices.Contains(p.ColumnsUsed, column) {
			return p, nil
		}
	}
	return nil, nil
}

func (m *mockPlotRepo) Create(_ context.Context, plot *models.DataPlot) error {
	if m.createErr != nil {
		return m.createErr
	}
	plot.ID = uuid.New()
	plot.CreatedAt = time.Now()
	m.plots = append(m.plots, plot)
	return nil
}

// mockTxRunner implements database.TxRunner by calling fn directly.
type mockTxRunner struct {
	mu    sync.Mutex
	calls int
}

func (m *mockTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return fn(ctx)
}

// mockScopeProvider implements database.ScopeProvider without a database.
type mockScopeProvider struct {
	mu       sync.Mutex
	acquired int
	released int
	err      error
}

func (m *mockScopeProvider) WithScope(ctx context.Context) (context.Context, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, nil, m.err
	}
	m.acquired++
	return ctx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.released++
	}, nil
}

// fixture wires the services to mocks and a temporary upload directory.
type fixture struct {
	files    *mockFileRepo
	analyses *mockAnalysisRepo
	plots    *mockPlotRepo
	tx       *mockTxRunner
	store    *storage.Store

	fileSvc     FileService
	statsSvc    StatsService
	cleaningSvc CleaningService
	plotSvc     PlotService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := storage.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	f := &fixture{
		files:    newMockFileRepo(),
		analyses: &mockAnalysisRepo{},
		plots:    &mockPlotRepo{},
		tx:       &mockTxRunner{},
		store:    store,
	}
	logger := zap.NewNop()
	f.fileSvc = NewFileService(f.files, store, f.tx, nil, logger)
	f.statsSvc = NewStatsService(f.fileSvc, f.analyses, f.tx, nil, logger)
	f.cleaningSvc = NewCleaningService(f.fileSvc, f.files, f.analyses, store, f.tx, nil, logger)
	f.plotSvc = NewPlotService(f.fileSvc, f.plots, f.tx, nil, nil, logger)
	return f
}

const scenarioCSV = "id,value,category\n1,10.5,A\n2,15.2,B\n3,,A\n4,20.1,C\n5,15.2,B\n"

// upload stores content under name and returns the new record.
func (f *fixture) upload(t *testing.T, name, content string) *models.DataFile {
	t.Helper()
	file, err := f.fileSvc.Upload(context.Background(), strings.NewReader(content), name)
	require.NoError(t, err)
	return file
}
