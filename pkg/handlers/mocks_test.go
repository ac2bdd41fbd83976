package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ekaya-inc/tabula/pkg/apperrors"
	"github.com/ekaya-inc/tabula/pkg/cleaning"
	"github.com/ekaya-inc/tabula/pkg/models"
	"github.com/ekaya-inc/tabula/pkg/plotting"
	"github.com/ekaya-inc/tabula/pkg/services/workqueue"
	"github.com/ekaya-inc/tabula/pkg/tabular"
)

// mockFileService implements services.FileService for testing.
type mockFileService struct {
	files      map[uuid.UUID]*models.DataFile
	contents   map[uuid.UUID]string
	uploadErr  error
	uploadedAs string
	uploaded   []byte
}

func newMockFileService(files ...*models.DataFile) *mockFileService {
	m := &mockFileService{
		files:    make(map[uuid.UUID]*models.DataFile),
		contents: make(map[uuid.UUID]string),
	}
	for _, f := range files {
		m.files[f.ID] = f
	}
	return m
}

func (m *mockFileService) Upload(_ context.Context, content io.Reader, declaredName string) (*models.DataFile, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	m.uploadedAs = declaredName
	m.uploaded = data
	file := &models.DataFile{
		ID:               uuid.New(),
		Filename:         declaredName,
		FileType:         tabular.CSV,
		FileSize:         int64(len(data)),
		OriginalFilename: declaredName,
	}
	m.files[file.ID] = file
	return file, nil
}

func (m *mockFileService) Get(_ context.Context, id uuid.UUID) (*models.DataFile, error) {
	if f, ok := m.files[id]; ok {
		return f, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockFileService) Open(ctx context.Context, id uuid.UUID) (*models.DataFile, io.ReadCloser, error) {
	f, err := m.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	content, ok := m.contents[id]
	if !ok {
		return nil, nil, apperrors.ProcessingFailure(errors.New("stored file missing"))
	}
	return f, io.NopCloser(strings.NewReader(content)), nil
}

func (m *mockFileService) LoadTable(ctx context.Context, id uuid.UUID) (*models.DataFile, *tabular.Table, error) {
	f, err := m.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return f, &tabular.Table{}, nil
}

// mockStatsService implements services.StatsService for testing.
type mockStatsService struct {
	result *models.StatsResult
	err    error
}

func (m *mockStatsService) GetStats(_ context.Context, _ uuid.UUID) (*models.StatsResult, error) {
	return m.result, m.err
}

// mockCleaningService implements services.CleaningService for testing.
type mockCleaningService struct {
	mu     sync.Mutex
	result *models.CleaningResult
	err    error
	opts   cleaning.Options
	force  bool
	calls  int
}

func (m *mockCleaningService) CleanData(_ context.Context, _ uuid.UUID, opts cleaning.Options, force bool) (*models.CleaningResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.opts = opts
	m.force = force
	return m.result, m.err
}

// mockPlotService implements services.PlotService for testing.
type mockPlotService struct {
	image []byte
	err   error
	req   plotting.Request
}

func (m *mockPlotService) GetPlot(_ context.Context, _ uuid.UUID, req plotting.Request) ([]byte, error) {
	m.req = req
	return m.image, m.err
}

// mockQueue implements TaskQueue by recording tasks without running them.
type mockQueue struct {
	tasks      map[string]workqueue.TaskSnapshot
	order      []string
	enqueued   []workqueue.Task
	enqueueErr error
}

func newMockQueue() *mockQueue {
	return &mockQueue{tasks: make(map[string]workqueue.TaskSnapshot)}
}

func (m *mockQueue) Enqueue(task workqueue.Task) (workqueue.TaskSnapshot, error) {
	if m.enqueueErr != nil {
		return workqueue.TaskSnapshot{}, m.enqueueErr
	}
	m.enqueued = append(m.enqueued, task)
	snap := workqueue.TaskSnapshot{ID: task.ID(), Name: task.Name(), Status: workqueue.TaskStatusPending}
	m.add(snap)
	return snap, nil
}

func (m *mockQueue) add(snap workqueue.TaskSnapshot) {
	if _, ok := m.tasks[snap.ID]; !ok {
		m.order = append(m.order, snap.ID)
	}
	m.tasks[snap.ID] = snap
}

func (m *mockQueue) Tasks() []workqueue.TaskSnapshot {
	snaps := make([]workqueue.TaskSnapshot, 0, len(m.order))
	for _, id := range m.order {
		snaps = append(snaps, m.tasks[id])
	}
	return snaps
}

func (m *mockQueue) Cancel(id string) bool {
	snap, ok := m.tasks[id]
	if !ok || snap.Status.IsTerminal() {
		return false
	}
	snap.Status = workqueue.TaskStatusCancelled
	m.tasks[id] = snap
	return true
}

func (m *mockQueue) Get(id string) (workqueue.TaskSnapshot, bool) {
	snap, ok := m.tasks[id]
	return snap, ok
}

// passthroughScope stands in for database.WithScope.
func passthroughScope(next http.HandlerFunc) http.HandlerFunc {
	return next
}
