package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/tabula/pkg/cleaning"
	"github.com/ekaya-inc/tabula/pkg/database"
	"github.com/ekaya-inc/tabula/pkg/models"
	"github.com/ekaya-inc/tabula/pkg/plotting"
	"github.com/ekaya-inc/tabula/pkg/services"
	"github.com/ekaya-inc/tabula/pkg/services/workqueue"
)

// ScopeMiddleware attaches a request-scoped database connection.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// TaskQueue is the part of the work queue the handlers use.
type TaskQueue interface {
	Enqueue(task workqueue.Task) (workqueue.TaskSnapshot, error)
	Get(id string) (workqueue.TaskSnapshot, bool)
	Tasks() []workqueue.TaskSnapshot
	Cancel(id string) bool
}

// multipartMemory is how much of an upload is buffered in memory before spilling to
// temporary files.
const multipartMemory = 8 << 20

// TaskAcceptedResponse is returned when cleaning runs in the background.
type TaskAcceptedResponse struct {
	TaskID string               `json:"task_id"`
	Status workqueue.TaskStatus `json:"status"`
}

// DataHandler serves upload, statistics, cleaning and plot endpoints.
type DataHandler struct {
	files          services.FileService
	stats          services.StatsService
	cleaning       services.CleaningService
	plots          services.PlotService
	queue          TaskQueue
	scopes         database.ScopeProvider
	query          *queryValidator
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewDataHandler creates a new DataHandler.
func NewDataHandler(
	files services.FileService,
	stats services.StatsService,
	cleaningSvc services.CleaningService,
	plots services.PlotService,
	queue TaskQueue,
	scopes database.ScopeProvider,
	maxUploadBytes int64,
	logger *zap.Logger,
) *DataHandler {
	return &DataHandler{
		files:          files,
		stats:          stats,
		cleaning:       cleaningSvc,
		plots:          plots,
		queue:          queue,
		scopes:         scopes,
		query:          newQueryValidator(),
		maxUploadBytes: maxUploadBytes,
		logger:         logger.Named("data-handler"),
	}
}

// RegisterRoutes registers the data handler's routes on the given mux.
func (h *DataHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	base := "/api/v1/data/{fid}"

	mux.HandleFunc("POST /api/v1/upload", scope(h.Upload))
	mux.HandleFunc("GET "+base, scope(h.GetFile))
	mux.HandleFunc("GET "+base+"/download", scope(h.Download))
	mux.HandleFunc("GET "+base+"/stats", scope(h.GetStats))
	mux.HandleFunc("POST "+base+"/clean", scope(h.Clean))
	mux.HandleFunc("GET "+base+"/plot", scope(h.GetPlot))
}

// Upload handles POST /api/v1/upload with the file in multipart field "file".
func (h *DataHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			if err := ErrorResponse(w, http.StatusRequestEntityTooLarge, "file_too_large", "File exceeds the upload size limit"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		if err := ErrorResponse(w, http.StatusBadRequest, "no_file", "No file part in the request"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "no_file", "No file part in the request"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	defer file.Close()

	record, err := h.files.Upload(r.Context(), file, header.Filename)
	if err != nil {
		writeServiceError(w, h.logger, "Upload", err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, record); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetFile handles GET /api/v1/data/{fid}
func (h *DataHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := ParseFileID(w, r, h.logger)
	if !ok {
		return
	}

	record, err := h.files.Get(r.Context(), fileID)
	if err != nil {
		writeServiceError(w, h.logger, "Get file", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, record); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Download handles GET /api/v1/data/{fid}/download and streams the stored file, uploaded or
// cleaned, under its storage name.
func (h *DataHandler) Download(w http.ResponseWriter, r *http.Request) {
	fileID, ok := ParseFileID(w, r, h.logger)
	if !ok {
		return
	}

	record, rc, err := h.files.Open(r.Context(), fileID)
	if err != nil {
		writeServiceError(w, h.logger, "Download", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", record.FileType.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": record.Filename}))
	if record.FileSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(record.FileSize, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("Download interrupted",
			zap.String("file_id", fileID.String()),
			zap.Error(err))
	}
}

// GetStats handles GET /api/v1/data/{fid}/stats
func (h *DataHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	fileID, ok := ParseFileID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.stats.GetStats(r.Context(), fileID)
	if err != nil {
		writeServiceError(w, h.logger, "Get stats", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Clean handles POST /api/v1/data/{fid}/clean?handle_duplicates=&fill_missing=&force=&async=
// With async=true the run is queued and 202 carries the task id.
func (h *DataHandler) Clean(w http.ResponseWriter, r *http.Request) {
	fileID, ok := ParseFileID(w, r, h.logger)
	if !ok {
		return
	}

	var q cleanQuery
	if err := h.query.Bind(r.URL.Query(), &q); err != nil {
		writeServiceError(w, h.logger, "Clean", err)
		return
	}
	opts, err := cleaning.ParseOptions(q.HandleDuplicates, q.FillMissing)
	if err != nil {
		writeServiceError(w, h.logger, "Clean", err)
		return
	}
	force := queryBool(q.Force)

	if queryBool(q.Async) {
		h.enqueueClean(w, r, fileID, opts, force)
		return
	}

	result, err := h.cleaning.CleanData(r.Context(), fileID, opts, force)
	if err != nil {
		writeServiceError(w, h.logger, "Clean", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *DataHandler) enqueueClean(w http.ResponseWriter, r *http.Request, fileID uuid.UUID, opts cleaning.Options, force bool) {
	// Unknown files are rejected now rather than in a failed task.
	if _, err := h.files.Get(r.Context(), fileID); err != nil {
		writeServiceError(w, h.logger, "Clean", err)
		return
	}

	task := services.NewCleanTask(h.cleaning, h.scopes, fileID, opts, force)
	snap, err := h.queue.Enqueue(task)
	if err != nil {
		writeServiceError(w, h.logger, "Enqueue clean", err)
		return
	}

	h.logger.Info("Cleaning queued",
		zap.String("file_id", fileID.String()),
		zap.String("task_id", snap.ID))

	if err := WriteJSON(w, http.StatusAccepted, TaskAcceptedResponse{TaskID: snap.ID, Status: snap.Status}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetPlot handles GET /api/v1/data/{fid}/plot?type=&column=&x= and returns a PNG.
func (h *DataHandler) GetPlot(w http.ResponseWriter, r *http.Request) {
	fileID, ok := ParseFileID(w, r, h.logger)
	if !ok {
		return
	}

	var q plotQuery
	if err := h.query.Bind(r.URL.Query(), &q); err != nil {
		writeServiceError(w, h.logger, "Plot", err)
		return
	}

	img, err := h.plots.GetPlot(r.Context(), fileID, plotting.Request{
		Kind:        models.PlotType(q.Type),
		ValueColumn: q.Column,
		XColumn:     q.X,
	})
	if err != nil {
		writeServiceError(w, h.logger, "Plot", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(img); err != nil {
		h.logger.Error("Failed to write plot", zap.Error(err))
	}
}
