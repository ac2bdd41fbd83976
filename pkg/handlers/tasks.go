package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/tabula/pkg/services/workqueue"
)

// TaskHandler reports and cancels background tasks.
type TaskHandler struct {
	queue  TaskQueue
	logger *zap.Logger
}

// TaskListResponse wraps the tracked tasks.
type TaskListResponse struct {
	Tasks []workqueue.TaskSnapshot `json:"tasks"`
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(queue TaskQueue, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{queue: queue, logger: logger.Named("task-handler")}
}

// RegisterRoutes registers the task handler's routes on the given mux.
func (h *TaskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/tasks", h.ListTasks)
	mux.HandleFunc("GET /api/v1/tasks/{tid}", h.GetTask)
	mux.HandleFunc("DELETE /api/v1/tasks/{tid}", h.CancelTask)
}

// ListTasks handles GET /api/v1/tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, TaskListResponse{Tasks: h.queue.Tasks()}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetTask handles GET /api/v1/tasks/{tid}
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := ParseTaskID(w, r, h.logger)
	if !ok {
		return
	}

	snap, found := h.queue.Get(taskID.String())
	if !found {
		h.taskNotFound(w)
		return
	}

	if err := WriteJSON(w, http.StatusOK, snap); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// CancelTask handles DELETE /api/v1/tasks/{tid}. A pending task never starts; a running
// one has its context cancelled. Finished tasks answer 409.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := ParseTaskID(w, r, h.logger)
	if !ok {
		return
	}
	id := taskID.String()

	if !h.queue.Cancel(id) {
		if _, found := h.queue.Get(id); !found {
			h.taskNotFound(w)
			return
		}
		if err := ErrorResponse(w, http.StatusConflict, "task_finished", "Task has already finished"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	h.logger.Info("Task cancelled", zap.String("task_id", id))
	snap, _ := h.queue.Get(id)
	if err := WriteJSON(w, http.StatusOK, snap); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *TaskHandler) taskNotFound(w http.ResponseWriter) {
	if err := ErrorResponse(w, http.StatusNotFound, "task_not_found", "Task not found or expired"); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
