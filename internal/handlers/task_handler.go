package handlers

import (
	"net/http"

	"github.com/scribeworks/backend/internal/services"
)

type TaskHandler struct {
	registry *services.TaskRegistry
}

func NewTaskHandler(registry *services.TaskRegistry) *TaskHandler {
	return &TaskHandler{registry: registry}
}

// ListTasks lists every task
// @Summary List tasks
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Success 200 {array} TaskView
// @Failure 401 {object} services.ErrorResponse
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	tasks, err := h.registry.ListTasks(r.Context())
	if err != nil {
		services.SendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskViews(tasks, caller.IsAdmin()))
}

// CreateTask publishes a new task
// @Summary Create task
// @Description Admins publish ASSESSMENT or PAID work with its deposit, reward and time limit
// @Tags Tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.CreateTaskRequest true "Task"
// @Success 201 {object} TaskView
// @Failure 400 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req services.CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.registry.CreateTask(r.Context(), req)
	if err != nil {
		services.SendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, taskView(task, true))
}

// GetTask returns one task
// @Summary Get task
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Param taskId path int true "Task ID"
// @Success 200 {object} TaskView
// @Failure 404 {object} services.ErrorResponse
// @Router /tasks/{taskId} [get]
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	taskID, ok := pathInt64(w, r, "taskId")
	if !ok {
		return
	}

	task, err := h.registry.GetTask(r.Context(), taskID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskView(task, caller.IsAdmin()))
}

// LockTask reserves a task for the caller
// @Summary Lock task
// @Description Locks an OPEN task and holds its deposit. Trainees may only lock ASSESSMENT tasks.
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Param taskId path int true "Task ID"
// @Success 200 {object} TaskView
// @Failure 402 {object} services.ErrorResponse
// @Failure 403 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /tasks/{taskId}/lock [post]
func (h *TaskHandler) LockTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	taskID, ok := pathInt64(w, r, "taskId")
	if !ok {
		return
	}

	task, err := h.registry.LockTask(r.Context(), taskID, caller.AccountID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskView(task, caller.IsAdmin()))
}

// ReleaseTask gives the caller's lock back
// @Summary Release task
// @Description Cancels the caller's lock and refunds the held deposit
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Param taskId path int true "Task ID"
// @Success 200 {object} TaskView
// @Failure 409 {object} services.ErrorResponse
// @Router /tasks/{taskId}/release [post]
func (h *TaskHandler) ReleaseTask(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r)
	if !ok {
		return
	}
	taskID, ok := pathInt64(w, r, "taskId")
	if !ok {
		return
	}

	task, err := h.registry.CancelLock(r.Context(), taskID, caller.AccountID)
	if err != nil {
		services.SendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskView(task, caller.IsAdmin()))
}
