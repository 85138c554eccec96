package http

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tasq/core/internal/domain/entities"
	"github.com/tasq/core/internal/infrastructure/logger"
	"github.com/tasq/core/internal/ports"
)

// ClaimsKey is the echo context key the auth middleware stores *ports.Claims under
const ClaimsKey = "user"

// TaskHandler handles task-related requests
type TaskHandler struct {
	taskService ports.TaskService
	logger      *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService ports.TaskService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger.WithComponent("task_handler"),
	}
}

// CreateTask godoc
// @Summary Create a task
// @Description Create a task from multipart form fields and optional files. The task always starts pending.
// @Tags tasks
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param priority formData string false "low, medium or high"
// @Param dueDate formData string true "Due date"
// @Param assignedTo formData []string false "Assignee emails"
// @Param files formData file false "Attachments"
// @Success 201 {object} Response{data=entities.Task}
// @Failure 400 {object} Response
// @Failure 502 {object} Response
// @Security BearerAuth
// @Router /tasks [post]
func (h *TaskHandler) CreateTask(c echo.Context) error {
	claims, err := currentUser(c)
	if err != nil {
		return err
	}

	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid form data")
	}

	req := ports.CreateTaskRequest{
		Title:      form.Get("title"),
		DueDate:    form.Get("dueDate"),
		AssignedTo: listField(form, "assignedTo"),
	}
	if v, ok := formValue(form, "description"); ok {
		req.Description = &v
	}
	if v, ok := formValue(form, "status"); ok && v != "" {
		status := entities.TaskStatus(v)
		req.Status = &status
	}
	if v, ok := formValue(form, "priority"); ok && v != "" {
		priority := entities.Priority(v)
		req.Priority = &priority
	}

	files, err := uploadedFiles(c, "files")
	if err != nil {
		return err
	}

	task, err := h.taskService.CreateTask(c.Request().Context(), claims.UserID, req, files)
	if err != nil {
		return err
	}

	return success(c, http.StatusCreated, "Task created successfully", task)
}

// ListTasks godoc
// @Summary List tasks
// @Description Filtered, sorted and paginated list of the caller's tasks
// @Tags tasks
// @Produce json
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 9)"
// @Param search query string false "Substring of title or description"
// @Param status query string false "all, pending, in-progress or completed"
// @Param priority query string false "all, low, medium or high"
// @Param sortBy query string false "createdAt, updatedAt, dueDate, title, status or priority"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} Response{data=[]entities.Task,pagination=Pagination}
// @Failure 400 {object} Response
// @Security BearerAuth
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c echo.Context) error {
	claims, err := currentUser(c)
	if err != nil {
		return err
	}

	verr := &entities.ValidationError{}
	query := ports.ListTasksQuery{
		Page:      intParam(c, "page", verr),
		Limit:     intParam(c, "limit", verr),
		Search:    c.QueryParam("search"),
		Status:    c.QueryParam("status"),
		Priority:  c.QueryParam("priority"),
		SortBy:    c.QueryParam("sortBy"),
		SortOrder: c.QueryParam("sortOrder"),
	}
	if err := verr.OrNil(); err != nil {
		return err
	}

	page, err := h.taskService.ListTasks(c.Request().Context(), claims.UserID, query)
	if err != nil {
		return err
	}

	return paginated(c, "Tasks fetched successfully", page)
}

// GetTask godoc
// @Summary Get a task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} Response{data=entities.Task}
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /tasks/{id} [get]
func (h *TaskHandler) GetTask(c echo.Context) error {
	claims, taskID, err := h.target(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.GetTask(c.Request().Context(), claims.UserID, taskID)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, "Task fetched successfully", task)
}

// UpdateTask godoc
// @Summary Update a task
// @Description Partial update. Only the fields present in the form change.
// @Tags tasks
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Task ID"
// @Param existingFiles formData string false "JSON array of {filename,url} to keep"
// @Param removedFiles formData []string false "Filenames to remove"
// @Param newFiles formData file false "New attachments"
// @Success 200 {object} Response{data=entities.Task}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 502 {object} Response
// @Security BearerAuth
// @Router /tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	claims, taskID, err := h.target(c)
	if err != nil {
		return err
	}

	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid form data")
	}

	req := ports.UpdateTaskRequest{RemovedFiles: listField(form, "removedFiles")}
	if v, ok := formValue(form, "title"); ok {
		req.Title = &v
	}
	if v, ok := formValue(form, "description"); ok {
		req.Description = &v
	}
	if v, ok := formValue(form, "status"); ok {
		status := entities.TaskStatus(v)
		req.Status = &status
	}
	if v, ok := formValue(form, "priority"); ok {
		priority := entities.Priority(v)
		req.Priority = &priority
	}
	if v, ok := formValue(form, "dueDate"); ok {
		req.DueDate = &v
	}
	if hasField(form, "assignedTo") {
		emails := listField(form, "assignedTo")
		req.AssignedTo = &emails
	}
	if hasField(form, "existingFiles") {
		existing, err := attachmentsField(form, "existingFiles")
		if err != nil {
			return entities.NewValidationError("existingFiles", "existingFiles must be JSON encoded {filename,url} objects.")
		}
		req.ExistingFiles = &existing
	}

	files, err := uploadedFiles(c, "newFiles")
	if err != nil {
		return err
	}

	task, err := h.taskService.UpdateTask(c.Request().Context(), claims.UserID, taskID, req, files)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, "Task updated successfully", task)
}

// CompleteTask godoc
// @Summary Mark a task completed
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} Response{data=entities.Task}
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /tasks/{id}/complete [patch]
func (h *TaskHandler) CompleteTask(c echo.Context) error {
	claims, taskID, err := h.target(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.MarkComplete(c.Request().Context(), claims.UserID, taskID)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, "Task marked as completed", task)
}

// RestoreTask godoc
// @Summary Restore a soft-deleted task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} Response{data=entities.Task}
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /tasks/{id}/restore [patch]
func (h *TaskHandler) RestoreTask(c echo.Context) error {
	claims, taskID, err := h.target(c)
	if err != nil {
		return err
	}

	task, err := h.taskService.RestoreTask(c.Request().Context(), claims.UserID, taskID)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, "Task restored successfully", task)
}

// DeleteTask godoc
// @Summary Soft-delete a task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	claims, taskID, err := h.target(c)
	if err != nil {
		return err
	}

	if err := h.taskService.DeleteTask(c.Request().Context(), claims.UserID, taskID); err != nil {
		return err
	}

	return success(c, http.StatusOK, "Task deleted successfully", nil)
}

// DeleteTaskPermanently godoc
// @Summary Permanently delete a task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /tasks/{id}/permanent [delete]
func (h *TaskHandler) DeleteTaskPermanently(c echo.Context) error {
	claims, taskID, err := h.target(c)
	if err != nil {
		return err
	}

	if err := h.taskService.DeleteTaskPermanently(c.Request().Context(), claims.UserID, taskID); err != nil {
		return err
	}

	return success(c, http.StatusOK, "Task permanently deleted", nil)
}

// AddComment godoc
// @Summary Comment on a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body ports.AddCommentRequest true "Comment"
// @Success 201 {object} Response{data=entities.Task}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Security BearerAuth
// @Router /tasks/{id}/comments [post]
func (h *TaskHandler) AddComment(c echo.Context) error {
	claims, taskID, err := h.target(c)
	if err != nil {
		return err
	}

	var req ports.AddCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	task, err := h.taskService.AddComment(c.Request().Context(), *claims, taskID, req)
	if err != nil {
		return err
	}

	return success(c, http.StatusCreated, "Comment added successfully", task)
}

// DashboardStats godoc
// @Summary Dashboard counters
// @Tags dashboard
// @Produce json
// @Success 200 {object} Response{data=entities.DashboardStats}
// @Security BearerAuth
// @Router /tasks/dashboard/stats [get]
func (h *TaskHandler) DashboardStats(c echo.Context) error {
	claims, err := currentUser(c)
	if err != nil {
		return err
	}

	stats, err := h.taskService.DashboardStats(c.Request().Context(), claims.UserID)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, "Dashboard stats fetched successfully", stats)
}

// Analytics godoc
// @Summary Analytics snapshot
// @Tags dashboard
// @Produce json
// @Success 200 {object} Response{data=entities.AnalyticsSnapshot}
// @Security BearerAuth
// @Router /tasks/analytics/data [get]
func (h *TaskHandler) Analytics(c echo.Context) error {
	claims, err := currentUser(c)
	if err != nil {
		return err
	}

	snapshot, err := h.taskService.Analytics(c.Request().Context(), claims.UserID)
	if err != nil {
		return err
	}

	return success(c, http.StatusOK, "Analytics fetched successfully", snapshot)
}

func (h *TaskHandler) target(c echo.Context) (*ports.Claims, uuid.UUID, error) {
	claims, err := currentUser(c)
	if err != nil {
		return nil, uuid.Nil, err
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, uuid.Nil, entities.NewValidationError("id", "Invalid task ID")
	}

	return claims, taskID, nil
}

// Utility functions

func currentUser(c echo.Context) (*ports.Claims, error) {
	claims, ok := c.Get(ClaimsKey).(*ports.Claims)
	if !ok || claims == nil || claims.UserID == uuid.Nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}
	return claims, nil
}

func intParam(c echo.Context, name string, verr *entities.ValidationError) int {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		verr.Add(name, name+" must be an integer.")
		return 0
	}
	return n
}

// formValue returns a field and whether the form carries it, accepting the
// "name[]" spelling browsers use for arrays.
func formValue(form url.Values, name string) (string, bool) {
	for _, key := range []string{name, name + "[]"} {
		if vs, ok := form[key]; ok && len(vs) > 0 {
			return vs[0], true
		}
	}
	return "", false
}

func hasField(form url.Values, name string) bool {
	_, ok := formValue(form, name)
	return ok
}

// listField accepts repeated fields, a comma separated value or a JSON array.
func listField(form url.Values, name string) []string {
	raw := append(append([]string{}, form[name]...), form[name+"[]"]...)

	out := []string{}
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "[") {
			var arr []string
			if err := json.Unmarshal([]byte(v), &arr); err == nil {
				out = append(out, arr...)
				continue
			}
		}
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// attachmentsField decodes either one JSON array or one JSON object per value.
func attachmentsField(form url.Values, name string) ([]entities.Attachment, error) {
	raw := append(append([]string{}, form[name]...), form[name+"[]"]...)

	out := []entities.Attachment{}
	for _, v := range raw {
		v = strings.TrimSpace(v)
		switch {
		case v == "":
		case strings.HasPrefix(v, "["):
			var arr []entities.Attachment
			if err := json.Unmarshal([]byte(v), &arr); err != nil {
				return nil, err
			}
			out = append(out, arr...)
		default:
			var a entities.Attachment
			if err := json.Unmarshal([]byte(v), &a); err != nil {
				return nil, err
			}
			out = append(out, a)
		}
	}
	return out, nil
}

func uploadedFiles(c echo.Context, field string) ([]ports.UploadFile, error) {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid multipart form")
	}

	headers := append(append([]*multipart.FileHeader{}, form.File[field]...), form.File[field+"[]"]...)
	files := make([]ports.UploadFile, 0, len(headers))
	for _, fh := range headers {
		data, err := readFile(fh)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "Failed to read uploaded file").SetInternal(err)
		}
		files = append(files, ports.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Data:        data,
		})
	}
	return files, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}

// Register mounts the task routes on g
func (h *TaskHandler) Register(g *echo.Group) {
	g.POST("", h.CreateTask)
	g.GET("", h.ListTasks)
	g.GET("/dashboard/stats", h.DashboardStats)
	g.GET("/analytics/data", h.Analytics)
	g.GET("/:id", h.GetTask)
	g.PUT("/:id", h.UpdateTask)
	g.DELETE("/:id", h.DeleteTask)
	g.PATCH("/:id/complete", h.CompleteTask)
	g.PATCH("/:id/restore", h.RestoreTask)
	g.DELETE("/:id/permanent", h.DeleteTaskPermanently)
	g.POST("/:id/comments", h.AddComment)
}
