package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tasq/core/internal/domain/entities"
	"github.com/tasq/core/internal/infrastructure/logger"
	"github.com/tasq/core/internal/infrastructure/metrics"
	"github.com/tasq/core/internal/ports"
)

// TaskService handles task-related operations
type TaskService struct {
	taskRepo   ports.TaskRepository
	resolver   *AssigneeResolver
	reconciler *AttachmentReconciler
	uploader   *Uploader
	query      *TaskQueryEngine
	analytics  *AnalyticsAggregator
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

var _ ports.TaskService = (*TaskService)(nil)

// NewTaskService creates a new task service
func NewTaskService(
	taskRepo ports.TaskRepository,
	resolver *AssigneeResolver,
	uploader *Uploader,
	query *TaskQueryEngine,
	analytics *AnalyticsAggregator,
	m *metrics.Metrics,
	logger *logger.Logger,
) *TaskService {
	return &TaskService{
		taskRepo:   taskRepo,
		resolver:   resolver,
		reconciler: NewAttachmentReconciler(logger),
		uploader:   uploader,
		query:      query,
		analytics:  analytics,
		metrics:    m,
		logger:     logger.WithComponent("task_service"),
	}
}

// CreateTask creates a new task. The task always starts pending, whatever
// status the request carries.
func (s *TaskService) CreateTask(ctx context.Context, ownerID uuid.UUID, req ports.CreateTaskRequest, files []ports.UploadFile) (*entities.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	dueDate, err := ports.ParseDueDate(req.DueDate)
	if err != nil {
		return nil, entities.NewValidationError("dueDate", "Due date must be a valid date string.")
	}

	assignees := s.resolver.Resolve(ctx, req.AssignedTo)

	attachments, err := s.uploader.UploadAll(ctx, files)
	if err != nil {
		return nil, err
	}

	priority := entities.PriorityMedium
	if req.Priority != nil {
		priority = *req.Priority
	}

	task := &entities.Task{
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(req.Title),
		Description: trimmed(req.Description),
		Status:      entities.TaskStatusPending,
		Priority:    priority,
		DueDate:     dueDate,
		AssignedTo:  assignees,
		Attachments: attachments,
		Comments:    entities.Comments{},
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.afterWrite(ctx, ownerID, task.ID, "task_created", map[string]interface{}{
		"title":       task.Title,
		"attachments": len(task.Attachments),
		"assignees":   len(task.AssignedTo),
	})

	return task, nil
}

// GetTask retrieves a task by ID, soft-deleted ones included
func (s *TaskService) GetTask(ctx context.Context, ownerID, taskID uuid.UUID) (*entities.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, ownerID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// UpdateTask applies a partial update. Assignees are re-resolved only when
// the request names them; attachments change only when the request uploads,
// keeps or removes files.
func (s *TaskService) UpdateTask(ctx context.Context, ownerID, taskID uuid.UUID, req ports.UpdateTaskRequest, files []ports.UploadFile) (*entities.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	task, err := s.taskRepo.GetByID(ctx, ownerID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	if task.IsDeleted {
		return nil, entities.ErrTaskNotFound
	}

	if req.Title != nil {
		task.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		task.Description = trimmed(req.Description)
	}
	if req.Status != nil {
		task.Status = *req.Status
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.DueDate != nil {
		dueDate, err := ports.ParseDueDate(*req.DueDate)
		if err != nil {
			return nil, entities.NewValidationError("dueDate", "Due date must be a valid date string.")
		}
		task.DueDate = dueDate
	}
	if req.AssignedTo != nil {
		task.AssignedTo = s.resolver.Resolve(ctx, *req.AssignedTo)
	}

	if req.TouchesAttachments(len(files)) {
		kept := task.Attachments
		if req.ExistingFiles != nil {
			kept = *req.ExistingFiles
		}
		kept = ExcludeRemoved(kept, req.RemovedFiles)

		uploaded, err := s.uploader.UploadAll(ctx, files)
		if err != nil {
			return nil, err
		}

		task.Attachments = s.reconciler.Reconcile(uploaded, kept, req.RemovedFiles)
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.afterWrite(ctx, ownerID, task.ID, "task_updated", map[string]interface{}{
		"status":      task.Status,
		"attachments": len(task.Attachments),
	})

	return task, nil
}

// DeleteTask soft-deletes a task
func (s *TaskService) DeleteTask(ctx context.Context, ownerID, taskID uuid.UUID) error {
	if _, err := s.taskRepo.SetDeleted(ctx, ownerID, taskID, true); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.afterWrite(ctx, ownerID, taskID, "task_deleted", nil)
	return nil
}

// RestoreTask clears the soft-delete flag
func (s *TaskService) RestoreTask(ctx context.Context, ownerID, taskID uuid.UUID) (*entities.Task, error) {
	task, err := s.taskRepo.SetDeleted(ctx, ownerID, taskID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to restore task: %w", err)
	}

	s.afterWrite(ctx, ownerID, taskID, "task_restored", nil)
	return task, nil
}

// DeleteTaskPermanently removes the task record. Stored attachment objects are left in place.
func (s *TaskService) DeleteTaskPermanently(ctx context.Context, ownerID, taskID uuid.UUID) error {
	if err := s.taskRepo.Delete(ctx, ownerID, taskID); err != nil {
		return fmt.Errorf("failed to delete task permanently: %w", err)
	}

	s.afterWrite(ctx, ownerID, taskID, "task_purged", nil)
	return nil
}

// MarkComplete moves a task to completed. Completing a completed task succeeds
// and leaves it untouched.
func (s *TaskService) MarkComplete(ctx context.Context, ownerID, taskID uuid.UUID) (*entities.Task, error) {
	task, err := s.taskRepo.UpdateStatus(ctx, ownerID, taskID, entities.TaskStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}

	s.afterWrite(ctx, ownerID, taskID, "task_completed", nil)
	return task, nil
}

// AddComment appends a comment written by the caller to one of the caller's tasks
func (s *TaskService) AddComment(ctx context.Context, author ports.Claims, taskID uuid.UUID, req ports.AddCommentRequest) (*entities.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	authorID := author.UserID
	comment := entities.Comment{
		UserID:    &authorID,
		Email:     author.Email,
		Text:      req.Text,
		CreatedAt: time.Now().UTC(),
	}

	task, err := s.taskRepo.AppendComment(ctx, author.UserID, taskID, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}

	s.afterWrite(ctx, author.UserID, taskID, "task_commented", nil)
	return task, nil
}

// ListTasks returns one page of the owner's tasks
func (s *TaskService) ListTasks(ctx context.Context, ownerID uuid.UUID, query ports.ListTasksQuery) (*ports.TaskPage, error) {
	return s.query.List(ctx, ownerID, query)
}

// DashboardStats returns the per-status counters
func (s *TaskService) DashboardStats(ctx context.Context, ownerID uuid.UUID) (*entities.DashboardStats, error) {
	return s.analytics.DashboardStats(ctx, ownerID)
}

// Analytics returns the analytics snapshot
func (s *TaskService) Analytics(ctx context.Context, ownerID uuid.UUID) (*entities.AnalyticsSnapshot, error) {
	return s.analytics.Compute(ctx, ownerID)
}

func (s *TaskService) afterWrite(ctx context.Context, ownerID, taskID uuid.UUID, action string, meta map[string]interface{}) {
	s.analytics.Invalidate(ctx, ownerID)
	s.metrics.TaskEvent(action)

	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["task_id"] = taskID.String()
	s.logger.LogUserAction(ownerID.String(), action, meta)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
