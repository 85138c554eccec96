package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/tasq/core/internal/domain/entities"
)

// AuthService verifies the bearer tokens presented to the API
type AuthService interface {
	ValidateToken(tokenString string) (*Claims, error)
	IssueToken(user *entities.User) (string, error)
}

// TaskService interface for task management operations
type TaskService interface {
	CreateTask(ctx context.Context, ownerID uuid.UUID, req CreateTaskRequest, files []UploadFile) (*entities.Task, error)
	GetTask(ctx context.Context, ownerID, taskID uuid.UUID) (*entities.Task, error)
	UpdateTask(ctx context.Context, ownerID, taskID uuid.UUID, req UpdateTaskRequest, files []UploadFile) (*entities.Task, error)
	DeleteTask(ctx context.Context, ownerID, taskID uuid.UUID) error
	RestoreTask(ctx context.Context, ownerID, taskID uuid.UUID) (*entities.Task, error)
	DeleteTaskPermanently(ctx context.Context, ownerID, taskID uuid.UUID) error
	MarkComplete(ctx context.Context, ownerID, taskID uuid.UUID) (*entities.Task, error)
	AddComment(ctx context.Context, author Claims, taskID uuid.UUID, req AddCommentRequest) (*entities.Task, error)
	ListTasks(ctx context.Context, ownerID uuid.UUID, query ListTasksQuery) (*TaskPage, error)
	DashboardStats(ctx context.Context, ownerID uuid.UUID) (*entities.DashboardStats, error)
	Analytics(ctx context.Context, ownerID uuid.UUID) (*entities.AnalyticsSnapshot, error)
}

// Claims identifies the authenticated caller
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

// UploadFile is a raw file received with a create or update call
type UploadFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Task related types
type CreateTaskRequest struct {
	Title       string
	Description *string
	// Status is accepted for compatibility and ignored; new tasks start pending.
	Status     *entities.TaskStatus
	Priority   *entities.Priority
	DueDate    string
	AssignedTo []string
}

// UpdateTaskRequest is a partial update; nil fields are left untouched.
type UpdateTaskRequest struct {
	Title       *string
	Description *string
	Status      *entities.TaskStatus
	Priority    *entities.Priority
	DueDate     *string
	AssignedTo  *[]string
	// ExistingFiles is the client's restatement of attachments to keep.
	// nil means "not declared": the current attachments are kept.
	ExistingFiles *[]entities.Attachment
	RemovedFiles  []string
}

// TouchesAttachments reports whether the update changes the attachment set
func (r *UpdateTaskRequest) TouchesAttachments(newFiles int) bool {
	return newFiles > 0 || r.ExistingFiles != nil || len(r.RemovedFiles) > 0
}

type AddCommentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// ListTasksQuery carries the raw list parameters; zero values take defaults.
type ListTasksQuery struct {
	Page      int
	Limit     int
	Search    string
	Status    string
	Priority  string
	SortBy    string
	SortOrder string
}

// TaskPage is one page of a filtered task listing
type TaskPage struct {
	Items       []*entities.Task `json:"items"`
	TotalCount  int              `json:"totalCount"`
	TotalPages  int              `json:"totalPages"`
	CurrentPage int              `json:"currentPage"`
	Limit       int              `json:"limit"`
}
