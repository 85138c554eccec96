package ports

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tasq/core/internal/domain/entities"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
}

// TaskRepository defines the interface for task data operations.
// Every method is scoped by owner; a task owned by someone else is reported
// as entities.ErrTaskNotFound.
type TaskRepository interface {
	Create(ctx context.Context, task *entities.Task) error
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*entities.Task, error)
	Update(ctx context.Context, task *entities.Task) error
	SetDeleted(ctx context.Context, ownerID, id uuid.UUID, deleted bool) (*entities.Task, error)
	UpdateStatus(ctx context.Context, ownerID, id uuid.UUID, status entities.TaskStatus) (*entities.Task, error)
	AppendComment(ctx context.Context, ownerID, id uuid.UUID, comment entities.Comment) (*entities.Task, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	List(ctx context.Context, filter TaskFilter) ([]*entities.Task, error)
	Count(ctx context.Context, filter TaskFilter) (int, error)
	CountByStatus(ctx context.Context, ownerID uuid.UUID) (map[entities.TaskStatus]int, error)
	StatSamples(ctx context.Context, ownerID uuid.UUID) ([]entities.TaskStatSample, error)
}

// AttachmentStore durably persists file bytes and returns a retrieval URL.
type AttachmentStore interface {
	Upload(ctx context.Context, data []byte, mimeType, folderHint string) (*StoredObject, error)
}

// Resource classes of stored attachments
const (
	ResourceImage = "image"
	ResourceRaw   = "raw"
)

// ResourceType classifies a MIME type as image or raw.
func ResourceType(mimeType string) string {
	if strings.HasPrefix(mimeType, "image/") {
		return ResourceImage
	}
	return ResourceRaw
}

// StoredObject is what the AttachmentStore reports back after an upload
type StoredObject struct {
	Name string
	URL  string
	Size uint64
}

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// TaskSortFields are the fields a task listing can be ordered by
var TaskSortFields = []string{"createdAt", "updatedAt", "dueDate", "title", "status", "priority"}

// Filter types for repository queries
type TaskFilter struct {
	OwnerID   uuid.UUID
	Status    *entities.TaskStatus
	Priority  *entities.Priority
	Search    string
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}
