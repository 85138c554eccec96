package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tasq/core/internal/domain/entities"
	"github.com/tasq/core/internal/ports"
)

const taskColumns = `id, owner_id, title, description, status, priority, due_date,
	assigned_to, attachments, comments, is_deleted, created_at, updated_at`

// sortColumns maps ports.TaskSortFields to columns; anything else sorts by created_at.
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"dueDate":   "due_date",
	"title":     "title",
	"status":    "status",
	"priority":  "priority",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// TaskRepositoryImpl implements ports.TaskRepository on PostgreSQL
type TaskRepositoryImpl struct {
	db *sqlx.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sqlx.DB) *TaskRepositoryImpl {
	return &TaskRepositoryImpl{db: db}
}

func (r *TaskRepositoryImpl) Create(ctx context.Context, task *entities.Task) error {
	query := `
		INSERT INTO tasks (id, owner_id, title, description, status, priority, due_date,
			assigned_to, attachments, comments, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	task.Normalize()

	err := r.db.QueryRowContext(ctx, query,
		task.ID, task.OwnerID, task.Title, task.Description, task.Status, task.Priority,
		task.DueDate, task.AssignedTo, task.Attachments, task.Comments, task.IsDeleted,
	).Scan(&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}

	return nil
}

func (r *TaskRepositoryImpl) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*entities.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND owner_id = $2`

	var task entities.Task
	if err := r.db.GetContext(ctx, &task, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task by id: %w", err)
	}
	task.Normalize()

	return &task, nil
}

func (r *TaskRepositoryImpl) Update(ctx context.Context, task *entities.Task) error {
	query := `
		UPDATE tasks
		SET title = $3, description = $4, status = $5, priority = $6, due_date = $7,
			assigned_to = $8, attachments = $9, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND is_deleted = FALSE
		RETURNING updated_at`

	task.Normalize()
	err := r.db.QueryRowContext(ctx, query,
		task.ID, task.OwnerID, task.Title, task.Description, task.Status, task.Priority,
		task.DueDate, task.AssignedTo, task.Attachments,
	).Scan(&task.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entities.ErrTaskNotFound
		}
		return fmt.Errorf("update task: %w", err)
	}

	return nil
}

func (r *TaskRepositoryImpl) SetDeleted(ctx context.Context, ownerID, id uuid.UUID, deleted bool) (*entities.Task, error) {
	query := `
		UPDATE tasks SET is_deleted = $3, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + taskColumns

	return r.updateReturning(ctx, "set task deleted flag", query, id, ownerID, deleted)
}

// UpdateStatus leaves updated_at alone when the status does not change, so a
// repeated transition is a true no-op.
func (r *TaskRepositoryImpl) UpdateStatus(ctx context.Context, ownerID, id uuid.UUID, status entities.TaskStatus) (*entities.Task, error) {
	query := `
		UPDATE tasks
		SET updated_at = CASE WHEN status = $3 THEN updated_at ELSE NOW() END,
			status = $3
		WHERE id = $1 AND owner_id = $2 AND is_deleted = FALSE
		RETURNING ` + taskColumns

	return r.updateReturning(ctx, "update task status", query, id, ownerID, status)
}

func (r *TaskRepositoryImpl) AppendComment(ctx context.Context, ownerID, id uuid.UUID, comment entities.Comment) (*entities.Task, error) {
	query := `
		UPDATE tasks SET comments = comments || $3::jsonb, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND is_deleted = FALSE
		RETURNING ` + taskColumns

	return r.updateReturning(ctx, "append task comment", query, id, ownerID, entities.Comments{comment})
}

func (r *TaskRepositoryImpl) updateReturning(ctx context.Context, op, query string, args ...interface{}) (*entities.Task, error) {
	var task entities.Task
	if err := r.db.GetContext(ctx, &task, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	task.Normalize()

	return &task, nil
}

func (r *TaskRepositoryImpl) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	query := `DELETE FROM tasks WHERE id = $1 AND owner_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return entities.ErrTaskNotFound
	}

	return nil
}

func (r *TaskRepositoryImpl) List(ctx context.Context, filter ports.TaskFilter) ([]*entities.Task, error) {
	query, args := buildListQuery(filter)

	tasks := []*entities.Task{}
	if err := r.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	for _, t := range tasks {
		t.Normalize()
	}

	return tasks, nil
}

func (r *TaskRepositoryImpl) Count(ctx context.Context, filter ports.TaskFilter) (int, error) {
	where, args := buildTaskWhere(filter)
	query := "SELECT COUNT(*) FROM tasks " + where

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}

	return count, nil
}

func (r *TaskRepositoryImpl) CountByStatus(ctx context.Context, ownerID uuid.UUID) (map[entities.TaskStatus]int, error) {
	query := `
		SELECT status, COUNT(*) AS count
		FROM tasks
		WHERE owner_id = $1 AND is_deleted = FALSE
		GROUP BY status`

	var rows []struct {
		Status entities.TaskStatus `db:"status"`
		Count  int                 `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}

	counts := make(map[entities.TaskStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}

func (r *TaskRepositoryImpl) StatSamples(ctx context.Context, ownerID uuid.UUID) ([]entities.TaskStatSample, error) {
	query := `
		SELECT status, priority, created_at, updated_at
		FROM tasks
		WHERE owner_id = $1 AND is_deleted = FALSE`

	samples := []entities.TaskStatSample{}
	if err := r.db.SelectContext(ctx, &samples, query, ownerID); err != nil {
		return nil, fmt.Errorf("load task stat samples: %w", err)
	}

	return samples, nil
}

// buildTaskWhere renders the owner-scoped, non-deleted predicate plus the
// optional filters.
func buildTaskWhere(filter ports.TaskFilter) (string, []interface{}) {
	conditions := []string{"owner_id = $1", "is_deleted = FALSE"}
	args := []interface{}{filter.OwnerID}
	argIndex := 2

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.Priority != nil {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", argIndex))
		args = append(args, *filter.Priority)
		argIndex++
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+likeEscaper.Replace(search)+"%")
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

func buildListQuery(filter ports.TaskFilter) (string, []interface{}) {
	where, args := buildTaskWhere(filter)

	orderBy, ok := sortColumns[filter.SortBy]
	if !ok {
		orderBy = "created_at"
	}

	direction := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		direction = "ASC"
	}

	query := fmt.Sprintf(`SELECT %s FROM tasks %s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d`,
		taskColumns, where, orderBy, direction, direction, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	return query, args
}
