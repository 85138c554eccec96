package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/tasq/core/internal/domain/entities"
	"github.com/tasq/core/internal/infrastructure/config"
	"github.com/tasq/core/internal/ports"
)

const (
	defaultSortField = "createdAt"
	filterAll        = "all"
)

// TaskQueryEngine answers filtered, sorted and paginated task listings
type TaskQueryEngine struct {
	tasks ports.TaskRepository
	cfg   config.TasksConfig
}

// NewTaskQueryEngine creates a new task query engine
func NewTaskQueryEngine(tasks ports.TaskRepository, cfg config.TasksConfig) *TaskQueryEngine {
	return &TaskQueryEngine{tasks: tasks, cfg: cfg}
}

// List returns one page of the owner's non-deleted tasks. TotalCount is taken
// over the filtered set before pagination.
func (q *TaskQueryEngine) List(ctx context.Context, ownerID uuid.UUID, query ports.ListTasksQuery) (*ports.TaskPage, error) {
	filter, page, err := q.buildFilter(ownerID, query)
	if err != nil {
		return nil, err
	}

	total, err := q.tasks.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	items := []*entities.Task{}
	if filter.Offset < total {
		items, err = q.tasks.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to list tasks: %w", err)
		}
	}

	return &ports.TaskPage{
		Items:       items,
		TotalCount:  total,
		TotalPages:  totalPages(total, filter.Limit),
		CurrentPage: page,
		Limit:       filter.Limit,
	}, nil
}

// buildFilter applies defaults and bounds and rejects unknown enum or sort values.
func (q *TaskQueryEngine) buildFilter(ownerID uuid.UUID, query ports.ListTasksQuery) (ports.TaskFilter, int, error) {
	verr := &entities.ValidationError{}

	page := query.Page
	if page < 1 {
		page = 1
	}

	limit := query.Limit
	if limit < 1 {
		limit = q.cfg.DefaultPageLimit
	}
	if q.cfg.MaxPageLimit > 0 && limit > q.cfg.MaxPageLimit {
		limit = q.cfg.MaxPageLimit
	}

	filter := ports.TaskFilter{
		OwnerID: ownerID,
		Search:  strings.TrimSpace(query.Search),
		Limit:   limit,
	}

	// offset must fit in an int
	if limit > 0 && page-1 > math.MaxInt/limit {
		verr.Add("page", "Page is too large.")
	} else {
		filter.Offset = (page - 1) * limit
	}

	if s := strings.TrimSpace(query.Status); s != "" && s != filterAll {
		status := entities.TaskStatus(s)
		if !status.IsValid() {
			verr.Add("status", "Status must be all, pending, in-progress, or completed.")
		} else {
			filter.Status = &status
		}
	}

	if p := strings.TrimSpace(query.Priority); p != "" && p != filterAll {
		priority := entities.Priority(p)
		if !priority.IsValid() {
			verr.Add("priority", "Priority must be all, low, medium, or high.")
		} else {
			filter.Priority = &priority
		}
	}

	filter.SortBy = strings.TrimSpace(query.SortBy)
	if filter.SortBy == "" {
		filter.SortBy = defaultSortField
	} else if !isSortField(filter.SortBy) {
		verr.Add("sortBy", fmt.Sprintf("sortBy must be one of %s.", strings.Join(ports.TaskSortFields, ", ")))
	}

	filter.SortOrder = "desc"
	if strings.EqualFold(strings.TrimSpace(query.SortOrder), "asc") {
		filter.SortOrder = "asc"
	}

	if err := verr.OrNil(); err != nil {
		return ports.TaskFilter{}, 0, err
	}
	return filter, page, nil
}

func isSortField(field string) bool {
	for _, f := range ports.TaskSortFields {
		if f == field {
			return true
		}
	}
	return false
}

func totalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
