package repository

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/tasq/core/internal/domain/entities"
	"github.com/tasq/core/internal/ports"
)

func TestBuildTaskWhere(t *testing.T) {
	owner := uuid.New()
	status := entities.TaskStatusCompleted
	priority := entities.PriorityHigh

	tests := []struct {
		name      string
		filter    ports.TaskFilter
		wantWhere string
		wantArgs  []interface{}
	}{
		{
			name:      "owner only",
			filter:    ports.TaskFilter{OwnerID: owner},
			wantWhere: "WHERE owner_id = $1 AND is_deleted = FALSE",
			wantArgs:  []interface{}{owner},
		},
		{
			name:      "status and priority",
			filter:    ports.TaskFilter{OwnerID: owner, Status: &status, Priority: &priority},
			wantWhere: "WHERE owner_id = $1 AND is_deleted = FALSE AND status = $2 AND priority = $3",
			wantArgs:  []interface{}{owner, status, priority},
		},
		{
			name:      "search reuses one placeholder",
			filter:    ports.TaskFilter{OwnerID: owner, Search: "  report "},
			wantWhere: "WHERE owner_id = $1 AND is_deleted = FALSE AND (title ILIKE $2 OR description ILIKE $2)",
			wantArgs:  []interface{}{owner, "%report%"},
		},
		{
			name:      "search wildcards are literal",
			filter:    ports.TaskFilter{OwnerID: owner, Priority: &priority, Search: `50%_off\`},
			wantWhere: "WHERE owner_id = $1 AND is_deleted = FALSE AND priority = $2 AND (title ILIKE $3 OR description ILIKE $3)",
			wantArgs:  []interface{}{owner, priority, `%50\%\_off\\%`},
		},
		{
			name:      "blank search ignored",
			filter:    ports.TaskFilter{OwnerID: owner, Search: "   "},
			wantWhere: "WHERE owner_id = $1 AND is_deleted = FALSE",
			wantArgs:  []interface{}{owner},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := buildTaskWhere(tt.filter)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildListQuery(t *testing.T) {
	owner := uuid.New()
	status := entities.TaskStatusPending

	tests := []struct {
		name      string
		filter    ports.TaskFilter
		wantOrder string
		wantTail  string
	}{
		{
			name:      "defaults",
			filter:    ports.TaskFilter{OwnerID: owner, Limit: 9},
			wantOrder: "ORDER BY created_at DESC, id DESC",
			wantTail:  "LIMIT $2 OFFSET $3",
		},
		{
			name:      "due date ascending",
			filter:    ports.TaskFilter{OwnerID: owner, SortBy: "dueDate", SortOrder: "ASC", Limit: 9},
			wantOrder: "ORDER BY due_date ASC, id ASC",
			wantTail:  "LIMIT $2 OFFSET $3",
		},
		{
			name:      "unknown direction is descending",
			filter:    ports.TaskFilter{OwnerID: owner, SortBy: "title", SortOrder: "sideways", Limit: 9},
			wantOrder: "ORDER BY title DESC, id DESC",
			wantTail:  "LIMIT $2 OFFSET $3",
		},
		{
			name:      "unmapped field never reaches SQL",
			filter:    ports.TaskFilter{OwnerID: owner, SortBy: "title; DROP TABLE tasks", Limit: 9},
			wantOrder: "ORDER BY created_at DESC, id DESC",
			wantTail:  "LIMIT $2 OFFSET $3",
		},
		{
			name:      "placeholders follow filters",
			filter:    ports.TaskFilter{OwnerID: owner, Status: &status, Search: "x", Limit: 5, Offset: 10},
			wantOrder: "ORDER BY created_at DESC, id DESC",
			wantTail:  "LIMIT $4 OFFSET $5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := buildListQuery(tt.filter)

			assert.True(t, strings.HasPrefix(query, "SELECT "+taskColumns+" FROM tasks WHERE owner_id = $1"))
			assert.Contains(t, query, tt.wantOrder)
			assert.True(t, strings.HasSuffix(query, tt.wantTail), query)
			assert.NotContains(t, query, "DROP")

			assert.Equal(t, tt.filter.Limit, args[len(args)-2])
			assert.Equal(t, tt.filter.Offset, args[len(args)-1])
		})
	}
}

func TestSortColumnsCoverSortFields(t *testing.T) {
	for _, field := range ports.TaskSortFields {
		_, ok := sortColumns[field]
		assert.True(t, ok, "sort field %q has no column", field)
	}
}
