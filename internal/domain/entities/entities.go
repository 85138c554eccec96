package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Enums and types
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusCompleted  TaskStatus = "completed"
)

// TaskStatuses lists the statuses in display order.
var TaskStatuses = []TaskStatus{TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted}

// IsValid reports whether s is one of the enumerated statuses
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// Label returns the human readable name used by the dashboards
func (s TaskStatus) Label() string {
	switch s {
	case TaskStatusPending:
		return "Pending"
	case TaskStatusInProgress:
		return "In Progress"
	case TaskStatusCompleted:
		return "Completed"
	}
	return string(s)
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists the priorities in display order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// IsValid reports whether p is one of the enumerated priorities
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Label returns the human readable name used by the dashboards
func (p Priority) Label() string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

// User represents an account that can own tasks or be assigned to them
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	AuthProvider string    `json:"auth_provider" db:"auth_provider"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Assignee ties an email to a known user
type Assignee struct {
	UserID *uuid.UUID `json:"userId,omitempty"`
	Email  string     `json:"email"`
}

// Attachment is a stored file referenced by a task
type Attachment struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// Comment is an append-only note on a task
type Comment struct {
	UserID    *uuid.UUID `json:"userId,omitempty"`
	Email     string     `json:"email"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Task represents a task in the system
type Task struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	OwnerID     uuid.UUID   `json:"userId" db:"owner_id"`
	Title       string      `json:"title" db:"title"`
	Description *string     `json:"description,omitempty" db:"description"`
	Status      TaskStatus  `json:"status" db:"status"`
	Priority    Priority    `json:"priority" db:"priority"`
	DueDate     time.Time   `json:"dueDate" db:"due_date"`
	AssignedTo  Assignees   `json:"assignedTo" db:"assigned_to"`
	Attachments Attachments `json:"attachments" db:"attachments"`
	Comments    Comments    `json:"comments" db:"comments"`
	IsDeleted   bool        `json:"isDeleted" db:"is_deleted"`
	CreatedAt   time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time   `json:"updatedAt" db:"updated_at"`
}

// Normalize replaces nil sub-document lists with empty ones.
func (t *Task) Normalize() {
	if t.AssignedTo == nil {
		t.AssignedTo = Assignees{}
	}
	if t.Attachments == nil {
		t.Attachments = Attachments{}
	}
	if t.Comments == nil {
		t.Comments = Comments{}
	}
}

// IsCompleted checks if the task is completed
func (t *Task) IsCompleted() bool {
	return t.Status == TaskStatusCompleted
}

// Assignees, Attachments and Comments are stored as JSONB columns.
type (
	Assignees   []Assignee
	Attachments []Attachment
	Comments    []Comment
)

func (a Assignees) Value() (driver.Value, error)   { return jsonValue(a, len(a)) }
func (a *Assignees) Scan(src interface{}) error    { return jsonScan(src, a) }
func (a Attachments) Value() (driver.Value, error) { return jsonValue(a, len(a)) }
func (a *Attachments) Scan(src interface{}) error  { return jsonScan(src, a) }
func (c Comments) Value() (driver.Value, error)    { return jsonValue(c, len(c)) }
func (c *Comments) Scan(src interface{}) error     { return jsonScan(src, c) }

func jsonValue(v interface{}, n int) (driver.Value, error) {
	if n == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return string(b), nil
}

func jsonScan(src interface{}, dest interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		data = []byte("[]")
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal jsonb: %w", err)
	}
	return nil
}

// TaskStatSample is the slice of a task the analytics need
type TaskStatSample struct {
	Status    TaskStatus `db:"status"`
	Priority  Priority   `db:"priority"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// ChartPoint is one labelled bucket of a distribution chart
type ChartPoint struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// WeekdayActivity is one day-of-week bucket of the weekly chart
type WeekdayActivity struct {
	Day       string `json:"day"`
	Completed int    `json:"completed"`
	Created   int    `json:"created"`
}

// AnalyticsSnapshot is the aggregate computed for one owner at one point in time
type AnalyticsSnapshot struct {
	StatusData        []ChartPoint      `json:"statusData"`
	PriorityData      []ChartPoint      `json:"priorityData"`
	WeeklyData        []WeekdayActivity `json:"weeklyData"`
	CompletionRate    int               `json:"completionRate"`
	TasksThisWeek     int               `json:"tasksThisWeek"`
	AvgCompletionTime float64           `json:"avgCompletionTime"`
}

// DashboardStats holds the per-status counters of the dashboard cards
type DashboardStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
}
