package ports

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasq/core/internal/domain/entities"
)

func fields(t *testing.T, err error) []string {
	t.Helper()
	var verr *entities.ValidationError
	require.ErrorAs(t, err, &verr)

	out := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		out = append(out, f.Field)
	}
	return out
}

func TestParseDueDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-11-01", time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)},
		{"2026-11-01T09:30", time.Date(2026, 11, 1, 9, 30, 0, 0, time.UTC)},
		{"2026-11-01T09:30:00+02:00", time.Date(2026, 11, 1, 7, 30, 0, 0, time.UTC)},
		{" 2020-01-01 ", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDueDate(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := ParseDueDate("next tuesday")
	assert.Error(t, err)
}

func TestCreateTaskRequest_Validate(t *testing.T) {
	bad := entities.TaskStatus("done")
	urgent := entities.Priority("urgent")
	long := strings.Repeat("x", 201)

	tests := []struct {
		name       string
		req        CreateTaskRequest
		wantFields []string
	}{
		{
			name: "valid",
			req:  CreateTaskRequest{Title: "Ship", DueDate: "2026-11-01", AssignedTo: []string{"a@x.com"}},
		},
		{
			name: "past due date is fine",
			req:  CreateTaskRequest{Title: "Ship", DueDate: "2001-01-01"},
		},
		{
			name: "padded emails are accepted",
			req:  CreateTaskRequest{Title: "Ship", DueDate: "2026-11-01", AssignedTo: []string{" a@x.com", "b@x.com\t"}},
		},
		{
			name:       "blank email",
			req:        CreateTaskRequest{Title: "Ship", DueDate: "2026-11-01", AssignedTo: []string{"a@x.com", "   "}},
			wantFields: []string{"assignedTo[1]"},
		},
		{
			name:       "blank title and missing due date",
			req:        CreateTaskRequest{Title: "   "},
			wantFields: []string{"title", "dueDate"},
		},
		{
			name:       "long title",
			req:        CreateTaskRequest{Title: long, DueDate: "2026-11-01"},
			wantFields: []string{"title"},
		},
		{
			name:       "enums and emails",
			req:        CreateTaskRequest{Title: "t", DueDate: "soon", Status: &bad, Priority: &urgent, AssignedTo: []string{"ok@x.com", "nope"}},
			wantFields: []string{"status", "priority", "dueDate", "assignedTo[1]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if len(tt.wantFields) == 0 {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantFields, fields(t, err))
		})
	}
}

func TestUpdateTaskRequest_Validate(t *testing.T) {
	empty := ""
	due := "2026-12-24"
	badDue := "someday"
	emails := []string{" a@x.com ", "b"}
	existing := []entities.Attachment{{Filename: "a.png", URL: "https://files.test/a.png"}, {Filename: "", URL: "not a url"}}

	assert.NoError(t, (&UpdateTaskRequest{}).Validate())
	assert.NoError(t, (&UpdateTaskRequest{DueDate: &due}).Validate())

	req := UpdateTaskRequest{Title: &empty, DueDate: &badDue, AssignedTo: &emails, ExistingFiles: &existing}
	assert.Equal(t, []string{"title", "dueDate", "assignedTo[1]", "existingFiles[1]"}, fields(t, req.Validate()))
}

func TestUpdateTaskRequest_TouchesAttachments(t *testing.T) {
	none := []entities.Attachment{}

	assert.False(t, (&UpdateTaskRequest{}).TouchesAttachments(0))
	assert.True(t, (&UpdateTaskRequest{}).TouchesAttachments(1))
	assert.True(t, (&UpdateTaskRequest{ExistingFiles: &none}).TouchesAttachments(0))
	assert.True(t, (&UpdateTaskRequest{RemovedFiles: []string{"a.png"}}).TouchesAttachments(0))
}

func TestAddCommentRequest_Validate(t *testing.T) {
	req := AddCommentRequest{Text: "  fine  "}
	require.NoError(t, req.Validate())
	assert.Equal(t, "fine", req.Text)

	assert.Equal(t, []string{"text"}, fields(t, (&AddCommentRequest{Text: " \n "}).Validate()))
	assert.Equal(t, []string{"text"}, fields(t, (&AddCommentRequest{Text: strings.Repeat("y", 2001)}).Validate()))
}

func TestResourceType(t *testing.T) {
	assert.Equal(t, ResourceImage, ResourceType("image/png"))
	assert.Equal(t, ResourceImage, ResourceType("image/jpeg"))
	assert.Equal(t, ResourceRaw, ResourceType("application/pdf"))
	assert.Equal(t, ResourceRaw, ResourceType(""))
}
