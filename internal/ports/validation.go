package ports

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tasq/core/internal/domain/entities"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 5000
)

var validate = validator.New()

var dueDateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

// ParseDueDate accepts an RFC 3339 timestamp, a datetime-local value or a plain date.
func ParseDueDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", value)
}

// Validate checks a create request and returns a *entities.ValidationError listing
// every rejected field, or nil.
func (r *CreateTaskRequest) Validate() error {
	verr := &entities.ValidationError{}

	checkTitle(verr, r.Title)
	if r.Description != nil {
		checkDescription(verr, *r.Description)
	}
	if r.Status != nil && !r.Status.IsValid() {
		verr.Add("status", "Status must be pending, in-progress, or completed.")
	}
	if r.Priority != nil && !r.Priority.IsValid() {
		verr.Add("priority", "Priority must be low, medium, or high.")
	}
	if validate.Var(r.DueDate, "required") != nil {
		verr.Add("dueDate", "Due date is required.")
	} else if _, err := ParseDueDate(r.DueDate); err != nil {
		verr.Add("dueDate", "Due date must be a valid date string.")
	}
	checkEmails(verr, r.AssignedTo)

	return verr.OrNil()
}

// Validate checks the fields present in an update request.
func (r *UpdateTaskRequest) Validate() error {
	verr := &entities.ValidationError{}

	if r.Title != nil {
		checkTitle(verr, *r.Title)
	}
	if r.Description != nil {
		checkDescription(verr, *r.Description)
	}
	if r.Status != nil && !r.Status.IsValid() {
		verr.Add("status", "Status must be pending, in-progress, or completed.")
	}
	if r.Priority != nil && !r.Priority.IsValid() {
		verr.Add("priority", "Priority must be low, medium, or high.")
	}
	if r.DueDate != nil {
		if _, err := ParseDueDate(*r.DueDate); err != nil {
			verr.Add("dueDate", "Due date must be a valid date string.")
		}
	}
	if r.AssignedTo != nil {
		checkEmails(verr, *r.AssignedTo)
	}
	if r.ExistingFiles != nil {
		for i, a := range *r.ExistingFiles {
			if a.Filename == "" || validate.Var(a.URL, "required,url") != nil {
				verr.Add(fmt.Sprintf("existingFiles[%d]", i), "Existing files must carry a filename and a valid url.")
			}
		}
	}

	return verr.OrNil()
}

func checkTitle(verr *entities.ValidationError, title string) {
	title = strings.TrimSpace(title)
	if validate.Var(title, "required") != nil {
		verr.Add("title", "Title is required.")
		return
	}
	if validate.Var(title, fmt.Sprintf("max=%d", maxTitleLength)) != nil {
		verr.Add("title", fmt.Sprintf("Title must be at most %d characters.", maxTitleLength))
	}
}

func checkDescription(verr *entities.ValidationError, description string) {
	if validate.Var(description, fmt.Sprintf("max=%d", maxDescriptionLength)) != nil {
		verr.Add("description", fmt.Sprintf("Description must be at most %d characters.", maxDescriptionLength))
	}
}

func checkEmails(verr *entities.ValidationError, emails []string) {
	for i, email := range emails {
		if validate.Var(strings.TrimSpace(email), "required,email") != nil {
			verr.Add(fmt.Sprintf("assignedTo[%d]", i), fmt.Sprintf("%q is not a valid email address.", email))
		}
	}
}

// Validate checks a comment request.
func (r *AddCommentRequest) Validate() error {
	r.Text = strings.TrimSpace(r.Text)
	if err := validate.Struct(r); err != nil {
		return entities.NewValidationError("text", "Comment text is required and must be at most 2000 characters.")
	}
	return nil
}
