package services

import (
	"context"
	"strings"

	"github.com/tasq/core/internal/domain/entities"
	"github.com/tasq/core/internal/infrastructure/logger"
	"github.com/tasq/core/internal/ports"
)

// AssigneeResolver turns the emails typed by a client into user references.
type AssigneeResolver struct {
	users  ports.UserRepository
	logger *logger.Logger
}

// NewAssigneeResolver creates a new assignee resolver
func NewAssigneeResolver(users ports.UserRepository, logger *logger.Logger) *AssigneeResolver {
	return &AssigneeResolver{
		users:  users,
		logger: logger.WithComponent("assignee_resolver"),
	}
}

// Resolve looks every email up by exact match and returns the known users in
// input order, carrying the stored email. Unknown emails are dropped with a
// warning and never fail the call. Duplicates are resolved twice.
func (r *AssigneeResolver) Resolve(ctx context.Context, emails []string) entities.Assignees {
	resolved := make(entities.Assignees, 0, len(emails))

	for _, email := range emails {
		email = strings.TrimSpace(email)

		user, err := r.users.GetByEmail(ctx, email)
		if err != nil {
			if entities.IsNotFound(err) {
				r.logger.Warnw("Assignee email does not match any user, skipping", "email", email)
			} else {
				r.logger.Warnw("Assignee lookup failed, skipping", "email", email, "error", err)
			}
			continue
		}

		id := user.ID
		resolved = append(resolved, entities.Assignee{UserID: &id, Email: user.Email})
	}

	return resolved
}
