package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tasq/core/internal/domain/entities"
	"github.com/tasq/core/internal/infrastructure/logger"
)

func att(name string) entities.Attachment {
	return entities.Attachment{Filename: name, URL: "https://files.test/" + name}
}

func TestAttachmentReconciler_Reconcile(t *testing.T) {
	r := NewAttachmentReconciler(logger.NewNop())

	tests := []struct {
		name    string
		newly   entities.Attachments
		kept    entities.Attachments
		removed []string
		want    entities.Attachments
	}{
		{
			name: "identity on no-op",
			kept: entities.Attachments{att("a.pdf"), att("b.png")},
			want: entities.Attachments{att("a.pdf"), att("b.png")},
		},
		{
			name:  "new files come first",
			newly: entities.Attachments{att("c.pdf")},
			kept:  entities.Attachments{att("a.pdf"), att("b.png")},
			want:  entities.Attachments{att("c.pdf"), att("a.pdf"), att("b.png")},
		},
		{
			name:  "same filename in both groups is kept twice",
			newly: entities.Attachments{att("a.pdf")},
			kept:  entities.Attachments{att("a.pdf")},
			want:  entities.Attachments{att("a.pdf"), att("a.pdf")},
		},
		{
			name:    "removed list is not re-applied",
			kept:    entities.Attachments{att("a.pdf")},
			removed: []string{"a.pdf"},
			want:    entities.Attachments{att("a.pdf")},
		},
		{
			name:  "create uses uploads unfiltered",
			newly: entities.Attachments{att("x.png"), att("y.png")},
			want:  entities.Attachments{att("x.png"), att("y.png")},
		},
		{
			name: "nothing yields empty",
			want: entities.Attachments{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Reconcile(tt.newly, tt.kept, tt.removed))
		})
	}
}

func TestExcludeRemoved(t *testing.T) {
	current := entities.Attachments{att("a.pdf"), att("b.png"), att("a.pdf"), att("c.docx")}

	got := ExcludeRemoved(current, []string{"a.pdf", "missing.txt"})
	assert.Equal(t, entities.Attachments{att("b.png"), att("c.docx")}, got)

	got = ExcludeRemoved(current, nil)
	assert.Equal(t, current, got)

	got[0] = att("changed")
	assert.Equal(t, "a.pdf", current[0].Filename)
}
