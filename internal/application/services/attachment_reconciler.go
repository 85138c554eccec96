package services

import (
	"github.com/tasq/core/internal/domain/entities"
	"github.com/tasq/core/internal/infrastructure/logger"
)

// AttachmentReconciler computes the attachment set a task ends up with after an update.
type AttachmentReconciler struct {
	logger *logger.Logger
}

// NewAttachmentReconciler creates a new attachment reconciler
func NewAttachmentReconciler(logger *logger.Logger) *AttachmentReconciler {
	return &AttachmentReconciler{logger: logger.WithComponent("attachment_reconciler")}
}

// Reconcile returns the newly uploaded attachments followed by the kept ones,
// each group in its original order. kept must already be filtered by removed
// (see ExcludeRemoved); a kept entry that still names a removed file is only
// reported. A filename present in both groups is kept twice.
func (r *AttachmentReconciler) Reconcile(newlyUploaded, kept entities.Attachments, removed []string) entities.Attachments {
	if len(removed) > 0 {
		gone := toSet(removed)
		for _, a := range kept {
			if _, ok := gone[a.Filename]; ok {
				r.logger.Warnw("Kept attachment is also declared removed", "filename", a.Filename)
			}
		}
	}

	out := make(entities.Attachments, 0, len(newlyUploaded)+len(kept))
	out = append(out, newlyUploaded...)
	out = append(out, kept...)
	return out
}

// ExcludeRemoved drops every attachment whose filename is listed in removed.
func ExcludeRemoved(current entities.Attachments, removed []string) entities.Attachments {
	out := make(entities.Attachments, 0, len(current))
	if len(removed) == 0 {
		return append(out, current...)
	}

	gone := toSet(removed)
	for _, a := range current {
		if _, ok := gone[a.Filename]; !ok {
			out = append(out, a)
		}
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
