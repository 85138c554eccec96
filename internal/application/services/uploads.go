package services

import (
	"context"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/tasq/core/internal/domain/entities"
	"github.com/tasq/core/internal/infrastructure/config"
	"github.com/tasq/core/internal/infrastructure/logger"
	"github.com/tasq/core/internal/infrastructure/metrics"
	"github.com/tasq/core/internal/ports"
)

// Uploader validates raw files and sends them to the AttachmentStore.
type Uploader struct {
	store   ports.AttachmentStore
	cfg     config.StorageConfig
	metrics *metrics.Metrics
	logger  *logger.Logger
}

// NewUploader creates a new uploader
func NewUploader(store ports.AttachmentStore, cfg config.StorageConfig, m *metrics.Metrics, logger *logger.Logger) *Uploader {
	return &Uploader{
		store:   store,
		cfg:     cfg,
		metrics: m,
		logger:  logger.WithComponent("uploader"),
	}
}

type preparedFile struct {
	filename string
	mimeType string
	data     []byte
}

// UploadAll checks every file, then uploads them concurrently. Either every
// file is stored and the attachments come back in input order, or the call
// fails with no attachment list.
func (u *Uploader) UploadAll(ctx context.Context, files []ports.UploadFile) (entities.Attachments, error) {
	if len(files) == 0 {
		return entities.Attachments{}, nil
	}

	prepared, err := u.prepare(files)
	if err != nil {
		return nil, err
	}

	results := make(entities.Attachments, len(prepared))
	g, gctx := errgroup.WithContext(ctx)

	for i, f := range prepared {
		i, f := i, f
		g.Go(func() error {
			resource := ports.ResourceType(f.mimeType)

			obj, err := u.store.Upload(gctx, f.data, f.mimeType, u.cfg.Folder)
			if err != nil {
				u.metrics.Upload(resource, "error", len(f.data))
				return &entities.StorageError{Filename: f.filename, Err: err}
			}
			u.metrics.Upload(resource, "ok", len(f.data))

			results[i] = entities.Attachment{Filename: f.filename, URL: obj.URL}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		u.logger.Errorw("Attachment upload failed", "error", err, "files", len(files))
		return nil, err
	}

	return results, nil
}

func (u *Uploader) prepare(files []ports.UploadFile) ([]preparedFile, error) {
	verr := &entities.ValidationError{}

	if u.cfg.MaxFiles > 0 && len(files) > u.cfg.MaxFiles {
		verr.Add("files", fmt.Sprintf("At most %d files can be attached at once.", u.cfg.MaxFiles))
		return nil, verr
	}

	prepared := make([]preparedFile, 0, len(files))
	for i, f := range files {
		field := fmt.Sprintf("files[%d]", i)

		if len(f.Data) == 0 {
			verr.Add(field, fmt.Sprintf("%q is empty.", f.Filename))
			continue
		}
		if int64(len(f.Data)) > u.cfg.MaxFileSize {
			verr.Add(field, fmt.Sprintf("%q exceeds the %d byte limit.", f.Filename, u.cfg.MaxFileSize))
			continue
		}

		detected := mimetype.Detect(f.Data)
		if !u.allowed(detected) {
			verr.Add(field, fmt.Sprintf("%q has unsupported type %s.", f.Filename, detected.String()))
			continue
		}

		prepared = append(prepared, preparedFile{
			filename: f.Filename,
			mimeType: detected.String(),
			data:     f.Data,
		})
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return prepared, nil
}

func (u *Uploader) allowed(m *mimetype.MIME) bool {
	if len(u.cfg.AllowedTypes) == 0 {
		return true
	}
	for _, t := range u.cfg.AllowedTypes {
		if m.Is(t) {
			return true
		}
	}
	return false
}
