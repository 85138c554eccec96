package http

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tasq/core/internal/adapters/storage"
	"github.com/tasq/core/internal/infrastructure/logger"
)

// ObjectOpener streams stored attachments
type ObjectOpener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, *storage.ObjectInfo, error)
}

// FileHandler serves the public attachment URLs
type FileHandler struct {
	store  ObjectOpener
	logger *logger.Logger
}

// NewFileHandler creates a new file handler
func NewFileHandler(store ObjectOpener, logger *logger.Logger) *FileHandler {
	return &FileHandler{store: store, logger: logger.WithComponent("file_handler")}
}

// GetFile godoc
// @Summary Download an attachment
// @Tags files
// @Produce octet-stream
// @Param path path string true "Object name"
// @Success 200 {file} binary
// @Failure 404 {object} Response
// @Router /files/{path} [get]
func (h *FileHandler) GetFile(c echo.Context) error {
	name := strings.TrimPrefix(c.Param("*"), "/")
	if name == "" || strings.Contains(name, "..") {
		return echo.NewHTTPError(http.StatusNotFound, "File not found")
	}

	rc, info, err := h.store.Open(c.Request().Context(), name)
	if err != nil {
		return err
	}
	defer rc.Close()

	header := c.Response().Header()
	header.Set(echo.HeaderContentLength, strconv.FormatUint(info.Size, 10))
	header.Set("Cache-Control", "public, max-age=31536000, immutable")
	if !info.ModTime.IsZero() {
		header.Set(echo.HeaderLastModified, info.ModTime.UTC().Format(http.TimeFormat))
	}

	return c.Stream(http.StatusOK, info.ContentType, rc)
}
