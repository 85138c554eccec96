package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasq/core/internal/domain/entities"
	"github.com/tasq/core/internal/infrastructure/logger"
	"github.com/tasq/core/internal/ports"
)

func TestUploader_UploadAll(t *testing.T) {
	store := &fakeStore{}
	u := NewUploader(store, testStorageConfig(), nil, logger.NewNop())

	files := []ports.UploadFile{
		{Filename: "photo.png", Data: pngBytes},
		{Filename: "brief.pdf", Data: pdfBytes},
		{Filename: "photo2.png", Data: pngBytes},
	}

	got, err := u.UploadAll(context.Background(), files)
	require.NoError(t, err)
	require.Len(t, got, 3)

	for i, f := range files {
		assert.Equal(t, f.Filename, got[i].Filename)
	}
	assert.Contains(t, got[0].URL, "/image/")
	assert.Contains(t, got[1].URL, "/raw/")
	assert.Equal(t, 3, store.uploads)
}

func TestUploader_NoFiles(t *testing.T) {
	u := NewUploader(&fakeStore{}, testStorageConfig(), nil, logger.NewNop())

	got, err := u.UploadAll(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestUploader_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		files []ports.UploadFile
		field string
	}{
		{
			name:  "too large",
			files: []ports.UploadFile{{Filename: "big.png", Data: append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, 2048)...)}},
			field: "files[0]",
		},
		{
			name:  "unsupported type",
			files: []ports.UploadFile{{Filename: "notes.txt", Data: []byte("just some text")}},
			field: "files[0]",
		},
		{
			name:  "empty file",
			files: []ports.UploadFile{{Filename: "ok.png", Data: pngBytes}, {Filename: "empty.pdf"}},
			field: "files[1]",
		},
		{
			name: "too many files",
			files: []ports.UploadFile{
				{Filename: "1.png", Data: pngBytes}, {Filename: "2.png", Data: pngBytes},
				{Filename: "3.png", Data: pngBytes}, {Filename: "4.png", Data: pngBytes},
				{Filename: "5.png", Data: pngBytes}, {Filename: "6.png", Data: pngBytes},
			},
			field: "files",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			u := NewUploader(store, testStorageConfig(), nil, logger.NewNop())

			_, err := u.UploadAll(context.Background(), tt.files)
			require.Error(t, err)

			var verr *entities.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Fields[0].Field)
			assert.Zero(t, store.calls, "nothing is uploaded when validation fails")
		})
	}
}

func TestUploader_AllOrNothing(t *testing.T) {
	store := &fakeStore{failOn: map[int]error{2: errUpstream}}
	u := NewUploader(store, testStorageConfig(), nil, logger.NewNop())

	files := []ports.UploadFile{
		{Filename: "a.png", Data: pngBytes},
		{Filename: "b.png", Data: pngBytes},
		{Filename: "c.png", Data: pngBytes},
	}

	got, err := u.UploadAll(context.Background(), files)
	require.Error(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, err, entities.ErrUpstreamStorage)
	assert.ErrorIs(t, err, errUpstream)

	var serr *entities.StorageError
	require.True(t, errors.As(err, &serr))
	assert.True(t, strings.HasSuffix(serr.Filename, ".png"))
}
