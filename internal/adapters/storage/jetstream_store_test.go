package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memObject struct {
	data    []byte
	headers nats.Header
	modTime time.Time
}

type memBucket struct {
	objects map[string]memObject
	putErr  error
}

func newMemBucket() *memBucket {
	return &memBucket{objects: make(map[string]memObject)}
}

func (b *memBucket) Put(_ context.Context, meta jetstream.ObjectMeta, r io.Reader) (*jetstream.ObjectInfo, error) {
	if b.putErr != nil {
		return nil, b.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	b.objects[meta.Name] = memObject{data: data, headers: meta.Headers, modTime: time.Now()}
	return &jetstream.ObjectInfo{ObjectMeta: meta, Size: uint64(len(data))}, nil
}

func (b *memBucket) Get(_ context.Context, name string, _ ...jetstream.GetObjectOpt) (jetstream.ObjectResult, error) {
	obj, ok := b.objects[name]
	if !ok {
		return nil, jetstream.ErrObjectNotFound
	}
	return &memResult{
		Reader: bytes.NewReader(obj.data),
		info: &jetstream.ObjectInfo{
			ObjectMeta: jetstream.ObjectMeta{Name: name, Headers: obj.headers},
			Size:       uint64(len(obj.data)),
			ModTime:    obj.modTime,
		},
	}, nil
}

type memResult struct {
	*bytes.Reader
	info *jetstream.ObjectInfo
}

func (r *memResult) Close() error                          { return nil }
func (r *memResult) Info() (*jetstream.ObjectInfo, error) { return r.info, nil }
func (r *memResult) Error() error                          { return nil }

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestObjectName(t *testing.T) {
	name := ObjectName("tasq/task/attachments", "image/png", "abc")
	assert.Equal(t, "tasq/task/attachments/image/abc.png", name)

	name = ObjectName("tasq/task/attachments", "application/pdf", "abc")
	assert.Equal(t, "tasq/task/attachments/raw/abc.pdf", name)
}

func TestJetStreamStore_Upload(t *testing.T) {
	b := newMemBucket()
	store := newStoreWithBucket(b, "tasq/task/attachments", "http://localhost:8080/files/")
	ctx := context.Background()

	obj, err := store.Upload(ctx, pngHeader, "image/png", "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(obj.Name, "tasq/task/attachments/image/"))
	assert.Equal(t, "http://localhost:8080/files/"+obj.Name, obj.URL)
	assert.Equal(t, uint64(len(pngHeader)), obj.Size)
	assert.Contains(t, b.objects, obj.Name)
	assert.Equal(t, "image/png", b.objects[obj.Name].headers.Get("Content-Type"))
}

func TestJetStreamStore_UploadFolderHint(t *testing.T) {
	store := newStoreWithBucket(newMemBucket(), "default", "http://files")

	obj, err := store.Upload(context.Background(), []byte("%PDF-1.4\n"), "application/pdf", "custom")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.Name, "custom/raw/"))
}

func TestJetStreamStore_UploadUniqueNames(t *testing.T) {
	store := newStoreWithBucket(newMemBucket(), "f", "http://files")
	ctx := context.Background()

	a, err := store.Upload(ctx, pngHeader, "image/png", "")
	require.NoError(t, err)
	b, err := store.Upload(ctx, pngHeader, "image/png", "")
	require.NoError(t, err)

	assert.NotEqual(t, a.Name, b.Name)
}

func TestJetStreamStore_UploadFailure(t *testing.T) {
	b := newMemBucket()
	b.putErr = errors.New("nats: timeout")
	store := newStoreWithBucket(b, "f", "http://files")

	_, err := store.Upload(context.Background(), pngHeader, "image/png", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats: timeout")
}

func TestJetStreamStore_UploadNotInitialized(t *testing.T) {
	store := &JetStreamStore{}

	_, err := store.Upload(context.Background(), pngHeader, "image/png", "")
	assert.Error(t, err)
}

func TestJetStreamStore_Open(t *testing.T) {
	store := newStoreWithBucket(newMemBucket(), "f", "http://files")
	ctx := context.Background()

	obj, err := store.Upload(ctx, pngHeader, "image/png", "")
	require.NoError(t, err)

	rc, info, err := store.Open(ctx, obj.Name)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Equal(t, obj.Name, info.Name)

	_, _, err = store.Open(ctx, "f/raw/missing")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
