package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tasq/core/internal/infrastructure/config"
	"github.com/tasq/core/internal/ports"
)

// ErrObjectNotFound is returned by Open when the bucket has no such object.
var ErrObjectNotFound = errors.New("stored object not found")

// bucket is the subset of jetstream.ObjectStore the store needs.
type bucket interface {
	Put(ctx context.Context, obj jetstream.ObjectMeta, reader io.Reader) (*jetstream.ObjectInfo, error)
	Get(ctx context.Context, name string, opts ...jetstream.GetObjectOpt) (jetstream.ObjectResult, error)
}

// ObjectInfo describes a stored attachment.
type ObjectInfo struct {
	Name        string
	Size        uint64
	ContentType string
	ModTime     time.Time
}

// JetStreamStore keeps task attachments in a NATS JetStream Object Store bucket.
type JetStreamStore struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	store   bucket
	name    string
	folder  string
	baseURL string
}

var _ ports.AttachmentStore = (*JetStreamStore)(nil)

// NewJetStreamStore connects to NATS. Init must be called before Upload.
func NewJetStreamStore(cfg config.StorageConfig) (*JetStreamStore, error) {
	conn, err := nats.Connect(cfg.NATSURL, nats.Name("tasq-attachments"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStreamStore{
		conn:    conn,
		js:      js,
		name:    cfg.Bucket,
		folder:  cfg.Folder,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
	}, nil
}

func newStoreWithBucket(b bucket, folder, baseURL string) *JetStreamStore {
	return &JetStreamStore{
		store:   b,
		folder:  folder,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Init opens the bucket, creating it on first use.
func (s *JetStreamStore) Init(ctx context.Context) error {
	store, err := s.js.ObjectStore(ctx, s.name)
	if err == nil {
		s.store = store
		return nil
	}

	store, err = s.js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
		Bucket:      s.name,
		Description: "Task attachment storage",
	})
	if err != nil {
		return fmt.Errorf("failed to create object store bucket: %w", err)
	}

	s.store = store
	return nil
}

// Upload stores data under {folder}/{image|raw}/{uuid}{ext} and returns its public URL.
func (s *JetStreamStore) Upload(ctx context.Context, data []byte, mimeType, folderHint string) (*ports.StoredObject, error) {
	if s.store == nil {
		return nil, errors.New("object store is not initialized")
	}

	folder := folderHint
	if folder == "" {
		folder = s.folder
	}
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}

	name := ObjectName(folder, mimeType, uuid.NewString())
	meta := jetstream.ObjectMeta{
		Name: name,
		Headers: nats.Header{
			"Content-Type": []string{mimeType},
		},
	}

	info, err := s.store.Put(ctx, meta, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to store object: %w", err)
	}

	return &ports.StoredObject{
		Name: info.Name,
		URL:  s.baseURL + "/" + info.Name,
		Size: info.Size,
	}, nil
}

// Open streams a stored object. The caller closes the reader.
func (s *JetStreamStore) Open(ctx context.Context, name string) (io.ReadCloser, *ObjectInfo, error) {
	if s.store == nil {
		return nil, nil, errors.New("object store is not initialized")
	}

	result, err := s.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("failed to get object: %w", err)
	}

	info, err := result.Info()
	if err != nil {
		result.Close()
		return nil, nil, fmt.Errorf("failed to get object info: %w", err)
	}

	return result, &ObjectInfo{
		Name:        info.Name,
		Size:        info.Size,
		ContentType: contentType(info.Headers),
		ModTime:     info.ModTime,
	}, nil
}

// IsConnected returns whether the NATS connection is active.
func (s *JetStreamStore) IsConnected() bool {
	return s.conn != nil && s.conn.IsConnected()
}

// Close closes the NATS connection.
func (s *JetStreamStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

// ObjectName builds the bucket key for a new object.
func ObjectName(folder, mimeType, id string) string {
	ext := ""
	if m := mimetype.Lookup(mimeType); m != nil {
		ext = m.Extension()
	}
	return path.Join(folder, ports.ResourceType(mimeType), id+ext)
}

func contentType(headers nats.Header) string {
	if headers != nil {
		if ct := headers.Get("Content-Type"); ct != "" {
			return ct
		}
	}
	return "application/octet-stream"
}
