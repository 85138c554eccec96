package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tasq/core/internal/domain/entities"
	"github.com/tasq/core/internal/infrastructure/config"
	"github.com/tasq/core/internal/infrastructure/logger"
	"github.com/tasq/core/internal/ports"
)

// fakeUserRepo is an in-memory ports.UserRepository.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*entities.User
	errFor map[string]error
}

func newFakeUserRepo(emails ...string) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*entities.User{}, errFor: map[string]error{}}
	for _, e := range emails {
		r.users[e] = &entities.User{ID: uuid.New(), Email: e, Name: e}
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, u *entities.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.Email] = u
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, entities.ErrUserNotFound
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.errFor[email]; ok {
		return nil, err
	}
	u, ok := r.users[email]
	if !ok {
		return nil, entities.ErrUserNotFound
	}
	return u, nil
}

// fakeTaskRepo is an in-memory ports.TaskRepository with the same
// filtering and ordering rules as the SQL implementation.
type fakeTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*entities.Task
	clock func() time.Time
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: map[uuid.UUID]*entities.Task{}, clock: time.Now}
}

func clone(t *entities.Task) *entities.Task {
	b, _ := json.Marshal(t)
	var c entities.Task
	_ = json.Unmarshal(b, &c)
	c.OwnerID = t.OwnerID
	c.IsDeleted = t.IsDeleted
	c.Normalize()
	return &c
}

func (r *fakeTaskRepo) Create(_ context.Context, t *entities.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.Normalize()
	now := r.clock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	r.tasks[t.ID] = clone(t)
	return nil
}

func (r *fakeTaskRepo) owned(ownerID, id uuid.UUID) (*entities.Task, error) {
	t, ok := r.tasks[id]
	if !ok || t.OwnerID != ownerID {
		return nil, entities.ErrTaskNotFound
	}
	return t, nil
}

func (r *fakeTaskRepo) GetByID(_ context.Context, ownerID, id uuid.UUID) (*entities.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, err := r.owned(ownerID, id)
	if err != nil {
		return nil, err
	}
	return clone(t), nil
}

func (r *fakeTaskRepo) Update(_ context.Context, t *entities.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, err := r.owned(t.OwnerID, t.ID)
	if err != nil || cur.IsDeleted {
		return entities.ErrTaskNotFound
	}
	t.Normalize()
	t.CreatedAt = cur.CreatedAt
	t.UpdatedAt = r.clock()
	t.Comments = cur.Comments
	r.tasks[t.ID] = clone(t)
	return nil
}

func (r *fakeTaskRepo) SetDeleted(_ context.Context, ownerID, id uuid.UUID, deleted bool) (*entities.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, err := r.owned(ownerID, id)
	if err != nil {
		return nil, err
	}
	t.IsDeleted = deleted
	t.UpdatedAt = r.clock()
	return clone(t), nil
}

func (r *fakeTaskRepo) UpdateStatus(_ context.Context, ownerID, id uuid.UUID, status entities.TaskStatus) (*entities.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, err := r.owned(ownerID, id)
	if err != nil || t.IsDeleted {
		return nil, entities.ErrTaskNotFound
	}
	if t.Status != status {
		t.Status = status
		t.UpdatedAt = r.clock()
	}
	return clone(t), nil
}

func (r *fakeTaskRepo) AppendComment(_ context.Context, ownerID, id uuid.UUID, c entities.Comment) (*entities.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, err := r.owned(ownerID, id)
	if err != nil || t.IsDeleted {
		return nil, entities.ErrTaskNotFound
	}
	t.Comments = append(t.Comments, c)
	t.UpdatedAt = r.clock()
	return clone(t), nil
}

func (r *fakeTaskRepo) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.owned(ownerID, id); err != nil {
		return err
	}
	delete(r.tasks, id)
	return nil
}

func (r *fakeTaskRepo) matching(f ports.TaskFilter) []*entities.Task {
	var out []*entities.Task
	search := strings.ToLower(strings.TrimSpace(f.Search))
	for _, t := range r.tasks {
		if t.OwnerID != f.OwnerID || t.IsDeleted {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.Priority != nil && t.Priority != *f.Priority {
			continue
		}
		if search != "" {
			desc := ""
			if t.Description != nil {
				desc = *t.Description
			}
			if !strings.Contains(strings.ToLower(t.Title), search) && !strings.Contains(strings.ToLower(desc), search) {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

func (r *fakeTaskRepo) List(_ context.Context, f ports.TaskFilter) ([]*entities.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.matching(f)

	key := func(t *entities.Task) string {
		switch f.SortBy {
		case "title":
			return t.Title
		case "status":
			return string(t.Status)
		case "priority":
			return string(t.Priority)
		case "dueDate":
			return t.DueDate.Format(time.RFC3339Nano)
		case "updatedAt":
			return t.UpdatedAt.Format(time.RFC3339Nano)
		}
		return t.CreatedAt.Format(time.RFC3339Nano)
	}
	sort.Slice(items, func(i, j int) bool {
		ki, kj := key(items[i]), key(items[j])
		if ki == kj {
			ki, kj = items[i].ID.String(), items[j].ID.String()
		}
		if f.SortOrder == "asc" {
			return ki < kj
		}
		return ki > kj
	})

	out := []*entities.Task{}
	for i := f.Offset; i < len(items) && i < f.Offset+f.Limit; i++ {
		out = append(out, clone(items[i]))
	}
	return out, nil
}

func (r *fakeTaskRepo) Count(_ context.Context, f ports.TaskFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matching(f)), nil
}

func (r *fakeTaskRepo) CountByStatus(_ context.Context, ownerID uuid.UUID) (map[entities.TaskStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[entities.TaskStatus]int{}
	for _, t := range r.matching(ports.TaskFilter{OwnerID: ownerID}) {
		counts[t.Status]++
	}
	return counts, nil
}

func (r *fakeTaskRepo) StatSamples(_ context.Context, ownerID uuid.UUID) ([]entities.TaskStatSample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	samples := []entities.TaskStatSample{}
	for _, t := range r.matching(ports.TaskFilter{OwnerID: ownerID}) {
		samples = append(samples, entities.TaskStatSample{
			Status: t.Status, Priority: t.Priority, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
		})
	}
	return samples, nil
}

// fakeStore is an in-memory ports.AttachmentStore.
type fakeStore struct {
	mu      sync.Mutex
	uploads int
	failOn  map[int]error
	calls   int
}

func (s *fakeStore) Upload(ctx context.Context, data []byte, mimeType, folder string) (*ports.StoredObject, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if err, ok := s.failOn[call]; ok {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.uploads++
	s.mu.Unlock()

	name := fmt.Sprintf("%s/%s/%s", folder, ports.ResourceType(mimeType), uuid.NewString())
	return &ports.StoredObject{Name: name, URL: "https://files.test/" + name, Size: uint64(len(data))}, nil
}

// memCache is an in-memory ports.CacheRepository.
type memCache struct {
	mu     sync.Mutex
	values map[string][]byte
	getErr error
}

func newMemCache() *memCache { return &memCache{values: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, c.getErr
	}
	b, ok := c.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = b
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}

var errUpstream = errors.New("object store unavailable")

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")

func testStorageConfig() config.StorageConfig {
	return config.StorageConfig{
		Folder:      "tasq/task/attachments",
		MaxFileSize: 1024,
		MaxFiles:    5,
		AllowedTypes: []string{
			"image/jpeg",
			"image/png",
			"application/pdf",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		},
	}
}

type testEnv struct {
	tasks   *fakeTaskRepo
	users   *fakeUserRepo
	store   *fakeStore
	cache   *memCache
	service *TaskService
}

func newTestEnv(emails ...string) *testEnv {
	log := logger.NewNop()
	env := &testEnv{
		tasks: newFakeTaskRepo(),
		users: newFakeUserRepo(emails...),
		store: &fakeStore{},
		cache: newMemCache(),
	}

	analytics := NewAnalyticsAggregator(env.tasks, env.cache, config.AnalyticsConfig{Timezone: "UTC", CacheTTL: time.Minute}, nil, log)
	env.service = NewTaskService(
		env.tasks,
		NewAssigneeResolver(env.users, log),
		NewUploader(env.store, testStorageConfig(), nil, log),
		NewTaskQueryEngine(env.tasks, config.TasksConfig{DefaultPageLimit: 9, MaxPageLimit: 100}),
		analytics,
		nil,
		log,
	)
	return env
}

func strPtr(s string) *string { return &s }
