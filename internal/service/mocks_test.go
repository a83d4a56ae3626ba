package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prn-tf/notebook-server/internal/domain"
	"github.com/prn-tf/notebook-server/internal/repository"
)

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	users     map[string]*domain.User
	createErr error
	updateErr error
	countErr  error
	counts    int
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*domain.User)}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	for _, u := range m.users {
		if u.ID != user.ID && (u.Username == user.Username || u.Email == user.Email) {
			return domain.ErrUserAlreadyExists
		}
	}
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *MockUserRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	all := make([]*domain.User, 0, len(m.users))
	for _, u := range m.users {
		clone := *u
		all = append(all, &clone)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })

	total := int64(len(all))
	start := min(opts.Offset, len(all))
	end := len(all)
	if opts.Limit > 0 {
		end = min(start+opts.Limit, len(all))
	}
	return &repository.ListResult[domain.User]{
		Items:      all[start:end],
		TotalCount: total,
		HasMore:    int64(end) < total,
	}, nil
}

func (m *MockUserRepository) Count(ctx context.Context) (int64, error) {
	m.counts++
	if m.countErr != nil {
		return 0, m.countErr
	}
	return int64(len(m.users)), nil
}

func (m *MockUserRepository) GetFirstAdmin(ctx context.Context) (*domain.User, error) {
	for _, u := range m.users {
		if u.IsAdmin {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	return err == nil, nil
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

// MockResourceRepository is a mock implementation of
// repository.ResourceRepository over any owned resource.
type MockResourceRepository[R domain.OwnedResource] struct {
	rows     map[string]R
	order    []string
	notFound error
	clone    func(R) R
	parent   func(R) string
	linked   func(notebookID, id string) bool
	getErr   error
}

func NewMockNotebookRepository() *MockResourceRepository[*domain.Notebook] {
	return &MockResourceRepository[*domain.Notebook]{
		rows:     make(map[string]*domain.Notebook),
		notFound: domain.ErrNotebookNotFound,
		clone:    func(nb *domain.Notebook) *domain.Notebook { c := *nb; return &c },
	}
}

func NewMockSourceRepository() *MockResourceRepository[*domain.Source] {
	return &MockResourceRepository[*domain.Source]{
		rows:     make(map[string]*domain.Source),
		notFound: domain.ErrSourceNotFound,
		clone:    func(s *domain.Source) *domain.Source { c := *s; return &c },
		parent:   func(s *domain.Source) string { return s.NotebookID },
	}
}

func NewMockNoteRepository() *MockResourceRepository[*domain.Note] {
	return &MockResourceRepository[*domain.Note]{
		rows:     make(map[string]*domain.Note),
		notFound: domain.ErrNoteNotFound,
		clone:    func(n *domain.Note) *domain.Note { c := *n; return &c },
		parent:   func(n *domain.Note) string { return n.NotebookID },
	}
}

func (m *MockResourceRepository[R]) Create(ctx context.Context, r R) error {
	m.rows[r.ResourceID()] = m.clone(r)
	m.order = append(m.order, r.ResourceID())
	return nil
}

func (m *MockResourceRepository[R]) GetByID(ctx context.Context, id string) (R, error) {
	var zero R
	if m.getErr != nil {
		return zero, m.getErr
	}
	r, ok := m.rows[id]
	if !ok {
		return zero, m.notFound
	}
	return m.clone(r), nil
}

func (m *MockResourceRepository[R]) List(ctx context.Context, opts repository.ResourceListOptions) ([]R, error) {
	var out []R
	for _, id := range m.order {
		r, ok := m.rows[id]
		if !ok || !opts.Scope.Matches(r.Owner()) {
			continue
		}
		if opts.NotebookID != "" && m.parent != nil && m.parent(r) != opts.NotebookID {
			if m.linked == nil || !m.linked(opts.NotebookID, id) {
				continue
			}
		}
		out = append(out, m.clone(r))
	}
	return out, nil
}

func (m *MockResourceRepository[R]) Update(ctx context.Context, r R) error {
	if _, ok := m.rows[r.ResourceID()]; !ok {
		return m.notFound
	}
	m.rows[r.ResourceID()] = m.clone(r)
	return nil
}

func (m *MockResourceRepository[R]) Delete(ctx context.Context, id string) error {
	if _, ok := m.rows[id]; !ok {
		return m.notFound
	}
	delete(m.rows, id)
	return nil
}

func (m *MockResourceRepository[R]) AssignUnowned(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	for _, r := range m.rows {
		if r.Owner() == nil {
			id := ownerID
			r.SetOwner(&id)
			n++
		}
	}
	return n, nil
}

type linkKey struct{ notebookID, sourceID string }

// MockNotebookSourceRepository is a set-backed repository.NotebookSourceRepository.
type MockNotebookSourceRepository struct {
	links   map[linkKey]time.Time
	linkErr error
}

func NewMockNotebookSourceRepository() *MockNotebookSourceRepository {
	return &MockNotebookSourceRepository{links: make(map[linkKey]time.Time)}
}

func (m *MockNotebookSourceRepository) Link(ctx context.Context, notebookID, sourceID string, at time.Time) error {
	if m.linkErr != nil {
		return m.linkErr
	}
	if _, ok := m.links[linkKey{notebookID, sourceID}]; !ok {
		m.links[linkKey{notebookID, sourceID}] = at
	}
	return nil
}

func (m *MockNotebookSourceRepository) Unlink(ctx context.Context, notebookID, sourceID string) error {
	delete(m.links, linkKey{notebookID, sourceID})
	return nil
}

func (m *MockNotebookSourceRepository) IsLinked(ctx context.Context, notebookID, sourceID string) (bool, error) {
	_, ok := m.links[linkKey{notebookID, sourceID}]
	return ok, nil
}

// MockCache is a map-backed repository.Cache.
type MockCache struct {
	mu     sync.Mutex
	values map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{values: make(map[string][]byte)}
}

func (c *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	return v, nil
}

func (c *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *MockCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

// MockRecorder counts recorded outcomes.
type MockRecorder struct {
	logins        int
	failedLogins  int
	registrations int
	denied        []string
}

func (r *MockRecorder) RecordLogin(success bool) {
	if success {
		r.logins++
		return
	}
	r.failedLogins++
}

func (r *MockRecorder) RecordRegistration() { r.registrations++ }

func (r *MockRecorder) RecordAccessDenied(resource string) {
	r.denied = append(r.denied, resource)
}
