package service

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Tomlord1122/todo-share/internal/domain"
	"github.com/Tomlord1122/todo-share/internal/events"
	"github.com/Tomlord1122/todo-share/internal/repository"
)

// store is one in-memory database behind every fake repository, so that
// preloads (owner, share users) see the same users the tests created.
type store struct {
	mu        sync.Mutex
	users     map[uint]*domain.User
	todos     map[uint]*domain.Todo
	shares    []*domain.TodoShare
	blogs     map[uint]*domain.Blog
	nextID    uint
	failUsers error
}

func newStore() *store {
	return &store{
		users: make(map[uint]*domain.User),
		todos: make(map[uint]*domain.Todo),
		blogs: make(map[uint]*domain.Blog),
	}
}

func (s *store) id() uint {
	s.nextID++
	return s.nextID
}

// --- users ---

type fakeUsers struct{ *store }

func (r fakeUsers) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return domain.ErrEmailTaken
		}
	}
	u.ID = r.id()
	u.CreatedAt = time.Now()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r fakeUsers) FindByID(_ context.Context, id uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUsers != nil {
		return nil, r.failUsers
	}
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r fakeUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUsers != nil {
		return nil, r.failUsers
	}
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r fakeUsers) SearchByEmail(_ context.Context, term string, limit int, excludeID uint) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, u := range r.users {
		if u.ID != excludeID && strings.Contains(strings.ToLower(u.Email), strings.ToLower(term)) {
			out = append(out, domain.User{ID: u.ID, Name: u.Name, Email: u.Email})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- todos ---

type fakeTodos struct{ *store }

func (r fakeTodos) withOwner(t *domain.Todo) *domain.Todo {
	cp := *t
	cp.Shares = nil
	if u, ok := r.users[t.OwnerID]; ok {
		cp.Owner = *u
	}
	return &cp
}

func (r fakeTodos) Create(_ context.Context, t *domain.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = r.id()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	r.todos[t.ID] = r.withOwner(t)
	t.Owner = r.todos[t.ID].Owner
	return nil
}

func (r fakeTodos) FindByID(_ context.Context, id uint) (*domain.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.todos[id]
	if !ok {
		return nil, domain.ErrTodoNotFound
	}
	return r.withOwner(t), nil
}

func (r fakeTodos) FindByIDAndOwner(_ context.Context, id, ownerID uint) (*domain.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.todos[id]
	if !ok || t.OwnerID != ownerID {
		return nil, domain.ErrTodoNotFound
	}
	return r.withOwner(t), nil
}

func (r fakeTodos) ListAccessible(_ context.Context, userID uint, f repository.TodoFilter) ([]domain.Todo, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.Todo
	for _, t := range r.todos {
		var mine []domain.TodoShare
		for _, s := range r.shares {
			if s.TodoID == t.ID && s.SharedWithUserID == userID {
				mine = append(mine, *s)
			}
		}
		if t.OwnerID != userID && len(mine) == 0 {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(t.Title+" "+t.Description), strings.ToLower(f.Search)) {
			continue
		}
		cp := r.withOwner(t)
		cp.Shares = mine
		all = append(all, *cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	if f.Offset >= len(all) {
		return nil, total, nil
	}
	end := min(f.Offset+f.Limit, len(all))
	return all[f.Offset:end], total, nil
}

func (r fakeTodos) Update(_ context.Context, t *domain.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.todos[t.ID]; !ok {
		return domain.ErrTodoNotFound
	}
	t.UpdatedAt = time.Now()
	r.todos[t.ID] = r.withOwner(t)
	return nil
}

func (r fakeTodos) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.todos[id]; !ok {
		return domain.ErrTodoNotFound
	}
	delete(r.todos, id)
	return nil
}

// --- shares ---

type fakeShares struct{ *store }

func (r fakeShares) load(s *domain.TodoShare) *domain.TodoShare {
	cp := *s
	if u, ok := r.users[s.SharedWithUserID]; ok {
		cp.SharedWith = *u
	}
	if u, ok := r.users[s.SharedByUserID]; ok {
		cp.SharedBy = *u
	}
	return &cp
}

func (r fakeShares) Create(_ context.Context, s *domain.TodoShare) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.shares {
		if existing.TodoID == s.TodoID && existing.SharedWithUserID == s.SharedWithUserID {
			return domain.ErrAlreadyShared
		}
	}
	s.ID = r.id()
	s.CreatedAt = time.Now()
	loaded := r.load(s)
	*s = *loaded
	r.shares = append(r.shares, loaded)
	return nil
}

func (r fakeShares) Find(_ context.Context, todoID, recipientID uint) (*domain.TodoShare, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shares {
		if s.TodoID == todoID && s.SharedWithUserID == recipientID {
			return r.load(s), nil
		}
	}
	return nil, domain.ErrShareNotFound
}

func (r fakeShares) MarkAccepted(_ context.Context, shareID uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.shares {
		if s.ID == shareID && s.AcceptedAt == nil {
			s.AcceptedAt = &at
			return nil
		}
	}
	return domain.ErrShareAlreadyAccepted
}

func (r fakeShares) RecipientIDs(_ context.Context, todoID uint, acceptedOnly bool) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uint
	for _, s := range r.shares {
		if s.TodoID == todoID && (!acceptedOnly || s.AcceptedAt != nil) {
			ids = append(ids, s.SharedWithUserID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *store) shareCount(todoID, recipientID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sh := range s.shares {
		if sh.TodoID == todoID && sh.SharedWithUserID == recipientID {
			n++
		}
	}
	return n
}

// --- blogs ---

type fakeBlogs struct{ *store }

func (r fakeBlogs) withAuthor(b *domain.Blog) *domain.Blog {
	cp := *b
	if u, ok := r.users[b.AuthorID]; ok {
		cp.Author = *u
	}
	return &cp
}

func (r fakeBlogs) Create(_ context.Context, b *domain.Blog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.ID = r.id()
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	r.blogs[b.ID] = r.withAuthor(b)
	b.Author = r.blogs[b.ID].Author
	return nil
}

func (r fakeBlogs) FindByID(_ context.Context, id uint) (*domain.Blog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blogs[id]
	if !ok {
		return nil, domain.ErrBlogNotFound
	}
	return r.withAuthor(b), nil
}

func (r fakeBlogs) FindBySlug(_ context.Context, slug string) (*domain.Blog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.blogs {
		if b.Slug == slug {
			return r.withAuthor(b), nil
		}
	}
	return nil, domain.ErrBlogNotFound
}

func (r fakeBlogs) FindByIDAndAuthor(_ context.Context, id, authorID uint) (*domain.Blog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blogs[id]
	if !ok || b.AuthorID != authorID {
		return nil, domain.ErrBlogNotFound
	}
	return r.withAuthor(b), nil
}

func (r fakeBlogs) List(_ context.Context, f repository.BlogFilter) ([]domain.Blog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Blog
	for _, b := range r.blogs {
		if f.AuthorID != nil && b.AuthorID != *f.AuthorID {
			continue
		}
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		if f.PublishedBefore != nil && !b.IsPublished(*f.PublishedBefore) {
			continue
		}
		out = append(out, *r.withAuthor(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

func (r fakeBlogs) Update(_ context.Context, b *domain.Blog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blogs[b.ID] = r.withAuthor(b)
	return nil
}

func (r fakeBlogs) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.blogs[id]; !ok {
		return domain.ErrBlogNotFound
	}
	delete(r.blogs, id)
	return nil
}

func (r fakeBlogs) SlugExists(_ context.Context, slug string, exceptID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.blogs {
		if b.Slug == slug && b.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeBlogs) IncrementViews(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.blogs[id]; ok {
		b.ViewsCount++
	}
	return nil
}

// --- events ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}
