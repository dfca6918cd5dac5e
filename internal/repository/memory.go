package repository

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Tomlord1122/todolist/internal/domain"
)

// MemoryStore keeps users and todos in process memory. It backs STORE=memory runs and tests,
// and orders lists exactly like the postgres repository.
type MemoryStore struct {
	mu     sync.RWMutex
	todos  map[uuid.UUID]domain.Todo
	users  map[uuid.UUID]domain.User
	emails map[string]uuid.UUID
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		todos:  make(map[uuid.UUID]domain.Todo),
		users:  make(map[uuid.UUID]domain.User),
		emails: make(map[string]uuid.UUID),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Todos returns the store as a TodoRepository.
func (s *MemoryStore) Todos() TodoRepository { return memoryTodos{s} }

// Users returns the store as a UserRepository.
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Health reports the store status in the same shape as the database service.
func (s *MemoryStore) Health() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]string{
		"status":  "up",
		"message": "It's healthy",
		"store":   "memory",
		"users":   strconv.Itoa(len(s.users)),
		"todos":   strconv.Itoa(len(s.todos)),
	}
}

type memoryTodos struct{ s *MemoryStore }

func (m memoryTodos) Create(_ context.Context, todo *domain.Todo) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if todo.ID == uuid.Nil {
		todo.ID = uuid.New()
	}
	if _, exists := s.todos[todo.ID]; exists {
		return ErrDuplicate
	}
	now := s.now()
	todo.CreatedAt, todo.UpdatedAt = now, now
	if todo.ExpiryAt != nil {
		exp := todo.ExpiryAt.UTC()
		todo.ExpiryAt = &exp
	}
	s.todos[todo.ID] = cloneTodo(*todo)
	return nil
}

func (m memoryTodos) FindByID(_ context.Context, userID, id uuid.UUID) (*domain.Todo, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.todos[id]
	if !ok || t.UserID != userID {
		return nil, ErrNotFound
	}
	out := cloneTodo(t)
	return &out, nil
}

func (m memoryTodos) List(_ context.Context, userID uuid.UUID, filter TodoFilter) ([]domain.Todo, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Todo, 0)
	for _, t := range s.todos {
		if t.UserID != userID {
			continue
		}
		if filter.IsDone != nil && t.IsDone != *filter.IsDone {
			continue
		}
		if filter.Priority != nil && t.Priority != *filter.Priority {
			continue
		}
		out = append(out, cloneTodo(t))
	}
	slices.SortFunc(out, domain.CompareTodos)
	return out, nil
}

func (m memoryTodos) Update(_ context.Context, userID, id uuid.UUID, patch domain.TodoPatch) (*domain.Todo, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.todos[id]
	if !ok || t.UserID != userID {
		return nil, ErrNotFound
	}
	if !patch.Empty() {
		patch.Apply(&t)
		t.UpdatedAt = s.now()
		s.todos[id] = t
	}
	out := cloneTodo(t)
	return &out, nil
}

func (m memoryTodos) Delete(_ context.Context, userID, id uuid.UUID) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.todos[id]
	if !ok || t.UserID != userID {
		return ErrNotFound
	}
	delete(s.todos, id)
	return nil
}

func (m memoryTodos) DeleteAll(_ context.Context, userID uuid.UUID) (int64, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, t := range s.todos {
		if t.UserID == userID {
			delete(s.todos, id)
			n++
		}
	}
	return n, nil
}

func (m memoryTodos) ListAlarmsBetween(_ context.Context, from, to time.Time) ([]domain.Todo, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Todo, 0)
	for _, t := range s.todos {
		if !t.AlarmEnabled || t.IsDone || t.ExpiryAt == nil {
			continue
		}
		if t.ExpiryAt.After(from) && !t.ExpiryAt.After(to) {
			out = append(out, cloneTodo(t))
		}
	}
	slices.SortFunc(out, domain.CompareTodos)
	return out, nil
}

type memoryUsers struct{ s *MemoryStore }

func (m memoryUsers) Create(_ context.Context, user *domain.User) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, taken := s.emails[key]; taken {
		return ErrDuplicate
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = s.now()
	s.users[user.ID] = *user
	s.emails[key] = user.ID
	return nil
}

func (m memoryUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (m memoryUsers) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// cloneTodo copies the expiry pointer so callers never share state with the store.
func cloneTodo(t domain.Todo) domain.Todo {
	if t.ExpiryAt != nil {
		exp := *t.ExpiryAt
		t.ExpiryAt = &exp
	}
	return t
}
