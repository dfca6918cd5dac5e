package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Tomlord1122/todolist/internal/domain"
	"github.com/Tomlord1122/todolist/internal/repository"
)

// CreateTodoRequest holds the data needed to create a new todo.
// Name stays raw so that a missing value and a non-string value fail the same way.
type CreateTodoRequest struct {
	Name         json.RawMessage `json:"name"`
	IsDone       *bool           `json:"isDone"`
	ExpiryAt     Expiry          `json:"expiryAt"`
	Priority     *string         `json:"priority"`
	AlarmEnabled *bool           `json:"alarmEnabled"`
}

// UpdateTodoRequest holds a partial update.
// Pointers distinguish an omitted field from one set to its zero value.
type UpdateTodoRequest struct {
	Name         json.RawMessage `json:"name"`
	IsDone       *bool           `json:"isDone"`
	ExpiryAt     Expiry          `json:"expiryAt"`
	Priority     *string         `json:"priority"`
	AlarmEnabled *bool           `json:"alarmEnabled"`
}

// ListTodosQuery carries the optional list filters exactly as they arrived in the query string.
type ListTodosQuery struct {
	IsDone   string
	Priority string
}

// TodoResponse is the wire representation of a todo.
type TodoResponse struct {
	ID           string `json:"_id"`
	Name         string `json:"name"`
	IsDone       bool   `json:"isDone"`
	ExpiryAt     *int64 `json:"expiryAt"`
	Priority     string `json:"priority"`
	AlarmEnabled bool   `json:"alarmEnabled"`
	UserID       string `json:"userId"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

func toTodoResponse(t *domain.Todo) TodoResponse {
	resp := TodoResponse{
		ID:           t.ID.String(),
		Name:         t.Name,
		IsDone:       t.IsDone,
		Priority:     string(t.Priority),
		AlarmEnabled: t.AlarmEnabled,
		UserID:       t.UserID.String(),
		CreatedAt:    t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    t.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if t.ExpiryAt != nil {
		ms := t.ExpiryAt.UnixMilli()
		resp.ExpiryAt = &ms
	}
	return resp
}

// AlarmScheduler is notified after every mutation so pending reminders follow the stored state.
type AlarmScheduler interface {
	Reschedule(todo domain.Todo)
	Cancel(id uuid.UUID)
	CancelOwner(userID uuid.UUID)
}

// TodoService defines the operations for managing a user's todos.
// Every method is scoped to userID; todos of other users behave as if they did not exist.
type TodoService interface {
	CreateTodo(ctx context.Context, userID uuid.UUID, req CreateTodoRequest) (*TodoResponse, error)
	GetTodo(ctx context.Context, userID uuid.UUID, id string) (*TodoResponse, error)
	ListTodos(ctx context.Context, userID uuid.UUID, query ListTodosQuery) ([]TodoResponse, error)
	UpdateTodo(ctx context.Context, userID uuid.UUID, id string, req UpdateTodoRequest) (*TodoResponse, error)
	DeleteTodo(ctx context.Context, userID uuid.UUID, id string) error
	DeleteAllTodos(ctx context.Context, userID uuid.UUID) (int64, error)
}

type todoService struct {
	repo   repository.TodoRepository
	alarms AlarmScheduler
	logger *slog.Logger
}

// NewTodoService wires the service. alarms may be nil.
func NewTodoService(repo repository.TodoRepository, alarms AlarmScheduler, logger *slog.Logger) TodoService {
	return &todoService{
		repo:   repo,
		alarms: alarms,
		logger: logger,
	}
}

func (s *todoService) CreateTodo(ctx context.Context, userID uuid.UUID, req CreateTodoRequest) (*TodoResponse, error) {
	name, ok := nameFrom(req.Name)
	if !ok {
		return nil, invalid("name", "name is required")
	}
	if err := checkNameLength(name); err != nil {
		return nil, err
	}

	todo := &domain.Todo{
		Name:         name,
		Priority:     domain.PriorityMedium,
		AlarmEnabled: true,
		UserID:       userID,
	}
	if req.IsDone != nil {
		todo.IsDone = *req.IsDone
	}
	if req.AlarmEnabled != nil {
		todo.AlarmEnabled = *req.AlarmEnabled
	}
	if req.Priority != nil {
		p, err := priorityFrom(*req.Priority)
		if err != nil {
			return nil, err
		}
		todo.Priority = p
	}
	at, _, err := req.ExpiryAt.Resolve()
	if err != nil {
		return nil, err
	}
	todo.ExpiryAt = at

	if err := s.repo.Create(ctx, todo); err != nil {
		s.logger.ErrorContext(ctx, "create todo", "user_id", userID, "error", err)
		return nil, fmt.Errorf("create todo: %w", err)
	}
	s.reschedule(*todo)

	resp := toTodoResponse(todo)
	return &resp, nil
}

func (s *todoService) GetTodo(ctx context.Context, userID uuid.UUID, id string) (*TodoResponse, error) {
	todoID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrTodoNotFound
	}
	todo, err := s.repo.FindByID(ctx, userID, todoID)
	if err != nil {
		return nil, s.storeError(ctx, "get todo", todoID, err)
	}
	resp := toTodoResponse(todo)
	return &resp, nil
}

func (s *todoService) ListTodos(ctx context.Context, userID uuid.UUID, query ListTodosQuery) ([]TodoResponse, error) {
	var filter repository.TodoFilter
	if query.IsDone != "" {
		done, err := strconv.ParseBool(query.IsDone)
		if err != nil {
			return nil, invalid("isDone", "isDone must be true or false")
		}
		filter.IsDone = &done
	}
	if query.Priority != "" {
		p, err := priorityFrom(query.Priority)
		if err != nil {
			return nil, err
		}
		filter.Priority = &p
	}

	todos, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "list todos", "user_id", userID, "error", err)
		return nil, fmt.Errorf("list todos: %w", err)
	}

	responses := make([]TodoResponse, 0, len(todos))
	for i := range todos {
		responses = append(responses, toTodoResponse(&todos[i]))
	}
	return responses, nil
}

func (s *todoService) UpdateTodo(ctx context.Context, userID uuid.UUID, id string, req UpdateTodoRequest) (*TodoResponse, error) {
	todoID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrTodoNotFound
	}

	var patch domain.TodoPatch
	if len(req.Name) > 0 {
		name, ok := nameFrom(req.Name)
		if !ok {
			return nil, invalid("name", "name must be a non-empty string")
		}
		if err := checkNameLength(name); err != nil {
			return nil, err
		}
		patch.Name = &name
	}
	patch.IsDone = req.IsDone
	patch.AlarmEnabled = req.AlarmEnabled
	if req.Priority != nil {
		p, err := priorityFrom(*req.Priority)
		if err != nil {
			return nil, err
		}
		patch.Priority = &p
	}
	at, clear, err := req.ExpiryAt.Resolve()
	if err != nil {
		return nil, err
	}
	patch.ExpiryAt, patch.ClearExpiry = at, clear

	todo, err := s.repo.Update(ctx, userID, todoID, patch)
	if err != nil {
		return nil, s.storeError(ctx, "update todo", todoID, err)
	}
	if !patch.Empty() {
		s.reschedule(*todo)
	}

	resp := toTodoResponse(todo)
	return &resp, nil
}

func (s *todoService) DeleteTodo(ctx context.Context, userID uuid.UUID, id string) error {
	todoID, err := uuid.Parse(id)
	if err != nil {
		return ErrTodoNotFound
	}
	if err := s.repo.Delete(ctx, userID, todoID); err != nil {
		return s.storeError(ctx, "delete todo", todoID, err)
	}
	if s.alarms != nil {
		s.alarms.Cancel(todoID)
	}
	return nil
}

func (s *todoService) DeleteAllTodos(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.repo.DeleteAll(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "delete all todos", "user_id", userID, "error", err)
		return 0, fmt.Errorf("delete all todos: %w", err)
	}
	if s.alarms != nil {
		s.alarms.CancelOwner(userID)
	}
	s.logger.InfoContext(ctx, "removed all todos", "user_id", userID, "count", n)
	return n, nil
}

func (s *todoService) reschedule(todo domain.Todo) {
	if s.alarms != nil {
		s.alarms.Reschedule(todo)
	}
}

// storeError maps repository.ErrNotFound and logs anything else.
func (s *todoService) storeError(ctx context.Context, op string, id uuid.UUID, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrTodoNotFound
	}
	s.logger.ErrorContext(ctx, op, "todo_id", id, "error", err)
	return fmt.Errorf("%s: %w", op, err)
}

// nameFrom accepts only a JSON string that is non-empty after trimming.
func nameFrom(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return "", false
	}
	name = strings.TrimSpace(name)
	return name, name != ""
}

func checkNameLength(name string) error {
	if utf8.RuneCountInString(name) > domain.MaxNameLength {
		return invalid("name", fmt.Sprintf("name must be at most %d characters", domain.MaxNameLength))
	}
	return nil
}

func priorityFrom(s string) (domain.Priority, error) {
	p, ok := domain.ParsePriority(s)
	if !ok {
		return "", invalid("priority", "priority must be one of Low, Medium, High")
	}
	return p, nil
}
