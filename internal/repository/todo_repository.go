package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Tomlord1122/todolist/internal/domain"
)

var (
	// ErrNotFound is returned when no record matches, including records owned by someone else.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// TodoFilter narrows a list. Nil fields do not filter.
type TodoFilter struct {
	IsDone   *bool
	Priority *domain.Priority
}

// TodoRepository defines the owner-scoped todo data operations.
type TodoRepository interface {
	Create(ctx context.Context, todo *domain.Todo) error
	FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.Todo, error)
	List(ctx context.Context, userID uuid.UUID, filter TodoFilter) ([]domain.Todo, error)
	Update(ctx context.Context, userID, id uuid.UUID, patch domain.TodoPatch) (*domain.Todo, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error)
	// ListAlarmsBetween returns open todos with alarms enabled whose expiry is in (from, to], across all users.
	ListAlarmsBetween(ctx context.Context, from, to time.Time) ([]domain.Todo, error)
}

// listOrder mirrors domain.CompareTodos.
const (
	orderExpiry   = "expiry_at ASC NULLS LAST"
	orderPriority = "CASE priority WHEN 'High' THEN 3 WHEN 'Medium' THEN 2 WHEN 'Low' THEN 1 ELSE 0 END DESC"
	orderCreated  = "created_at ASC"
	orderID       = "id ASC"
)

// gormTodoRepository implements TodoRepository using GORM
type gormTodoRepository struct {
	db *gorm.DB
}

// NewGormTodoRepository creates a new GORM todo repository
func NewGormTodoRepository(db *gorm.DB) TodoRepository {
	return &gormTodoRepository{db: db}
}

func (r *gormTodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	if err := r.db.WithContext(ctx).Create(todo).Error; err != nil {
		return fmt.Errorf("insert todo: %w", err)
	}
	return nil
}

func (r *gormTodoRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*domain.Todo, error) {
	var todo domain.Todo
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&todo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find todo %s: %w", id, err)
	}
	return &todo, nil
}

func (r *gormTodoRepository) List(ctx context.Context, userID uuid.UUID, filter TodoFilter) ([]domain.Todo, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.IsDone != nil {
		q = q.Where("is_done = ?", *filter.IsDone)
	}
	if filter.Priority != nil {
		q = q.Where("priority = ?", *filter.Priority)
	}

	todos := make([]domain.Todo, 0)
	err := q.Order(orderExpiry).Order(orderPriority).Order(orderCreated).Order(orderID).
		Find(&todos).Error
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

// Update applies only the patched columns. An empty patch is a read.
func (r *gormTodoRepository) Update(ctx context.Context, userID, id uuid.UUID, patch domain.TodoPatch) (*domain.Todo, error) {
	if patch.Empty() {
		return r.FindByID(ctx, userID, id)
	}

	result := r.db.WithContext(ctx).
		Model(&domain.Todo{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(patch.Columns())
	if result.Error != nil {
		return nil, fmt.Errorf("update todo %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.FindByID(ctx, userID, id)
}

func (r *gormTodoRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Todo{})
	if result.Error != nil {
		return fmt.Errorf("delete todo %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormTodoRepository) DeleteAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.Todo{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete todos of %s: %w", userID, result.Error)
	}
	return result.RowsAffected, nil
}

func (r *gormTodoRepository) ListAlarmsBetween(ctx context.Context, from, to time.Time) ([]domain.Todo, error) {
	todos := make([]domain.Todo, 0)
	err := r.db.WithContext(ctx).
		Where("alarm_enabled = ? AND is_done = ?", true, false).
		Where("expiry_at > ? AND expiry_at <= ?", from.UTC(), to.UTC()).
		Order(orderExpiry).
		Find(&todos).Error
	if err != nil {
		return nil, fmt.Errorf("list due alarms: %w", err)
	}
	return todos, nil
}
