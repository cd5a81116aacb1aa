package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Tomlord1122/todo-share/internal/domain"
)

// TodoFilter narrows ListAccessible.
type TodoFilter struct {
	Status *domain.TodoStatus
	Search string
	Limit  int
	Offset int
}

// TodoRepository defines the interface for todo data operations
type TodoRepository interface {
	Create(ctx context.Context, todo *domain.Todo) error
	FindByID(ctx context.Context, id uint) (*domain.Todo, error)
	FindByIDAndOwner(ctx context.Context, id, ownerID uint) (*domain.Todo, error)
	// ListAccessible returns todos owned by or shared with userID, newest
	// first, with only userID's share preloaded, plus the unpaginated total.
	ListAccessible(ctx context.Context, userID uint, filter TodoFilter) ([]domain.Todo, int64, error)
	Update(ctx context.Context, todo *domain.Todo) error
	Delete(ctx context.Context, id uint) error
}

// gormTodoRepository implements TodoRepository using GORM
type gormTodoRepository struct {
	db *gorm.DB
}

// NewGormTodoRepository creates a new GORM todo repository
func NewGormTodoRepository(db *gorm.DB) TodoRepository {
	return &gormTodoRepository{db: db}
}

func (r *gormTodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(todo).Error; err != nil {
		return fmt.Errorf("create todo: %w", err)
	}
	if err := r.db.WithContext(ctx).First(&todo.Owner, todo.OwnerID).Error; err != nil {
		return fmt.Errorf("load owner of todo %d: %w", todo.ID, err)
	}
	return nil
}

// FindByID retrieves a live (not soft-deleted) todo with its owner.
func (r *gormTodoRepository) FindByID(ctx context.Context, id uint) (*domain.Todo, error) {
	var todo domain.Todo
	if err := r.db.WithContext(ctx).Preload("Owner").First(&todo, id).Error; err != nil {
		return nil, notFound(err, domain.ErrTodoNotFound)
	}
	return &todo, nil
}

func (r *gormTodoRepository) FindByIDAndOwner(ctx context.Context, id, ownerID uint) (*domain.Todo, error) {
	var todo domain.Todo
	err := r.db.WithContext(ctx).
		Preload("Owner").
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&todo).Error
	if err != nil {
		return nil, notFound(err, domain.ErrTodoNotFound)
	}
	return &todo, nil
}

func (r *gormTodoRepository) ListAccessible(ctx context.Context, userID uint, filter TodoFilter) ([]domain.Todo, int64, error) {
	db := r.db.WithContext(ctx)
	sharedWithUser := db.Model(&domain.TodoShare{}).
		Select("todo_id").
		Where("shared_with_user_id = ?", userID)

	query := db.Model(&domain.Todo{}).
		Where(db.Where("owner_id = ?", userID).Or("id IN (?)", sharedWithUser))
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where(db.Where("title ILIKE ? ESCAPE '\\'", pattern).Or("description ILIKE ? ESCAPE '\\'", pattern))
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count todos: %w", err)
	}

	var todos []domain.Todo
	err := query.
		Preload("Owner").
		Preload("Shares", "shared_with_user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&todos).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list todos: %w", err)
	}
	return todos, total, nil
}

// Update writes the todo's own columns; associations are left alone.
func (r *gormTodoRepository) Update(ctx context.Context, todo *domain.Todo) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(todo).Error; err != nil {
		return fmt.Errorf("update todo %d: %w", todo.ID, err)
	}
	return nil
}

// Delete soft-deletes the todo; its shares stay until a hard delete cascades.
func (r *gormTodoRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&domain.Todo{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete todo %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrTodoNotFound
	}
	return nil
}
