package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Tomlord1122/todo-share/internal/domain"
)

type BlogFilter struct {
	AuthorID *uint
	Status   *domain.BlogStatus
	Search   string
	// PublishedBefore restricts to published posts whose published_at is not after it.
	PublishedBefore *time.Time
	Limit           int
	Offset          int
}

type BlogRepository interface {
	Create(ctx context.Context, blog *domain.Blog) error
	FindByID(ctx context.Context, id uint) (*domain.Blog, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Blog, error)
	FindByIDAndAuthor(ctx context.Context, id, authorID uint) (*domain.Blog, error)
	List(ctx context.Context, filter BlogFilter) ([]domain.Blog, int64, error)
	Update(ctx context.Context, blog *domain.Blog) error
	Delete(ctx context.Context, id uint) error
	SlugExists(ctx context.Context, slug string, exceptID uint) (bool, error)
	IncrementViews(ctx context.Context, id uint) error
}

type gormBlogRepository struct {
	db *gorm.DB
}

func NewGormBlogRepository(db *gorm.DB) BlogRepository {
	return &gormBlogRepository{db: db}
}

func (r *gormBlogRepository) Create(ctx context.Context, blog *domain.Blog) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(blog).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: slug %q is already in use", domain.ErrConflict, blog.Slug)
		}
		return fmt.Errorf("create blog: %w", err)
	}
	if err := r.db.WithContext(ctx).First(&blog.Author, blog.AuthorID).Error; err != nil {
		return fmt.Errorf("load blog author: %w", err)
	}
	return nil
}

func (r *gormBlogRepository) FindByID(ctx context.Context, id uint) (*domain.Blog, error) {
	var blog domain.Blog
	if err := r.db.WithContext(ctx).Preload("Author").First(&blog, id).Error; err != nil {
		return nil, notFound(err, domain.ErrBlogNotFound)
	}
	return &blog, nil
}

func (r *gormBlogRepository) FindBySlug(ctx context.Context, slug string) (*domain.Blog, error) {
	var blog domain.Blog
	if err := r.db.WithContext(ctx).Preload("Author").Where("slug = ?", slug).First(&blog).Error; err != nil {
		return nil, notFound(err, domain.ErrBlogNotFound)
	}
	return &blog, nil
}

func (r *gormBlogRepository) FindByIDAndAuthor(ctx context.Context, id, authorID uint) (*domain.Blog, error) {
	var blog domain.Blog
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("id = ? AND author_id = ?", id, authorID).
		First(&blog).Error
	if err != nil {
		return nil, notFound(err, domain.ErrBlogNotFound)
	}
	return &blog, nil
}

func (r *gormBlogRepository) List(ctx context.Context, filter BlogFilter) ([]domain.Blog, int64, error) {
	db := r.db.WithContext(ctx)
	query := db.Model(&domain.Blog{})
	if filter.AuthorID != nil {
		query = query.Where("author_id = ?", *filter.AuthorID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PublishedBefore != nil {
		query = query.Where("status = ? AND published_at IS NOT NULL AND published_at <= ?",
			domain.BlogPublished, *filter.PublishedBefore)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		query = query.Where(db.Where("title ILIKE ? ESCAPE '\\'", pattern).
			Or("excerpt ILIKE ? ESCAPE '\\'", pattern).
			Or("content ILIKE ? ESCAPE '\\'", pattern))
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count blogs: %w", err)
	}

	order := "created_at DESC"
	if filter.PublishedBefore != nil {
		order = "published_at DESC"
	}

	var blogs []domain.Blog
	err := query.Preload("Author").
		Order(order).
		Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&blogs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list blogs: %w", err)
	}
	return blogs, total, nil
}

func (r *gormBlogRepository) Update(ctx context.Context, blog *domain.Blog) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(blog).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: slug %q is already in use", domain.ErrConflict, blog.Slug)
		}
		return fmt.Errorf("update blog %d: %w", blog.ID, err)
	}
	return nil
}

func (r *gormBlogRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&domain.Blog{}, id)
	if result.Error != nil {
		return fmt.Errorf("delete blog %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrBlogNotFound
	}
	return nil
}

// SlugExists also counts soft-deleted posts because the unique index does.
func (r *gormBlogRepository) SlugExists(ctx context.Context, slug string, exceptID uint) (bool, error) {
	query := r.db.WithContext(ctx).Unscoped().Model(&domain.Blog{}).Where("slug = ?", slug)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return count > 0, nil
}

func (r *gormBlogRepository) IncrementViews(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Blog{}).
		Where("id = ?", id).
		UpdateColumn("views_count", gorm.Expr("views_count + ?", 1)).Error
	if err != nil {
		return fmt.Errorf("increment views of blog %d: %w", id, err)
	}
	return nil
}
