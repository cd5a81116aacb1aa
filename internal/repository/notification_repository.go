package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Tomlord1122/todo-share/internal/domain"
)

// NotificationRepository scopes every read and write to one notifiable user.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListForUser(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]domain.Notification, int64, error)
	FindForUser(ctx context.Context, id string, userID uint) (*domain.Notification, error)
	MarkRead(ctx context.Context, id string, userID uint, at time.Time) error
	MarkAllRead(ctx context.Context, userID uint, at time.Time) (int64, error)
	Delete(ctx context.Context, id string, userID uint) error
	UnreadCount(ctx context.Context, userID uint) (int64, error)
}

type gormNotificationRepository struct {
	db *gorm.DB
}

func NewGormNotificationRepository(db *gorm.DB) NotificationRepository {
	return &gormNotificationRepository{db: db}
}

func (r *gormNotificationRepository) ofUser(ctx context.Context, userID uint) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("notifiable_type = ? AND notifiable_id = ?", domain.NotifiableUser, userID)
}

func (r *gormNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (r *gormNotificationRepository) ListForUser(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]domain.Notification, int64, error) {
	query := r.ofUser(ctx, userID)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	var out []domain.Notification
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return out, total, nil
}

func (r *gormNotificationRepository) FindForUser(ctx context.Context, id string, userID uint) (*domain.Notification, error) {
	var n domain.Notification
	if err := r.ofUser(ctx, userID).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, notFound(err, domain.ErrNotificationNotFound)
	}
	return &n, nil
}

// MarkRead keeps the first read_at when the notification was already read.
func (r *gormNotificationRepository) MarkRead(ctx context.Context, id string, userID uint, at time.Time) error {
	if _, err := r.FindForUser(ctx, id, userID); err != nil {
		return err
	}
	err := r.ofUser(ctx, userID).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", at).Error
	if err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	return nil
}

func (r *gormNotificationRepository) MarkAllRead(ctx context.Context, userID uint, at time.Time) (int64, error) {
	result := r.ofUser(ctx, userID).Where("read_at IS NULL").Update("read_at", at)
	if result.Error != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *gormNotificationRepository) Delete(ctx context.Context, id string, userID uint) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND notifiable_type = ? AND notifiable_id = ?", id, domain.NotifiableUser, userID).
		Delete(&domain.Notification{})
	if result.Error != nil {
		return fmt.Errorf("delete notification %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *gormNotificationRepository) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := r.ofUser(ctx, userID).Where("read_at IS NULL").Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}
