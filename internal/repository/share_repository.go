package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Tomlord1122/todo-share/internal/domain"
)

// ShareRepository persists todo_shares rows. (todo_id, shared_with_user_id)
// is unique at the database level.
type ShareRepository interface {
	Create(ctx context.Context, share *domain.TodoShare) error
	Find(ctx context.Context, todoID, recipientID uint) (*domain.TodoShare, error)
	// MarkAccepted stamps accepted_at only if the share is still pending.
	MarkAccepted(ctx context.Context, shareID uint, at time.Time) error
	RecipientIDs(ctx context.Context, todoID uint, acceptedOnly bool) ([]uint, error)
}

type gormShareRepository struct {
	db *gorm.DB
}

func NewGormShareRepository(db *gorm.DB) ShareRepository {
	return &gormShareRepository{db: db}
}

// Create inserts the share and loads both users in one transaction, so a
// failed reload leaves no row behind.
func (r *gormShareRepository) Create(ctx context.Context, share *domain.TodoShare) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(share).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.ErrAlreadyShared
			}
			return fmt.Errorf("create share: %w", err)
		}
		return loadShareUsers(tx, share)
	})
}

func (r *gormShareRepository) Find(ctx context.Context, todoID, recipientID uint) (*domain.TodoShare, error) {
	var share domain.TodoShare
	err := r.db.WithContext(ctx).
		Preload("SharedWith").
		Preload("SharedBy").
		Where("todo_id = ? AND shared_with_user_id = ?", todoID, recipientID).
		First(&share).Error
	if err != nil {
		return nil, notFound(err, domain.ErrShareNotFound)
	}
	return &share, nil
}

func (r *gormShareRepository) MarkAccepted(ctx context.Context, shareID uint, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&domain.TodoShare{}).
		Where("id = ? AND accepted_at IS NULL", shareID).
		Update("accepted_at", at)
	if result.Error != nil {
		return fmt.Errorf("accept share %d: %w", shareID, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrShareAlreadyAccepted
	}
	return nil
}

func (r *gormShareRepository) RecipientIDs(ctx context.Context, todoID uint, acceptedOnly bool) ([]uint, error) {
	query := r.db.WithContext(ctx).
		Model(&domain.TodoShare{}).
		Where("todo_id = ?", todoID)
	if acceptedOnly {
		query = query.Where("accepted_at IS NOT NULL")
	}

	var ids []uint
	if err := query.Order("shared_with_user_id").Pluck("shared_with_user_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list recipients of todo %d: %w", todoID, err)
	}
	return ids, nil
}

func loadShareUsers(db *gorm.DB, share *domain.TodoShare) error {
	if err := db.First(&share.SharedWith, share.SharedWithUserID).Error; err != nil {
		return fmt.Errorf("load share recipient: %w", err)
	}
	if err := db.First(&share.SharedBy, share.SharedByUserID).Error; err != nil {
		return fmt.Errorf("load share sender: %w", err)
	}
	return nil
}
