package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Tomlord1122/todo-share/internal/domain"
	"github.com/Tomlord1122/todo-share/internal/repository"
)

// NotificationService is the read side of the notifications written by the
// dispatcher. Every call is scoped to the notifiable user; someone else's
// notification is reported as not found.
type NotificationService interface {
	List(ctx context.Context, userID uint, unreadOnly bool, page PageRequest) (*NotificationPage, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, id string, userID uint) error
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
	Delete(ctx context.Context, id string, userID uint) error
}

type notificationService struct {
	repo repository.NotificationRepository
	now  func() time.Time
}

func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo, now: time.Now}
}

func (s *notificationService) List(ctx context.Context, userID uint, unreadOnly bool, page PageRequest) (*NotificationPage, error) {
	page = page.normalize()
	list, total, err := s.repo.ListForUser(ctx, userID, unreadOnly, page.PerPage, page.offset())
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]NotificationResponse, 0, len(list))
	for i := range list {
		items = append(items, newNotificationResponse(&list[i]))
	}
	return &NotificationPage{Items: items, Pagination: newPagination(page, total), UnreadCount: unread}, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, id string, userID uint) error {
	if !validID(id) {
		return domain.ErrNotificationNotFound
	}
	return s.repo.MarkRead(ctx, id, userID, s.now())
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, s.now())
}

func (s *notificationService) Delete(ctx context.Context, id string, userID uint) error {
	if !validID(id) {
		return domain.ErrNotificationNotFound
	}
	return s.repo.Delete(ctx, id, userID)
}

// validID keeps malformed ids away from the uuid column.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}
