package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/Tomlord1122/todo-share/internal/domain"
)

type fakeNotifications struct {
	items []domain.Notification
	calls int
}

func (r *fakeNotifications) Create(_ context.Context, n *domain.Notification) error {
	r.items = append(r.items, *n)
	return nil
}

func (r *fakeNotifications) mine(userID uint, unreadOnly bool) []domain.Notification {
	var out []domain.Notification
	for _, n := range r.items {
		if n.NotifiableID == userID && (!unreadOnly || n.ReadAt == nil) {
			out = append(out, n)
		}
	}
	return out
}

func (r *fakeNotifications) ListForUser(_ context.Context, userID uint, unreadOnly bool, limit, offset int) ([]domain.Notification, int64, error) {
	all := r.mine(userID, unreadOnly)
	if offset >= len(all) {
		return nil, int64(len(all)), nil
	}
	return all[offset:min(offset+limit, len(all))], int64(len(all)), nil
}

func (r *fakeNotifications) FindForUser(_ context.Context, id string, userID uint) (*domain.Notification, error) {
	for i := range r.items {
		if r.items[i].ID == id && r.items[i].NotifiableID == userID {
			return &r.items[i], nil
		}
	}
	return nil, domain.ErrNotificationNotFound
}

func (r *fakeNotifications) MarkRead(ctx context.Context, id string, userID uint, at time.Time) error {
	r.calls++
	n, err := r.FindForUser(ctx, id, userID)
	if err != nil {
		return err
	}
	if n.ReadAt == nil {
		n.ReadAt = &at
	}
	return nil
}

func (r *fakeNotifications) MarkAllRead(_ context.Context, userID uint, at time.Time) (int64, error) {
	var n int64
	for i := range r.items {
		if r.items[i].NotifiableID == userID && r.items[i].ReadAt == nil {
			r.items[i].ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (r *fakeNotifications) Delete(_ context.Context, id string, userID uint) error {
	r.calls++
	for i := range r.items {
		if r.items[i].ID == id && r.items[i].NotifiableID == userID {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

func (r *fakeNotifications) UnreadCount(_ context.Context, userID uint) (int64, error) {
	return int64(len(r.mine(userID, true))), nil
}

func seedNotification(repo *fakeNotifications, userID uint) string {
	id := uuid.NewString()
	repo.items = append(repo.items, domain.Notification{
		ID:             id,
		Type:           domain.NotificationTodoShared,
		NotifiableType: domain.NotifiableUser,
		NotifiableID:   userID,
		Data:           datatypes.JSON(`{"todo_id":1}`),
	})
	return id
}

func TestNotificationService(t *testing.T) {
	repo := &fakeNotifications{}
	svc := NewNotificationService(repo)
	ctx := context.Background()

	first := seedNotification(repo, 1)
	seedNotification(repo, 1)
	theirs := seedNotification(repo, 2)

	page, err := svc.List(ctx, 1, false, PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(2), page.UnreadCount)
	assert.JSONEq(t, `{"todo_id":1}`, string(page.Items[0].Data))

	require.NoError(t, svc.MarkRead(ctx, first, 1))
	require.NoError(t, svc.MarkRead(ctx, first, 1))
	unread, err := svc.UnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	page, err = svc.List(ctx, 1, true, PageRequest{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	assert.ErrorIs(t, svc.MarkRead(ctx, theirs, 1), domain.ErrNotificationNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, theirs, 1), domain.ErrNotificationNotFound)

	marked, err := svc.MarkAllRead(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	require.NoError(t, svc.Delete(ctx, first, 1))
	page, err = svc.List(ctx, 1, false, PageRequest{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestNotificationService_MalformedIDIsNotFound(t *testing.T) {
	repo := &fakeNotifications{}
	svc := NewNotificationService(repo)

	assert.ErrorIs(t, svc.MarkRead(context.Background(), "not-a-uuid", 1), domain.ErrNotificationNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), "42", 1), domain.ErrNotificationNotFound)
	assert.Zero(t, repo.calls)
}
