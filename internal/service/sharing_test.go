package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/todo-share/internal/domain"
	"github.com/Tomlord1122/todo-share/internal/events"
	"github.com/Tomlord1122/todo-share/internal/notify"
)

type fixture struct {
	db        *store
	access    AccessResolver
	todos     *todoService
	shares    *shareService
	publisher events.Publisher
}

func newFixture(t *testing.T, publisher events.Publisher) *fixture {
	t.Helper()
	db := newStore()
	access := NewAccessResolver(fakeTodos{db}, fakeShares{db})
	return &fixture{
		db:        db,
		access:    access,
		todos:     NewTodoService(fakeTodos{db}, fakeShares{db}, fakeUsers{db}, access, publisher, zerolog.Nop()).(*todoService),
		shares:    NewShareService(fakeTodos{db}, fakeShares{db}, fakeUsers{db}, publisher, zerolog.Nop()).(*shareService),
		publisher: publisher,
	}
}

func (f *fixture) user(t *testing.T, name, email string) *domain.User {
	t.Helper()
	u := &domain.User{Name: name, Email: email, PasswordHash: "x"}
	require.NoError(t, fakeUsers{f.db}.Create(context.Background(), u))
	return u
}

func (f *fixture) todo(t *testing.T, owner *domain.User, title string) *TodoResponse {
	t.Helper()
	todo, err := f.todos.CreateTodo(context.Background(), owner.ID, CreateTodoRequest{Title: title})
	require.NoError(t, err)
	return todo
}

func (f *fixture) share(t *testing.T, todoID uint, owner, recipient *domain.User, p domain.Permission, accept bool) {
	t.Helper()
	ctx := context.Background()
	_, err := f.shares.ShareTodo(ctx, todoID, owner.ID, recipient.Email, p)
	require.NoError(t, err)
	if accept {
		_, err = f.shares.AcceptShare(ctx, todoID, recipient.ID)
		require.NoError(t, err)
	}
}

// --- Permission resolver ---

func TestResolveAccess(t *testing.T) {
	f := newFixture(t, events.Discard{})
	ctx := context.Background()
	alice := f.user(t, "Alice", "alice@example.com")
	viewer := f.user(t, "Vic", "vic@example.com")
	editor := f.user(t, "Eve", "eve@example.com")
	coOwner := f.user(t, "Olga", "olga@example.com")
	pending := f.user(t, "Pat", "pat@example.com")
	stranger := f.user(t, "Sam", "sam@example.com")

	todo := f.todo(t, alice, "Ship report")
	f.share(t, todo.ID, alice, viewer, domain.PermissionView, true)
	f.share(t, todo.ID, alice, editor, domain.PermissionEdit, true)
	f.share(t, todo.ID, alice, coOwner, domain.PermissionOwner, true)
	f.share(t, todo.ID, alice, pending, domain.PermissionEdit, false)

	cases := []struct {
		name     string
		user     uint
		required domain.PermissionSet
		wantErr  error
	}{
		{"owner with any set", alice.ID, domain.AnyRelationship, nil},
		{"owner with delete set", alice.ID, domain.CanDelete, nil},
		{"owner with unrelated set", alice.ID, domain.PermissionSet{domain.PermissionView}, nil},
		{"viewer reads", viewer.ID, domain.AnyRelationship, nil},
		{"viewer cannot edit", viewer.ID, domain.CanEdit, domain.ErrTodoForbidden},
		{"editor edits", editor.ID, domain.CanEdit, nil},
		{"editor cannot delete", editor.ID, domain.CanDelete, domain.ErrTodoForbidden},
		{"edit does not imply view", editor.ID, domain.PermissionSet{domain.PermissionView}, domain.ErrTodoForbidden},
		{"owner share deletes", coOwner.ID, domain.CanDelete, nil},
		{"pending share reads", pending.ID, domain.AnyRelationship, nil},
		{"stranger", stranger.ID, domain.AnyRelationship, domain.ErrTodoNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _, err := f.access.ResolveAccess(ctx, todo.ID, tc.user, tc.required)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, todo.ID, got.ID)
		})
	}

	_, _, err := f.access.ResolveAccess(ctx, 9999, alice.ID, domain.AnyRelationship)
	assert.ErrorIs(t, err, domain.ErrTodoNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// --- Sharing workflow ---

func TestShareTodo_Preconditions(t *testing.T) {
	f := newFixture(t, events.Discard{})
	ctx := context.Background()
	alice := f.user(t, "Alice", "alice@example.com")
	bob := f.user(t, "Bob", "bob@example.com")
	todo := f.todo(t, alice, "Ship report")

	_, err := f.shares.ShareTodo(ctx, todo.ID, bob.ID, alice.Email, domain.PermissionView)
	assert.ErrorIs(t, err, domain.ErrTodoNotShareable)

	_, err = f.shares.ShareTodo(ctx, todo.ID, alice.ID, "nobody@example.com", domain.PermissionView)
	assert.ErrorIs(t, err, domain.ErrRecipientNotFound)

	_, err = f.shares.ShareTodo(ctx, todo.ID, alice.ID, bob.Email, "admin")
	assert.ErrorIs(t, err, domain.ErrInvalidPermission)

	share, err := f.shares.ShareTodo(ctx, todo.ID, alice.ID, " BOB@example.com ", "")
	require.NoError(t, err)
	assert.Equal(t, domain.PermissionView, share.Permission)
	assert.Nil(t, share.AcceptedAt)
	assert.Equal(t, "Alice", share.SharedBy.Name)
}

func TestShareTodo_SelfShareRejectedForEveryPermission(t *testing.T) {
	f := newFixture(t, events.Discard{})
	alice := f.user(t, "Alice", "alice@example.com")
	todo := f.todo(t, alice, "Ship report")

	for _, p := range []domain.Permission{domain.PermissionView, domain.PermissionEdit, domain.PermissionOwner} {
		_, err := f.shares.ShareTodo(context.Background(), todo.ID, alice.ID, alice.Email, p)
		assert.ErrorIs(t, err, domain.ErrSelfShare, "permission %s", p)
	}
	assert.Zero(t, f.db.shareCount(todo.ID, alice.ID))
}

func TestShareTodo_DuplicateIsConflictWithOneRow(t *testing.T) {
	f := newFixture(t, events.Discard{})
	ctx := context.Background()
	alice := f.user(t, "Alice", "alice@example.com")
	bob := f.user(t, "Bob", "bob@example.com")
	todo := f.todo(t, alice, "Ship report")

	_, err := f.shares.ShareTodo(ctx, todo.ID, alice.ID, bob.Email, domain.PermissionView)
	require.NoError(t, err)
	_, err = f.shares.ShareTodo(ctx, todo.ID, alice.ID, bob.Email, domain.PermissionEdit)
	assert.ErrorIs(t, err, domain.ErrAlreadyShared)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, 1, f.db.shareCount(todo.ID, bob.ID))
}

func TestShareTodo_ConcurrentDuplicatesCreateOneRow(t *testing.T) {
	f := newFixture(t, events.Discard{})
	alice := f.user(t, "Alice", "alice@example.com")
	bob := f.user(t, "Bob", "bob@example.com")
	todo := f.todo(t, alice, "Ship report")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.shares.ShareTodo(context.Background(), todo.ID, alice.ID, bob.Email, domain.PermissionView)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrAlreadyShared)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, f.db.shareCount(todo.ID, bob.ID))
}

func TestShareTodoBatch_PartialSuccess(t *testing.T) {
	f := newFixture(t, events.Discard{})
	ctx := context.Background()
	alice := f.user(t, "Alice", "alice@example.com")
	bob := f.user(t, "Bob", "bob@example.com")
	carol := f.user(t, "Carol", "carol@example.com")
	todo := f.todo(t, alice, "Ship report")
	f.share(t, todo.ID, alice, carol, domain.PermissionView, false)

	result, err := f.shares.ShareTodoBatch(ctx, todo.ID, alice.ID, ShareTodoRequest{
		Emails:     []string{bob.Email, carol.Email, alice.Email, "ghost@example.com"},
		Permission: "edit",
	})
	require.NoError(t, err)
	assert.False(t, result.AllFailed())
	require.Len(t, result.Created, 1)
	assert.Equal(t, bob.ID, result.Created[0].SharedWith.ID)
	assert.Equal(t, []ShareFailure{
		{Email: carol.Email, Message: "this todo is already shared with this user"},
		{Email: alice.Email, Message: "you cannot share a todo with yourself"},
		{Email: "ghost@example.com", Message: "user with this email does not exist"},
	}, result.Failures)
}

func TestShareTodoBatch_AllFailedAndValidation(t *testing.T) {
	f := newFixture(t, events.Discard{})
	ctx := context.Background()
	alice := f.user(t, "Alice", "alice@example.com")
	todo := f.todo(t, alice, "Ship report")

	result, err := f.shares.ShareTodoBatch(ctx, todo.ID, alice.ID, ShareTodoRequest{Email: alice.Email})
	require.NoError(t, err)
	assert.True(t, result.AllFailed())

	_, err = f.shares.ShareTodoBatch(ctx, todo.ID, alice.ID, ShareTodoRequest{Emails: []string{" "}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.shares.ShareTodoBatch(ctx, todo.ID, alice.ID, ShareTodoRequest{Email: "x@example.com", Permission: "admin"})
	assert.ErrorIs(t, err, domain.ErrInvalidPermission)
}

func TestShareTodoBatch_InfrastructureErrorAborts(t *testing.T) {
	f := newFixture(t, events.Discard{})
	alice := f.user(t, "Alice", "alice@example.com")
	todo := f.todo(t, alice, "Ship report")
	boom := errors.New("connection reset")
	f.db.failUsers = boom

	_, err := f.shares.ShareTodoBatch(context.Background(), todo.ID, alice.ID, ShareTodoRequest{
		Emails: []string{"a@example.com", "b@example.com"},
	})
	assert.ErrorIs(t, err, boom)
}

func TestAcceptShare(t *testing.T) {
	pub := &recordingPublisher{}
	f := newFixture(t, pub)
	ctx := context.Background()
	alice := f.user(t, "Alice", "alice@example.com")
	bob := f.user(t, "Bob", "bob@example.com")
	todo := f.todo(t, alice, "Ship report")

	_, err := f.shares.AcceptShare(ctx, todo.ID, bob.ID)
	assert.ErrorIs(t, err, domain.ErrShareNotFound)

	f.share(t, todo.ID, alice, bob, domain.PermissionEdit, false)
	acceptedAt := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	f.shares.now = func() time.Time { return acceptedAt }

	share, err := f.shares.AcceptShare(ctx, todo.ID, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, share.AcceptedAt)

	f.shares.now = func() time.Time { return acceptedAt.Add(time.Hour) }
	_, err = f.shares.AcceptShare(ctx, todo.ID, bob.ID)
	assert.ErrorIs(t, err, domain.ErrShareAlreadyAccepted)

	stored, err := fakeShares{f.db}.Find(ctx, todo.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, stored.AcceptedAt.Equal(acceptedAt))

	require.Len(t, pub.events, 2)
	accepted, ok := pub.events[1].(events.TodoShareAccepted)
	require.True(t, ok)
	assert.Equal(t, bob.ID, accepted.Share.SharedWith.ID)
	assert.Equal(t, alice.ID, accepted.Todo.OwnerID)
}

// --- Notifications through the dispatcher ---

type notificationLog struct {
	mu  sync.Mutex
	all []domain.Notification
}

func (l *notificationLog) Create(_ context.Context, n *domain.Notification) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.all = append(l.all, *n)
	return nil
}

func (l *notificationLog) of(userID uint, typ string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, x := range l.all {
		if x.NotifiableID == userID && x.Type == typ {
			n++
		}
	}
	return n
}

func newDispatchingFixture(t *testing.T) (*fixture, *notificationLog) {
	t.Helper()
	log := &notificationLog{}
	d := notify.NewDispatcher(log, zerolog.Nop(), nil)
	return newFixture(t, events.NewBus(zerolog.Nop(), d.Routes()...)), log
}

func TestUpdateTodo_NotificationRecipients(t *testing.T) {
	f, notes := newDispatchingFixture(t)
	ctx := context.Background()
	alice := f.user(t, "Alice", "alice@example.com")
	bob := f.user(t, "Bob", "bob@example.com")
	carol := f.user(t, "Carol", "carol@example.com")
	pending := f.user(t, "Pat", "pat@example.com")

	todo := f.todo(t, alice, "Ship report")
	f.share(t, todo.ID, alice, bob, domain.PermissionEdit, true)
	f.share(t, todo.ID, alice, carol, domain.PermissionView, true)
	f.share(t, todo.ID, alice, pending, domain.PermissionEdit, false)

	title := "Ship the report"
	_, err := f.todos.UpdateTodo(ctx, todo.ID, alice.ID, UpdateTodoRequest{Title: &title})
	require.NoError(t, err)
	assert.Zero(t, notes.of(alice.ID, domain.NotificationTodoUpdated))
	assert.Equal(t, 1, notes.of(bob.ID, domain.NotificationTodoUpdated))
	assert.Equal(t, 1, notes.of(carol.ID, domain.NotificationTodoUpdated))
	assert.Zero(t, notes.of(pending.ID, domain.NotificationTodoUpdated))

	desc := "with charts"
	_, err = f.todos.UpdateTodo(ctx, todo.ID, bob.ID, UpdateTodoRequest{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, 1, notes.of(alice.ID, domain.NotificationTodoUpdated))
	assert.Equal(t, 1, notes.of(bob.ID, domain.NotificationTodoUpdated))
	assert.Equal(t, 2, notes.of(carol.ID, domain.NotificationTodoUpdated))
	assert.Zero(t, notes.of(pending.ID, domain.NotificationTodoUpdated))

	_, err = f.todos.UpdateTodo(ctx, todo.ID, carol.ID, UpdateTodoRequest{Description: &desc})
	assert.ErrorIs(t, err, domain.ErrTodoForbidden)
}

func TestDeleteTodo_NotifiesPendingAndAccepted(t *testing.T) {
	f, notes := newDispatchingFixture(t)
	ctx := context.Background()
	alice := f.user(t, "Alice", "alice@example.com")
	bob := f.user(t, "Bob", "bob@example.com")
	pending := f.user(t, "Pat", "pat@example.com")
	todo := f.todo(t, alice, "Ship report")
	f.share(t, todo.ID, alice, bob, domain.PermissionEdit, true)
	f.share(t, todo.ID, alice, pending, domain.PermissionView, false)

	assert.ErrorIs(t, f.todos.DeleteTodo(ctx, todo.ID, bob.ID), domain.ErrTodoForbidden)

	require.NoError(t, f.todos.DeleteTodo(ctx, todo.ID, alice.ID))
	assert.Equal(t, 1, notes.of(bob.ID, domain.NotificationTodoDeleted))
	assert.Equal(t, 1, notes.of(pending.ID, domain.NotificationTodoDeleted))
	assert.Zero(t, notes.of(alice.ID, domain.NotificationTodoDeleted))

	_, err := f.todos.GetTodo(ctx, todo.ID, bob.ID)
	assert.ErrorIs(t, err, domain.ErrTodoNotFound)
}

func TestShipReportScenario(t *testing.T) {
	f, notes := newDispatchingFixture(t)
	ctx := context.Background()
	a := f.user(t, "Alice", "alice@example.com")
	b := f.user(t, "Bob", "bob@example.com")

	todo := f.todo(t, a, "Ship report")
	assert.Equal(t, domain.StatusOpen, todo.Status)

	_, err := f.shares.ShareTodo(ctx, todo.ID, a.ID, b.Email, domain.PermissionEdit)
	require.NoError(t, err)
	assert.Equal(t, 1, notes.of(b.ID, domain.NotificationTodoShared))

	seen, err := f.todos.GetTodo(ctx, todo.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, seen.IsShared)
	assert.False(t, seen.Accepted)
	assert.Equal(t, domain.PermissionEdit, seen.Permission)

	_, err = f.shares.AcceptShare(ctx, todo.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, notes.of(a.ID, domain.NotificationTodoShareAccepted))

	title := "Ship final report"
	_, err = f.todos.UpdateTodo(ctx, todo.ID, b.ID, UpdateTodoRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, 1, notes.of(a.ID, domain.NotificationTodoUpdated))
	assert.Zero(t, notes.of(b.ID, domain.NotificationTodoUpdated))

	require.NoError(t, f.todos.DeleteTodo(ctx, todo.ID, a.ID))
	require.Equal(t, 1, notes.of(b.ID, domain.NotificationTodoDeleted))
	for _, n := range notes.all {
		if n.Type == domain.NotificationTodoDeleted {
			assert.Contains(t, string(n.Data), `"deleted_by":"Alice"`)
		}
	}
}
