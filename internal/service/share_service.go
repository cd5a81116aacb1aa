package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tomlord1122/todo-share/internal/domain"
	"github.com/Tomlord1122/todo-share/internal/events"
	"github.com/Tomlord1122/todo-share/internal/repository"
)

// ShareTodoRequest accepts a single email, a list, or both.
type ShareTodoRequest struct {
	Email      string   `json:"email"`
	Emails     []string `json:"emails" validate:"max=50"`
	Permission string   `json:"permission"`
}

type ShareFailure struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

type ShareBatchResult struct {
	Created  []ShareResponse `json:"created"`
	Failures []ShareFailure  `json:"errors"`
}

// AllFailed reports whether not a single share was created.
func (r *ShareBatchResult) AllFailed() bool {
	return len(r.Created) == 0 && len(r.Failures) > 0
}

type ShareService interface {
	// ShareTodo creates a pending share. Only the todo's owner may share it.
	ShareTodo(ctx context.Context, todoID, callerID uint, email string, permission domain.Permission) (*ShareResponse, error)
	// ShareTodoBatch evaluates every email on its own. Rule violations are
	// collected per email; any other error aborts the batch.
	ShareTodoBatch(ctx context.Context, todoID, callerID uint, req ShareTodoRequest) (*ShareBatchResult, error)
	// AcceptShare moves the caller's share from pending to accepted, once.
	AcceptShare(ctx context.Context, todoID, recipientID uint) (*ShareResponse, error)
}

type shareService struct {
	todos     repository.TodoRepository
	shares    repository.ShareRepository
	users     repository.UserRepository
	publisher events.Publisher
	log       zerolog.Logger
	now       func() time.Time
}

func NewShareService(
	todos repository.TodoRepository,
	shares repository.ShareRepository,
	users repository.UserRepository,
	publisher events.Publisher,
	log zerolog.Logger,
) ShareService {
	return &shareService{
		todos:     todos,
		shares:    shares,
		users:     users,
		publisher: publisher,
		log:       log.With().Str("component", "share_service").Logger(),
		now:       time.Now,
	}
}

func (s *shareService) ShareTodo(ctx context.Context, todoID, callerID uint, email string, permission domain.Permission) (*ShareResponse, error) {
	if permission == "" {
		permission = domain.PermissionView
	}
	if !permission.Valid() {
		return nil, domain.ErrInvalidPermission
	}

	todo, err := s.todos.FindByIDAndOwner(ctx, todoID, callerID)
	if errors.Is(err, domain.ErrTodoNotFound) {
		return nil, domain.ErrTodoNotShareable
	}
	if err != nil {
		return nil, err
	}

	recipient, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrRecipientNotFound
	}
	if err != nil {
		return nil, err
	}
	if recipient.ID == callerID {
		return nil, domain.ErrSelfShare
	}

	_, err = s.shares.Find(ctx, todo.ID, recipient.ID)
	switch {
	case err == nil:
		return nil, domain.ErrAlreadyShared
	case !errors.Is(err, domain.ErrShareNotFound):
		return nil, err
	}

	// A concurrent insert of the same pair surfaces here as ErrAlreadyShared.
	share := &domain.TodoShare{
		TodoID:           todo.ID,
		SharedWithUserID: recipient.ID,
		SharedByUserID:   callerID,
		Permission:       permission,
	}
	if err := s.shares.Create(ctx, share); err != nil {
		return nil, err
	}
	s.log.Info().
		Uint("todo_id", todo.ID).
		Uint("shared_by", callerID).
		Uint("shared_with", recipient.ID).
		Str("permission", string(permission)).
		Msg("todo shared")

	publish(ctx, s.publisher, s.log, events.TodoShared{
		Todo:  events.NewTodoRef(todo),
		Share: events.NewShareRef(share),
	})

	resp := newShareResponse(share)
	return &resp, nil
}

func (s *shareService) ShareTodoBatch(ctx context.Context, todoID, callerID uint, req ShareTodoRequest) (*ShareBatchResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	permission := domain.Permission(req.Permission)
	if permission != "" && !permission.Valid() {
		return nil, domain.ErrInvalidPermission
	}

	emails := make([]string, 0, len(req.Emails)+1)
	for _, e := range append([]string{req.Email}, req.Emails...) {
		if e = strings.TrimSpace(e); e != "" {
			emails = append(emails, e)
		}
	}
	if len(emails) == 0 {
		return nil, fieldError("email", "the email field is required")
	}

	result := &ShareBatchResult{Created: []ShareResponse{}, Failures: []ShareFailure{}}
	for _, email := range emails {
		share, err := s.ShareTodo(ctx, todoID, callerID, email, permission)
		if err != nil {
			if !domain.IsRuleViolation(err) {
				return nil, err
			}
			result.Failures = append(result.Failures, ShareFailure{Email: email, Message: domain.Message(err)})
			continue
		}
		result.Created = append(result.Created, *share)
	}
	return result, nil
}

func (s *shareService) AcceptShare(ctx context.Context, todoID, recipientID uint) (*ShareResponse, error) {
	share, err := s.shares.Find(ctx, todoID, recipientID)
	if err != nil {
		return nil, err
	}
	if share.Accepted() {
		return nil, domain.ErrShareAlreadyAccepted
	}

	todo, err := s.todos.FindByID(ctx, todoID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.shares.MarkAccepted(ctx, share.ID, now); err != nil {
		return nil, err
	}
	share.AcceptedAt = &now
	s.log.Info().Uint("todo_id", todoID).Uint("user_id", recipientID).Msg("share accepted")

	publish(ctx, s.publisher, s.log, events.TodoShareAccepted{
		Todo:  events.NewTodoRef(todo),
		Share: events.NewShareRef(share),
	})

	resp := newShareResponse(share)
	return &resp, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
