package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tomlord1122/todo-share/internal/domain"
	"github.com/Tomlord1122/todo-share/internal/events"
	"github.com/Tomlord1122/todo-share/internal/repository"
)

// CreateTodoRequest holds the data needed to create a new todo.
// DueAt accepts a date (2006-01-02) or an RFC 3339 timestamp.
type CreateTodoRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description string  `json:"description"`
	DueAt       *string `json:"due_at"`
	Status      string  `json:"status" validate:"omitempty,oneof=open completed"`
}

// UpdateTodoRequest holds the data for updating an existing todo.
// Pointers distinguish an omitted field from its zero value; an empty
// due_at clears the due date.
type UpdateTodoRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=255"`
	Description *string `json:"description"`
	DueAt       *string `json:"due_at"`
	Status      *string `json:"status" validate:"omitempty,oneof=open completed"`
}

type ListTodosRequest struct {
	Status string
	Search string
	PageRequest
}

// --- Service Interface ---

// TodoService holds the todo lifecycle rules. Every operation is evaluated
// against the acting user through the AccessResolver.
type TodoService interface {
	CreateTodo(ctx context.Context, userID uint, req CreateTodoRequest) (*TodoResponse, error)
	GetTodo(ctx context.Context, id, userID uint) (*TodoResponse, error)
	// ListTodos returns todos owned by or shared with the user, newest first.
	ListTodos(ctx context.Context, userID uint, req ListTodosRequest) (*TodoPage, error)
	// UpdateTodo requires ownership or an edit/owner share.
	UpdateTodo(ctx context.Context, id, userID uint, req UpdateTodoRequest) (*TodoResponse, error)
	CompleteTodo(ctx context.Context, id, userID uint) (*TodoResponse, error)
	ReopenTodo(ctx context.Context, id, userID uint) (*TodoResponse, error)
	// DeleteTodo requires ownership or an owner share.
	DeleteTodo(ctx context.Context, id, userID uint) error
}

// --- Service Implementation ---

type todoService struct {
	todos     repository.TodoRepository
	shares    repository.ShareRepository
	users     repository.UserRepository
	access    AccessResolver
	publisher events.Publisher
	log       zerolog.Logger
	now       func() time.Time
}

func NewTodoService(
	todos repository.TodoRepository,
	shares repository.ShareRepository,
	users repository.UserRepository,
	access AccessResolver,
	publisher events.Publisher,
	log zerolog.Logger,
) TodoService {
	return &todoService{
		todos:     todos,
		shares:    shares,
		users:     users,
		access:    access,
		publisher: publisher,
		log:       log.With().Str("component", "todo_service").Logger(),
		now:       time.Now,
	}
}

func (s *todoService) CreateTodo(ctx context.Context, userID uint, req CreateTodoRequest) (*TodoResponse, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	todo := &domain.Todo{
		OwnerID:     userID,
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.StatusOpen,
	}
	if req.DueAt != nil && *req.DueAt != "" {
		due, err := parseDueAt(*req.DueAt)
		if err != nil {
			return nil, err
		}
		if due.Before(startOfDay(s.now())) {
			return nil, fieldError("due_at", "the due at must be a date after or equal to today")
		}
		todo.DueAt = &due
	}
	if req.Status != "" {
		todo.ApplyStatus(domain.TodoStatus(req.Status), s.now())
	}

	if err := s.todos.Create(ctx, todo); err != nil {
		return nil, err
	}
	s.log.Info().Uint("todo_id", todo.ID).Uint("user_id", userID).Msg("todo created")

	resp := newTodoResponse(todo, nil)
	return &resp, nil
}

func (s *todoService) GetTodo(ctx context.Context, id, userID uint) (*TodoResponse, error) {
	todo, share, err := s.access.ResolveAccess(ctx, id, userID, domain.AnyRelationship)
	if err != nil {
		return nil, err
	}
	resp := newTodoResponse(todo, share)
	return &resp, nil
}

func (s *todoService) ListTodos(ctx context.Context, userID uint, req ListTodosRequest) (*TodoPage, error) {
	page := req.PageRequest.normalize()
	filter := repository.TodoFilter{
		Search: strings.TrimSpace(req.Search),
		Limit:  page.PerPage,
		Offset: page.offset(),
	}
	if req.Status != "" {
		status := domain.TodoStatus(req.Status)
		if !status.Valid() {
			return nil, fieldError("status", "the status must be one of: open, completed")
		}
		filter.Status = &status
	}

	todos, total, err := s.todos.ListAccessible(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	items := make([]TodoResponse, 0, len(todos))
	for i := range todos {
		var share *domain.TodoShare
		if todos[i].OwnerID != userID && len(todos[i].Shares) > 0 {
			share = &todos[i].Shares[0]
		}
		items = append(items, newTodoResponse(&todos[i], share))
	}
	return &TodoPage{Items: items, Pagination: newPagination(page, total)}, nil
}

func (s *todoService) UpdateTodo(ctx context.Context, id, userID uint, req UpdateTodoRequest) (*TodoResponse, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	todo, share, err := s.access.ResolveAccess(ctx, id, userID, domain.CanEdit)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, fieldError("title", "the title field is required")
		}
		todo.Title = title
	}
	if req.Description != nil {
		todo.Description = *req.Description
	}
	if req.DueAt != nil {
		if *req.DueAt == "" {
			todo.DueAt = nil
		} else {
			due, err := parseDueAt(*req.DueAt)
			if err != nil {
				return nil, err
			}
			todo.DueAt = &due
		}
	}
	if req.Status != nil {
		todo.ApplyStatus(domain.TodoStatus(*req.Status), s.now())
	}

	// Recipients are captured before the write: only shares accepted at
	// mutation time hear about it.
	recipients, err := s.shares.RecipientIDs(ctx, todo.ID, true)
	if err != nil {
		return nil, err
	}
	actor, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.todos.Update(ctx, todo); err != nil {
		return nil, err
	}
	s.log.Info().Uint("todo_id", todo.ID).Uint("user_id", userID).Msg("todo updated")

	publish(ctx, s.publisher, s.log, events.TodoUpdated{
		Todo:          events.NewTodoRef(todo),
		UpdatedBy:     events.NewUserRef(actor),
		SharedUserIDs: recipients,
	})

	resp := newTodoResponse(todo, share)
	return &resp, nil
}

func (s *todoService) CompleteTodo(ctx context.Context, id, userID uint) (*TodoResponse, error) {
	status := string(domain.StatusCompleted)
	return s.UpdateTodo(ctx, id, userID, UpdateTodoRequest{Status: &status})
}

func (s *todoService) ReopenTodo(ctx context.Context, id, userID uint) (*TodoResponse, error) {
	status := string(domain.StatusOpen)
	return s.UpdateTodo(ctx, id, userID, UpdateTodoRequest{Status: &status})
}

func (s *todoService) DeleteTodo(ctx context.Context, id, userID uint) error {
	todo, _, err := s.access.ResolveAccess(ctx, id, userID, domain.CanDelete)
	if err != nil {
		return err
	}

	// Everyone the todo was shared with hears about the deletion, pending or not.
	recipients, err := s.shares.RecipientIDs(ctx, todo.ID, false)
	if err != nil {
		return err
	}
	actor, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.todos.Delete(ctx, todo.ID); err != nil {
		return err
	}
	s.log.Info().Uint("todo_id", todo.ID).Uint("user_id", userID).Msg("todo deleted")

	publish(ctx, s.publisher, s.log, events.TodoDeleted{
		Todo:          events.NewTodoRef(todo),
		DeletedBy:     events.NewUserRef(actor),
		SharedUserIDs: recipients,
	})
	return nil
}

// publish never fails the originating request; delivery problems are logged.
func publish(ctx context.Context, p events.Publisher, log zerolog.Logger, ev events.Event) {
	if err := p.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("kind", string(ev.Kind())).Uint("todo_id", ev.TodoID()).Msg("event delivery failed")
	}
}

func parseDueAt(value string) (time.Time, error) {
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fieldError("due_at", fmt.Sprintf("the due at %q is not a valid date", value))
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
