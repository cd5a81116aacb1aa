package service

import (
	"context"
	"errors"

	"github.com/Tomlord1122/todo-share/internal/domain"
	"github.com/Tomlord1122/todo-share/internal/repository"
)

// AccessResolver decides whether a user may act on a todo.
type AccessResolver interface {
	// ResolveAccess returns the todo and, unless userID owns it, the share
	// that granted access. An empty required set accepts any share, pending
	// ones included. Otherwise the share's permission must be listed in
	// required; no permission implies another.
	//
	// A missing todo and a todo the user has no relationship with both yield
	// domain.ErrTodoNotFound. A share with an unlisted permission yields
	// domain.ErrTodoForbidden.
	ResolveAccess(ctx context.Context, todoID, userID uint, required domain.PermissionSet) (*domain.Todo, *domain.TodoShare, error)
}

type accessResolver struct {
	todos  repository.TodoRepository
	shares repository.ShareRepository
}

func NewAccessResolver(todos repository.TodoRepository, shares repository.ShareRepository) AccessResolver {
	return &accessResolver{todos: todos, shares: shares}
}

func (r *accessResolver) ResolveAccess(ctx context.Context, todoID, userID uint, required domain.PermissionSet) (*domain.Todo, *domain.TodoShare, error) {
	todo, err := r.todos.FindByID(ctx, todoID)
	if err != nil {
		return nil, nil, err
	}
	if todo.OwnerID == userID {
		return todo, nil, nil
	}

	share, err := r.shares.Find(ctx, todoID, userID)
	if errors.Is(err, domain.ErrShareNotFound) {
		return nil, nil, domain.ErrTodoNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if !required.Allows(share.Permission) {
		return nil, nil, domain.ErrTodoForbidden
	}
	return todo, share, nil
}
