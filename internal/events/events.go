// Package events defines the todo lifecycle events and the bus that routes
// them to explicitly registered handlers.
package events

import (
	"encoding/json"
	"time"

	"github.com/Tomlord1122/todo-share/internal/domain"
)

type Kind string

const (
	KindTodoShared        Kind = "todo.shared"
	KindTodoShareAccepted Kind = "todo.share_accepted"
	KindTodoUpdated       Kind = "todo.updated"
	KindTodoDeleted       Kind = "todo.deleted"
)

// Event is a self-contained snapshot. Handlers must not need to load the
// todo again, which may already be gone by the time they run.
type Event interface {
	Kind() Kind
	// TodoID keys the event so every event of one todo lands on one partition.
	TodoID() uint
}

type TodoRef struct {
	ID      uint   `json:"id"`
	Title   string `json:"title"`
	OwnerID uint   `json:"owner_id"`
}

type UserRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type ShareRef struct {
	ID         uint              `json:"id"`
	SharedWith UserRef           `json:"shared_with"`
	SharedBy   UserRef           `json:"shared_by"`
	Permission domain.Permission `json:"permission"`
}

func NewTodoRef(t *domain.Todo) TodoRef {
	return TodoRef{ID: t.ID, Title: t.Title, OwnerID: t.OwnerID}
}

func NewUserRef(u *domain.User) UserRef {
	return UserRef{ID: u.ID, Name: u.Name}
}

// NewShareRef expects SharedWith and SharedBy to be loaded.
func NewShareRef(s *domain.TodoShare) ShareRef {
	return ShareRef{
		ID:         s.ID,
		SharedWith: NewUserRef(&s.SharedWith),
		SharedBy:   NewUserRef(&s.SharedBy),
		Permission: s.Permission,
	}
}

type TodoShared struct {
	Todo  TodoRef  `json:"todo"`
	Share ShareRef `json:"share"`
}

func (TodoShared) Kind() Kind { return KindTodoShared }
func (e TodoShared) TodoID() uint { return e.Todo.ID }

type TodoShareAccepted struct {
	Todo  TodoRef  `json:"todo"`
	Share ShareRef `json:"share"`
}

func (TodoShareAccepted) Kind() Kind { return KindTodoShareAccepted }
func (e TodoShareAccepted) TodoID() uint { return e.Todo.ID }

// TodoUpdated carries the recipients whose share was accepted before the update.
type TodoUpdated struct {
	Todo          TodoRef `json:"todo"`
	UpdatedBy     UserRef `json:"updated_by"`
	SharedUserIDs []uint  `json:"shared_user_ids"`
}

func (TodoUpdated) Kind() Kind { return KindTodoUpdated }
func (e TodoUpdated) TodoID() uint { return e.Todo.ID }

// TodoDeleted carries every recipient of the todo, pending ones included.
type TodoDeleted struct {
	Todo          TodoRef `json:"todo"`
	DeletedBy     UserRef `json:"deleted_by"`
	SharedUserIDs []uint  `json:"shared_user_ids"`
}

func (TodoDeleted) Kind() Kind { return KindTodoDeleted }
func (e TodoDeleted) TodoID() uint { return e.Todo.ID }

// Envelope is the wire form of an event on the message broker.
type Envelope struct {
	Kind       Kind            `json:"kind"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}
