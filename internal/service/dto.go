package service

import (
	"encoding/json"
	"time"

	"github.com/Tomlord1122/todo-share/internal/domain"
)

const (
	DefaultPerPage = 15
	MaxPerPage     = 100
)

// PageRequest is 1-based. Zero values fall back to the defaults.
type PageRequest struct {
	Page    int
	PerPage int
}

func (p PageRequest) normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	return p
}

func (p PageRequest) offset() int {
	return (p.Page - 1) * p.PerPage
}

type Pagination struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
}

func newPagination(p PageRequest, total int64) Pagination {
	last := int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	if last < 1 {
		last = 1
	}
	return Pagination{CurrentPage: p.Page, PerPage: p.PerPage, Total: total, LastPage: last}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

type UserResponse struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func newUserResponse(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email}
}

// TodoResponse is a todo as seen by one user. Permission is "owner" for the
// owner and the share's permission otherwise.
type TodoResponse struct {
	ID          uint              `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	DueAt       *string           `json:"due_at"`
	Status      domain.TodoStatus `json:"status"`
	CompletedAt *string           `json:"completed_at"`
	Owner       UserResponse      `json:"owner"`
	IsShared    bool              `json:"is_shared"`
	Permission  domain.Permission `json:"permission"`
	Accepted    bool              `json:"accepted"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

// newTodoResponse expects Owner loaded. share is the viewer's share, nil for the owner.
func newTodoResponse(t *domain.Todo, share *domain.TodoShare) TodoResponse {
	resp := TodoResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		DueAt:       formatTimePtr(t.DueAt),
		Status:      t.Status,
		CompletedAt: formatTimePtr(t.CompletedAt),
		Owner:       newUserResponse(&t.Owner),
		Permission:  domain.PermissionOwner,
		Accepted:    true,
		CreatedAt:   formatTime(t.CreatedAt),
		UpdatedAt:   formatTime(t.UpdatedAt),
	}
	if share != nil {
		resp.IsShared = true
		resp.Permission = share.Permission
		resp.Accepted = share.Accepted()
	}
	return resp
}

type TodoPage struct {
	Items      []TodoResponse `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

type ShareResponse struct {
	ID         uint              `json:"id"`
	TodoID     uint              `json:"todo_id"`
	SharedWith UserResponse      `json:"shared_with"`
	SharedBy   UserResponse      `json:"shared_by"`
	Permission domain.Permission `json:"permission"`
	AcceptedAt *string           `json:"accepted_at"`
	CreatedAt  string            `json:"created_at"`
}

func newShareResponse(s *domain.TodoShare) ShareResponse {
	return ShareResponse{
		ID:         s.ID,
		TodoID:     s.TodoID,
		SharedWith: newUserResponse(&s.SharedWith),
		SharedBy:   newUserResponse(&s.SharedBy),
		Permission: s.Permission,
		AcceptedAt: formatTimePtr(s.AcceptedAt),
		CreatedAt:  formatTime(s.CreatedAt),
	}
}

type NotificationResponse struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	ReadAt    *string         `json:"read_at"`
	CreatedAt string          `json:"created_at"`
}

func newNotificationResponse(n *domain.Notification) NotificationResponse {
	data := json.RawMessage(n.Data)
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Data:      data,
		ReadAt:    formatTimePtr(n.ReadAt),
		CreatedAt: formatTime(n.CreatedAt),
	}
}

type NotificationPage struct {
	Items       []NotificationResponse `json:"items"`
	Pagination  Pagination             `json:"pagination"`
	UnreadCount int64                  `json:"unread_count"`
}

type BlogResponse struct {
	ID          uint              `json:"id"`
	Title       string            `json:"title"`
	Slug        string            `json:"slug"`
	Excerpt     string            `json:"excerpt"`
	Content     string            `json:"content"`
	Status      domain.BlogStatus `json:"status"`
	PublishedAt *string           `json:"published_at"`
	ViewsCount  int64             `json:"views_count"`
	Author      UserResponse      `json:"author"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

func newBlogResponse(b *domain.Blog) BlogResponse {
	return BlogResponse{
		ID:          b.ID,
		Title:       b.Title,
		Slug:        b.Slug,
		Excerpt:     b.Excerpt,
		Content:     b.Content,
		Status:      b.Status,
		PublishedAt: formatTimePtr(b.PublishedAt),
		ViewsCount:  b.ViewsCount,
		Author:      UserResponse{ID: b.Author.ID, Name: b.Author.Name},
		CreatedAt:   formatTime(b.CreatedAt),
		UpdatedAt:   formatTime(b.UpdatedAt),
	}
}

type BlogPage struct {
	Items      []BlogResponse `json:"items"`
	Pagination Pagination     `json:"pagination"`
}
