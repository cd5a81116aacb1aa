package domain

import (
	"time"

	"gorm.io/gorm"
)

type TodoStatus string

const (
	StatusOpen      TodoStatus = "open"
	StatusCompleted TodoStatus = "completed"
)

func (s TodoStatus) Valid() bool {
	return s == StatusOpen || s == StatusCompleted
}

// MaxTitleLength applies to todo and blog titles alike.
const MaxTitleLength = 255

type Todo struct {
	gorm.Model
	OwnerID     uint       `gorm:"not null;index:idx_todos_owner_status,priority:1"`
	Owner       User       `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
	Title       string     `gorm:"size:255;not null"`
	Description string     `gorm:"type:text"`
	DueAt       *time.Time
	Status      TodoStatus `gorm:"type:varchar(16);not null;default:open;index:idx_todos_owner_status,priority:2"`
	CompletedAt *time.Time

	Shares []TodoShare `gorm:"foreignKey:TodoID;constraint:OnDelete:CASCADE"`
}

// ApplyStatus moves the todo to status and keeps CompletedAt consistent with it.
func (t *Todo) ApplyStatus(status TodoStatus, now time.Time) {
	switch {
	case status == StatusCompleted && t.Status != StatusCompleted:
		t.CompletedAt = &now
	case status == StatusOpen && t.Status == StatusCompleted:
		t.CompletedAt = nil
	}
	t.Status = status
}
