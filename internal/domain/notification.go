package domain

import (
	"time"

	"gorm.io/datatypes"
)

// NotifiableUser is the only notifiable subject type in use.
const NotifiableUser = "user"

const (
	NotificationTodoShared        = "todo_shared"
	NotificationTodoShareAccepted = "todo_share_accepted"
	NotificationTodoUpdated       = "todo_updated"
	NotificationTodoDeleted       = "todo_deleted"
)

type Notification struct {
	ID             string         `gorm:"type:uuid;primaryKey"`
	Type           string         `gorm:"type:varchar(64);not null"`
	NotifiableType string         `gorm:"type:varchar(32);not null;index:idx_notifications_notifiable,priority:1"`
	NotifiableID   uint           `gorm:"not null;index:idx_notifications_notifiable,priority:2"`
	Data           datatypes.JSON `gorm:"type:jsonb"`
	ReadAt         *time.Time     `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (n Notification) Read() bool {
	return n.ReadAt != nil
}
