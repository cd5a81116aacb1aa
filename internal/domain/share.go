package domain

import (
	"slices"
	"time"
)

type Permission string

const (
	PermissionView  Permission = "view"
	PermissionEdit  Permission = "edit"
	PermissionOwner Permission = "owner"
)

func (p Permission) Valid() bool {
	switch p {
	case PermissionView, PermissionEdit, PermissionOwner:
		return true
	}
	return false
}

// PermissionSet is the set of share permissions an operation accepts.
// Permissions do not imply each other: edit does not satisfy {owner}.
type PermissionSet []Permission

func (s PermissionSet) Allows(p Permission) bool {
	if len(s) == 0 {
		return true
	}
	return slices.Contains(s, p)
}

var (
	AnyRelationship = PermissionSet{}
	CanEdit         = PermissionSet{PermissionEdit, PermissionOwner}
	CanDelete       = PermissionSet{PermissionOwner}
)

// TodoShare grants one recipient access to one todo. A nil AcceptedAt is a
// pending invitation.
type TodoShare struct {
	ID               uint       `gorm:"primaryKey"`
	TodoID           uint       `gorm:"not null;uniqueIndex:idx_todo_shares_todo_recipient,priority:1"`
	SharedWithUserID uint       `gorm:"not null;uniqueIndex:idx_todo_shares_todo_recipient,priority:2;index"`
	SharedWith       User       `gorm:"foreignKey:SharedWithUserID;constraint:OnDelete:CASCADE"`
	SharedByUserID   uint       `gorm:"not null;index"`
	SharedBy         User       `gorm:"foreignKey:SharedByUserID;constraint:OnDelete:CASCADE"`
	Permission       Permission `gorm:"type:varchar(16);not null;default:view"`
	AcceptedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (s TodoShare) Accepted() bool {
	return s.AcceptedAt != nil
}
