package domain

import (
	"time"

	"gorm.io/gorm"
)

type BlogStatus string

const (
	BlogDraft     BlogStatus = "draft"
	BlogPublished BlogStatus = "published"
	BlogArchived  BlogStatus = "archived"
)

func (s BlogStatus) Valid() bool {
	switch s {
	case BlogDraft, BlogPublished, BlogArchived:
		return true
	}
	return false
}

type Blog struct {
	gorm.Model
	AuthorID    uint       `gorm:"not null;index"`
	Author      User       `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	Title       string     `gorm:"size:255;not null"`
	Slug        string     `gorm:"size:255;not null;uniqueIndex"`
	Excerpt     string     `gorm:"type:text"`
	Content     string     `gorm:"type:text"`
	Status      BlogStatus `gorm:"type:varchar(16);not null;default:draft;index"`
	PublishedAt *time.Time `gorm:"index"`
	ViewsCount  int64      `gorm:"not null;default:0"`
}

// IsPublished reports whether the post is publicly visible at now.
func (b Blog) IsPublished(now time.Time) bool {
	return b.Status == BlogPublished && b.PublishedAt != nil && !b.PublishedAt.After(now)
}
