package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StudentStatus string

const (
	StatusActive    StudentStatus = "Active"
	StatusCompleted StudentStatus = "Completed"
	StatusPending   StudentStatus = "Pending"
)

// ImageRef points at an avatar held by the attachment store. StorageID is
// what the store deletes by, URL is what clients fetch.
type ImageRef struct {
	StorageID string `gorm:"size:255" json:"storageId"`
	URL       string `gorm:"type:text" json:"url"`
}

func (r ImageRef) IsZero() bool {
	return r.StorageID == "" && r.URL == ""
}

type Student struct {
	ID              string        `gorm:"primaryKey;size:36" json:"id"`
	Name            string        `gorm:"size:255;not null" json:"name"`
	School          string        `gorm:"size:255;not null;index" json:"school"`
	Hub             string        `gorm:"size:255;not null;index" json:"hub"`
	CurrentActivity string        `gorm:"size:255" json:"currentActivity"`
	Age             *int          `json:"age,omitempty"`
	Gender          string        `gorm:"size:50" json:"gender"`
	Status          StudentStatus `gorm:"size:20;not null;default:Active;index" json:"status"`
	Email           *string       `gorm:"size:255;uniqueIndex" json:"email,omitempty"`
	Image           ImageRef      `gorm:"embedded;embeddedPrefix:image_" json:"imageRef"`
	JoinedAt        time.Time     `gorm:"not null" json:"joinedAt"`
	CreatedAt       time.Time     `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time     `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (s *Student) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
