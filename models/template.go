// models/template.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalSubmitted ApprovalStatus = "submitted"
	ApprovalReceived  ApprovalStatus = "received"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalRejected  ApprovalStatus = "rejected"
	ApprovalPaused    ApprovalStatus = "paused"
	ApprovalDisabled  ApprovalStatus = "disabled"
)

// MayChange reports whether the provider can still move the template to
// another approval status.
func (s ApprovalStatus) MayChange() bool {
	switch s {
	case ApprovalPending, ApprovalSubmitted, ApprovalReceived:
		return true
	}
	return false
}

func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalSubmitted, ApprovalReceived, ApprovalApproved,
		ApprovalRejected, ApprovalPaused, ApprovalDisabled:
		return true
	}
	return false
}

type Template struct {
	ID  uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Sid string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"sid"`

	WeddingID    *uuid.UUID `gorm:"type:uuid;index" json:"weddingId,omitempty"`
	FriendlyName string     `gorm:"not null" json:"friendlyName"`
	Language     string     `gorm:"type:varchar(10)" json:"language"`
	// Variables maps the provider's positional keys ("1", "2") to the
	// placeholder text rendered for each recipient.
	Variables      map[string]string `gorm:"serializer:json" json:"variables"`
	Body           string            `gorm:"type:text;not null" json:"body"`
	MediaURL       string            `json:"mediaUrl,omitempty"`
	Category       string            `gorm:"type:varchar(30)" json:"category"`
	ApprovalStatus ApprovalStatus    `gorm:"type:varchar(20);index;not null;default:'pending'" json:"approvalStatus"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (t *Template) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.ApprovalStatus == "" {
		t.ApprovalStatus = ApprovalPending
	}
	return
}
