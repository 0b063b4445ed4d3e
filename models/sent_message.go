// models/sent_message.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Provider message statuses. A message that failed before the provider
// accepted it is stored as MessageFailed with an empty Sid.
const (
	MessageQueued      = "queued"
	MessageAccepted    = "accepted"
	MessageScheduled   = "scheduled"
	MessageSending     = "sending"
	MessageSent        = "sent"
	MessageDelivered   = "delivered"
	MessageRead        = "read"
	MessageUndelivered = "undelivered"
	MessageFailed      = "failed"
	MessageCanceled    = "canceled"
)

// MessageStatusIsFinal reports whether a provider message status can no
// longer change.
func MessageStatusIsFinal(status string) bool {
	switch status {
	case MessageDelivered, MessageRead, MessageUndelivered, MessageFailed, MessageCanceled:
		return true
	}
	return false
}

type SentMessage struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Sid          string    `gorm:"type:varchar(64);index" json:"sid"`
	AutomationID uuid.UUID `gorm:"type:uuid;index;not null" json:"automationId"`
	GuestID      uuid.UUID `gorm:"type:uuid;index;not null" json:"guestId"`

	To               string            `gorm:"type:varchar(40)" json:"to"`
	From             string            `gorm:"type:varchar(40)" json:"from"`
	ContentVariables map[string]string `gorm:"serializer:json" json:"contentVariables"`
	RenderedBody     string            `gorm:"type:text" json:"renderedBody"`
	Status           string            `gorm:"type:varchar(20);index" json:"status"`
	ErrorCode        *int              `json:"errorCode,omitempty"`
	ErrorMessage     *string           `gorm:"type:text" json:"errorMessage,omitempty"`

	DateCreated time.Time `json:"dateCreated"`
	DateUpdated time.Time `json:"dateUpdated"`
}

func (m *SentMessage) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}

// Succeeded reports whether the provider accepted the message.
func (m *SentMessage) Succeeded() bool {
	return m.ErrorMessage == nil && m.Status != MessageFailed
}
