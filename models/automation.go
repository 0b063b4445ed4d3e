// models/automation.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AutomationStatus string

const (
	AutomationPending    AutomationStatus = "pending"
	AutomationInProgress AutomationStatus = "inProgress"
	AutomationCompleted  AutomationStatus = "completed"
	AutomationFailed     AutomationStatus = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s AutomationStatus) IsTerminal() bool {
	return s == AutomationCompleted || s == AutomationFailed
}

// CanTransitionTo enforces pending -> inProgress -> completed|failed.
func (s AutomationStatus) CanTransitionTo(next AutomationStatus) bool {
	switch s {
	case AutomationPending:
		return next == AutomationInProgress
	case AutomationInProgress:
		return next == AutomationCompleted || next == AutomationFailed
	default:
		return false
	}
}

type AutomationType string

const (
	AutomationRSVP     AutomationType = "rsvp"
	AutomationReminder AutomationType = "reminder"
	AutomationThankYou AutomationType = "thankYou"
	AutomationCustom   AutomationType = "custom"
)

func (t AutomationType) Valid() bool {
	switch t {
	case AutomationRSVP, AutomationReminder, AutomationThankYou, AutomationCustom:
		return true
	}
	return false
}

type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
)

// AudienceFilter selects the guests an automation is sent to. Empty fields
// do not restrict the selection.
type AudienceFilter struct {
	RSVPStatuses []RSVPStatus `json:"rsvpStatuses,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	GuestIDs     []uuid.UUID  `json:"guestIds,omitempty"`
}

type CompletionStats struct {
	SuccessfulMessages int       `json:"successfulMessages"`
	FailedMessages     int       `json:"failedMessages"`
	CompletedAt        time.Time `json:"completedAt"`
	FailureReason      string    `json:"failureReason,omitempty"`
}

// OutcomeStatus picks the terminal status for a finished dispatch. Failure is
// total only when nothing succeeded and something failed.
func (c CompletionStats) OutcomeStatus() AutomationStatus {
	if c.FailedMessages == 0 {
		return AutomationCompleted
	}
	if c.SuccessfulMessages == 0 {
		return AutomationFailed
	}
	return AutomationCompleted
}

type Automation struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	WeddingID uuid.UUID `gorm:"type:uuid;index;not null" json:"weddingId"`

	Name              string           `gorm:"not null" json:"name"`
	IsActive          bool             `gorm:"default:false;index:idx_automation_ready,priority:2" json:"isActive"`
	Status            AutomationStatus `gorm:"type:varchar(20);not null;index:idx_automation_ready,priority:1" json:"status"`
	AutomationType    AutomationType   `gorm:"type:varchar(20);not null" json:"automationType"`
	Channel           Channel          `gorm:"type:varchar(20);not null;default:'whatsapp'" json:"channel"`
	MessageTemplateID *string          `gorm:"type:varchar(64)" json:"messageTemplateId"`
	ScheduledTime     *time.Time       `gorm:"index:idx_automation_ready,priority:3" json:"scheduledTime"`
	ScheduledTimeZone string           `gorm:"type:varchar(64)" json:"scheduledTimeZone"`

	TargetAudienceFilter AudienceFilter   `gorm:"serializer:json" json:"targetAudienceFilter"`
	SentMessageIDs       []string         `gorm:"serializer:json" json:"sentMessageIds"`
	CompletionStats      *CompletionStats `gorm:"serializer:json" json:"completionStats,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a *Automation) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}

// MissingForActivation lists the approval gate fields that are still unset.
func (a *Automation) MissingForActivation() []string {
	var missing []string
	if a.MessageTemplateID == nil || *a.MessageTemplateID == "" {
		missing = append(missing, "messageTemplateId")
	}
	if a.ScheduledTime == nil || a.ScheduledTime.IsZero() {
		missing = append(missing, "scheduledTime")
	}
	return missing
}

// IsDue reports whether the automation's scheduled time has passed.
func (a *Automation) IsDue(now time.Time) bool {
	return a.ScheduledTime != nil && !a.ScheduledTime.After(now)
}

// IsReady is the dispatcher's pick-up condition.
func (a *Automation) IsReady(now time.Time) bool {
	return a.IsActive && a.Status == AutomationPending && a.IsDue(now)
}

// AutomationPatch carries the fields editable while an automation is pending.
type AutomationPatch struct {
	ScheduledTime     *time.Time
	MessageTemplateID *string
}

func (p AutomationPatch) IsEmpty() bool {
	return p.ScheduledTime == nil && p.MessageTemplateID == nil
}

// Apply copies the set fields onto a.
func (p AutomationPatch) Apply(a *Automation) {
	if p.ScheduledTime != nil {
		t := *p.ScheduledTime
		a.ScheduledTime = &t
	}
	if p.MessageTemplateID != nil {
		sid := *p.MessageTemplateID
		a.MessageTemplateID = &sid
	}
}
