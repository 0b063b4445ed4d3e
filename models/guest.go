// models/guest.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RSVPStatus string

const (
	RSVPPending   RSVPStatus = "pending"
	RSVPAttending RSVPStatus = "attending"
	RSVPDeclined  RSVPStatus = "declined"
	RSVPMaybe     RSVPStatus = "maybe"
)

type Guest struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	WeddingID uuid.UUID `gorm:"type:uuid;index;not null" json:"weddingId"`

	Name       string     `gorm:"not null" json:"name"`
	Phone      string     `gorm:"not null;index" json:"phone"`
	RSVPStatus RSVPStatus `gorm:"type:varchar(20);default:'pending'" json:"rsvpStatus"`
	Tags       StringList `gorm:"type:jsonb" json:"tags"`
	PartySize  int        `gorm:"default:1" json:"partySize"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (g *Guest) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if g.RSVPStatus == "" {
		g.RSVPStatus = RSVPPending
	}
	return
}

// Matches reports whether the guest is selected by f.
func (f AudienceFilter) Matches(g Guest) bool {
	if len(f.GuestIDs) > 0 && !containsUUID(f.GuestIDs, g.ID) {
		return false
	}
	if len(f.RSVPStatuses) > 0 {
		found := false
		for _, s := range f.RSVPStatuses {
			if s == g.RSVPStatus {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Tags) > 0 {
		for _, tag := range f.Tags {
			if g.Tags.Contains(tag) {
				return true
			}
		}
		return false
	}
	return true
}

func containsUUID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
