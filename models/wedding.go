// models/wedding.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wedding is the event every automation offset and variable is resolved against.
type Wedding struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	BrideName    string     `json:"brideName"`
	GroomName    string     `json:"groomName"`
	EventDate    *time.Time `json:"eventDate"`
	StartTime    string     `gorm:"type:varchar(5)" json:"startTime"` // HH:MM, local to TimeZone
	Venue        string     `json:"venue"`
	TimeZone     string     `gorm:"type:varchar(64);default:'UTC'" json:"timeZone"`
	Locale       string     `gorm:"type:varchar(10);default:'en'" json:"locale"`
	PaymentLink  string     `json:"paymentLink"`
	GiftLink     string     `json:"giftLink"`
	WhatsAppFrom string     `gorm:"type:varchar(40)" json:"whatsAppFrom"`

	Guests      []Guest      `gorm:"foreignKey:WeddingID" json:"-"`
	Automations []Automation `gorm:"foreignKey:WeddingID" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (w *Wedding) BeforeCreate(tx *gorm.DB) (err error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return
}

// Location resolves TimeZone, falling back to UTC.
func (w *Wedding) Location() *time.Location {
	if w.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(w.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
