package models

import (
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tournament mirrors the tournament list of the competition API.
type Tournament struct {
	ID        int       `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name      string    `json:"name" gorm:"not null"`
	Active    bool      `json:"active" gorm:"default:true"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Calculated fields (not stored in DB)
	DisplayName string `json:"display_name,omitempty" gorm:"-"`
	Rounds      int    `json:"rounds,omitempty" gorm:"-"`
}

// TitleName returns the tournament name for display, e.g. "bernie" -> "Bernie".
func (t *Tournament) TitleName() string {
	// Casers keep state, so one is built per call.
	return cases.Title(language.English).String(t.Name)
}
