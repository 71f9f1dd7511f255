package models

import "time"

// RoundSnapshot marks a round whose full record set has been stored. It is
// written in the same transaction as the round's entries.
type RoundSnapshot struct {
	RoundNum    int       `json:"round_num" gorm:"primaryKey;autoIncrement:false"`
	Status      string    `json:"status" gorm:"type:varchar(16);not null"`
	Tournaments int       `json:"tournaments"`
	Entries     int       `json:"entries"`
	FetchedAt   time.Time `json:"fetched_at" gorm:"autoUpdateTime"`
}

// SyncRun records one scheduled leaderboard sync.
type SyncRun struct {
	ID           string     `json:"id" gorm:"primaryKey;type:uuid"`
	StartedAt    time.Time  `json:"started_at" gorm:"not null;index"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	RoundsStored int        `json:"rounds_stored" gorm:"default:0"`
	LatestRound  int        `json:"latest_round" gorm:"default:0"`
	Error        string     `json:"error,omitempty" gorm:"type:text"`
}
