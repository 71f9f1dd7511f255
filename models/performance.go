package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Round statuses reported by the tournament API.
const (
	RoundStatusOpen     = "OPEN"
	RoundStatusResolved = "RESOLVED"
)

// BenchmarkAuroc is the benchmark type whose pass rule compares live auroc to the cutoff.
const BenchmarkAuroc = "auroc"

// PerformanceEntry is one user's normalized result in one tournament of one round.
// Optional columns stay null when the API did not report them; aggregations treat
// null monetary columns as zero.
type PerformanceEntry struct {
	ID            uint    `json:"-" gorm:"primaryKey"`
	RoundNum      int     `json:"round_num" gorm:"uniqueIndex:idx_round_tournament_user;not null"`
	TournamentID  int     `json:"tournament_id" gorm:"uniqueIndex:idx_round_tournament_user;not null"`
	Tournament    string  `json:"tournament"`
	Username      string  `json:"username" gorm:"uniqueIndex:idx_round_tournament_user;index;not null"`
	RoundStatus   string  `json:"round_status" gorm:"type:varchar(16)"`
	BenchmarkType string  `json:"benchmark_type" gorm:"type:varchar(16)"`
	StakingCutoff *float64 `json:"staking_cutoff"`

	// Scores
	LiveAuroc         *float64 `json:"live_auroc,omitempty"`
	LiveLogloss       *float64 `json:"live_logloss,omitempty"`
	LiveCorrelation   *float64 `json:"live_correlation,omitempty"`
	ValidationAuroc   *float64 `json:"validation_auroc,omitempty"`
	ValidationLogloss *float64 `json:"validation_logloss,omitempty"`

	// Stake
	NMRStaked       decimal.NullDecimal `json:"nmr_staked" gorm:"type:numeric(38,18)"`
	StakeConfidence *float64            `json:"stake_confidence,omitempty"`
	StakeDestroyed  bool                `json:"stake_destroyed" gorm:"default:false"`

	// Payments
	NMRStaking  decimal.NullDecimal `json:"nmr_staking" gorm:"type:numeric(38,18)"`
	USDStaking  decimal.NullDecimal `json:"usd_staking" gorm:"type:numeric(38,18)"`
	NMRGeneral  decimal.NullDecimal `json:"nmr_general" gorm:"type:numeric(38,18)"`
	USDGeneral  decimal.NullDecimal `json:"usd_general" gorm:"type:numeric(38,18)"`
	NMRReturned decimal.NullDecimal `json:"nmr_returned" gorm:"type:numeric(38,18)"`

	// Derived at normalization
	Pass      *bool               `json:"pass,omitempty"`
	NMRBurned decimal.NullDecimal `json:"nmr_burned" gorm:"type:numeric(38,18)"`
	NMRBonus  decimal.NullDecimal `json:"nmr_bonus" gorm:"type:numeric(38,18)"`
	USDBonus  decimal.NullDecimal `json:"usd_bonus" gorm:"type:numeric(38,18)"`

	CreatedAt time.Time `json:"-" gorm:"autoCreateTime"`
}

// Resolved reports whether the entry belongs to a resolved round.
func (e PerformanceEntry) Resolved() bool {
	return e.RoundStatus == RoundStatusResolved
}

// Staked reports whether the user put a stake on this entry.
func (e PerformanceEntry) Staked() bool {
	return e.NMRStaked.Valid
}

// Passed reports a resolved pass; unresolved entries never pass.
func (e PerformanceEntry) Passed() bool {
	return e.Pass != nil && *e.Pass
}

// Metric returns a score column by its report name.
func (e PerformanceEntry) Metric(name string) (float64, bool) {
	var v *float64
	switch name {
	case "live_auroc":
		v = e.LiveAuroc
	case "live_logloss":
		v = e.LiveLogloss
	case "live_correlation":
		v = e.LiveCorrelation
	case "validation_auroc":
		v = e.ValidationAuroc
	case "validation_logloss":
		v = e.ValidationLogloss
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// MetricNames lists the score columns Metric understands.
var MetricNames = []string{
	"live_auroc",
	"live_logloss",
	"live_correlation",
	"validation_auroc",
	"validation_logloss",
}
