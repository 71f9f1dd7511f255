package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Numeric holds a number exactly as the API sent it. The API returns decimal
// amounts as JSON strings and scores as JSON numbers; both are kept as text so
// callers can parse them with the precision they need. The zero value means
// the field was absent or null.
type Numeric string

func (n *Numeric) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Numeric(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("numeric field: %w", err)
	}
	*n = Numeric(num.String())
	return nil
}

// IsSet reports whether the field carried a value.
func (n Numeric) IsSet() bool { return n != "" }

// Tournament is one scoring track.
type Tournament struct {
	ID     int    `json:"tournament"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// RoundInfo is the listing entry of a round within a tournament.
type RoundInfo struct {
	Number int    `json:"number"`
	Status string `json:"status"`
}

// RoundPayload is one round's leaderboard for one tournament.
type RoundPayload struct {
	Number        int                `json:"number"`
	Status        string             `json:"status"`
	BenchmarkType string             `json:"benchmarkType"`
	Selection     *Selection         `json:"selection"`
	Leaderboard   []LeaderboardEntry `json:"leaderboard"`
}

// Selection holds the staking cutoffs of a round.
type Selection struct {
	BCutoff Numeric `json:"bCutoff"`
	PCutoff Numeric `json:"pCutoff"`
}

// LeaderboardEntry is one user's raw result in a round.
type LeaderboardEntry struct {
	Username          string           `json:"username"`
	LiveAuroc         Numeric          `json:"liveAuroc"`
	LiveLogloss       Numeric          `json:"liveLogloss"`
	LiveCorrelation   Numeric          `json:"liveCorrelation"`
	ValidationAuroc   Numeric          `json:"validationAuroc"`
	ValidationLogloss Numeric          `json:"validationLogloss"`
	Stake             *Stake           `json:"stake"`
	StakeResolution   *StakeResolution `json:"stakeResolution"`
	PaymentStaking    *Payment         `json:"paymentStaking"`
	PaymentGeneral    *Payment         `json:"paymentGeneral"`
	Return            *Payment         `json:"return"`
}

type Stake struct {
	Value      Numeric `json:"value"`
	Confidence Numeric `json:"confidence"`
}

type StakeResolution struct {
	Destroyed  bool `json:"destroyed"`
	Successful bool `json:"successful"`
}

// Payment is an amount split into its NMR and USD parts; either may be absent.
type Payment struct {
	NmrAmount Numeric `json:"nmrAmount"`
	UsdAmount Numeric `json:"usdAmount"`
}
