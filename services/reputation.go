package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"numerai-reports/models"
	"numerai-reports/rules"

	"github.com/shopspring/decimal"
)

// DefaultWindowSize is the number of trailing rounds a reputation window spans.
const DefaultWindowSize = 20

// ReputationOptions tunes a reputation window. Zero values select the defaults:
// the service's window size and the fill of the ruleset at the window's end round.
type ReputationOptions struct {
	WindowSize int
	Fill       *float64
}

// ReputationResult holds the reputation scores of one window.
type ReputationResult struct {
	Round      int
	FirstRound int
	Scores     map[string]float64
	// Stakes holds each user's stake in the first round of the window, summed
	// across that round's tournaments.
	Stakes map[string]decimal.Decimal

	ResolvedRounds int
	EndResolved    bool
	// Provisional is set when fewer than WindowSize rounds of the window are
	// resolved or the end round is still open.
	Provisional bool
	// Degenerate is set when no round of the window is resolved, so every score
	// is the fill value.
	Degenerate bool
}

type slot struct {
	round      int
	tournament int
}

// Reputation computes the windowed reputation of users at round. An empty
// users list scores every user seen in the window.
func (s *ReportService) Reputation(ctx context.Context, users []string, round int, opts ReputationOptions) (*ReputationResult, error) {
	size := opts.WindowSize
	if size <= 0 {
		size = s.windowSize()
	}
	first := round - size + 1
	entries, err := s.Window.GetRange(ctx, first, round)
	if err != nil {
		return nil, fmt.Errorf("reputation window %d-%d: %w", first, round, err)
	}
	return computeReputation(entries, users, round, size, s.Window.Schedule(), opts.Fill), nil
}

func computeReputation(entries []models.PerformanceEntry, users []string, round, size int, schedule rules.Schedule, fill *float64) *ReputationResult {
	first := round - size + 1
	windowRules := schedule.At(round)
	fillValue := windowRules.Fill
	if fill != nil {
		fillValue = *fill
	}

	res := &ReputationResult{
		Round:      round,
		FirstRound: first,
		Scores:     make(map[string]float64),
		Stakes:     make(map[string]decimal.Decimal),
	}

	slotSet := make(map[slot]struct{})
	resolved := make(map[int]bool)
	byUser := make(map[string]map[slot]*models.PerformanceEntry)
	for i := range entries {
		e := &entries[i]
		k := slot{round: e.RoundNum, tournament: e.TournamentID}
		slotSet[k] = struct{}{}
		if r, ok := resolved[e.RoundNum]; !ok || r {
			resolved[e.RoundNum] = e.Resolved()
		}
		if byUser[e.Username] == nil {
			byUser[e.Username] = make(map[slot]*models.PerformanceEntry)
		}
		byUser[e.Username][k] = e
		if e.RoundNum == first && e.Staked() {
			res.Stakes[e.Username] = res.Stakes[e.Username].Add(e.NMRStaked.Decimal)
		}
	}
	for _, ok := range resolved {
		if ok {
			res.ResolvedRounds++
		}
	}
	res.EndResolved = resolved[round]
	res.Degenerate = res.ResolvedRounds == 0
	res.Provisional = res.ResolvedRounds < size || !res.EndResolved

	if len(slotSet) == 0 {
		return res
	}
	slots := make([]slot, 0, len(slotSet))
	for k := range slotSet {
		slots = append(slots, k)
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].round != slots[j].round {
			return slots[i].round < slots[j].round
		}
		return slots[i].tournament < slots[j].tournament
	})

	if len(users) == 0 {
		for u := range byUser {
			users = append(users, u)
		}
	}

	for _, u := range users {
		values := make([]float64, len(slots))
		for i, k := range slots {
			values[i] = fillValue
			e := byUser[u][k]
			if e == nil || !e.Resolved() {
				continue
			}
			metric := schedule.At(k.round).LiveMetric
			v, ok := e.Metric(string(metric))
			if !ok {
				continue
			}
			if metric == rules.MetricAuroc {
				v -= windowRules.AurocOffset
			}
			values[i] = v
		}
		res.Scores[u] = weightedScore(slots, values, windowRules.Weighting)
	}
	return res
}

func weightedScore(slots []slot, values []float64, weighting rules.Weighting) float64 {
	if weighting != rules.WeightRounds {
		return mean(values)
	}
	var roundMeans []float64
	for i := 0; i < len(slots); {
		j := i
		for j < len(slots) && slots[j].round == slots[i].round {
			j++
		}
		roundMeans = append(roundMeans, mean(values[i:j]))
		i = j
	}
	return mean(roundMeans)
}

// ReputationReport tabulates reputation for every window ending in [start, end].
// Rows are keyed "first-last", with a trailing "*" when the end round is not
// resolved. With rank set, scores are replaced by the users' 1-based rank among
// everyone in the window.
func (s *ReportService) ReputationReport(ctx context.Context, users []string, start, end, windowSize int, rank bool) (*Table, error) {
	if end < start {
		return nil, fmt.Errorf("invalid round range %d-%d", start, end)
	}
	cols := append([]string(nil), users...)
	sort.Strings(cols)
	t := NewTable("reputation", "window", cols...)

	for r := start; r <= end; r++ {
		res, err := s.Reputation(ctx, nil, r, ReputationOptions{WindowSize: windowSize})
		if err != nil {
			return nil, err
		}
		scores := res.Scores
		if rank {
			scores = averageRanks(res.Scores)
		}
		key := fmt.Sprintf("%d-%d", res.FirstRound, res.Round)
		if !res.EndResolved {
			key += "*"
		}
		values := make([]Cell, len(cols))
		for i, u := range cols {
			if v, ok := scores[u]; ok {
				values[i] = Float(v)
			}
		}
		t.Append(key, values...)
	}
	return t, nil
}

// averageRanks ranks scores descending; tied users share the mean of their
// positions, truncated to an integer.
func averageRanks(scores map[string]float64) map[string]float64 {
	users := make([]string, 0, len(scores))
	for u := range scores {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if scores[users[i]] != scores[users[j]] {
			return scores[users[i]] > scores[users[j]]
		}
		return users[i] < users[j]
	})
	out := make(map[string]float64, len(users))
	for i := 0; i < len(users); {
		j := i
		for j < len(users) && scores[users[j]] == scores[users[i]] {
			j++
		}
		// positions i+1..j
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			out[users[k]] = math.Trunc(avg)
		}
		i = j
	}
	return out
}
