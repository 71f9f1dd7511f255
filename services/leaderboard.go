package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"numerai-reports/apiclient"
	"numerai-reports/models"
	"numerai-reports/rules"
)

// LeaderboardSource is the external competition API.
type LeaderboardSource interface {
	ListTournaments(ctx context.Context) ([]apiclient.Tournament, error)
	ListRoundsByTournament(ctx context.Context, tournament int) ([]apiclient.RoundInfo, error)
	FetchRoundLeaderboard(ctx context.Context, round, tournament int) (*apiclient.RoundPayload, error)
}

// RecordStore persists the normalized record set of resolved rounds.
type RecordStore interface {
	LoadRound(ctx context.Context, round int) ([]models.PerformanceEntry, bool, error)
	SaveRound(ctx context.Context, round int, entries []models.PerformanceEntry) error
}

// CacheConfig lists the stores a Window reads through, in order. Resolved
// rounds fetched from the API are written to every store.
type CacheConfig struct {
	Stores []RecordStore
}

// RoundStatus summarizes a round across all tournaments that ran it.
type RoundStatus struct {
	Round       int
	Resolved    bool
	Tournaments []apiclient.Tournament
}

// Window serves normalized round records, memoizing each round for its lifetime.
type Window struct {
	source   LeaderboardSource
	schedule rules.Schedule
	cache    CacheConfig

	mu     sync.Mutex
	rounds map[int][]models.PerformanceEntry
	// index and tourns are replaced, never mutated, once published.
	index  map[int]*RoundStatus
	tourns []apiclient.Tournament
	gen    uint64
}

func NewWindow(source LeaderboardSource, schedule rules.Schedule, cache CacheConfig) *Window {
	return &Window{
		source:   source,
		schedule: schedule,
		cache:    cache,
		rounds:   make(map[int][]models.PerformanceEntry),
	}
}

// Schedule returns the rule schedule the Window normalizes with.
func (w *Window) Schedule() rules.Schedule {
	return w.schedule
}

// Get returns the records of every tournament of a round.
func (w *Window) Get(ctx context.Context, round int) ([]models.PerformanceEntry, error) {
	w.mu.Lock()
	cached, ok := w.rounds[round]
	gen := w.gen
	w.mu.Unlock()
	if ok {
		return append([]models.PerformanceEntry(nil), cached...), nil
	}

	status, err := w.roundStatus(ctx, round)
	if err != nil {
		return nil, err
	}

	entries, err := w.load(ctx, status)
	if err != nil {
		return nil, err
	}

	// An unresolved round fetched across a Refresh may already be stale.
	w.mu.Lock()
	if w.gen == gen || allResolved(entries) {
		w.rounds[round] = entries
	}
	w.mu.Unlock()
	return append([]models.PerformanceEntry(nil), entries...), nil
}

// GetRange returns the records of every round in [start, end].
func (w *Window) GetRange(ctx context.Context, start, end int) ([]models.PerformanceEntry, error) {
	if end < start {
		return nil, fmt.Errorf("invalid round range %d-%d", start, end)
	}
	var out []models.PerformanceEntry
	for r := start; r <= end; r++ {
		entries, err := w.Get(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

// Tournaments returns the tournament list of the competition.
func (w *Window) Tournaments(ctx context.Context) ([]apiclient.Tournament, error) {
	_, tourns, err := w.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}
	return append([]apiclient.Tournament(nil), tourns...), nil
}

// Rounds returns every known round, ascending.
func (w *Window) Rounds(ctx context.Context) ([]RoundStatus, error) {
	index, _, err := w.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RoundStatus, 0, len(index))
	for _, s := range index {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	return out, nil
}

// Refresh drops the round index and every unresolved round so the next call
// sees new rounds and resolutions. Resolved rounds stay memoized.
func (w *Window) Refresh() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.index = nil
	w.tourns = nil
	w.gen++
	for r, entries := range w.rounds {
		if !allResolved(entries) {
			delete(w.rounds, r)
		}
	}
}

func (w *Window) roundStatus(ctx context.Context, round int) (RoundStatus, error) {
	index, _, err := w.ensureIndex(ctx)
	if err != nil {
		return RoundStatus{}, err
	}
	s, ok := index[round]
	if !ok {
		return RoundStatus{}, &UnknownRoundError{Round: round}
	}
	return *s, nil
}

// ensureIndex returns the published round index, building it first if a
// Refresh dropped it. Callers read the returned snapshot, not w.index.
func (w *Window) ensureIndex(ctx context.Context) (map[int]*RoundStatus, []apiclient.Tournament, error) {
	w.mu.Lock()
	index, tourns := w.index, w.tourns
	w.mu.Unlock()
	if index != nil {
		return index, tourns, nil
	}

	tourns, err := w.source.ListTournaments(ctx)
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(tourns, func(i, j int) bool { return tourns[i].ID < tourns[j].ID })

	index = make(map[int]*RoundStatus)
	for _, t := range tourns {
		rounds, err := w.source.ListRoundsByTournament(ctx, t.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, r := range rounds {
			s, ok := index[r.Number]
			if !ok {
				s = &RoundStatus{Round: r.Number, Resolved: true}
				index[r.Number] = s
			}
			s.Tournaments = append(s.Tournaments, t)
			if r.Status != models.RoundStatusResolved {
				s.Resolved = false
			}
		}
	}
	log.Printf("[WINDOW] 📚 Indexed %d rounds across %d tournaments", len(index), len(tourns))

	w.mu.Lock()
	w.index = index
	w.tourns = tourns
	w.mu.Unlock()
	return index, tourns, nil
}

func (w *Window) load(ctx context.Context, status RoundStatus) ([]models.PerformanceEntry, error) {
	if status.Resolved {
		for i, store := range w.cache.Stores {
			entries, ok, err := store.LoadRound(ctx, status.Round)
			if err != nil {
				log.Printf("[WINDOW] ⚠️ Record store %d failed for round %d: %v", i, status.Round, err)
				continue
			}
			if !ok {
				continue
			}
			w.save(ctx, status.Round, entries, w.cache.Stores[:i])
			return entries, nil
		}
	}

	entries, err := w.fetch(ctx, status)
	if err != nil {
		return nil, err
	}
	if status.Resolved && allResolved(entries) {
		w.save(ctx, status.Round, entries, w.cache.Stores)
	}
	return entries, nil
}

func (w *Window) fetch(ctx context.Context, status RoundStatus) ([]models.PerformanceEntry, error) {
	var out []models.PerformanceEntry
	for _, t := range status.Tournaments {
		payload, err := w.source.FetchRoundLeaderboard(ctx, status.Round, t.ID)
		if errors.Is(err, apiclient.ErrRoundNotFound) {
			return nil, &UnknownRoundError{Round: status.Round}
		}
		if err != nil {
			return nil, err
		}
		meta := RoundMeta{Round: status.Round, TournamentID: t.ID, Tournament: t.Name}
		entries, err := NormalizeRound(meta, payload, w.schedule)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	log.Printf("[WINDOW] 📥 Fetched round %d: %d records from %d tournaments",
		status.Round, len(out), len(status.Tournaments))
	return out, nil
}

func (w *Window) save(ctx context.Context, round int, entries []models.PerformanceEntry, stores []RecordStore) {
	for i, store := range stores {
		if err := store.SaveRound(ctx, round, entries); err != nil {
			log.Printf("[WINDOW] ⚠️ Failed to store round %d in record store %d: %v", round, i, err)
		}
	}
}

func allResolved(entries []models.PerformanceEntry) bool {
	for i := range entries {
		if !entries[i].Resolved() {
			return false
		}
	}
	return true
}
