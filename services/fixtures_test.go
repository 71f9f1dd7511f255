package services

import (
	"context"
	"math"
	"sort"
	"sync"
	"testing"

	"numerai-reports/apiclient"
	"numerai-reports/models"
	"numerai-reports/rules"

	"github.com/shopspring/decimal"
)

type roundKeyT struct{ round, tournament int }

// fakeSource serves canned leaderboards and counts fetches.
type fakeSource struct {
	mu          sync.Mutex
	tournaments []apiclient.Tournament
	payloads    map[roundKeyT]*apiclient.RoundPayload
	fetches     map[roundKeyT]int
}

func newFakeSource(tourns ...apiclient.Tournament) *fakeSource {
	if len(tourns) == 0 {
		tourns = []apiclient.Tournament{{ID: 1, Name: "bernie", Active: true}}
	}
	return &fakeSource{
		tournaments: tourns,
		payloads:    make(map[roundKeyT]*apiclient.RoundPayload),
		fetches:     make(map[roundKeyT]int),
	}
}

func (f *fakeSource) add(round, tournament int, p *apiclient.RoundPayload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.Number = round
	f.payloads[roundKeyT{round, tournament}] = p
}

func (f *fakeSource) fetchCount(round, tournament int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[roundKeyT{round, tournament}]
}

func (f *fakeSource) ListTournaments(ctx context.Context) ([]apiclient.Tournament, error) {
	return append([]apiclient.Tournament(nil), f.tournaments...), nil
}

func (f *fakeSource) ListRoundsByTournament(ctx context.Context, tournament int) ([]apiclient.RoundInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []apiclient.RoundInfo
	for k, p := range f.payloads {
		if k.tournament == tournament {
			out = append(out, apiclient.RoundInfo{Number: k.round, Status: p.Status})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (f *fakeSource) FetchRoundLeaderboard(ctx context.Context, round, tournament int) (*apiclient.RoundPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := roundKeyT{round, tournament}
	p, ok := f.payloads[k]
	if !ok {
		return nil, apiclient.ErrRoundNotFound
	}
	f.fetches[k]++
	cp := *p
	cp.Leaderboard = append([]apiclient.LeaderboardEntry(nil), p.Leaderboard...)
	return &cp, nil
}

// memStore is an in-memory RecordStore.
type memStore struct {
	mu      sync.Mutex
	rounds  map[int][]models.PerformanceEntry
	saves   int
	loadErr error
}

func newMemStore() *memStore {
	return &memStore{rounds: make(map[int][]models.PerformanceEntry)}
}

func (m *memStore) LoadRound(ctx context.Context, round int) ([]models.PerformanceEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, false, m.loadErr
	}
	entries, ok := m.rounds[round]
	return append([]models.PerformanceEntry(nil), entries...), ok, nil
}

func (m *memStore) SaveRound(ctx context.Context, round int, entries []models.PerformanceEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds[round] = append([]models.PerformanceEntry(nil), entries...)
	m.saves++
	return nil
}

func (m *memStore) has(round int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rounds[round]
	return ok
}

// Payload builders.

func aurocRound(status, cutoff string, entries ...apiclient.LeaderboardEntry) *apiclient.RoundPayload {
	return &apiclient.RoundPayload{
		Status:        status,
		BenchmarkType: "auroc",
		Selection:     &apiclient.Selection{BCutoff: apiclient.Numeric(cutoff)},
		Leaderboard:   entries,
	}
}

func resolved(cutoff string, entries ...apiclient.LeaderboardEntry) *apiclient.RoundPayload {
	return aurocRound(models.RoundStatusResolved, cutoff, entries...)
}

func open(entries ...apiclient.LeaderboardEntry) *apiclient.RoundPayload {
	return aurocRound(models.RoundStatusOpen, "", entries...)
}

type entryOpt func(*apiclient.LeaderboardEntry)

func entry(user, auroc string, opts ...entryOpt) apiclient.LeaderboardEntry {
	e := apiclient.LeaderboardEntry{Username: user, LiveAuroc: apiclient.Numeric(auroc)}
	for _, o := range opts {
		o(&e)
	}
	return e
}

func stake(value, confidence string) entryOpt {
	return func(e *apiclient.LeaderboardEntry) {
		e.Stake = &apiclient.Stake{Value: apiclient.Numeric(value), Confidence: apiclient.Numeric(confidence)}
	}
}

func destroyed() entryOpt {
	return func(e *apiclient.LeaderboardEntry) {
		e.StakeResolution = &apiclient.StakeResolution{Destroyed: true}
	}
}

func stakingPayment(nmr, usd string) entryOpt {
	return func(e *apiclient.LeaderboardEntry) {
		e.PaymentStaking = &apiclient.Payment{NmrAmount: apiclient.Numeric(nmr), UsdAmount: apiclient.Numeric(usd)}
	}
}

func generalPayment(nmr, usd string) entryOpt {
	return func(e *apiclient.LeaderboardEntry) {
		e.PaymentGeneral = &apiclient.Payment{NmrAmount: apiclient.Numeric(nmr), UsdAmount: apiclient.Numeric(usd)}
	}
}

func returned(nmr string) entryOpt {
	return func(e *apiclient.LeaderboardEntry) {
		e.Return = &apiclient.Payment{NmrAmount: apiclient.Numeric(nmr)}
	}
}

func correlation(v string) entryOpt {
	return func(e *apiclient.LeaderboardEntry) { e.LiveCorrelation = apiclient.Numeric(v) }
}

func newTestService(src *fakeSource, schedule rules.Schedule, windowSize int) *ReportService {
	if schedule == nil {
		schedule = rules.Default()
	}
	return NewReportService(NewWindow(src, schedule, CacheConfig{}), windowSize)
}

// record builds a resolved entry for pure reputation tests.
func record(round, tournament int, user string, auroc float64) models.PerformanceEntry {
	pass := true
	return models.PerformanceEntry{
		RoundNum:     round,
		TournamentID: tournament,
		Username:     user,
		RoundStatus:  models.RoundStatusResolved,
		LiveAuroc:    &auroc,
		Pass:         &pass,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func assertCell(t *testing.T, tbl *Table, key, column string, want float64) {
	t.Helper()
	c, ok := tbl.Value(key, column)
	if !ok {
		t.Fatalf("%s: no cell %s/%s", tbl.Name, key, column)
	}
	if !c.Valid {
		t.Fatalf("%s: cell %s/%s is null, want %v", tbl.Name, key, column, want)
	}
	if !almostEqual(c.Value, want) {
		t.Fatalf("%s: cell %s/%s = %v, want %v", tbl.Name, key, column, c.Value, want)
	}
}
