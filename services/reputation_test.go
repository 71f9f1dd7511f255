package services

import (
	"context"
	"testing"

	"numerai-reports/models"
	"numerai-reports/rules"
)

func TestReputationSlotWeighting(t *testing.T) {
	entries := []models.PerformanceEntry{
		record(118, 1, "alice", 0.5),
		record(119, 1, "alice", 0.6),
		record(120, 1, "alice", 0.7),
		record(120, 1, "bob", 0.7),
	}
	res := computeReputation(entries, []string{"alice", "bob", "ghost"}, 120, 3, rules.Default(), nil)

	want := map[string]float64{
		"alice": 0.6,
		"bob":   (0.7 + 0.4 + 0.4) / 3,
		"ghost": 0.4,
	}
	for u, w := range want {
		if !almostEqual(res.Scores[u], w) {
			t.Fatalf("%s: reputation %v, want %v", u, res.Scores[u], w)
		}
	}
	if res.Provisional || res.Degenerate || res.ResolvedRounds != 3 {
		t.Fatalf("full resolved window flagged: %+v", res)
	}
}

func TestReputationAllUsersWhenNoneRequested(t *testing.T) {
	entries := []models.PerformanceEntry{
		record(120, 1, "alice", 0.6),
		record(120, 2, "bob", 0.7),
	}
	res := computeReputation(entries, nil, 120, 1, rules.Default(), nil)
	if len(res.Scores) != 2 {
		t.Fatalf("expected both users, got %v", res.Scores)
	}
	// each user fills the tournament they skipped
	if !almostEqual(res.Scores["alice"], 0.5) || !almostEqual(res.Scores["bob"], 0.55) {
		t.Fatalf("unexpected scores %v", res.Scores)
	}
}

func TestReputationRoundWeighting(t *testing.T) {
	entries := []models.PerformanceEntry{
		record(165, 1, "alice", 0.6),
		record(165, 2, "bob", 0.6),
		record(166, 1, "alice", 0.55),
	}
	res := computeReputation(entries, []string{"alice", "ghost"}, 166, 2, rules.Default(), nil)

	// round 165: (0.1 + -0.1)/2 = 0, round 166: 0.05
	if got := res.Scores["alice"]; !almostEqual(got, 0.025) {
		t.Fatalf("alice: %v, want 0.025", got)
	}
	if got := res.Scores["ghost"]; !almostEqual(got, -0.1) {
		t.Fatalf("ghost: %v, want the fill", got)
	}
}

func TestReputationCorrelationEpoch(t *testing.T) {
	corr := func(round int, user string, v float64) models.PerformanceEntry {
		e := record(round, 1, user, 0.9)
		e.LiveCorrelation = &v
		return e
	}
	entries := []models.PerformanceEntry{
		record(167, 1, "alice", 0.6),
		corr(168, "alice", 0.02),
	}
	res := computeReputation(entries, []string{"alice"}, 168, 2, rules.Default(), nil)
	// 167 scores auroc - 0.5, 168 scores correlation
	if got := res.Scores["alice"]; !almostEqual(got, 0.06) {
		t.Fatalf("alice: %v, want 0.06", got)
	}

	entries = []models.PerformanceEntry{
		corr(168, "alice", 0.02),
		corr(169, "alice", 0.04),
	}
	res = computeReputation(entries, []string{"alice"}, 169, 2, rules.Default(), nil)
	if got := res.Scores["alice"]; !almostEqual(got, 0.03) {
		t.Fatalf("alice: %v, want 0.03", got)
	}
}

func TestReputationFillOverride(t *testing.T) {
	fill := 0.0
	entries := []models.PerformanceEntry{
		record(120, 1, "alice", 0.6),
		record(120, 2, "bob", 0.6),
	}
	res := computeReputation(entries, []string{"alice"}, 120, 1, rules.Default(), &fill)
	if got := res.Scores["alice"]; !almostEqual(got, 0.3) {
		t.Fatalf("alice: %v, want 0.3", got)
	}
}

func TestReputationUnresolvedWindow(t *testing.T) {
	entries := []models.PerformanceEntry{
		{RoundNum: 170, TournamentID: 1, Username: "alice", RoundStatus: models.RoundStatusOpen},
	}
	res := computeReputation(entries, []string{"alice"}, 170, 1, rules.Default(), nil)
	if !res.Degenerate || !res.Provisional || res.EndResolved {
		t.Fatalf("open-only window should be degenerate: %+v", res)
	}
	if got := res.Scores["alice"]; !almostEqual(got, -0.1) {
		t.Fatalf("alice: %v, want the fill", got)
	}

	res = computeReputation(nil, []string{"alice"}, 170, 1, rules.Default(), nil)
	if _, ok := res.Scores["alice"]; ok {
		t.Fatal("users of an empty window have no score")
	}
}

func TestReputationFirstRoundStakes(t *testing.T) {
	stakeIn := func(e models.PerformanceEntry, amount string) models.PerformanceEntry {
		e.NMRStaked = validDecimal(dec(amount))
		return e
	}
	entries := []models.PerformanceEntry{
		stakeIn(record(159, 1, "alice", 0.6), "1"),
		stakeIn(record(159, 2, "alice", 0.6), "0.5"),
		stakeIn(record(160, 1, "bob", 0.6), "7"),
	}
	res := computeReputation(entries, nil, 160, 2, rules.Default(), nil)
	if s := res.Stakes["alice"]; !s.Equal(dec("1.5")) {
		t.Fatalf("alice stake %v, want 1.5", s)
	}
	if _, ok := res.Stakes["bob"]; ok {
		t.Fatal("stakes after the first round of the window are ignored")
	}
}

func TestAverageRanks(t *testing.T) {
	got := averageRanks(map[string]float64{"a": 3, "b": 2, "c": 2, "d": 1})
	want := map[string]float64{"a": 1, "b": 2, "c": 2, "d": 4}
	for u, w := range want {
		if got[u] != w {
			t.Fatalf("%s ranked %v, want %v", u, got[u], w)
		}
	}
}

func TestReputationReport(t *testing.T) {
	src := newFakeSource()
	src.add(119, 1, resolved("0.5", entry("alice", "0.6"), entry("bob", "0.7")))
	src.add(120, 1, resolved("0.5", entry("alice", "0.6"), entry("bob", "0.5")))
	src.add(121, 1, open(entry("alice", ""), entry("bob", "")))
	svc := newTestService(src, nil, 2)

	tbl, err := svc.ReputationReport(context.Background(), []string{"bob", "alice"}, 120, 121, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(tbl.Rows) != 2 || tbl.Rows[0].Key != "119-120" || tbl.Rows[1].Key != "120-121*" {
		t.Fatalf("unexpected rows %+v", tbl.Rows)
	}
	if tbl.Columns[0] != "alice" || tbl.Columns[1] != "bob" {
		t.Fatalf("unexpected columns %v", tbl.Columns)
	}
	assertCell(t, tbl, "119-120", "alice", 0.6)
	assertCell(t, tbl, "119-120", "bob", 0.6)
	assertCell(t, tbl, "120-121*", "alice", 0.5)

	ranked, err := svc.ReputationReport(context.Background(), []string{"alice", "bob"}, 121, 121, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	// alice (0.6+0.4)/2 = 0.5 beats bob (0.5+0.4)/2 = 0.45
	assertCell(t, ranked, "120-121*", "alice", 1)
	assertCell(t, ranked, "120-121*", "bob", 2)
}

func TestReputationStrictWindowStart(t *testing.T) {
	src := newFakeSource()
	src.add(120, 1, resolved("0.5", entry("alice", "0.6")))
	svc := newTestService(src, nil, 2)

	_, err := svc.Reputation(context.Background(), nil, 120, ReputationOptions{})
	if err == nil {
		t.Fatal("a window reaching before the first known round should fail")
	}
	res, err := svc.Reputation(context.Background(), nil, 120, ReputationOptions{WindowSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(res.Scores["alice"], 0.6) {
		t.Fatalf("alice: %v", res.Scores["alice"])
	}
}
