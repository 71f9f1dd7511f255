package services

import (
	"errors"
	"testing"

	"numerai-reports/apiclient"
	"numerai-reports/models"
	"numerai-reports/rules"
)

func normalize(t *testing.T, round int, p *apiclient.RoundPayload) map[string]models.PerformanceEntry {
	t.Helper()
	entries, err := NormalizeRound(RoundMeta{Round: round, TournamentID: 1, Tournament: "bernie"}, p, rules.Default())
	if err != nil {
		t.Fatalf("normalize round %d: %v", round, err)
	}
	out := make(map[string]models.PerformanceEntry, len(entries))
	for _, e := range entries {
		out[e.Username] = e
	}
	return out
}

func TestNormalizeAurocPass(t *testing.T) {
	got := normalize(t, 100, resolved("0.501",
		entry("loser", "0.500", stake("1", "0.6"), destroyed()),
		entry("winner", "0.512", stake("3", "0.6"), stakingPayment("0.23", "1.2")),
	))

	loser, winner := got["loser"], got["winner"]
	if loser.Pass == nil || *loser.Pass {
		t.Fatalf("loser should fail, got %v", loser.Pass)
	}
	if winner.Pass == nil || !*winner.Pass {
		t.Fatalf("winner should pass, got %v", winner.Pass)
	}
	if !loser.NMRBurned.Valid || !loser.NMRBurned.Decimal.Equal(dec("1")) {
		t.Fatalf("loser burned = %v, want 1", loser.NMRBurned)
	}
	if !winner.NMRBurned.Decimal.IsZero() {
		t.Fatalf("winner burned = %v, want 0", winner.NMRBurned)
	}
	if winner.NMRBonus.Valid {
		t.Fatalf("no staking bonus before its epoch, got %v", winner.NMRBonus)
	}
	if winner.StakingCutoff == nil || *winner.StakingCutoff != 0.501 || winner.BenchmarkType != models.BenchmarkAuroc {
		t.Fatalf("round metadata not copied: %+v", winner)
	}
	if !winner.USDStaking.Decimal.Equal(dec("1.2")) {
		t.Fatalf("usd staking = %v", winner.USDStaking)
	}
}

func TestNormalizeLoglossPass(t *testing.T) {
	p := &apiclient.RoundPayload{
		Status:        models.RoundStatusResolved,
		BenchmarkType: "logloss",
		Selection:     &apiclient.Selection{PCutoff: "0.7"},
		Leaderboard: []apiclient.LeaderboardEntry{
			{Username: "good", LiveLogloss: "0.6920"},
			{Username: "bad", LiveLogloss: "0.6931"},
		},
	}
	got := normalize(t, 90, p)
	good, bad := got["good"], got["bad"]
	if !good.Passed() {
		t.Fatal("logloss below 0.693 should pass")
	}
	if bad.Pass == nil || bad.Passed() {
		t.Fatal("logloss above 0.693 should fail")
	}
	if good.StakingCutoff == nil || *good.StakingCutoff != 0.7 {
		t.Fatalf("cutoff = %v, want pCutoff", good.StakingCutoff)
	}
}

func TestNormalizeLoglossWithoutCutoff(t *testing.T) {
	p := &apiclient.RoundPayload{
		Status:        models.RoundStatusResolved,
		BenchmarkType: "logloss",
		Leaderboard:   []apiclient.LeaderboardEntry{{Username: "good", LiveLogloss: "0.69"}},
	}
	good := normalize(t, 90, p)["good"]
	if good.StakingCutoff != nil {
		t.Fatalf("cutoff = %v, want none", *good.StakingCutoff)
	}
	if !good.Passed() {
		t.Fatal("logloss pass does not depend on the cutoff")
	}
}

func TestNormalizePartialBurn(t *testing.T) {
	got := normalize(t, 120, resolved("0.5",
		entry("u", "0.4", stake("2", "0.5"), destroyed(), returned("0.5")),
	))
	if b := got["u"].NMRBurned.Decimal; !b.Equal(dec("1.5")) {
		t.Fatalf("burned = %v, want 1.5", b)
	}
}

func TestNormalizeStakingBonus(t *testing.T) {
	got := normalize(t, 155, resolved("0.5",
		entry("kept", "0.6", stake("10", "0.5"), stakingPayment("2", "20")),
		entry("burned", "0.4", stake("10", "0.5"), destroyed()),
	))
	kept := got["kept"]
	if !kept.NMRBonus.Decimal.Equal(dec("0.5")) {
		t.Fatalf("nmr bonus = %v, want 0.5", kept.NMRBonus)
	}
	if !kept.USDBonus.Decimal.Equal(dec("5")) {
		t.Fatalf("usd bonus = %v, want 5", kept.USDBonus)
	}
	if !kept.NMRStaking.Decimal.Equal(dec("2")) {
		t.Fatalf("staking payment changed outside the carve-out round: %v", kept.NMRStaking)
	}
	if got["burned"].NMRBonus.Valid {
		t.Fatalf("burned stakes earn no bonus, got %v", got["burned"].NMRBonus)
	}
}

func TestNormalizeStakingBonusCarveOut(t *testing.T) {
	got := normalize(t, 158, resolved("0.5",
		entry("kept", "0.6", stake("10", "0.5"), stakingPayment("2.5", "25")),
		entry("burned", "0.4", stake("10", "0.5"), destroyed(), returned("1")),
	))

	kept := got["kept"]
	if !kept.NMRStaking.Decimal.Equal(dec("2")) || !kept.NMRBonus.Decimal.Equal(dec("0.5")) {
		t.Fatalf("kept: staking %v bonus %v, want 2 and 0.5", kept.NMRStaking, kept.NMRBonus)
	}
	if !kept.USDStaking.Decimal.Equal(dec("20")) || !kept.USDBonus.Decimal.Equal(dec("5")) {
		t.Fatalf("kept: usd staking %v usd bonus %v, want 20 and 5", kept.USDStaking, kept.USDBonus)
	}

	burned := got["burned"]
	if !burned.NMRReturned.Decimal.Equal(dec("0.5")) || !burned.NMRBonus.Decimal.Equal(dec("0.5")) {
		t.Fatalf("burned: returned %v bonus %v, want 0.5 and 0.5", burned.NMRReturned, burned.NMRBonus)
	}
	if !burned.NMRBurned.Decimal.Equal(dec("9.5")) {
		t.Fatalf("burned: burn %v, want 9.5", burned.NMRBurned)
	}
}

func TestNormalizeOpenRound(t *testing.T) {
	got := normalize(t, 170, open(entry("u", "", stake("5", "0.5"))))
	u := got["u"]
	if u.Pass != nil || u.NMRBurned.Valid || u.NMRBonus.Valid {
		t.Fatalf("open rounds have no derived columns: %+v", u)
	}
	if !u.NMRStaked.Decimal.Equal(dec("5")) {
		t.Fatalf("stake = %v", u.NMRStaked)
	}
}

func TestNormalizeMissingOptionalColumns(t *testing.T) {
	got := normalize(t, 100, resolved("0.5", entry("u", "0.6")))
	u := got["u"]
	if u.NMRStaked.Valid || u.NMRStaking.Valid || u.NMRGeneral.Valid || u.NMRReturned.Valid || u.NMRBurned.Valid {
		t.Fatalf("absent columns should stay null: %+v", u)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload *apiclient.RoundPayload
		field   string
	}{
		{"nil payload", nil, "rounds"},
		{"missing status", &apiclient.RoundPayload{BenchmarkType: "auroc"}, "status"},
		{"missing cutoff", &apiclient.RoundPayload{Status: "RESOLVED", BenchmarkType: "auroc"}, "selection.bCutoff"},
		{"missing username", resolved("0.5", entry("", "0.6")), "username"},
		{"missing live auroc", resolved("0.5", entry("u", "")), "liveAuroc"},
		{"bad stake", resolved("0.5", entry("u", "0.6", stake("lots", ""))), "stake.value"},
		{"negative stake", resolved("0.5", entry("u", "0.6", stake("-1", ""))), "stake.value"},
		{"bad score", resolved("0.5", entry("u", "high")), "liveAuroc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeRound(RoundMeta{Round: 100, TournamentID: 1}, tt.payload, rules.Default())
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected malformed response, got %v", err)
			}
			var me *MalformedResponseError
			if !errors.As(err, &me) || me.Field != tt.field {
				t.Fatalf("expected field %q, got %v", tt.field, err)
			}
		})
	}
}
