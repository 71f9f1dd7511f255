package config

import (
	"os"
	"path/filepath"
	"testing"

	"numerai-reports/rules"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/reports")
	t.Setenv("SYNC_LOOKBACK_ROUNDS", "")
	t.Setenv("REPUTATION_WINDOW", "")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("RULES_FILE", "")
	t.Setenv("STAKING_BONUS_FROM", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":5300" || cfg.SyncLookbackRounds != 5 || cfg.ReputationWindow != 20 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Schedule.At(154).Name != rules.EpochStakingBonus {
		t.Fatalf("default schedule not loaded: %+v", cfg.Schedule.At(154))
	}
}

func TestLoadRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error without DATABASE_URL")
	}
}

func TestLoadStakingBonusFrom(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/reports")
	t.Setenv("RULES_FILE", "")

	t.Setenv("STAKING_BONUS_FROM", "156")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Schedule.At(155).StakingBonusRate != 0 || cfg.Schedule.At(156).StakingBonusRate == 0 {
		t.Fatal("staking bonus epoch not moved")
	}

	t.Setenv("STAKING_BONUS_FROM", "158")
	cfg, err = Load()
	if err != nil {
		t.Fatal(err)
	}
	if r := cfg.Schedule.At(157); r.StakingBonusRate != 0 || r.ReputationBonus {
		t.Fatalf("round 157 should pay no staking bonus: %+v", r)
	}
	if r := cfg.Schedule.At(160); r.StakingBonusRate == 0 || !r.ReputationBonus || r.FlatPassBonus != 0 {
		t.Fatalf("rules after the carve-out must not change: %+v", r)
	}

	t.Setenv("STAKING_BONUS_FROM", "160")
	if _, err := Load(); err == nil {
		t.Fatal("a staking bonus start past the carve-out should fail")
	}
}

func TestLoadRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	yaml := `epochs:
  - from: 0
    rules:
      name: only
      live_metric: live_correlation
      weighting: rounds
      fill: 0
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATABASE_URL", "postgres://localhost/reports")
	t.Setenv("RULES_FILE", path)
	t.Setenv("STAKING_BONUS_FROM", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Schedule) != 1 || cfg.Schedule.At(500).LiveMetric != rules.MetricCorrelation {
		t.Fatalf("rules file not applied: %+v", cfg.Schedule)
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/reports")
	t.Setenv("REPUTATION_WINDOW", "twenty")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a non-numeric window")
	}
}
