package rules

import (
	"fmt"
	"math"
	"sort"
)

// Metric names the live score column a reputation slot contributes.
type Metric string

const (
	MetricAuroc       Metric = "live_auroc"
	MetricCorrelation Metric = "live_correlation"
)

// Weighting controls how reputation slots are averaged.
type Weighting string

const (
	// WeightSlots weights every (round, tournament) slot equally.
	WeightSlots Weighting = "slots"
	// WeightRounds averages tournaments within a round first, then weights rounds equally.
	WeightRounds Weighting = "rounds"
)

// Ruleset is the set of scoring and payout rules in force for a range of rounds.
type Ruleset struct {
	Name string `yaml:"name"`

	// Pass rule for non-auroc benchmarks: live_logloss < LoglossThreshold.
	LoglossThreshold float64 `yaml:"logloss_threshold"`

	// Reputation
	LiveMetric  Metric    `yaml:"live_metric"`
	Weighting   Weighting `yaml:"weighting"`
	AurocOffset float64   `yaml:"auroc_offset"`
	Fill        float64   `yaml:"fill"`

	// Bonuses
	FlatPassBonus        float64 `yaml:"flat_pass_bonus"`         // NMR per pass, reputation independent
	StakingBonusRate     float64 `yaml:"staking_bonus_rate"`      // fraction of stake
	StakingBonusCarveOut bool    `yaml:"staking_bonus_carve_out"` // bonus already folded into staking/returned amounts
	ReputationBonus      bool    `yaml:"reputation_bonus"`
	BonusPool            float64 `yaml:"bonus_pool"`
	BonusRate            float64 `yaml:"bonus_rate"`
}

// Epoch is a ruleset together with the first round it applies to.
type Epoch struct {
	From  int     `yaml:"from"`
	Rules Ruleset `yaml:"rules"`
}

// Schedule is an ordered list of epochs, ascending by From.
type Schedule []Epoch

// At returns the ruleset in force for the given round. Rounds before the first
// epoch get the first epoch's rules.
func (s Schedule) At(round int) Ruleset {
	if len(s) == 0 {
		return Ruleset{}
	}
	i := sort.Search(len(s), func(i int) bool { return s[i].From > round })
	if i == 0 {
		return s[0].Rules
	}
	return s[i-1].Rules
}

// Validate checks the schedule is non-empty, strictly ascending and that every
// ruleset names a known metric and weighting.
func (s Schedule) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("rule schedule is empty")
	}
	for i, e := range s {
		if i > 0 && e.From <= s[i-1].From {
			return fmt.Errorf("epoch %q starts at round %d, not after %q (round %d)",
				e.Rules.Name, e.From, s[i-1].Rules.Name, s[i-1].From)
		}
		switch e.Rules.LiveMetric {
		case MetricAuroc, MetricCorrelation:
		default:
			return fmt.Errorf("epoch %q: unknown live_metric %q", e.Rules.Name, e.Rules.LiveMetric)
		}
		switch e.Rules.Weighting {
		case WeightSlots, WeightRounds:
		default:
			return fmt.Errorf("epoch %q: unknown weighting %q", e.Rules.Name, e.Rules.Weighting)
		}
		if e.Rules.ReputationBonus && e.Rules.BonusPool <= 0 {
			return fmt.Errorf("epoch %q: reputation bonus needs a positive bonus_pool", e.Rules.Name)
		}
	}
	return nil
}

// MoveEpoch returns a copy of the schedule with the named epoch starting at from.
func (s Schedule) MoveEpoch(name string, from int) (Schedule, error) {
	out := make(Schedule, len(s))
	copy(out, s)
	found := false
	for i := range out {
		if out[i].Rules.Name == name {
			out[i].From = from
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("no epoch named %q", name)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].From < out[j].From })
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// WithStakingBonusFrom returns a copy of the schedule in which the staking
// bonus starts at round from. Only the rate changes: rounds before from pay no
// staking bonus, rounds from on pay the schedule's rate, and every other rule
// stays with its epoch. The epoch holding from is split there, and adjacent
// epochs left with identical rules are merged. The start may not move past the
// carve-out epoch, whose payments already include the bonus.
func (s Schedule) WithStakingBonusFrom(from int) (Schedule, error) {
	if from < 0 {
		return nil, fmt.Errorf("staking bonus start must not be negative, got %d", from)
	}
	rate, start, carveOut := 0.0, -1, -1
	for _, e := range s {
		if start < 0 && e.Rules.StakingBonusRate > 0 {
			rate, start = e.Rules.StakingBonusRate, e.From
		}
		if carveOut < 0 && e.Rules.StakingBonusCarveOut {
			carveOut = e.From
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("no epoch pays a staking bonus")
	}
	if carveOut >= 0 && from > carveOut {
		return nil, fmt.Errorf("staking bonus must start by round %d (carve-out), got %d", carveOut, from)
	}

	// rateFrom is the rate of an epoch part starting at round at >= from.
	rateFrom := func(e Epoch, at int) float64 {
		if at < start {
			return rate
		}
		return e.Rules.StakingBonusRate
	}
	var out Schedule
	for i, e := range s {
		next := math.MaxInt
		if i+1 < len(s) {
			next = s[i+1].From
		}
		r := e.Rules
		switch {
		case next <= from:
			r.StakingBonusRate = 0
			out = append(out, Epoch{From: e.From, Rules: r})
		case e.From >= from:
			r.StakingBonusRate = rateFrom(e, e.From)
			out = append(out, Epoch{From: e.From, Rules: r})
		default:
			r.StakingBonusRate = 0
			out = append(out, Epoch{From: e.From, Rules: r})
			split := e.Rules
			split.Name = EpochStakingBonus
			split.StakingBonusRate = rateFrom(e, from)
			out = append(out, Epoch{From: from, Rules: split})
		}
	}

	merged := out[:1]
	for _, e := range out[1:] {
		if sameRules(merged[len(merged)-1].Rules, e.Rules) {
			continue
		}
		merged = append(merged, e)
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

func sameRules(a, b Ruleset) bool {
	a.Name, b.Name = "", ""
	return a == b
}

// Epoch names used by the default schedule.
const (
	EpochLegacy              = "legacy"
	EpochFlatPassBonus       = "flat-pass-bonus"
	EpochStakingBonus        = "staking-bonus"
	EpochReputationCarveOut  = "reputation-bonus-carve-out"
	EpochReputationBonus     = "reputation-bonus"
	EpochRoundWeighted       = "round-weighted"
	EpochCorrelation         = "correlation"
	DefaultLoglossThreshold  = 0.693
	DefaultBonusPool         = 1000
	DefaultBonusRate         = 0.5
	DefaultFlatPassBonus     = 0.1
	DefaultStakingBonusRate  = 0.05
	DefaultLegacyFill        = 0.4
	DefaultRoundWeightedFill = -0.1
)

// Default is the historical rule schedule of the competition.
func Default() Schedule {
	legacy := Ruleset{
		Name:             EpochLegacy,
		LoglossThreshold: DefaultLoglossThreshold,
		LiveMetric:       MetricAuroc,
		Weighting:        WeightSlots,
		Fill:             DefaultLegacyFill,
		BonusPool:        DefaultBonusPool,
		BonusRate:        DefaultBonusRate,
	}

	flat := legacy
	flat.Name = EpochFlatPassBonus
	flat.FlatPassBonus = DefaultFlatPassBonus

	staking := flat
	staking.Name = EpochStakingBonus
	staking.StakingBonusRate = DefaultStakingBonusRate

	carveOut := staking
	carveOut.Name = EpochReputationCarveOut
	carveOut.FlatPassBonus = 0
	carveOut.ReputationBonus = true
	carveOut.StakingBonusCarveOut = true

	reputation := carveOut
	reputation.Name = EpochReputationBonus
	reputation.StakingBonusCarveOut = false

	roundWeighted := reputation
	roundWeighted.Name = EpochRoundWeighted
	roundWeighted.Weighting = WeightRounds
	roundWeighted.AurocOffset = 0.5
	roundWeighted.Fill = DefaultRoundWeightedFill

	correlation := roundWeighted
	correlation.Name = EpochCorrelation
	correlation.LiveMetric = MetricCorrelation

	return Schedule{
		{From: 0, Rules: legacy},
		{From: 101, Rules: flat},
		{From: 154, Rules: staking},
		{From: 158, Rules: carveOut},
		{From: 159, Rules: reputation},
		{From: 164, Rules: roundWeighted},
		{From: 168, Rules: correlation},
	}
}
