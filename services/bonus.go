package services

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// BonusCandidate is a staker competing for the reputation bonus pool.
type BonusCandidate struct {
	User       string
	Stake      decimal.Decimal
	Reputation float64
}

// BonusAllocation is one staker's share of the pool.
type BonusAllocation struct {
	User       string          `json:"username"`
	Stake      decimal.Decimal `json:"stake"`
	Reputation float64         `json:"reputation"`
	Allocated  decimal.Decimal `json:"allocated"`
	Bonus      decimal.Decimal `json:"bonus"`
}

// BonusReport is the reputation bonus of one round.
type BonusReport struct {
	Round       int               `json:"round"`
	FirstRound  int               `json:"first_round"`
	Provisional bool              `json:"provisional"`
	Pool        decimal.Decimal   `json:"pool"`
	Allocations []BonusAllocation `json:"allocations"`
}

// AllocateBonus walks the candidates by descending reputation, ties by
// username, and allocates each min(stake, what is left of the pool). The bonus
// is the allocated stake times rate. Candidates without a positive stake are
// dropped; candidates after the pool runs out get zero.
func AllocateBonus(cands []BonusCandidate, pool, rate decimal.Decimal) []BonusAllocation {
	ranked := make([]BonusCandidate, 0, len(cands))
	for _, c := range cands {
		if c.Stake.IsPositive() {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Reputation != ranked[j].Reputation {
			return ranked[i].Reputation > ranked[j].Reputation
		}
		return ranked[i].User < ranked[j].User
	})

	out := make([]BonusAllocation, len(ranked))
	cumulative := decimal.Zero
	for i, c := range ranked {
		left := decimal.Max(decimal.Zero, pool.Sub(cumulative))
		allocated := decimal.Min(c.Stake, left)
		out[i] = BonusAllocation{
			User:       c.User,
			Stake:      c.Stake,
			Reputation: c.Reputation,
			Allocated:  allocated,
			Bonus:      allocated.Mul(rate),
		}
		cumulative = cumulative.Add(c.Stake)
	}
	return out
}

// ReputationBonus allocates the bonus pool of round among the users who staked
// in the first round of the reputation window.
func (s *ReportService) ReputationBonus(ctx context.Context, round, windowSize int) (*BonusReport, error) {
	res, err := s.Reputation(ctx, nil, round, ReputationOptions{WindowSize: windowSize})
	if err != nil {
		return nil, err
	}
	rs := s.Window.Schedule().At(round)

	cands := make([]BonusCandidate, 0, len(res.Stakes))
	for u, stake := range res.Stakes {
		cands = append(cands, BonusCandidate{User: u, Stake: stake, Reputation: res.Scores[u]})
	}
	pool := decimal.NewFromFloat(rs.BonusPool)
	return &BonusReport{
		Round:       round,
		FirstRound:  res.FirstRound,
		Provisional: res.Provisional,
		Pool:        pool,
		Allocations: AllocateBonus(cands, pool, decimal.NewFromFloat(rs.BonusRate)),
	}, nil
}

// Table renders the allocations, ranked, with a "total" row.
func (b *BonusReport) Table() *Table {
	t := NewTable("reputation_bonus", "username", "stake", "reputation", "allocated", "bonus")
	for _, a := range b.Allocations {
		t.Append(a.User,
			Float(a.Stake.InexactFloat64()),
			Float(a.Reputation),
			Float(a.Allocated.InexactFloat64()),
			Float(a.Bonus.InexactFloat64()),
		)
	}
	t.SetSummarySum("total")
	t.Summary.Values[1] = Null()
	return t
}
