package services

import (
	"context"
	"fmt"
	"sort"

	"numerai-reports/models"

	"github.com/shopspring/decimal"
)

type moneyColumn struct {
	name  string
	field func(e *models.PerformanceEntry) decimal.NullDecimal
	// sign of the column in nmr_total / usd_total; 0 keeps it out of both.
	nmrSign int
	usd     bool
}

var moneyColumns = []moneyColumn{
	{name: "nmr_staked", field: func(e *models.PerformanceEntry) decimal.NullDecimal { return e.NMRStaked }},
	{name: "nmr_burned", field: func(e *models.PerformanceEntry) decimal.NullDecimal { return e.NMRBurned }, nmrSign: -1},
	{name: "nmr_staking", field: func(e *models.PerformanceEntry) decimal.NullDecimal { return e.NMRStaking }, nmrSign: 1},
	{name: "nmr_bonus", field: func(e *models.PerformanceEntry) decimal.NullDecimal { return e.NMRBonus }, nmrSign: 1},
	{name: "nmr_general", field: func(e *models.PerformanceEntry) decimal.NullDecimal { return e.NMRGeneral }, nmrSign: 1},
	{name: "usd_bonus", field: func(e *models.PerformanceEntry) decimal.NullDecimal { return e.USDBonus }, usd: true},
	{name: "usd_staking", field: func(e *models.PerformanceEntry) decimal.NullDecimal { return e.USDStaking }, usd: true},
	{name: "usd_general", field: func(e *models.PerformanceEntry) decimal.NullDecimal { return e.USDGeneral }, usd: true},
}

// Payments reconciles the money users made in every round of [start, end]
// they took part in. Each row holds the monetary columns reported for those
// users, the reputation bonus of the round's epoch, nmr_total (native payments
// and bonuses minus burns) and usd_total. A trailing "total" row sums every
// column. Values are rounded to 2 decimals.
func (s *ReportService) Payments(ctx context.Context, users []string, start, end int) (*Table, error) {
	entries, err := s.Window.GetRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(users))
	for _, u := range users {
		wanted[u] = true
	}

	present := make([]bool, len(moneyColumns))
	sums := make(map[int][]decimal.Decimal)
	passes := make(map[int]int)
	for i := range entries {
		e := &entries[i]
		if !wanted[e.Username] {
			continue
		}
		row, ok := sums[e.RoundNum]
		if !ok {
			row = make([]decimal.Decimal, len(moneyColumns))
			sums[e.RoundNum] = row
		}
		for ci, col := range moneyColumns {
			if v := col.field(e); v.Valid {
				present[ci] = true
				row[ci] = row[ci].Add(v.Decimal)
			}
		}
		if e.Passed() {
			passes[e.RoundNum]++
		}
	}

	rounds := make([]int, 0, len(sums))
	for r := range sums {
		rounds = append(rounds, r)
	}
	sort.Ints(rounds)

	var cols []int
	var names []string
	for ci, col := range moneyColumns {
		if present[ci] {
			cols = append(cols, ci)
			names = append(names, col.name)
		}
	}
	names = append(names, "nmr_rep_bonus", "nmr_total", "usd_total")
	t := NewTable("payments", "round_num", names...)

	for _, r := range rounds {
		repBonus, err := s.roundRepBonus(ctx, r, wanted, passes[r])
		if err != nil {
			return nil, err
		}
		nmrTotal := repBonus
		usdTotal := decimal.Zero
		values := make([]Cell, 0, len(names))
		for _, ci := range cols {
			v := sums[r][ci]
			col := moneyColumns[ci]
			switch {
			case col.nmrSign > 0:
				nmrTotal = nmrTotal.Add(v)
			case col.nmrSign < 0:
				nmrTotal = nmrTotal.Sub(v)
			case col.usd:
				usdTotal = usdTotal.Add(v)
			}
			values = append(values, Float(v.InexactFloat64()))
		}
		values = append(values,
			Float(repBonus.InexactFloat64()),
			Float(nmrTotal.InexactFloat64()),
			Float(usdTotal.InexactFloat64()),
		)
		t.Append(roundKey(r), values...)
	}
	t.SetSummarySum("total")
	t.Round(2)
	return t, nil
}

// roundRepBonus is the reputation-related bonus users earned in round: their
// share of the reputation bonus pool, a flat amount per pass, or nothing,
// depending on the epoch.
func (s *ReportService) roundRepBonus(ctx context.Context, round int, users map[string]bool, passes int) (decimal.Decimal, error) {
	rs := s.Window.Schedule().At(round)
	switch {
	case rs.ReputationBonus:
		report, err := s.ReputationBonus(ctx, round, s.windowSize())
		if err != nil {
			return decimal.Zero, fmt.Errorf("reputation bonus of round %d: %w", round, err)
		}
		total := decimal.Zero
		for _, a := range report.Allocations {
			if users[a.User] {
				total = total.Add(a.Bonus)
			}
		}
		return total, nil
	case rs.FlatPassBonus > 0:
		return decimal.NewFromFloat(rs.FlatPassBonus).Mul(decimal.NewFromInt(int64(passes))), nil
	default:
		return decimal.Zero, nil
	}
}
