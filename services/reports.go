package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"numerai-reports/models"
)

// Dominance directions.
const (
	DirectionMore = "more"
	DirectionLess = "less"
)

// ReportService computes every report over a shared leaderboard Window.
type ReportService struct {
	Window     *Window
	WindowSize int
}

func NewReportService(window *Window, windowSize int) *ReportService {
	return &ReportService{Window: window, WindowSize: windowSize}
}

func (s *ReportService) windowSize() int {
	if s.WindowSize > 0 {
		return s.WindowSize
	}
	return DefaultWindowSize
}

// ValidateMetric rejects score column names entries do not carry.
func ValidateMetric(metric string) error {
	for _, m := range models.MetricNames {
		if m == metric {
			return nil
		}
	}
	return &InvalidMetricError{Metric: metric}
}

// AllStarClub lists the users who passed in every tournament of round, by
// descending mean live auroc.
func (s *ReportService) AllStarClub(ctx context.Context, round int) (*Table, error) {
	entries, err := s.Window.Get(ctx, round)
	if err != nil {
		return nil, err
	}
	tournaments := make(map[int]bool)
	type agg struct {
		passes int
		aurocs []float64
	}
	byUser := make(map[string]*agg)
	for i := range entries {
		e := &entries[i]
		tournaments[e.TournamentID] = true
		a := byUser[e.Username]
		if a == nil {
			a = &agg{}
			byUser[e.Username] = a
		}
		if e.Passed() {
			a.passes++
		}
		if e.LiveAuroc != nil {
			a.aurocs = append(a.aurocs, *e.LiveAuroc)
		}
	}

	type star struct {
		user  string
		auroc float64
	}
	var stars []star
	for u, a := range byUser {
		if a.passes == len(tournaments) {
			stars = append(stars, star{user: u, auroc: mean(a.aurocs)})
		}
	}
	sort.Slice(stars, func(i, j int) bool {
		return lessDesc(stars[i].auroc, stars[j].auroc, stars[i].user, stars[j].user)
	})

	t := NewTable("all_star_club", "username", "mean_auroc")
	for _, st := range stars {
		t.Append(st.user, Float(st.auroc))
	}
	return t, nil
}

// OutOfN reports, per round, the fraction of users who passed k of the N
// tournaments, the number of users and the mean passes per user.
func (s *ReportService) OutOfN(ctx context.Context, start, end int) (*Table, error) {
	entries, err := s.Window.GetRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	tournaments := make(map[int]bool)
	passes := make(map[int]map[string]int)
	for i := range entries {
		e := &entries[i]
		tournaments[e.TournamentID] = true
		if passes[e.RoundNum] == nil {
			passes[e.RoundNum] = make(map[string]int)
		}
		n := passes[e.RoundNum][e.Username]
		if e.Passed() {
			n++
		}
		passes[e.RoundNum][e.Username] = n
	}

	n := len(tournaments)
	cols := make([]string, 0, n+3)
	for k := 0; k <= n; k++ {
		cols = append(cols, strconv.Itoa(k))
	}
	cols = append(cols, "N", "mean")
	t := NewTable("out_of_n", "round_num", cols...)

	for _, r := range sortedKeys(passes) {
		counts := make([]int, n+1)
		total := 0
		for _, p := range passes[r] {
			counts[p]++
			total += p
		}
		users := len(passes[r])
		values := make([]Cell, 0, len(cols))
		for _, c := range counts {
			values = append(values, Float(float64(c)/float64(users)))
		}
		values = append(values,
			Float(float64(users)),
			Float(roundTo(float64(total)/float64(users), 3)),
		)
		t.Append(roundKey(r), values...)
	}
	t.SetSummaryMean("mean")
	return t, nil
}

var passRateColumns = []string{
	"all", "stakers", "stakers>0.1", "stakers<=0.1", "non_stakers", "above_cutoff", "below_cutoff",
}

// PassRate reports, per round, the pass rate of all users and of staker
// subgroups. Values are rounded to 3 decimals.
func (s *ReportService) PassRate(ctx context.Context, start, end int) (*Table, error) {
	entries, err := s.Window.GetRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	groups := make(map[int][][]float64)
	for i := range entries {
		e := &entries[i]
		if e.Pass == nil {
			continue
		}
		g := groups[e.RoundNum]
		if g == nil {
			g = make([][]float64, len(passRateColumns))
			groups[e.RoundNum] = g
		}
		p := 0.0
		if *e.Pass {
			p = 1
		}
		stake := e.NMRStaked.Decimal.InexactFloat64()
		confident := e.StakeConfidence != nil && e.StakingCutoff != nil
		member := []bool{
			true,
			e.Staked(),
			e.Staked() && stake > 0.1,
			e.Staked() && stake <= 0.1,
			!e.Staked(),
			confident && *e.StakeConfidence >= *e.StakingCutoff,
			confident && *e.StakeConfidence < *e.StakingCutoff,
		}
		for ci, in := range member {
			if in {
				g[ci] = append(g[ci], p)
			}
		}
	}

	t := NewTable("pass_rate", "round_num", passRateColumns...)
	for _, r := range sortedKeys(groups) {
		values := make([]Cell, len(passRateColumns))
		for ci, g := range groups[r] {
			values[ci] = Float(mean(g))
		}
		t.Append(roundKey(r), values...)
	}
	t.SetSummaryMean("mean")
	t.Round(3)
	return t, nil
}

// Friends correlates metric between user and every other user over the
// (round, tournament) slots both have a value for, by descending correlation.
func (s *ReportService) Friends(ctx context.Context, user string, start, end int, metric string) (*Table, error) {
	if err := ValidateMetric(metric); err != nil {
		return nil, err
	}
	entries, err := s.Window.GetRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	values := make(map[string]map[slot]float64)
	for i := range entries {
		e := &entries[i]
		v, ok := e.Metric(metric)
		if !ok {
			continue
		}
		if values[e.Username] == nil {
			values[e.Username] = make(map[slot]float64)
		}
		values[e.Username][slot{round: e.RoundNum, tournament: e.TournamentID}] = v
	}

	t := NewTable("friends", "username", "mean_correlation")
	mine := values[user]
	if mine == nil {
		return t, nil
	}
	type friend struct {
		user string
		corr float64
	}
	var friends []friend
	for other, theirs := range values {
		if other == user {
			continue
		}
		var xs, ys []float64
		for k, x := range mine {
			if y, ok := theirs[k]; ok {
				xs = append(xs, x)
				ys = append(ys, y)
			}
		}
		friends = append(friends, friend{user: other, corr: pearson(xs, ys)})
	}
	sort.Slice(friends, func(i, j int) bool {
		return lessDesc(friends[i].corr, friends[j].corr, friends[i].user, friends[j].user)
	})
	for _, f := range friends {
		t.Append(f.user, Float(f.corr))
	}
	return t, nil
}

// Dominance reports, per round and tournament, the fraction of other users
// that user beats on kpi: "more" counts others with a lower value, "less"
// others with a higher one. A "mean" column and a "mean" row summarize it.
func (s *ReportService) Dominance(ctx context.Context, user string, start, end int, kpi, direction string) (*Table, error) {
	if direction != DirectionMore && direction != DirectionLess {
		return nil, &InvalidDirectionError{Direction: direction}
	}
	if err := ValidateMetric(kpi); err != nil {
		return nil, err
	}
	entries, err := s.Window.GetRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	mine := make(map[slot]float64)
	names := make(map[int]string)
	for i := range entries {
		e := &entries[i]
		names[e.TournamentID] = e.Tournament
		if e.Username != user {
			continue
		}
		if v, ok := e.Metric(kpi); ok {
			mine[slot{round: e.RoundNum, tournament: e.TournamentID}] = v
		}
	}
	type tally struct{ beaten, count int }
	tallies := make(map[slot]*tally)
	rounds := make(map[int]bool)
	for i := range entries {
		e := &entries[i]
		rounds[e.RoundNum] = true
		if e.Username == user {
			continue
		}
		k := slot{round: e.RoundNum, tournament: e.TournamentID}
		u, ok := mine[k]
		if !ok {
			continue
		}
		v, ok := e.Metric(kpi)
		if !ok {
			continue
		}
		tl := tallies[k]
		if tl == nil {
			tl = &tally{}
			tallies[k] = tl
		}
		tl.count++
		if (direction == DirectionMore && v < u) || (direction == DirectionLess && v > u) {
			tl.beaten++
		}
	}

	tourIDs := sortedKeys(names)
	cols := make([]string, 0, len(tourIDs)+1)
	for _, id := range tourIDs {
		cols = append(cols, names[id])
	}
	cols = append(cols, "mean")
	t := NewTable("dominance", "round_num", cols...)
	for _, r := range sortedKeys(rounds) {
		values := make([]Cell, len(cols))
		var fracs []float64
		for ci, id := range tourIDs {
			if tl := tallies[slot{round: r, tournament: id}]; tl != nil {
				f := float64(tl.beaten) / float64(tl.count)
				values[ci] = Float(f)
				fracs = append(fracs, f)
			}
		}
		values[len(tourIDs)] = Float(mean(fracs))
		t.Append(roundKey(r), values...)
	}
	t.SetSummaryMean("mean")
	return t, nil
}

// Summary reports, per round, the pass rate, distinct users, submissions,
// mean cutoff and tournaments per user, rounded to 2 decimals.
func (s *ReportService) Summary(ctx context.Context, start, end int) (*Table, error) {
	entries, err := s.Window.GetRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	type agg struct {
		passes      []float64
		users       map[string]bool
		submissions int
		cutoffs     []float64
	}
	byRound := make(map[int]*agg)
	for i := range entries {
		e := &entries[i]
		a := byRound[e.RoundNum]
		if a == nil {
			a = &agg{users: make(map[string]bool)}
			byRound[e.RoundNum] = a
		}
		if e.Pass != nil {
			p := 0.0
			if *e.Pass {
				p = 1
			}
			a.passes = append(a.passes, p)
		}
		a.users[e.Username] = true
		a.submissions++
		if e.StakingCutoff != nil {
			a.cutoffs = append(a.cutoffs, *e.StakingCutoff)
		}
	}

	t := NewTable("summary", "round_num", "pass_rate", "users", "submissions", "cutoff", "tourneys/user")
	for _, r := range sortedKeys(byRound) {
		a := byRound[r]
		t.Append(roundKey(r),
			Float(mean(a.passes)),
			Float(float64(len(a.users))),
			Float(float64(a.submissions)),
			Float(mean(a.cutoffs)),
			Float(float64(a.submissions)/float64(len(a.users))),
		)
	}
	t.Round(2)
	return t, nil
}

// pearson returns the sample correlation of xs and ys, NaN when it is undefined.
func pearson(xs, ys []float64) float64 {
	if len(xs) < 2 || len(xs) != len(ys) {
		return math.NaN()
	}
	mx, my := mean(xs), mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}

// lessDesc orders by descending value with NaN last, then by ascending name.
func lessDesc(a, b float64, nameA, nameB string) bool {
	switch {
	case math.IsNaN(a) && math.IsNaN(b):
		return nameA < nameB
	case math.IsNaN(a):
		return false
	case math.IsNaN(b):
		return true
	case a != b:
		return a > b
	}
	return nameA < nameB
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// RangeFor returns the inclusive range [start, end], with end defaulting to
// start when unset.
func RangeFor(start int, end *int) (int, int, error) {
	if end == nil {
		return start, start, nil
	}
	if *end < start {
		return 0, 0, fmt.Errorf("end round %d before start round %d", *end, start)
	}
	return start, *end, nil
}
