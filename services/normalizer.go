package services

import (
	"strconv"
	"strings"

	"numerai-reports/apiclient"
	"numerai-reports/models"
	"numerai-reports/rules"

	"github.com/shopspring/decimal"
)

// RoundMeta identifies the round and tournament a payload belongs to.
type RoundMeta struct {
	Round        int
	TournamentID int
	Tournament   string
}

// NormalizeRound turns one raw round leaderboard into typed performance entries.
// Epoch-dependent columns (pass, burn, staking bonus) are derived here so that
// every aggregation downstream can ignore rule epochs.
func NormalizeRound(meta RoundMeta, payload *apiclient.RoundPayload, schedule rules.Schedule) ([]models.PerformanceEntry, error) {
	if payload == nil {
		return nil, &MalformedResponseError{Round: meta.Round, Tournament: meta.TournamentID, Field: "rounds"}
	}
	status := strings.ToUpper(strings.TrimSpace(payload.Status))
	if status == "" {
		return nil, &MalformedResponseError{Round: meta.Round, Tournament: meta.TournamentID, Field: "status"}
	}
	resolved := status == models.RoundStatusResolved
	benchmark := strings.ToLower(strings.TrimSpace(payload.BenchmarkType))
	auroc := benchmark == models.BenchmarkAuroc
	rs := schedule.At(meta.Round)

	field := "selection.pCutoff"
	var rawCutoff apiclient.Numeric
	if payload.Selection != nil {
		rawCutoff = payload.Selection.PCutoff
		if auroc {
			rawCutoff = payload.Selection.BCutoff
		}
	}
	if auroc {
		field = "selection.bCutoff"
	}
	cutoff, err := parseFloat(rawCutoff)
	if err != nil || (cutoff == nil && resolved && auroc) {
		return nil, &MalformedResponseError{Round: meta.Round, Tournament: meta.TournamentID, Field: field}
	}

	n := entryNormalizer{
		meta:      meta,
		status:    status,
		benchmark: benchmark,
		resolved:  resolved,
		auroc:     auroc,
		rules:     rs,
		cutoff:    cutoff,
	}

	entries := make([]models.PerformanceEntry, 0, len(payload.Leaderboard))
	for i := range payload.Leaderboard {
		e, err := n.normalize(&payload.Leaderboard[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

type entryNormalizer struct {
	meta      RoundMeta
	status    string
	benchmark string
	resolved  bool
	auroc     bool
	cutoff    *float64
	rules     rules.Ruleset
}

func (n *entryNormalizer) malformed(user, field string) error {
	return &MalformedResponseError{
		Round:      n.meta.Round,
		Tournament: n.meta.TournamentID,
		Field:      field,
		Username:   user,
	}
}

func (n *entryNormalizer) normalize(raw *apiclient.LeaderboardEntry) (models.PerformanceEntry, error) {
	user := strings.TrimSpace(raw.Username)
	if user == "" {
		return models.PerformanceEntry{}, n.malformed("", "username")
	}
	e := models.PerformanceEntry{
		RoundNum:      n.meta.Round,
		TournamentID:  n.meta.TournamentID,
		Tournament:    n.meta.Tournament,
		Username:      user,
		RoundStatus:   n.status,
		BenchmarkType: n.benchmark,
	}
	if n.cutoff != nil {
		cutoff := *n.cutoff
		e.StakingCutoff = &cutoff
	}

	scores := []struct {
		field string
		raw   apiclient.Numeric
		dst   **float64
	}{
		{"liveAuroc", raw.LiveAuroc, &e.LiveAuroc},
		{"liveLogloss", raw.LiveLogloss, &e.LiveLogloss},
		{"liveCorrelation", raw.LiveCorrelation, &e.LiveCorrelation},
		{"validationAuroc", raw.ValidationAuroc, &e.ValidationAuroc},
		{"validationLogloss", raw.ValidationLogloss, &e.ValidationLogloss},
	}
	for _, s := range scores {
		v, err := parseFloat(s.raw)
		if err != nil {
			return e, n.malformed(user, s.field)
		}
		*s.dst = v
	}

	var err error
	if raw.Stake != nil {
		if e.NMRStaked, err = parseDecimal(raw.Stake.Value); err != nil || e.NMRStaked.Decimal.IsNegative() {
			return e, n.malformed(user, "stake.value")
		}
		if e.StakeConfidence, err = parseFloat(raw.Stake.Confidence); err != nil {
			return e, n.malformed(user, "stake.confidence")
		}
	}

	payments := []struct {
		field   string
		payment *apiclient.Payment
		nmr     *decimal.NullDecimal
		usd     *decimal.NullDecimal
	}{
		{"paymentStaking", raw.PaymentStaking, &e.NMRStaking, &e.USDStaking},
		{"paymentGeneral", raw.PaymentGeneral, &e.NMRGeneral, &e.USDGeneral},
		{"return", raw.Return, &e.NMRReturned, nil},
	}
	for _, p := range payments {
		if p.payment == nil {
			continue
		}
		if *p.nmr, err = parseDecimal(p.payment.NmrAmount); err != nil {
			return e, n.malformed(user, p.field+".nmrAmount")
		}
		if p.usd != nil {
			if *p.usd, err = parseDecimal(p.payment.UsdAmount); err != nil {
				return e, n.malformed(user, p.field+".usdAmount")
			}
		}
	}

	if !n.resolved {
		return e, nil
	}

	var pass bool
	if n.auroc {
		if e.LiveAuroc == nil {
			return e, n.malformed(user, "liveAuroc")
		}
		pass = *e.LiveAuroc > *n.cutoff
	} else {
		if e.LiveLogloss == nil {
			return e, n.malformed(user, "liveLogloss")
		}
		pass = *e.LiveLogloss < n.rules.LoglossThreshold
	}
	e.Pass = &pass

	if e.Staked() {
		e.StakeDestroyed = raw.StakeResolution != nil && raw.StakeResolution.Destroyed
		n.applyStakingBonus(&e)
		e.NMRBurned = burned(&e)
	}
	return e, nil
}

// applyStakingBonus derives the staking bonus. In carve-out rounds the API
// already folded the bonus into the staking payment (kept stakes) or the
// returned amount (burned stakes), so the bonus is moved out of those totals
// instead of being added.
func (n *entryNormalizer) applyStakingBonus(e *models.PerformanceEntry) {
	if n.rules.StakingBonusRate <= 0 {
		return
	}
	bonus := e.NMRStaked.Decimal.Mul(decimal.NewFromFloat(n.rules.StakingBonusRate))
	if !n.rules.StakingBonusCarveOut {
		if e.StakeDestroyed {
			return
		}
		e.NMRBonus = validDecimal(bonus)
		if e.NMRStaking.Valid && e.USDStaking.Valid && e.NMRStaking.Decimal.IsPositive() {
			e.USDBonus = validDecimal(bonus.Mul(e.USDStaking.Decimal).Div(e.NMRStaking.Decimal))
		}
		return
	}

	switch {
	case !e.StakeDestroyed && e.NMRStaking.Valid:
		available := decimal.Max(decimal.Zero, e.NMRStaking.Decimal)
		carved := decimal.Min(bonus, available)
		if e.USDStaking.Valid && available.IsPositive() {
			usd := e.USDStaking.Decimal.Mul(carved).Div(available)
			e.USDStaking.Decimal = e.USDStaking.Decimal.Sub(usd)
			e.USDBonus = validDecimal(usd)
		}
		e.NMRStaking.Decimal = e.NMRStaking.Decimal.Sub(carved)
		e.NMRBonus = validDecimal(carved)
	case e.StakeDestroyed && e.NMRReturned.Valid:
		carved := decimal.Min(bonus, decimal.Max(decimal.Zero, e.NMRReturned.Decimal))
		e.NMRReturned.Decimal = e.NMRReturned.Decimal.Sub(carved)
		e.NMRBonus = validDecimal(carved)
	default:
		e.NMRBonus = validDecimal(decimal.Zero)
	}
}

// burned is stake x destroyed minus whatever part of the stake was returned.
func burned(e *models.PerformanceEntry) decimal.NullDecimal {
	b := decimal.Zero
	if e.StakeDestroyed {
		b = e.NMRStaked.Decimal
	}
	if e.NMRReturned.Valid {
		b = b.Sub(e.NMRReturned.Decimal)
	}
	if b.IsNegative() {
		b = decimal.Zero
	}
	return validDecimal(b)
}

func parseFloat(n apiclient.Numeric) (*float64, error) {
	if !n.IsSet() {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseDecimal(n apiclient.Numeric) (decimal.NullDecimal, error) {
	if !n.IsSet() {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(string(n)))
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return validDecimal(d), nil
}

func validDecimal(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
