package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"donasi/internal/cache"
	"donasi/internal/donor"
	"donasi/internal/models"
	"donasi/internal/observability"
	"donasi/internal/repository"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	recentDonationLimit  = 5
	defaultTopDonorLimit = 10
	defaultTrendDays     = 30
)

// TrendPeriod selects the bucket width of a trend series.
type TrendPeriod string

const (
	TrendDaily   TrendPeriod = "daily"
	TrendWeekly  TrendPeriod = "weekly"
	TrendMonthly TrendPeriod = "monthly"
)

// DonorBucket is one fund-summary grouping.
type DonorBucket struct {
	Key           donor.Key       `json:"key"`
	Name          string          `json:"name"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	DonationCount int             `json:"donation_count"`
}

// RecentDonation is a preview row in a program summary.
type RecentDonation struct {
	ID          uint            `json:"id"`
	DonorName   string          `json:"donor_name"`
	Amount      decimal.Decimal `json:"amount"`
	IsAnonymous bool            `json:"is_anonymous"`
	PaidAt      *time.Time      `json:"paid_at"`
}

// ProgramSummary is the fund rollup of one program.
type ProgramSummary struct {
	ProgramID       uint             `json:"program_id"`
	TargetAmount    decimal.Decimal  `json:"target_amount"`
	CollectedAmount decimal.Decimal  `json:"collected_amount"`
	Percentage      decimal.Decimal  `json:"percentage"`
	DonorCount      int              `json:"donor_count"`
	DonationCount   int              `json:"donation_count"`
	DonorBuckets    []DonorBucket    `json:"donor_buckets"`
	RecentDonations []RecentDonation `json:"recent_donations"`
}

// ProgramDonorRow is one donor in the per-program finance drill-down.
type ProgramDonorRow struct {
	Key           donor.Key       `json:"key"`
	DonorName     string          `json:"donor_name"`
	IsAnonymous   bool            `json:"is_anonymous"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	DonationCount int             `json:"donation_count"`
}

// DonorLeaderboardEntry is one row of the cross-program leaderboard.
type DonorLeaderboardEntry struct {
	Key               donor.Key       `json:"key"`
	DonorName         string          `json:"donor_name"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	DonationCount     int             `json:"donation_count"`
	ProgramsSupported int             `json:"programs_supported"`
	Tier              string          `json:"tier"`
}

// TrendBucket aggregates donations in one day, week or month.
type TrendBucket struct {
	Date    string          `json:"date"`
	Count   int             `json:"count"`
	Amount  decimal.Decimal `json:"amount"`
	Average decimal.Decimal `json:"average"`
}

// AggregationService derives reports from the donation ledger.
type AggregationService struct {
	ledger   repository.DonationLedger
	programs repository.ProgramRepository
	tiers    []Tier
	cacheTTL time.Duration
	now      func() time.Time
}

// AggregationOption customises an AggregationService.
type AggregationOption func(*AggregationService)

// WithClock replaces time.Now, for deterministic trend windows.
func WithClock(now func() time.Time) AggregationOption {
	return func(s *AggregationService) { s.now = now }
}

// WithCacheTTL sets how long summaries and leaderboards are cached.
func WithCacheTTL(ttl time.Duration) AggregationOption {
	return func(s *AggregationService) { s.cacheTTL = ttl }
}

// NewAggregationService returns an AggregationService. A nil tier table
// falls back to DefaultTiers.
func NewAggregationService(ledger repository.DonationLedger, programs repository.ProgramRepository, tiers []Tier, opts ...AggregationOption) *AggregationService {
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	s := &AggregationService{
		ledger:   ledger,
		programs: programs,
		tiers:    tiers,
		cacheTTL: cache.ReportTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tiers returns the tier table in use.
func (s *AggregationService) Tiers() []Tier {
	return s.tiers
}

// ProgramSummary sums the SUCCESS donations of a program. An unknown program
// yields an empty summary.
func (s *AggregationService) ProgramSummary(ctx context.Context, programID uint) (*ProgramSummary, error) {
	program, err := s.programs.GetByID(ctx, programID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		program = &models.Program{ID: programID, TargetAmount: decimal.Zero}
	case err != nil:
		return nil, err
	}

	var summary ProgramSummary
	err = cache.Aside(ctx, cache.ProgramSummaryKey(programID), &summary, s.cacheTTL, func() error {
		donations, err := s.ledger.ListSuccessfulByProgram(ctx, programID)
		if err != nil {
			return err
		}
		summary = buildProgramSummary(program, donations)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func buildProgramSummary(program *models.Program, donations []models.Donation) ProgramSummary {
	summary := ProgramSummary{
		ProgramID:       program.ID,
		TargetAmount:    program.TargetAmount,
		CollectedAmount: decimal.Zero,
		Percentage:      decimal.Zero,
		DonationCount:   len(donations),
		DonorBuckets:    []DonorBucket{},
		RecentDonations: []RecentDonation{},
	}

	index := make(map[donor.Key]int)
	named := make(map[donor.Key]struct{})
	for i := range donations {
		dn := &donations[i]
		summary.CollectedAmount = summary.CollectedAmount.Add(dn.Amount)

		key, _ := donor.ResolveDonation(dn, donor.ViewFundSummary)
		if !key.IsAnonymous() {
			named[key] = struct{}{}
		}
		pos, ok := index[key]
		if !ok {
			pos = len(summary.DonorBuckets)
			index[key] = pos
			summary.DonorBuckets = append(summary.DonorBuckets, DonorBucket{
				Key:         key,
				Name:        donor.DisplayName(dn, key),
				TotalAmount: decimal.Zero,
			})
		}
		b := &summary.DonorBuckets[pos]
		b.TotalAmount = b.TotalAmount.Add(dn.Amount)
		b.DonationCount++
	}
	summary.DonorCount = len(named)

	if program.TargetAmount.IsPositive() {
		summary.Percentage = summary.CollectedAmount.
			Div(program.TargetAmount).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	recent := make([]*models.Donation, 0, len(donations))
	for i := range donations {
		recent = append(recent, &donations[i])
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return paidAfter(recent[i], recent[j])
	})
	if len(recent) > recentDonationLimit {
		recent = recent[:recentDonationLimit]
	}
	for _, dn := range recent {
		name := dn.DonorName
		if dn.IsAnonymous {
			name = donor.DisplayName(dn, donor.AnonymousKey)
		}
		summary.RecentDonations = append(summary.RecentDonations, RecentDonation{
			ID:          dn.ID,
			DonorName:   name,
			Amount:      dn.Amount,
			IsAnonymous: dn.IsAnonymous,
			PaidAt:      dn.PaidAt,
		})
	}
	return summary
}

// paidAfter orders by paid time descending; unpaid rows sort last and ties
// fall back to the higher id.
func paidAfter(a, b *models.Donation) bool {
	switch {
	case a.PaidAt == nil && b.PaidAt == nil:
		return a.ID > b.ID
	case a.PaidAt == nil:
		return false
	case b.PaidAt == nil:
		return true
	case a.PaidAt.Equal(*b.PaidAt):
		return a.ID > b.ID
	}
	return a.PaidAt.After(*b.PaidAt)
}

// ProgramDonors groups a program's SUCCESS donations by donor, with every
// anonymous donation kept as its own row, sorted by total descending. Rows
// with equal totals keep ledger order. limit <= 0 returns every row after
// offset.
func (s *AggregationService) ProgramDonors(ctx context.Context, programID uint, limit, offset int) ([]ProgramDonorRow, error) {
	donations, err := s.ledger.ListSuccessfulByProgram(ctx, programID)
	if err != nil {
		return nil, err
	}

	rows := []ProgramDonorRow{}
	index := make(map[donor.Key]int)
	for i := range donations {
		dn := &donations[i]
		key, _ := donor.ResolveDonation(dn, donor.ViewProgramDonors)
		pos, ok := index[key]
		if !ok {
			pos = len(rows)
			index[key] = pos
			rows = append(rows, ProgramDonorRow{
				Key:         key,
				DonorName:   donor.DisplayName(dn, key),
				IsAnonymous: key.IsAnonymous(),
				TotalAmount: decimal.Zero,
			})
		}
		rows[pos].TotalAmount = rows[pos].TotalAmount.Add(dn.Amount)
		rows[pos].DonationCount++
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalAmount.GreaterThan(rows[j].TotalAmount)
	})

	return paginate(rows, limit, offset), nil
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return []T{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// TopDonors ranks named donors across all programs. Anonymous donations are
// left out entirely. limit <= 0 means the default of 10.
func (s *AggregationService) TopDonors(ctx context.Context, limit int) ([]DonorLeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultTopDonorLimit
	}

	var entries []DonorLeaderboardEntry
	err := cache.Aside(ctx, cache.TopDonorsKey(limit), &entries, s.cacheTTL, func() error {
		donations, err := s.ledger.ListSuccessful(ctx)
		if err != nil {
			return err
		}
		entries = s.buildTopDonors(donations, limit)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *AggregationService) buildTopDonors(donations []models.Donation, limit int) []DonorLeaderboardEntry {
	entries := []DonorLeaderboardEntry{}
	index := make(map[donor.Key]int)
	programs := make(map[donor.Key]map[uint]struct{})

	for i := range donations {
		dn := &donations[i]
		key, ok := donor.ResolveDonation(dn, donor.ViewTopDonors)
		if !ok {
			continue
		}
		pos, seen := index[key]
		if !seen {
			pos = len(entries)
			index[key] = pos
			programs[key] = make(map[uint]struct{})
			entries = append(entries, DonorLeaderboardEntry{
				Key:         key,
				DonorName:   donor.DisplayName(dn, key),
				TotalAmount: decimal.Zero,
			})
		}
		e := &entries[pos]
		e.TotalAmount = e.TotalAmount.Add(dn.Amount)
		e.DonationCount++
		programs[key][dn.ProgramID] = struct{}{}
	}

	for i := range entries {
		entries[i].ProgramsSupported = len(programs[entries[i].Key])
		entries[i].Tier = LeaderboardTier(entries[i].TotalAmount, s.tiers)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalAmount.GreaterThan(entries[j].TotalAmount)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// ParseTrendPeriod validates a period query value.
func ParseTrendPeriod(v string) (TrendPeriod, error) {
	switch p := TrendPeriod(v); p {
	case TrendDaily, TrendWeekly, TrendMonthly:
		return p, nil
	case "":
		return TrendDaily, nil
	}
	return "", models.NewValidationError("period must be one of daily, weekly, monthly")
}

// TrendBucketKey returns the bucket a payment time falls into, in UTC. Weeks
// start on the Sunday on or before the date.
func TrendBucketKey(period TrendPeriod, paidAt time.Time) string {
	t := paidAt.UTC()
	switch period {
	case TrendMonthly:
		return t.Format("2006-01")
	case TrendWeekly:
		return t.AddDate(0, 0, -int(t.Weekday())).Format("2006-01-02")
	default:
		return t.Format("2006-01-02")
	}
}

// Trends buckets SUCCESS donations paid in the trailing days window,
// ascending by bucket key. days <= 0 means 30.
func (s *AggregationService) Trends(ctx context.Context, period TrendPeriod, days int) ([]TrendBucket, error) {
	if _, err := ParseTrendPeriod(string(period)); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = defaultTrendDays
	}
	since := s.now().UTC().AddDate(0, 0, -days)

	donations, err := s.ledger.ListSuccessfulPaidSince(ctx, since)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*TrendBucket)
	for i := range donations {
		dn := &donations[i]
		if dn.PaidAt == nil || dn.PaidAt.Before(since) {
			continue
		}
		key := TrendBucketKey(period, *dn.PaidAt)
		b, ok := byKey[key]
		if !ok {
			b = &TrendBucket{Date: key, Amount: decimal.Zero}
			byKey[key] = b
		}
		b.Count++
		b.Amount = b.Amount.Add(dn.Amount)
	}

	buckets := make([]TrendBucket, 0, len(byKey))
	for _, b := range byKey {
		b.Average = b.Amount.Div(decimal.NewFromInt(int64(b.Count))).Round(2)
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Date < buckets[j].Date })
	return buckets, nil
}

// RecomputeProgramFund rewrites a program's collected amount from the full
// SUCCESS sum. Safe to replay.
func (s *AggregationService) RecomputeProgramFund(ctx context.Context, programID uint) (decimal.Decimal, error) {
	ctx, span := observability.StartServiceSpan(ctx, "AggregationService", "RecomputeProgramFund",
		attribute.Int64("program.id", int64(programID)))
	start := time.Now()

	collected, err := s.ledger.RecomputeCollectedAmount(ctx, programID)
	observability.FundRecomputeDuration.Observe(time.Since(start).Seconds())
	observability.EndSpan(span, err)
	if err != nil {
		return decimal.Zero, err
	}

	cache.InvalidateProgramReports(ctx, programID)
	return collected, nil
}

// RecomputeAllProgramFunds recomputes every program and returns how many
// were updated. It stops at the first failure.
func (s *AggregationService) RecomputeAllProgramFunds(ctx context.Context) (int, error) {
	ids, err := s.ledger.ProgramIDs(ctx)
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := s.RecomputeProgramFund(ctx, id); err != nil {
			return i, err
		}
	}
	return len(ids), nil
}
