package seed

import (
	"context"
	"fmt"
	"log/slog"

	"donasi/internal/models"
	"donasi/internal/repository"
	"donasi/internal/service"

	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	Donors              int
	Proposers           int
	ProgramsPerProposer int
	DonationsPerProgram int
	SkipBcrypt          bool
	BatchSize           int
	MaxDays             int
	// RandomSeed makes a run reproducible when non-zero.
	RandomSeed int64
}

// DefaultOptions is a small but realistic data set.
func DefaultOptions() Options {
	return Options{
		Donors:              40,
		Proposers:           5,
		ProgramsPerProposer: 3,
		DonationsPerProgram: 60,
		BatchSize:           100,
		MaxDays:             90,
	}
}

// Result counts what a run created.
type Result struct {
	Users     int
	Programs  int
	Articles  int
	Donations int
}

// Seeder fills the database with demo users, programs and donations.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder returns a Seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// ClearAll removes every row the seeder can create, children first.
func (s *Seeder) ClearAll() error {
	tables := []any{
		&models.ApprovalAction{},
		&models.Approval{},
		&models.RoleUpgradeRequest{},
		&models.Donation{},
		&models.Article{},
		&models.Program{},
		&models.User{},
	}
	for _, m := range tables {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(m).Error; err != nil {
			return fmt.Errorf("clear %T: %w", m, err)
		}
	}
	slog.Info("seed: cleared existing data")
	return nil
}

// Seed creates one account per staff role, the proposers with their
// programs and reports, the donors and their donations, then recomputes
// every program's collected amount from the ledger.
func (s *Seeder) Seed(ctx context.Context) (*Result, error) {
	res := &Result{}

	var author *models.User
	for _, role := range []models.UserRole{models.RoleManager, models.RoleSupervisor, models.RoleFinance, models.RoleAuthor} {
		u, err := s.factory.CreateUser(role, func(u *models.User) {
			u.Email = string(role) + "@donasi.test"
		})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", role, err)
		}
		if role == models.RoleAuthor {
			author = u
		}
		res.Users++
	}

	statuses := []models.ProgramStatus{
		models.ProgramStatusActive,
		models.ProgramStatusActive,
		models.ProgramStatusDraft,
		models.ProgramStatusClosed,
	}
	var active []*models.Program
	for i := 0; i < s.opts.Proposers; i++ {
		proposer, err := s.factory.CreateUser(models.RolePengusul)
		if err != nil {
			return nil, fmt.Errorf("create proposer: %w", err)
		}
		res.Users++
		for j := 0; j < s.opts.ProgramsPerProposer; j++ {
			p, err := s.factory.CreateProgram(proposer, statuses[(i+j)%len(statuses)])
			if err != nil {
				return nil, fmt.Errorf("create program: %w", err)
			}
			res.Programs++
			if p.Status == models.ProgramStatusActive || p.Status == models.ProgramStatusClosed {
				active = append(active, p)
				if _, err := s.factory.CreateArticle(author, p); err != nil {
					return nil, fmt.Errorf("create article: %w", err)
				}
				res.Articles++
			}
		}
	}

	donors := make([]*models.User, 0, s.opts.Donors)
	for i := 0; i < s.opts.Donors; i++ {
		d, err := s.factory.CreateUser(models.RoleDonatur)
		if err != nil {
			return nil, fmt.Errorf("create donor: %w", err)
		}
		donors = append(donors, d)
		res.Users++
	}

	for _, p := range active {
		batch := make([]*models.Donation, 0, s.opts.DonationsPerProgram)
		for k := 0; k < s.opts.DonationsPerProgram; k++ {
			var donor *models.User
			// One in four donations comes from a guest.
			if len(donors) > 0 && s.factory.rng.Intn(4) != 0 {
				donor = donors[s.factory.rng.Intn(len(donors))]
			}
			batch = append(batch, s.factory.BuildDonation(p, donor))
		}
		if err := s.factory.CreateDonationsBatch(batch); err != nil {
			return nil, fmt.Errorf("create donations: %w", err)
		}
		res.Donations += len(batch)
	}

	agg := service.NewAggregationService(repository.NewDonationLedger(s.db), repository.NewProgramRepository(s.db), nil)
	if _, err := agg.RecomputeAllProgramFunds(ctx); err != nil {
		return nil, fmt.Errorf("recompute funds: %w", err)
	}

	slog.Info("seed: completed",
		slog.Int("users", res.Users),
		slog.Int("programs", res.Programs),
		slog.Int("articles", res.Articles),
		slog.Int("donations", res.Donations))
	return res, nil
}
