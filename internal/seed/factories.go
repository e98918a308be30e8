// Package seed provides helpers to create demo data for the donasi
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"donasi/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password every seeded account gets.
const DefaultPassword = "password123"

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db       *gorm.DB
	opts     Options
	rng      *rand.Rand
	password string
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	return &Factory{db: db, opts: opts, rng: rand.New(rand.NewSource(seed))}
}

func (f *Factory) hashedPassword() (string, error) {
	if f.opts.SkipBcrypt {
		return DefaultPassword, nil
	}
	if f.password == "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		if err != nil {
			return "", fmt.Errorf("hash password: %w", err)
		}
		f.password = string(hashed)
	}
	return f.password, nil
}

// CreateUser persists an active user with the given role.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(role models.UserRole, overrides ...func(*models.User)) (*models.User, error) {
	password, err := f.hashedPassword()
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Name:     gofakeit.Name(),
		Email:    fmt.Sprintf("%s.%d@donasi.test", gofakeit.Username(), gofakeit.Number(1000, 9999)),
		Password: password,
		Role:     role,
		IsActive: true,
	}
	for _, override := range overrides {
		override(user)
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateProgram persists a program owned by creator in the given status.
func (f *Factory) CreateProgram(creator *models.User, status models.ProgramStatus) (*models.Program, error) {
	target := decimal.NewFromInt(int64(gofakeit.Number(10, 500)) * 1_000_000)
	program := &models.Program{
		Title:        fmt.Sprintf("Bantu %s %s", gofakeit.Noun(), gofakeit.City()),
		Description:  gofakeit.Paragraph(1, 3, 12, " "),
		Status:       status,
		TargetAmount: target,
		CreatorID:    creator.ID,
	}
	if err := f.db.Create(program).Error; err != nil {
		return nil, err
	}
	return program, nil
}

// CreateArticle persists a DRAFT report for program.
func (f *Factory) CreateArticle(author *models.User, program *models.Program) (*models.Article, error) {
	article := &models.Article{
		Title:     "Laporan " + program.Title,
		Body:      gofakeit.Paragraph(2, 4, 15, "\n\n"),
		Status:    models.ArticleStatusDraft,
		AuthorID:  author.ID,
		ProgramID: &program.ID,
	}
	if err := f.db.Create(article).Error; err != nil {
		return nil, err
	}
	return article, nil
}

// BuildDonation returns an unsaved donation to program. A nil donor makes a
// guest donation. Most donations succeed; the rest are pending or failed.
func (f *Factory) BuildDonation(program *models.Program, donor *models.User) *models.Donation {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	amount := decimal.NewFromInt(int64(f.rng.Intn(200)+1) * 10_000)

	d := &models.Donation{
		ProgramID:       program.ID,
		Amount:          amount,
		Status:          models.DonationStatusSuccess,
		IsAnonymous:     f.rng.Intn(5) == 0,
		ExternalOrderID: "ORDER-" + gofakeit.UUID(),
	}
	if donor != nil {
		d.UserID = &donor.ID
		d.DonorName = donor.Name
		d.DonorEmail = donor.Email
	} else {
		d.DonorName = gofakeit.Name()
		if f.rng.Intn(2) == 0 {
			d.DonorEmail = gofakeit.Email()
		}
	}

	switch n := f.rng.Intn(10); {
	case n == 0:
		d.Status = models.DonationStatusFailed
	case n == 1:
		d.Status = models.DonationStatusPending
	}
	created := time.Now().UTC().Add(-time.Duration(f.rng.Intn(maxDays*24)) * time.Hour)
	d.CreatedAt = created
	if d.Status == models.DonationStatusSuccess {
		paid := created.Add(time.Duration(f.rng.Intn(30)) * time.Minute)
		d.PaidAt = &paid
	}
	return d
}

// CreateDonationsBatch persists donations in batches.
func (f *Factory) CreateDonationsBatch(donations []*models.Donation) error {
	if len(donations) == 0 {
		return nil
	}
	batch := f.opts.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return f.db.CreateInBatches(donations, batch).Error
}
