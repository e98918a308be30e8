// Package donor resolves the grouping identity of a donation. The key is a
// pure function of the donation's identity fields and the aggregation view;
// it is never stored.
package donor

import (
	"strconv"
	"strings"

	"donasi/internal/models"
)

// View selects the per-report grouping policy.
type View int

const (
	// ViewFundSummary merges every anonymous donation into one shared bucket.
	ViewFundSummary View = iota
	// ViewProgramDonors keeps each anonymous donation as its own row.
	ViewProgramDonors
	// ViewTopDonors drops anonymous donations entirely.
	ViewTopDonors
)

func (v View) String() string {
	switch v {
	case ViewFundSummary:
		return "fund_summary"
	case ViewProgramDonors:
		return "program_donors"
	case ViewTopDonors:
		return "top_donors"
	}
	return "unknown"
}

// Key identifies a donor within one view.
type Key string

const (
	// AnonymousKey is the shared fund-summary bucket for anonymous donations.
	AnonymousKey Key = "anonymous"
	// UnknownKey groups named donations that carry no identifying field.
	UnknownKey Key = "unknown"
)

// IsAnonymous reports whether k was produced for an anonymous donation.
func (k Key) IsAnonymous() bool {
	return k == AnonymousKey || strings.HasPrefix(string(k), string(AnonymousKey)+":")
}

// Fields is the subset of a donation the resolver looks at.
type Fields struct {
	DonationID  uint
	IsAnonymous bool
	UserID      *uint
	DonorEmail  string
	DonorName   string
}

// FieldsOf extracts identity fields from a ledger row.
func FieldsOf(d *models.Donation) Fields {
	return Fields{
		DonationID:  d.ID,
		IsAnonymous: d.IsAnonymous,
		UserID:      d.UserID,
		DonorEmail:  d.DonorEmail,
		DonorName:   d.DonorName,
	}
}

// Resolve maps f to its key under view. ok is false when the view excludes
// the donation (anonymous donations in ViewTopDonors).
func Resolve(f Fields, view View) (key Key, ok bool) {
	if f.IsAnonymous {
		switch view {
		case ViewFundSummary:
			return AnonymousKey, true
		case ViewProgramDonors:
			return Key(string(AnonymousKey) + ":" + strconv.FormatUint(uint64(f.DonationID), 10)), true
		default:
			return "", false
		}
	}
	return named(f), true
}

// ResolveDonation is Resolve over a ledger row.
func ResolveDonation(d *models.Donation, view View) (Key, bool) {
	return Resolve(FieldsOf(d), view)
}

// named applies user id, then email, then name precedence.
func named(f Fields) Key {
	if f.UserID != nil {
		return Key("user:" + strconv.FormatUint(uint64(*f.UserID), 10))
	}
	if email := strings.TrimSpace(f.DonorEmail); email != "" {
		return Key("email:" + email)
	}
	if name := strings.TrimSpace(f.DonorName); name != "" {
		return Key("name:" + name)
	}
	return UnknownKey
}

// DisplayName is the label shown next to a key in reports.
func DisplayName(d *models.Donation, key Key) string {
	if key.IsAnonymous() {
		return "Hamba Allah"
	}
	if d.DonorName != "" {
		return d.DonorName
	}
	if d.DonorEmail != "" {
		return d.DonorEmail
	}
	return "Donatur"
}
