package service

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Tier is one leaderboard bracket covering [Min, Max). A nil Max is open-ended.
type Tier struct {
	Min   decimal.Decimal  `json:"min"`
	Max   *decimal.Decimal `json:"max,omitempty"`
	Title string           `json:"title"`
}

// DefaultTiers is used when no tier file is configured.
func DefaultTiers() []Tier {
	bound := func(v int64) *decimal.Decimal {
		d := decimal.NewFromInt(v)
		return &d
	}
	return []Tier{
		{Min: decimal.Zero, Max: bound(100_000), Title: "Sahabat Kebaikan"},
		{Min: decimal.NewFromInt(100_000), Max: bound(1_000_000), Title: "Dermawan"},
		{Min: decimal.NewFromInt(1_000_000), Max: bound(10_000_000), Title: "Pejuang Kebaikan"},
		{Min: decimal.NewFromInt(10_000_000), Title: "Pahlawan Kebaikan"},
	}
}

// LeaderboardTier returns the title of the tier whose [min, max) interval
// contains total. An amount exactly on a boundary belongs to the higher tier.
// It returns "" when total is below every tier.
func LeaderboardTier(total decimal.Decimal, tiers []Tier) string {
	for _, t := range tiers {
		if total.LessThan(t.Min) {
			continue
		}
		if t.Max == nil || total.LessThan(*t.Max) {
			return t.Title
		}
	}
	return ""
}

type tierFile struct {
	Tiers []struct {
		Min   string  `yaml:"min"`
		Max   *string `yaml:"max"`
		Title string  `yaml:"title"`
	} `yaml:"tiers"`
}

// LoadTiers reads a tier table from a YAML file of the form
//
//	tiers:
//	  - {min: 0, max: 100000, title: Sahabat Kebaikan}
//	  - {min: 100000, title: Dermawan}
//
// An empty path returns DefaultTiers.
func LoadTiers(path string) ([]Tier, error) {
	if path == "" {
		return DefaultTiers(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier file: %w", err)
	}
	return ParseTiers(raw)
}

// ParseTiers decodes and validates a YAML tier table.
func ParseTiers(raw []byte) ([]Tier, error) {
	var f tierFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse tier file: %w", err)
	}

	tiers := make([]Tier, 0, len(f.Tiers))
	for i, entry := range f.Tiers {
		lo, err := decimal.NewFromString(entry.Min)
		if err != nil {
			return nil, fmt.Errorf("tier %d: invalid min %q", i, entry.Min)
		}
		t := Tier{Min: lo, Title: entry.Title}
		if entry.Max != nil {
			hi, err := decimal.NewFromString(*entry.Max)
			if err != nil {
				return nil, fmt.Errorf("tier %d: invalid max %q", i, *entry.Max)
			}
			t.Max = &hi
		}
		tiers = append(tiers, t)
	}

	if err := ValidateTiers(tiers); err != nil {
		return nil, err
	}
	return tiers, nil
}

// ValidateTiers checks that tiers ascend and only the last one is open-ended.
func ValidateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("tier table is empty")
	}
	for i, t := range tiers {
		if t.Title == "" {
			return fmt.Errorf("tier %d: title is required", i)
		}
		last := i == len(tiers)-1
		if t.Max == nil && !last {
			return fmt.Errorf("tier %d: only the last tier may omit max", i)
		}
		if t.Max != nil && !t.Max.GreaterThan(t.Min) {
			return fmt.Errorf("tier %d: max must be greater than min", i)
		}
		if i > 0 && !t.Min.GreaterThan(tiers[i-1].Min) {
			return fmt.Errorf("tier %d: tiers must ascend by min", i)
		}
	}
	return nil
}
