package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestLeaderboardTier_BoundaryFavorsHigherTier(t *testing.T) {
	upper := d("100000")
	tiers := []Tier{
		{Min: d("0"), Max: &upper, Title: "A"},
		{Min: d("100000"), Title: "B"},
	}

	assert.Equal(t, "B", LeaderboardTier(d("999999"), tiers))
	assert.Equal(t, "B", LeaderboardTier(d("100000"), tiers))
	assert.Equal(t, "A", LeaderboardTier(d("99999.99"), tiers))
	assert.Equal(t, "A", LeaderboardTier(d("0"), tiers))
	assert.Equal(t, "", LeaderboardTier(d("-1"), tiers))
}

func TestLeaderboardTier_Defaults(t *testing.T) {
	tiers := DefaultTiers()
	require.NoError(t, ValidateTiers(tiers))
	assert.Equal(t, "Sahabat Kebaikan", LeaderboardTier(d("50000"), tiers))
	assert.Equal(t, "Dermawan", LeaderboardTier(d("100000"), tiers))
	assert.Equal(t, "Pejuang Kebaikan", LeaderboardTier(d("9999999"), tiers))
	assert.Equal(t, "Pahlawan Kebaikan", LeaderboardTier(d("250000000"), tiers))
}

func TestLoadTiers_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiers.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
tiers:
  - {min: 0, max: 50000, title: Perunggu}
  - {min: 50000, max: 500000.50, title: Perak}
  - {min: 500000.50, title: Emas}
`), 0o600))

	tiers, err := LoadTiers(path)
	require.NoError(t, err)
	require.Len(t, tiers, 3)
	assert.Nil(t, tiers[2].Max)
	assert.Equal(t, "Emas", LeaderboardTier(d("500000.50"), tiers))
	assert.Equal(t, "Perak", LeaderboardTier(d("500000.49"), tiers))
}

func TestParseTiers_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":         `tiers: []`,
		"open middle":   "tiers:\n  - {min: 0, title: A}\n  - {min: 10, title: B}\n",
		"descending":    "tiers:\n  - {min: 10, max: 20, title: A}\n  - {min: 5, title: B}\n",
		"bad number":    "tiers:\n  - {min: abc, title: A}\n",
		"missing title": "tiers:\n  - {min: 0}\n",
		"max below min": "tiers:\n  - {min: 10, max: 5, title: A}\n  - {min: 20, title: B}\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTiers([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadTiers_EmptyPathUsesDefaults(t *testing.T) {
	tiers, err := LoadTiers("")
	require.NoError(t, err)
	assert.Len(t, tiers, 4)
}
