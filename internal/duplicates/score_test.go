package duplicates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	"github.com/angelmondragon/relief-dispatch/pkg/types"
)

var base = time.Date(2026, 2, 6, 4, 17, 0, 0, time.UTC)

func sampleRequests() (models.AidRequest, models.AidRequest) {
	a := models.AidRequest{
		Description: "Family of five needs water and food, house damaged!",
		Location:    types.Point{Lat: 37.5858, Lng: 36.9371},
		Needs: types.Needs{
			enums.NeedCategoryWater: {Required: true},
			enums.NeedCategoryFood:  {Required: true},
		},
		Beneficiaries: types.Beneficiaries{Adults: 2, Children: 3},
		CreatedAt:     base,
	}
	b := models.AidRequest{
		Description: "need water for family, house is damaged",
		Location:    types.Point{Lat: 37.5870, Lng: 36.9380},
		Needs: types.Needs{
			enums.NeedCategoryWater:   {Required: true},
			enums.NeedCategoryShelter: {Required: true},
		},
		Beneficiaries: types.Beneficiaries{Adults: 4},
		CreatedAt:     base.Add(6 * time.Hour),
	}
	return a, b
}

func TestScoreIsSymmetric(t *testing.T) {
	a, b := sampleRequests()
	ab := Score(a, b, 500)
	ba := Score(b, a, 500)
	assert.Equal(t, ab, ba)
}

func TestScoreComponents(t *testing.T) {
	a, b := sampleRequests()
	s := Score(a, b, 500)

	assert.Greater(t, s.Location, 0.0)
	assert.Less(t, s.Location, 1.0)
	assert.InDelta(t, 0.75, s.Time, 1e-9)
	// {water, food, shelter} considered, only water agrees.
	assert.InDelta(t, 1.0/3.0, s.Needs, 1e-9)
	assert.InDelta(t, 0.8, s.Beneficiaries, 1e-9)

	// a: family five needs water and food house damaged
	// b: need water for family house damaged
	// shared 4, union 8 + 6 - 4
	assert.InDelta(t, 0.4, s.Text, 1e-9)

	want := 0.35*s.Location + 0.20*s.Time + 0.15*s.Text + 0.20*s.Needs + 0.10*s.Beneficiaries
	assert.InDelta(t, want, s.Total, 1e-9)
}

func TestScoreEdgeCases(t *testing.T) {
	a := models.AidRequest{Location: types.Point{Lat: 40, Lng: 30}, CreatedAt: base}
	b := models.AidRequest{Location: types.Point{Lat: 40.1, Lng: 30}, CreatedAt: base.Add(-48 * time.Hour)}

	s := Score(a, b, 500)
	require.Zero(t, s.Location, "beyond radius")
	require.Zero(t, s.Time, "beyond a day")
	require.Zero(t, s.Text, "no tokens on either side")
	require.Zero(t, s.Needs, "no required categories")
	require.Equal(t, 0.5, s.Beneficiaries, "zero totals score neutral")
	require.InDelta(t, 0.05, s.Total, 1e-9)

	same := Score(a, a, 500)
	require.Equal(t, 1.0, same.Location)
	require.Equal(t, 1.0, same.Time)
}

func TestTokensDropShortWordsAndPunctuation(t *testing.T) {
	got := tokens("We NEED help!! at the camp, ok?")
	want := map[string]struct{}{"need": {}, "help": {}, "the": {}, "camp": {}}
	require.Equal(t, want, got)
}
