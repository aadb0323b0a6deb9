package duplicates

import (
	"math"
	"strings"
	"unicode"

	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	"github.com/angelmondragon/relief-dispatch/pkg/geo"
)

const (
	weightLocation      = 0.35
	weightTime          = 0.20
	weightText          = 0.15
	weightNeeds         = 0.20
	weightBeneficiaries = 0.10

	timeWindowHours = 24.0
	minTokenLength  = 3
)

// PairScore holds the per-component similarity of two requests and their
// weighted total. Every component lies in [0,1].
type PairScore struct {
	Location      float64 `json:"location"`
	Time          float64 `json:"time"`
	Text          float64 `json:"text"`
	Needs         float64 `json:"needs"`
	Beneficiaries float64 `json:"beneficiaries"`
	Total         float64 `json:"total"`
}

// Score compares two requests. It is symmetric in a and b.
func Score(a, b models.AidRequest, radiusMeters float64) PairScore {
	var s PairScore
	if radiusMeters > 0 {
		s.Location = math.Max(0, 1-geo.DistanceMeters(a.Location, b.Location)/radiusMeters)
	}
	hours := math.Abs(a.CreatedAt.Sub(b.CreatedAt).Hours())
	s.Time = math.Max(0, 1-hours/timeWindowHours)
	s.Text = jaccard(tokens(a.Description), tokens(b.Description))
	s.Needs = needsAgreement(a, b)
	s.Beneficiaries = beneficiarySimilarity(a.Beneficiaries.Total(), b.Beneficiaries.Total())
	s.Total = weightLocation*s.Location +
		weightTime*s.Time +
		weightText*s.Text +
		weightNeeds*s.Needs +
		weightBeneficiaries*s.Beneficiaries
	return s
}

func tokens(text string) map[string]struct{} {
	out := map[string]struct{}{}
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		if len([]rune(f)) >= minTokenLength {
			out[f] = struct{}{}
		}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	shared := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}

// needsAgreement is the share of categories required by either side that both
// sides require.
func needsAgreement(a, b models.AidRequest) float64 {
	considered := map[enums.NeedCategory]struct{}{}
	for _, c := range a.Needs.RequiredCategories() {
		considered[c] = struct{}{}
	}
	for _, c := range b.Needs.RequiredCategories() {
		considered[c] = struct{}{}
	}
	if len(considered) == 0 {
		return 0
	}
	agree := 0
	for c := range considered {
		if a.Needs.IsRequired(c) == b.Needs.IsRequired(c) {
			agree++
		}
	}
	return float64(agree) / float64(len(considered))
}

func beneficiarySimilarity(a, b int) float64 {
	if a <= 0 || b <= 0 {
		return 0.5
	}
	diff := math.Abs(float64(a - b))
	return 1 - diff/math.Max(float64(a), float64(b))
}
