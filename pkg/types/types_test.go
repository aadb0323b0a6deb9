package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/relief-dispatch/pkg/enums"
)

func TestNeedsRoundTripAndRequired(t *testing.T) {
	needs := Needs{
		enums.NeedCategoryWater:  {Required: true, Quantity: 3},
		enums.NeedCategoryFood:   {Required: true},
		enums.NeedCategoryRescue: {Required: false},
	}
	raw, err := needs.Value()
	require.NoError(t, err)

	var decoded Needs
	require.NoError(t, decoded.Scan(raw))
	assert.Equal(t, []enums.NeedCategory{enums.NeedCategoryFood, enums.NeedCategoryWater}, decoded.RequiredCategories())
	assert.Equal(t, 3, decoded.QuantityFor(enums.NeedCategoryWater))
	assert.Equal(t, 1, decoded.QuantityFor(enums.NeedCategoryFood))
	assert.False(t, decoded.IsRequired(enums.NeedCategoryRescue))
}

func TestBeneficiariesTotal(t *testing.T) {
	b := Beneficiaries{Adults: 2, Children: 3, Elderly: 1, Infants: 1}
	assert.Equal(t, 7, b.Total())
}

func TestLineStringValidate(t *testing.T) {
	assert.Error(t, LineString{{Lat: 1, Lng: 1}}.Validate())
	assert.NoError(t, LineString{{Lat: 1, Lng: 1}, {Lat: 1.1, Lng: 1.2}}.Validate())
}

func TestPointIsValid(t *testing.T) {
	assert.True(t, Point{Lat: 37.0, Lng: 37.3}.IsValid())
	assert.False(t, Point{}.IsValid())
	assert.False(t, Point{Lat: 91, Lng: 0.5}.IsValid())
}

func TestMessagesLast(t *testing.T) {
	msgs := Messages{{Text: "1"}, {Text: "2"}, {Text: "3"}, {Text: "4"}, {Text: "5"}, {Text: "6"}}
	last := msgs.Last(5)
	require.Len(t, last, 5)
	assert.Equal(t, "2", last[0].Text)
}
