package enums

import "fmt"

// NeedCategory identifies a resource category shared by requests and offers.
type NeedCategory string

const (
	NeedCategoryFood      NeedCategory = "food"
	NeedCategoryWater     NeedCategory = "water"
	NeedCategoryShelter   NeedCategory = "shelter"
	NeedCategoryMedical   NeedCategory = "medical"
	NeedCategoryRescue    NeedCategory = "rescue"
	NeedCategoryClothing  NeedCategory = "clothing"
	NeedCategoryHygiene   NeedCategory = "hygiene"
	NeedCategoryTransport NeedCategory = "transport"
	NeedCategoryGeneral   NeedCategory = "general"
)

var validNeedCategories = []NeedCategory{
	NeedCategoryFood,
	NeedCategoryWater,
	NeedCategoryShelter,
	NeedCategoryMedical,
	NeedCategoryRescue,
	NeedCategoryClothing,
	NeedCategoryHygiene,
	NeedCategoryTransport,
	NeedCategoryGeneral,
}

// String implements fmt.Stringer.
func (c NeedCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known NeedCategory.
func (c NeedCategory) IsValid() bool {
	for _, candidate := range validNeedCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseNeedCategory converts raw input into a NeedCategory.
func ParseNeedCategory(value string) (NeedCategory, error) {
	for _, candidate := range validNeedCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid need category %q", value)
}
