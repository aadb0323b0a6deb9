package types

import (
	"database/sql/driver"
	"sort"

	"github.com/angelmondragon/relief-dispatch/pkg/enums"
)

// Need describes one requested resource category.
type Need struct {
	Required bool `json:"required"`
	Quantity int  `json:"quantity"`
}

// Needs maps a category to what the requester asked for.
type Needs map[enums.NeedCategory]Need

// Value marshals the map into JSON for Postgres.
func (n Needs) Value() (driver.Value, error) {
	if n == nil {
		return "{}", nil
	}
	return jsonValue(map[enums.NeedCategory]Need(n))
}

// Scan decodes JSONB into the map.
func (n *Needs) Scan(value interface{}) error {
	if value == nil {
		*n = nil
		return nil
	}
	result := make(Needs)
	if err := jsonScan(value, &result, "needs"); err != nil {
		return err
	}
	*n = result
	return nil
}

// IsRequired reports whether the category is explicitly required.
func (n Needs) IsRequired(category enums.NeedCategory) bool {
	need, ok := n[category]
	return ok && need.Required
}

// RequiredCategories returns required categories in a deterministic order.
func (n Needs) RequiredCategories() []enums.NeedCategory {
	out := make([]enums.NeedCategory, 0, len(n))
	for category, need := range n {
		if need.Required {
			out = append(out, category)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// QuantityFor returns the requested quantity, defaulting to 1.
func (n Needs) QuantityFor(category enums.NeedCategory) int {
	if need, ok := n[category]; ok && need.Quantity > 0 {
		return need.Quantity
	}
	return 1
}
