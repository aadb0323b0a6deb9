package types

import "database/sql/driver"

// Beneficiaries counts the people a request covers.
type Beneficiaries struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Elderly  int `json:"elderly"`
	Infants  int `json:"infants"`
}

// Total is derived, never stored.
func (b Beneficiaries) Total() int {
	return b.Adults + b.Children + b.Elderly + b.Infants
}

// Value marshals the counts into JSON for Postgres.
func (b Beneficiaries) Value() (driver.Value, error) {
	return jsonValue(b)
}

// Scan decodes JSONB into the counts.
func (b *Beneficiaries) Scan(value interface{}) error {
	if value == nil {
		*b = Beneficiaries{}
		return nil
	}
	var out Beneficiaries
	if err := jsonScan(value, &out, "beneficiaries"); err != nil {
		return err
	}
	*b = out
	return nil
}

// MedicalInfo carries the medical context the requester disclosed.
type MedicalInfo struct {
	Conditions []string `json:"conditions,omitempty"`
	Pregnant   bool     `json:"pregnant"`
}

// Value marshals the info into JSON for Postgres.
func (m MedicalInfo) Value() (driver.Value, error) {
	return jsonValue(m)
}

// Scan decodes JSONB into the info.
func (m *MedicalInfo) Scan(value interface{}) error {
	if value == nil {
		*m = MedicalInfo{}
		return nil
	}
	var out MedicalInfo
	if err := jsonScan(value, &out, "medical info"); err != nil {
		return err
	}
	*m = out
	return nil
}
