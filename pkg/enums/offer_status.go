package enums

import "fmt"

// OfferStatus maps to the offer_status enum in Postgres.
type OfferStatus string

const (
	OfferStatusActive    OfferStatus = "active"
	OfferStatusPaused    OfferStatus = "paused"
	OfferStatusExhausted OfferStatus = "exhausted"
	OfferStatusExpired   OfferStatus = "expired"
	OfferStatusCancelled OfferStatus = "cancelled"
)

var validOfferStatuses = []OfferStatus{
	OfferStatusActive,
	OfferStatusPaused,
	OfferStatusExhausted,
	OfferStatusExpired,
	OfferStatusCancelled,
}

// String implements fmt.Stringer.
func (s OfferStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OfferStatus.
func (s OfferStatus) IsValid() bool {
	for _, candidate := range validOfferStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsLive reports whether the offer is still a published listing (possibly empty).
func (s OfferStatus) IsLive() bool {
	return s == OfferStatusActive || s == OfferStatusExhausted
}

// ParseOfferStatus converts raw input into an OfferStatus.
func ParseOfferStatus(value string) (OfferStatus, error) {
	for _, candidate := range validOfferStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid offer status %q", value)
}
