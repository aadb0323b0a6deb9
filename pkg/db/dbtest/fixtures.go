package dbtest

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	"github.com/angelmondragon/relief-dispatch/pkg/types"
)

// Istanbul is a convenient non-zero origin for fixtures.
var Istanbul = types.Point{Lat: 41.0082, Lng: 28.9784}

// CreateRequest inserts a new request at Istanbul after applying mutate.
func CreateRequest(t *testing.T, db *gorm.DB, mutate func(*models.AidRequest)) models.AidRequest {
	t.Helper()
	req := models.AidRequest{
		Description:         "need water",
		Language:            "en",
		Location:            Istanbul,
		Needs:               types.Needs{},
		SelfDeclaredUrgency: enums.PriorityMedium,
		Priority:            enums.PriorityMedium,
		Status:              enums.RequestStatusNew,
		CreatedAt:           time.Now().UTC(),
	}
	if mutate != nil {
		mutate(&req)
	}
	if err := db.Create(&req).Error; err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

// CreateOrganization inserts an active, verified organization at Istanbul.
func CreateOrganization(t *testing.T, db *gorm.DB, mutate func(*models.Organization)) models.Organization {
	t.Helper()
	org := models.Organization{
		Name:                 "Relief Org",
		Location:             Istanbul,
		IsActive:             true,
		IsVerified:           true,
		MaxActiveAssignments: 10,
		Rating:               4,
	}
	if mutate != nil {
		mutate(&org)
	}
	if err := db.Create(&org).Error; err != nil {
		t.Fatalf("create organization: %v", err)
	}
	if !org.IsActive || !org.IsVerified {
		// gorm skips false for columns with a default; force the value.
		if err := db.Model(&org).Updates(map[string]any{"is_active": org.IsActive, "is_verified": org.IsVerified}).Error; err != nil {
			t.Fatalf("update organization flags: %v", err)
		}
	}
	return org
}

// CreateOffer inserts an active offer for org.
func CreateOffer(t *testing.T, db *gorm.DB, org models.Organization, mutate func(*models.Offer)) models.Offer {
	t.Helper()
	offer := models.Offer{
		OrganizationID:    org.ID,
		Category:          enums.NeedCategoryWater,
		TotalQuantity:     100,
		AvailableQuantity: 100,
		Location:          org.Location,
		Status:            enums.OfferStatusActive,
	}
	if mutate != nil {
		mutate(&offer)
	}
	offer.AllocatedQuantity = offer.TotalQuantity - offer.AvailableQuantity
	if err := db.Create(&offer).Error; err != nil {
		t.Fatalf("create offer: %v", err)
	}
	return offer
}

// CreateBlockedRoute inserts an active closure along path.
func CreateBlockedRoute(t *testing.T, db *gorm.DB, severity enums.RouteSeverity, path ...types.Point) models.BlockedRoute {
	t.Helper()
	route := models.BlockedRoute{
		Path:       types.LineString(path),
		Severity:   severity,
		IsActive:   true,
		ActiveFrom: time.Now().UTC().Add(-time.Hour),
	}
	if err := db.Create(&route).Error; err != nil {
		t.Fatalf("create blocked route: %v", err)
	}
	return route
}
