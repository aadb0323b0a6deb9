package geo

import "gorm.io/gorm"

// Scope restricts a query on lat/lng columns to the box. Callers still need
// an exact distance check; the box only narrows the scan.
func (b Box) Scope(db *gorm.DB) *gorm.DB {
	db = db.Where("lat BETWEEN ? AND ?", b.MinLat, b.MaxLat)
	if b.CrossesAntimeridian() {
		return db.Where("(lng >= ? OR lng <= ?)", b.MinLng, b.MaxLng)
	}
	return db.Where("lng BETWEEN ? AND ?", b.MinLng, b.MaxLng)
}
