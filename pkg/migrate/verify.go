package migrate

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
)

// dispatchTables lists every table the dispatch engine reads or writes.
var dispatchTables = []any{
	&models.AidRequest{},
	&models.Organization{},
	&models.Offer{},
	&models.Assignment{},
	&models.BlockedRoute{},
}

// VerifySchema reports the dispatch tables missing from the connected database.
func VerifySchema(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	migrator := conn.WithContext(ctx).Migrator()

	var missing []string
	for _, model := range dispatchTables {
		if migrator.HasTable(model) {
			continue
		}
		stmt := &gorm.Statement{DB: conn}
		if err := stmt.Parse(model); err != nil {
			return fmt.Errorf("parse model: %w", err)
		}
		missing = append(missing, stmt.Schema.Table)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing tables: %v", missing)
	}
	return nil
}
