package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	orgsettingsdomain "github.com/smallbiznis/leavehub/internal/orgsettings/domain"
	pkgdb "github.com/smallbiznis/leavehub/pkg/db"
	"gorm.io/gorm"
)

// EnsureDefaultOrgSettings seeds settings for the default organization so a
// fresh deployment can accept requests without an admin setup step.
func EnsureDefaultOrgSettings(db *gorm.DB, orgID int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if orgID == 0 {
		return nil
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var settings orgsettingsdomain.OrgSettings
		err := tx.WithContext(ctx).Where("org_id = ?", orgID).First(&settings).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		settings = orgsettingsdomain.Defaults(snowflake.ID(orgID))
		if err := tx.WithContext(ctx).Create(&settings).Error; err != nil {
			// Another instance seeding the same org at startup is fine.
			if pkgdb.IsDuplicateKeyErr(err) {
				return nil
			}
			return err
		}
		return nil
	})
}
