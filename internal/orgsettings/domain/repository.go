package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*OrgSettings, error)
	Upsert(ctx context.Context, db *gorm.DB, settings *OrgSettings) error
	ListOrgIDs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error)
}
