package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindForUpdate(ctx context.Context, db *gorm.DB, orgID, memberID snowflake.ID, periodKey string) (*UsageEntry, error)
	Upsert(ctx context.Context, db *gorm.DB, entry *UsageEntry) error
	Find(ctx context.Context, db *gorm.DB, orgID, memberID snowflake.ID, periodKey string) (*UsageEntry, error)
	SumForMember(ctx context.Context, db *gorm.DB, orgID, memberID snowflake.ID) (count int, totalDays int, err error)
	LastTakenAt(ctx context.Context, db *gorm.DB, orgID, memberID snowflake.ID) (*UsageEntry, error)
}
