package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Ledger mutates usage counters. Credit takes a quota slot and records the
// days; Debit releases the slot and the unused days. Both run inside the
// caller's transaction so lifecycle transitions and their ledger effects
// commit atomically.
type Ledger interface {
	Credit(ctx context.Context, tx *gorm.DB, orgID, memberID snowflake.ID, periodKey string, days int, takenAt time.Time) error
	Debit(ctx context.Context, tx *gorm.DB, orgID, memberID snowflake.ID, periodKey string, days int) error
	MonthCount(ctx context.Context, tx *gorm.DB, orgID, memberID snowflake.ID, periodKey string) (int, error)
}

// Service serves usage reads for the HTTP surface.
type Service interface {
	Ledger
	MemberStats(ctx context.Context, orgID, memberID snowflake.ID, periodKey string, quota int) (*MemberStats, error)
}
