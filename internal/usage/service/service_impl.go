package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/leavehub/internal/clock"
	usagedomain "github.com/smallbiznis/leavehub/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  usagedomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  usagedomain.Repository
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("usage.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Credit implements domain.Ledger.
func (s *Service) Credit(ctx context.Context, tx *gorm.DB, orgID, memberID snowflake.ID, periodKey string, days int, takenAt time.Time) error {
	entry, err := s.repo.FindForUpdate(ctx, tx, orgID, memberID, periodKey)
	if err != nil {
		return err
	}
	now := s.clock.Now()
	if entry == nil {
		entry = &usagedomain.UsageEntry{
			OrgID:     orgID,
			MemberID:  memberID,
			PeriodKey: periodKey,
			CreatedAt: now,
		}
	}
	entry.Count++
	entry.TotalDays += days
	entry.LastTakenAt = &takenAt
	entry.UpdatedAt = now
	return s.repo.Upsert(ctx, tx, entry)
}

// Debit implements domain.Ledger. It releases one quota slot and the
// unused days. Counters never go below zero so a debit against a month
// with no recorded credit is a safe no-op, and the slot comes back even
// when every credited day was used.
func (s *Service) Debit(ctx context.Context, tx *gorm.DB, orgID, memberID snowflake.ID, periodKey string, days int) error {
	entry, err := s.repo.FindForUpdate(ctx, tx, orgID, memberID, periodKey)
	if err != nil {
		return err
	}
	if entry == nil {
		return nil
	}
	entry.Count--
	if entry.Count < 0 {
		entry.Count = 0
	}
	entry.TotalDays -= days
	if entry.TotalDays < 0 {
		entry.TotalDays = 0
	}
	entry.UpdatedAt = s.clock.Now()
	return s.repo.Upsert(ctx, tx, entry)
}

// MonthCount implements domain.Ledger.
func (s *Service) MonthCount(ctx context.Context, tx *gorm.DB, orgID, memberID snowflake.ID, periodKey string) (int, error) {
	entry, err := s.repo.Find(ctx, tx, orgID, memberID, periodKey)
	if err != nil {
		return 0, err
	}
	if entry == nil {
		return 0, nil
	}
	return entry.Count, nil
}

// MemberStats implements domain.Service.
func (s *Service) MemberStats(ctx context.Context, orgID, memberID snowflake.ID, periodKey string, quota int) (*usagedomain.MemberStats, error) {
	lifetimeCount, lifetimeDays, err := s.repo.SumForMember(ctx, s.db, orgID, memberID)
	if err != nil {
		return nil, err
	}

	stats := &usagedomain.MemberStats{
		OrgID:         orgID,
		MemberID:      memberID,
		LifetimeCount: lifetimeCount,
		LifetimeDays:  lifetimeDays,
	}

	month, err := s.repo.Find(ctx, s.db, orgID, memberID, periodKey)
	if err != nil {
		return nil, err
	}
	if month != nil {
		stats.MonthCount = month.Count
		stats.MonthDays = month.TotalDays
	}

	remaining := quota - stats.MonthCount
	if remaining < 0 {
		remaining = 0
	}
	stats.RemainingQuota = remaining

	last, err := s.repo.LastTakenAt(ctx, s.db, orgID, memberID)
	if err != nil {
		return nil, err
	}
	if last != nil {
		stats.LastTakenAt = last.LastTakenAt
	}

	return stats, nil
}
