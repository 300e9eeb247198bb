package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/leavehub/internal/clock"
	orgsettingsdomain "github.com/smallbiznis/leavehub/internal/orgsettings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  orgsettingsdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  orgsettingsdomain.Repository
}

func NewService(p ServiceParam) orgsettingsdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("orgsettings.service"),
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Get implements domain.Service. Organizations without a stored row read
// the defaults so policy evaluation never depends on setup ordering.
func (s *Service) Get(ctx context.Context, orgID snowflake.ID) (*orgsettingsdomain.OrgSettings, error) {
	settings, err := s.repo.Find(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		defaults := orgsettingsdomain.Defaults(orgID)
		return &defaults, nil
	}
	return settings, nil
}

// Update implements domain.Service.
func (s *Service) Update(ctx context.Context, req orgsettingsdomain.UpdateSettingsRequest) (*orgsettingsdomain.OrgSettings, error) {
	if req.QuotaPerMonth != nil && *req.QuotaPerMonth < 0 {
		return nil, orgsettingsdomain.ErrInvalidQuota
	}
	if req.AutoCloseHours != nil && *req.AutoCloseHours <= 0 {
		return nil, orgsettingsdomain.ErrInvalidAutoClose
	}
	for _, days := range req.AllowedDurations {
		if days <= 0 {
			return nil, orgsettingsdomain.ErrInvalidDurations
		}
	}

	var updated *orgsettingsdomain.OrgSettings
	err := s.db.Transaction(func(tx *gorm.DB) error {
		settings, err := s.repo.Find(ctx, tx, req.OrgID)
		if err != nil {
			return err
		}
		if settings == nil {
			defaults := orgsettingsdomain.Defaults(req.OrgID)
			settings = &defaults
		}

		if req.QuotaPerMonth != nil {
			settings.QuotaPerMonth = *req.QuotaPerMonth
		}
		if req.AutoCloseHours != nil {
			settings.AutoCloseHours = *req.AutoCloseHours
		}
		if req.AllowedDurations != nil {
			settings.AllowedDurations = datatypes.JSONSlice[int](req.AllowedDurations)
		}
		if req.ReviewerRoles != nil {
			settings.ReviewerRoles = datatypes.JSONSlice[int64](req.ReviewerRoles)
		}
		if req.BannedRoles != nil {
			settings.BannedRoles = datatypes.JSONSlice[int64](req.BannedRoles)
		}
		if req.MinRankRoles != nil {
			settings.MinRankRoles = datatypes.JSONSlice[int64](req.MinRankRoles)
		}
		if req.VacationRole != nil {
			settings.VacationRole = *req.VacationRole
		}
		settings.UpdatedAt = s.clock.Now()

		if err := s.repo.Upsert(ctx, tx, settings); err != nil {
			return err
		}
		updated = settings
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("org settings updated", zap.Int64("org_id", int64(req.OrgID)))
	return updated, nil
}
