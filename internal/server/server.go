package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/leavehub/internal/clock"
	"github.com/smallbiznis/leavehub/internal/config"
	leavedomain "github.com/smallbiznis/leavehub/internal/leave/domain"
	"github.com/smallbiznis/leavehub/internal/observability"
	obsmiddleware "github.com/smallbiznis/leavehub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/leavehub/internal/observability/metrics"
	obstracing "github.com/smallbiznis/leavehub/internal/observability/tracing"
	orgsettingsdomain "github.com/smallbiznis/leavehub/internal/orgsettings/domain"
	usagedomain "github.com/smallbiznis/leavehub/internal/usage/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	genID  *snowflake.Node

	clock    clock.Clock
	calendar clock.Calendar

	leaveSvc    leavedomain.Service
	usageSvc    usagedomain.Service
	settingsSvc orgsettingsdomain.Service
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	DB    *gorm.DB
	GenID *snowflake.Node

	Clock    clock.Clock
	Calendar clock.Calendar

	LeaveSvc    leavedomain.Service
	UsageSvc    usagedomain.Service
	SettingsSvc orgsettingsdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		genID:       p.GenID,
		clock:       p.Clock,
		calendar:    p.Calendar,
		leaveSvc:    p.LeaveSvc,
		usageSvc:    p.UsageSvc,
		settingsSvc: p.SettingsSvc,
	}

	svc.registerRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	orgs := v1.Group("/orgs/:org_id")
	{
		requests := orgs.Group("/leave-requests")
		{
			requests.POST("", s.SubmitLeaveRequest)
			requests.GET("", s.ListLeaveRequests)
			requests.GET("/active", s.ListActiveRoster)
			requests.GET("/:id", s.GetLeaveRequest)
			requests.POST("/:id/approve", s.ApproveLeaveRequest)
			requests.POST("/:id/deny", s.DenyLeaveRequest)
			requests.POST("/:id/early-return", s.EarlyReturnLeaveRequest)
			requests.POST("/:id/recall", s.RecallLeaveRequest)
		}

		orgs.GET("/members/:member_id/usage", s.GetMemberUsage)

		orgs.GET("/settings", s.GetOrgSettings)
		orgs.PUT("/settings", s.UpdateOrgSettings)
	}
}
