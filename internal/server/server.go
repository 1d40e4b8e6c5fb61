package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nimbusworks/tenantgate/internal/agent"
	"github.com/nimbusworks/tenantgate/internal/config"
	dcrdomain "github.com/nimbusworks/tenantgate/internal/dcr/domain"
	"github.com/nimbusworks/tenantgate/internal/idp"
	"github.com/nimbusworks/tenantgate/internal/observability"
	obslogger "github.com/nimbusworks/tenantgate/internal/observability/logger"
	obsmetrics "github.com/nimbusworks/tenantgate/internal/observability/metrics"
	procdomain "github.com/nimbusworks/tenantgate/internal/procurement/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug: obsCfg.Debug(),
	}))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
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
	engine      *gin.Engine
	cfg         config.Config
	procurement procdomain.Service
	dcr         dcrdomain.Service
	idp         *idp.Client
	agent       agent.Agent
	metrics     *obsmetrics.Metrics
	log         *zap.Logger
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Procurement procdomain.Service
	DCR         dcrdomain.Service
	IdP         *idp.Client
	Agent       agent.Agent
	Metrics     *obsmetrics.Metrics `optional:"true"`
	Log         *zap.Logger
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		procurement: p.Procurement,
		dcr:         p.DCR,
		idp:         p.IdP,
		agent:       p.Agent,
		metrics:     p.Metrics,
		log:         p.Log.Named("server"),
	}

	svc.registerRoutes()

	return svc
}

func (s *Server) registerRoutes() {
	// The marketplace was configured with a single callback URL, so both
	// procurement pushes and client registrations arrive on it. /oauth/register
	// exists for callers that follow the RFC path convention.
	s.engine.POST("/dcr", s.handleRegistration)
	s.engine.POST("/oauth/register", s.handleRegistration)

	v1 := s.engine.Group("/v1")
	v1.Use(s.AuthRequired())
	v1.POST("/messages", s.handleMessage)
}
