package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vyaparai/vyaparai/internal/config"
	obsmetrics "github.com/vyaparai/vyaparai/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Metrics  *obsmetrics.Metrics
	Registry *prometheus.Registry

	GST      *GSTHandler
	Khata    *KhataHandler
	Store    *StoreHandler
	Customer *CustomerHandler
}

func NewEngine(p Params) *gin.Engine {
	if p.Cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(p.Metrics.GinMiddleware())
	engine.Use(errorHandler(p.Log.Named("http")))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"name":    p.Cfg.AppName,
			"version": p.Cfg.AppVersion,
		})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{})))

	v1 := engine.Group("/v1")
	p.Store.RegisterRoutes(v1)
	p.Customer.RegisterRoutes(v1)
	p.GST.RegisterRoutes(v1)
	p.Khata.RegisterRoutes(v1)

	return engine
}

func registerHooks(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(NewGSTHandler),
	fx.Provide(NewKhataHandler),
	fx.Provide(NewStoreHandler),
	fx.Provide(NewCustomerHandler),
	fx.Provide(NewEngine),
	fx.Invoke(registerHooks),
)
