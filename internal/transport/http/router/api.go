package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"user-api/internal/core/auth"
	"user-api/internal/core/config"
	"user-api/internal/core/server"
	"user-api/internal/service"
	"user-api/internal/transport/http/ez"
	"user-api/internal/transport/http/handler"
	mdw "user-api/internal/transport/http/middleware"
)

type Deps struct {
	Log      *zap.Logger
	Cfg      *config.Config
	JWT      *auth.JWTer
	Users    *service.UserService
	Auth     *service.AuthService
	Proverbs handler.Quoter
	Redis    redis.Cmdable        // optional; shared auth rate limit when set
	Metrics  *prometheus.Registry // optional; a fresh registry when nil
}

func NewAPIEngine(d Deps) *gin.Engine {
	sec := d.Cfg.Security
	reg := d.Metrics
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	metrics := mdw.NewMetrics(reg)

	r := server.NewRouter(d.Log, server.Options{
		Name:           d.Cfg.App.Name,
		Production:     d.Cfg.IsProduction(),
		AllowedOrigins: sec.CORSAllowedOrigins,
	})
	r.Use(
		mdw.RequestID(),
		mdw.AccessLog(d.Log.Named("http")),
		mdw.SecurityHeaders(d.Cfg.IsProduction()),
		metrics.Handler(),
		mdw.RateLimit(rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst, metrics),
		mdw.ConcurrencyLimit(sec.MaxInFlight),
		mdw.MaxBodyBytes(sec.MaxBodyBytes),
		mdw.Timeout(time.Duration(sec.RequestTimeoutSec)*time.Second),
	)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	authLimit := mdw.RateLimitBy("auth", authLimiter(d), mdw.ClientIP, d.Log, metrics)
	authn := mdw.Authenticate(d.JWT)

	var mods Registry
	mods.Register(
		handler.NewAuthHandler(d.Auth, authLimit),
		handler.NewUserHandler(d.Users, authn),
		handler.NewProverbHandler(d.Proverbs),
	)
	mods.MountAll(ez.New(&r.RouterGroup, ez.Options{Production: d.Cfg.IsProduction()}))
	return r
}

func authLimiter(d Deps) mdw.Limiter {
	sec := d.Cfg.Security
	window := time.Duration(sec.AuthRateWindowSec) * time.Second
	if window <= 0 {
		window = time.Minute
	}
	if d.Redis != nil {
		return mdw.NewRedisLimiter(d.Redis, sec.AuthRateLimit, window, "ratelimit:auth")
	}
	return mdw.NewMemoryLimiter(sec.AuthRateLimit, window)
}
