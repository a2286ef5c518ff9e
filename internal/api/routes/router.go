package routes

import (
	"github.com/gin-gonic/gin"
	_ "github.com/linskybing/chainjob-cache/docs"
	"github.com/linskybing/chainjob-cache/internal/api/handlers"
	"github.com/linskybing/chainjob-cache/internal/api/middleware"
	"github.com/linskybing/chainjob-cache/internal/config"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(cfg *config.Config, h *handlers.Handlers, logger *zap.Logger) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	RegisterRoutes(r, h, middleware.NewJWT(cfg.JwtSecret, cfg.Issuer))
	return r
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handlers, jwt *middleware.JWT) {
	r.GET("/healthz", h.Health.Healthz)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/ws/jobs", h.Job.StreamJobs)

	api := r.Group("/api")
	JobRoutes(api, h.Job)
	CacheRoutes(api, h.Cache, jwt.Admin())
}
