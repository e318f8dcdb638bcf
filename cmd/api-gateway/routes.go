package main

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sports-academy-api/api/swagger"
	"github.com/noah-isme/sports-academy-api/internal/handler"
	"github.com/noah-isme/sports-academy-api/internal/middleware"
	"github.com/noah-isme/sports-academy-api/internal/models"
	"github.com/noah-isme/sports-academy-api/internal/service"
	"github.com/noah-isme/sports-academy-api/pkg/config"
	"github.com/noah-isme/sports-academy-api/pkg/logger"
	"github.com/noah-isme/sports-academy-api/pkg/middleware/requestid"
)

type routeDeps struct {
	metrics      *service.MetricsService
	tokens       *service.TokenService
	campaigns    *handler.CampaignHandler
	gamification *handler.GamificationHandler
	health       *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))
	r.Use(middleware.Metrics(deps.metrics, "/metrics", "/health"))

	r.GET("/health", deps.health.Health)
	r.GET("/ready", deps.health.Ready)
	r.GET("/metrics", deps.health.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	admins := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleCoach)
	staffOrSelf := middleware.RBAC(string(models.RoleSuperAdmin), string(models.RoleAdmin), string(models.RoleCoach), "SELF")

	api := r.Group(cfg.APIPrefix, middleware.JWT(deps.tokens))

	campaigns := api.Group("/campaigns")
	campaigns.GET("", staff, deps.campaigns.List)
	campaigns.POST("", admins, deps.campaigns.Create)
	campaigns.GET("/automation", staff, deps.campaigns.AutomationStatus)
	campaigns.GET("/:id", staff, deps.campaigns.Get)
	campaigns.PUT("/:id", admins, deps.campaigns.Update)
	campaigns.DELETE("/:id", admins, deps.campaigns.Delete)
	campaigns.GET("/:id/messages", staff, deps.campaigns.Messages)
	campaigns.GET("/:id/messages/export", staff, deps.campaigns.ExportMessages)
	campaigns.POST("/:id/automation/stop", admins, deps.campaigns.StopAutomation)
	campaigns.POST("/:id/automation/restart", admins, deps.campaigns.RestartAutomation)
	campaigns.POST("/:id/automation/run", admins, deps.campaigns.RunNow)

	gamification := api.Group("/gamification")
	gamification.GET("/badges", deps.gamification.Badges)
	gamification.POST("/badges/seed", admins, deps.gamification.SeedBadges)
	gamification.GET("/leaderboard", deps.gamification.Leaderboard)
	gamification.GET("/students/:id", staffOrSelf, deps.gamification.Profile)
	gamification.POST("/students/:id/events", staff, deps.gamification.TriggerEvent)
	gamification.POST("/students/:id/badges", admins, deps.gamification.AwardBadge)

	return r
}

// corsConfig allows every origin when none are configured. Credentials are
// only allowed with an explicit origin list.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", requestid.HeaderKey},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", requestid.HeaderKey},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
