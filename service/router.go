package service

import (
	"github.com/morf1ng/105site/cache"
	"github.com/morf1ng/105site/config"
	"github.com/morf1ng/105site/dao/model"
	"github.com/morf1ng/105site/metrics"
	"github.com/morf1ng/105site/storage"
	"github.com/morf1ng/105site/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	DB          *gorm.DB
	Tokens      *util.TokenManager
	Uploads     *storage.Uploads
	Cache       cache.Cache
	Config      *config.Config
	ServiceName string
	Version     string
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), metrics.Middleware(), CORS(d.Config.Server.CORSOrigins))

	system := NewSystemHandler(d.DB, d.ServiceName, d.Version)
	r.GET("/health", system.Health)
	r.GET("/metrics", metrics.Handler())
	if d.Config.Server.DebugRoutes {
		r.GET("/tables", system.Tables)
	}
	r.StaticFS("/uploads", gin.Dir(d.Uploads.Root(), false))

	api := r.Group("/api")
	NewAuthHandler(d.DB, d.Tokens).Register(
		api.Group("/auth"),
		LoginRateLimit(d.Config.RateLimit.LoginPerSecond, d.Config.RateLimit.LoginBurst),
	)

	adminOnly := []gin.HandlerFunc{BearerAuth(d.Tokens), RoleRequired(model.RoleAdmin)}
	NewProjectHandler(d.DB, d.Uploads, d.Cache).Register(api, api.Group("", adminOnly...))

	admin := api.Group("/admin", adminOnly...)
	NewRoleHandler(d.DB).Register(admin)
	NewUserHandler(d.DB).Register(admin)
	NewOperationLogHandler(d.DB).Register(admin)
	return r
}
