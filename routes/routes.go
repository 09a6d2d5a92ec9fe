package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"LineRelay/controllers"
	"LineRelay/middleware"
	"LineRelay/pkg/feed"
	"LineRelay/pkg/relay"
	"LineRelay/pkg/store"

	authRoutes "LineRelay/routes/auth"
	convRoutes "LineRelay/routes/conversation"
	profileRoutes "LineRelay/routes/profile"
	webhookRoutes "LineRelay/routes/webhook"
	websocketRoutes "LineRelay/routes/websocket"
)

// Deps is everything the HTTP layer needs, built once in main.
type Deps struct {
	DB         *gorm.DB
	Store      *store.Store
	Dispatcher *relay.Dispatcher
	Hub        *feed.Hub
	Log        zerolog.Logger

	ChannelSecret string
	JWTSecret     string
	CORSOrigins   []string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "LINE relay running"})
	})
	r.GET("/healthz", controllers.Health())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	webhookRoutes.Register(r, d.ChannelSecret, d.Dispatcher, d.Log)

	if d.JWTSecret == "" {
		d.Log.Warn().Msg("JWT_SECRET_KEY is empty, admin console disabled")
		return
	}

	websocketRoutes.Register(r, d.Hub, d.JWTSecret, d.CORSOrigins, d.Log)
	authRoutes.RegisterPublic(r, d.DB, d.JWTSecret)

	protected := r.Group("/admin")
	protected.Use(middleware.AuthMiddleware(d.JWTSecret))
	authRoutes.RegisterProtected(protected)
	profileRoutes.Register(protected, d.DB)
	convRoutes.Register(protected, d.Store)
}
