package auth

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"LineRelay/controllers"
	"LineRelay/middleware"
)

// RegisterPublic registers /admin/login, rate limited per client.
func RegisterPublic(r *gin.Engine, db *gorm.DB, secret string) {
	r.POST("/admin/login", middleware.RateLimit(), controllers.AdminLogin(db, secret))
}

// RegisterProtected registers routes that need a valid token (logout).
func RegisterProtected(g *gin.RouterGroup) {
	g.POST("/logout", controllers.AdminLogout())
}
