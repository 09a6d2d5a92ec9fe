package profile

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"LineRelay/controllers"
)

// Register registers protected profile routes on supplied router group
// expects the group to already have AuthMiddleware applied
func Register(g *gin.RouterGroup, db *gorm.DB) {
	g.GET("/profile", controllers.AdminProfile(db))
	g.PUT("/profile", controllers.AdminProfile(db))
}
