package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"LineRelay/middleware"
	"LineRelay/models"
	utils "LineRelay/pkg/utills"
)

// AdminProfile shows (GET) or updates (PUT) the signed-in admin account.
func AdminProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		db := db.WithContext(c.Request.Context())

		var admin models.Admin
		if err := db.Take(&admin, middleware.AdminID(c)).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"msg": "Admin not found"})
			return
		}

		if c.Request.Method == http.MethodGet {
			c.JSON(http.StatusOK, gin.H{
				"id":         admin.ID,
				"username":   admin.Username,
				"created_at": admin.CreatedAt,
			})
			return
		}

		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}

		newUsername := strings.TrimSpace(body.Username)
		if newUsername == "" {
			newUsername = admin.Username
		}
		if newUsername != admin.Username {
			var n int64
			if err := db.Model(&models.Admin{}).Where("username = ?", newUsername).Count(&n).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"msg": "db error"})
				return
			}
			if n > 0 {
				c.JSON(http.StatusConflict, gin.H{"msg": "Username already exists"})
				return
			}
		}
		admin.Username = newUsername

		if body.Password != "" {
			if !utils.ValidPassword(body.Password) {
				c.JSON(http.StatusBadRequest, gin.H{"msg": "New password must be at least 8 characters with a letter and a number"})
				return
			}
			if err := admin.SetPassword(body.Password); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to set password"})
				return
			}
		}
		if err := db.Save(&admin).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to update profile"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"msg": "Profile updated successfully"})
	}
}
