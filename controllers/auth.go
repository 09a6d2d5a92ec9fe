package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"LineRelay/middleware"
	"LineRelay/models"
	tokenstore "LineRelay/pkg/token"
)

const adminTokenTTL = 24 * time.Hour

// AdminLogin exchanges admin credentials for a bearer token.
func AdminLogin(db *gorm.DB, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}
		username := strings.TrimSpace(body.Username)
		if username == "" || body.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "Username and password are required"})
			return
		}

		var admin models.Admin
		err := db.WithContext(c.Request.Context()).Where("username = ?", username).Take(&admin).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !admin.CheckPassword(body.Password)) {
			c.JSON(http.StatusUnauthorized, gin.H{"msg": "Invalid credentials"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "db error"})
			return
		}

		tokenStr, exp, err := middleware.IssueToken(admin.ID, uuid.NewString(), secret, adminTokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "failed to create token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"access_token": tokenStr, "username": admin.Username, "expires_at": exp})
	}
}

// AdminLogout revokes the token used for the request.
func AdminLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		jti := c.GetString(middleware.ContextJTIKey)
		exp, _ := c.Get(middleware.ContextTokenExpKey)
		until, _ := exp.(time.Time)
		tokenstore.RevokeToken(jti, until)
		c.JSON(http.StatusOK, gin.H{"msg": "logged out"})
	}
}
