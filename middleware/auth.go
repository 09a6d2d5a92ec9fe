package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	tokenstore "LineRelay/pkg/token"
)

const (
	ContextAdminIDKey  = "current_admin_id"
	ContextJTIKey      = "current_jti"
	ContextTokenExpKey = "current_token_exp"
)

var (
	ErrTokenRevoked    = errors.New("token has been revoked (logout)")
	ErrInvalidSubject  = errors.New("invalid subject in token")
	ErrInvalidAuthType = errors.New("invalid authorization header")
)

// TokenClaims is what the admin console needs from a verified JWT.
type TokenClaims struct {
	AdminID uint
	JTI     string
	Expires time.Time
}

// ParseToken verifies an HS256 admin token and checks the revocation list.
func ParseToken(tokenStr, secret string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		// only accept HMAC signing
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	jti, _ := claims["jti"].(string)
	if tokenstore.IsRevoked(jti) {
		return nil, ErrTokenRevoked
	}

	var sub uint64
	switch v := claims["sub"].(type) {
	case string:
		sub, err = strconv.ParseUint(v, 10, 64)
	case float64:
		// jwt lib may parse numeric as float64
		sub = uint64(v)
	default:
		err = ErrInvalidSubject
	}
	if err != nil || sub == 0 {
		return nil, ErrInvalidSubject
	}

	out := &TokenClaims{AdminID: uint(sub), JTI: jti}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.Expires = exp.Time
	}
	return out, nil
}

// IssueToken signs a token for adminID valid for ttl.
func IssueToken(adminID uint, jti, secret string, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().Add(ttl)
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(adminID), 10),
		"exp": exp.Unix(),
		"iat": time.Now().Unix(),
		"jti": jti,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	return s, exp, err
}

func bearerToken(c *gin.Context) (string, error) {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(auth)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", ErrInvalidAuthType
	}
	return parts[1], nil
}

// AuthMiddleware guards admin routes with a bearer JWT signed by secret.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := bearerToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
			return
		}
		claims, err := ParseToken(tokenStr, secret)
		switch {
		case errors.Is(err, ErrTokenRevoked):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "Token has been revoked (logout)"})
			return
		case err != nil:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "invalid token"})
			return
		}

		c.Set(ContextAdminIDKey, claims.AdminID)
		c.Set(ContextJTIKey, claims.JTI)
		c.Set(ContextTokenExpKey, claims.Expires)
		c.Next()
	}
}

// AdminID returns the authenticated admin id, 0 outside AuthMiddleware.
func AdminID(c *gin.Context) uint {
	v, _ := c.Get(ContextAdminIDKey)
	id, _ := v.(uint)
	return id
}
