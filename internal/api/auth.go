package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const principalKey = "principal"

// Principal is the authenticated caller
type Principal struct {
	ID   string
	Role string
}

// IsAdmin reports whether the principal may use admin routes
func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

type principalClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SignToken issues an HS256 bearer token for sub with role
func SignToken(secret, sub, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := principalClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies a bearer token and returns its principal
func ParseToken(secret, raw string) (Principal, error) {
	var claims principalClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return Principal{}, err
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("token has no subject")
	}
	if claims.Role != models.RoleAdmin && claims.Role != models.RoleCustomer {
		return Principal{}, fmt.Errorf("unknown role %q", claims.Role)
	}
	return Principal{ID: claims.Subject, Role: claims.Role}, nil
}

// principalMiddleware requires a valid bearer token
func principalMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw := strings.TrimPrefix(header, "Bearer ")
		if header == "" || raw == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing bearer token",
			})
			return
		}

		principal, err := ParseToken(secret, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid token",
				"details": err.Error(),
			})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// requireRole rejects principals without role
func requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if principalFrom(c).Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient role",
			})
			return
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context) Principal {
	v, _ := c.Get(principalKey)
	p, _ := v.(Principal)
	return p
}
