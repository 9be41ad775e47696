package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userIDKey = "user_id"

// AdminKeyHeader carries the administrator key on catalog writes.
const AdminKeyHeader = "X-API-Key"

// JWTAuth validates an HS256 bearer token and stores its subject as the
// caller's user id.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "code": "UNAUTHORIZED"})
			return
		}

		userID, err := ParseToken(strings.TrimPrefix(header, "Bearer "), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "UNAUTHORIZED"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// AdminKey guards routes that change the train catalog.
func AdminKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader(AdminKeyHeader)
		if key == "" || subtle.ConstantTimeCompare([]byte(given), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin key required", "code": "FORBIDDEN"})
			return
		}
		c.Next()
	}
}

// UserID returns the id stored by JWTAuth.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

// SetUserID is used by tests that bypass the middleware.
func SetUserID(c *gin.Context, id int64) {
	c.Set(userIDKey, id)
}

func ParseToken(raw, secret string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, err
	}
	if !tok.Valid {
		return 0, errors.New("token is not valid")
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("subject %q is not a user id", claims.Subject)
	}
	return id, nil
}

// IssueToken signs a token for userID. The identity provider owns issuance in
// production; this exists for local runs and tests.
func IssueToken(userID int64, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
