package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vkuznetsov-dev/cipherchat/internal/logging"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/auth"
)

const (
	userIDKey       = "user_id"
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// RequestID attaches an identifier to every request, reusing the
// client-provided header when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

// RequestLogger emits one structured line per request.
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	log := logger.With("module", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString(requestIDKey),
		)
	}
}

// Auth verifies the bearer token and stores the caller identity in the
// request context. Requests without a valid token are rejected.
func Auth(secretKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := bearerIdentity(c, secretKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid or missing token"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// bearerIdentity extracts and verifies the Authorization header without
// failing the request; callers decide what a missing identity means.
func bearerIdentity(c *gin.Context, secretKey []byte) (int64, bool) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return 0, false
	}
	userID, err := auth.UserIDFromToken(token, secretKey)
	if err != nil {
		return 0, false
	}
	return userID, true
}

func callerID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
