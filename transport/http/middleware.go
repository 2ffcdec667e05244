package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/layer-3/keepsake/config"
	"github.com/layer-3/keepsake/core"
	"github.com/layer-3/keepsake/service"
	"github.com/sirupsen/logrus"
)

const (
	ctxProgress      = "progress"
	ctxProgressToken = "progressToken"
	headerRequestID  = "X-Request-ID"
)

// RequestLogger attaches a request scoped logrus entry to the request
// context and logs one line per request. Bodies are never logged.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header(headerRequestID, requestID)

		entry := logger.WithField("request_id", requestID)
		c.Request = c.Request.WithContext(config.WithLogger(c.Request.Context(), entry))

		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}
		if fields["path"] == "" {
			fields["path"] = c.Request.URL.Path
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.WithFields(fields).Error("request failed")
			return
		}
		entry.WithFields(fields).Info("request served")
	}
}

// ProgressMiddleware requires a valid progress token and stores the
// progress it carries in the gin context
func ProgressMiddleware(unlockService *service.UnlockService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing progress token"})
			return
		}

		progress, err := unlockService.Progress(c.Request.Context(), token)
		if err != nil {
			status, msg := progressError(err)
			if status >= http.StatusInternalServerError {
				config.WithContext(c.Request.Context()).WithError(err).Error("failed to load progress")
			}
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}

		c.Set(ctxProgress, progress)
		c.Set(ctxProgressToken, token)

		c.Next()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer" header
func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(auth[len("Bearer "):])
	return token, token != ""
}

// progressError maps progress token failures to a status and message
func progressError(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrTokenExpired):
		return http.StatusUnauthorized, "Progress token expired"
	case errors.Is(err, core.ErrTokenInvalidated):
		return http.StatusUnauthorized, "Progress has been reset"
	case errors.Is(err, core.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid progress token"
	default:
		return http.StatusInternalServerError, "Failed to load progress"
	}
}
