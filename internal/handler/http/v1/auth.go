package v1

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Dankishon/prtc-mvp-back/internal/config"
	"github.com/Dankishon/prtc-mvp-back/internal/webhook"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// APIKeyAuthMiddleware - middleware для аутентификации по API-ключу
func APIKeyAuthMiddleware(cfg *config.Config, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			// Проверяем также заголовок Authorization: Bearer
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				apiKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if apiKey == "" {
			log.Warn("API key missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}

		isValid := false
		for _, key := range cfg.APIKeys {
			if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
				isValid = true
				break
			}
		}

		if !isValid {
			log.WithField("path", c.FullPath()).Warn("Invalid API key provided")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}

		c.Next()
	}
}

// SignatureMiddleware проверяет HMAC-SHA256 подпись тела входящего вебхука.
// Без секрета подпись не проверяется (режим разработки).
func SignatureMiddleware(secret string, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		body, err := c.GetRawData()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
			return
		}
		if !webhook.Verify(body, c.GetHeader(webhook.SignatureHeader), secret) {
			log.WithField("path", c.FullPath()).Warn("Inbound webhook signature mismatch")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		c.Set(rawBodyKey, body)
		c.Next()
	}
}

const rawBodyKey = "raw_body"

// requestBody возвращает тело, уже прочитанное middleware подписи, или читает его
func requestBody(c *gin.Context) ([]byte, error) {
	if raw, ok := c.Get(rawBodyKey); ok {
		return raw.([]byte), nil
	}
	return c.GetRawData()
}
