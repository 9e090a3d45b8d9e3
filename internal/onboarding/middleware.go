package onboarding

import (
	"net/http"

	"missedcall_backend/internal/twilio"
	"missedcall_backend/platform/config"
	"missedcall_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// VerifyTwilioSignature authenticates webhook requests with the
// X-Twilio-Signature header. When WEBHOOK_BASE_URL is set the signature is
// computed against it instead of the Host header, which is what Twilio
// signs when the service sits behind a proxy.
func VerifyTwilioSignature(cfg config.WebhookConfig, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.GetWebhookSignatureRequired() {
			c.Next()
			return
		}

		if err := c.Request.ParseForm(); err != nil {
			log.Warn("webhook form parse failed", "error", err)
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		fullURL := cfg.GetWebhookBaseURL()
		if fullURL != "" {
			fullURL += c.Request.URL.RequestURI()
		} else {
			scheme := "https"
			if c.Request.TLS == nil {
				scheme = "http"
			}
			fullURL = scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
		}

		signature := c.GetHeader("X-Twilio-Signature")
		if !twilio.ValidateSignature(cfg.GetTwilioAuthToken(), fullURL, c.Request.PostForm, signature) {
			log.Warn("webhook signature rejected", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Next()
	}
}
