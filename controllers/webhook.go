package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"LineRelay/middleware"
	"LineRelay/pkg/line"
	"LineRelay/pkg/metrics"
	"LineRelay/pkg/relay"
	"LineRelay/pkg/signature"
)

// LINE bodies are small; anything bigger is not a webhook.
const maxWebhookBody = 1 << 20

// LineWebhook verifies, parses and dispatches a LINE webhook request. Once
// the envelope is accepted the answer is always 200 so LINE does not retry.
func LineWebhook(secret string, d *relay.Dispatcher, base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := middleware.Logger(c, base)
		respond := func(status int, body gin.H) {
			metrics.WebhookRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
			c.JSON(status, body)
		}

		// the signature covers the exact bytes LINE sent
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			log.Warn().Err(err).Msg("failed to read webhook body")
			respond(http.StatusBadRequest, gin.H{"success": false, "message": "unreadable body"})
			return
		}

		if err := signature.Verify(body, c.GetHeader(signature.Header), secret); err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, signature.ErrMissingSecret) || errors.Is(err, signature.ErrMissingSignature) {
				status = http.StatusBadRequest
			}
			log.Warn().Err(err).Int("status", status).Msg("webhook signature rejected")
			respond(status, gin.H{"success": false, "message": err.Error()})
			return
		}

		wh, err := line.Parse(body)
		if err != nil {
			log.Error().Err(err).Msg("webhook payload rejected")
			respond(http.StatusInternalServerError, gin.H{"success": false, "message": "invalid payload"})
			return
		}

		log.Debug().Int("events", len(wh.Events)).Str("destination", wh.Destination).Msg("webhook received")
		// LINE hanging up must not abort a half-handled event
		d.Dispatch(context.WithoutCancel(c.Request.Context()), log, wh.Events)
		respond(http.StatusOK, gin.H{"success": true})
	}
}

// WebhookStatus answers GET on the webhook path.
func WebhookStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
