package webhook

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"LineRelay/controllers"
	"LineRelay/pkg/relay"
)

// Register registers the LINE webhook endpoint. It is public; requests are
// authenticated by their signature.
func Register(r *gin.Engine, channelSecret string, d *relay.Dispatcher, log zerolog.Logger) {
	r.POST("/webhook/line", controllers.LineWebhook(channelSecret, d, log))
	r.GET("/webhook/line", controllers.WebhookStatus())
}
