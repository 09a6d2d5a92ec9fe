package websocket

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"LineRelay/controllers"
	"LineRelay/pkg/feed"
)

func Register(r *gin.Engine, hub *feed.Hub, secret string, origins []string, log zerolog.Logger) {
	r.GET("/ws/feed", controllers.FeedWS(hub, secret, origins, log))
}
