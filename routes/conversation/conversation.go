package conversation

import (
	"github.com/gin-gonic/gin"

	"LineRelay/controllers"
	"LineRelay/pkg/store"
)

// Register registers read-only conversation routes (protected)
func Register(g *gin.RouterGroup, st *store.Store) {
	g.GET("/users", controllers.ListUsers(st))
	g.GET("/conversations", controllers.ListConversations(st))
	g.GET("/conversations/:conversation_id", controllers.GetConversation(st))
}
