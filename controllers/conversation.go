package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"LineRelay/pkg/store"
)

// ListConversations returns all conversations, newest activity first.
// ?q= filters by display name or LINE user id.
func ListConversations(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		convs, err := st.ListConversations(c.Request.Context(), c.Query("q"))
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "db error"})
			return
		}

		result := make([]gin.H, 0, len(convs))
		for _, conv := range convs {
			result = append(result, gin.H{
				"id":             conv.ID,
				"platform":       conv.Platform,
				"line_user_id":   conv.ExternalUserID,
				"display_name":   conv.User.DisplayName,
				"created_at":     conv.CreatedAt,
				"updated_at":     conv.UpdatedAt,
				"messages_count": conv.MessagesCount,
			})
		}
		c.JSON(http.StatusOK, result)
	}
}

func GetConversation(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		cid, err := strconv.ParseUint(c.Param("conversation_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid conversation id"})
			return
		}

		conv, err := st.GetConversation(c.Request.Context(), uint(cid))
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"msg": "conversation not found"})
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "db error"})
			return
		}

		messages := make([]gin.H, 0, len(conv.Messages))
		for _, m := range conv.Messages {
			messages = append(messages, gin.H{
				"id":        m.ID,
				"role":      m.Role,
				"content":   m.Content,
				"timestamp": m.Timestamp,
				"metadata":  m.Metadata,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"conversation_id": conv.ID,
			"line_user_id":    conv.ExternalUserID,
			"display_name":    conv.User.DisplayName,
			"messages":        messages,
		})
	}
}

func ListUsers(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := st.ListUsers(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "db error"})
			return
		}
		result := make([]gin.H, 0, len(users))
		for _, u := range users {
			result = append(result, gin.H{
				"id":           u.ID,
				"line_user_id": u.LineUserID,
				"display_name": u.DisplayName,
				"picture_url":  u.PictureURL,
				"created_at":   u.CreatedAt,
				"updated_at":   u.UpdatedAt,
			})
		}
		c.JSON(http.StatusOK, result)
	}
}
