package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Message struct {
	gorm.Model
	ConversationID uint      `gorm:"index:idx_conv_ts,priority:1;not null"`
	Role           string    `gorm:"size:20;not null"` // "user", "assistant" or "system"
	Content        string    `gorm:"type:text;not null"`
	Timestamp      time.Time `gorm:"index:idx_conv_ts,priority:2"`
	Metadata       datatypes.JSONMap
}

// ValidRole reports whether r is one of the three message roles.
func ValidRole(r string) bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}
