package models

import "gorm.io/gorm"

const PlatformLine = "line"

type Conversation struct {
	gorm.Model
	UserID         uint      `gorm:"not null;index"`
	Platform       string    `gorm:"size:20;not null;default:line"`
	ExternalUserID string    `gorm:"size:64;not null;index"`
	User           User      `gorm:"constraint:OnDelete:CASCADE"`
	Messages       []Message `gorm:"constraint:OnDelete:CASCADE"`
}
