package models

import "gorm.io/gorm"

// User is a LINE chat participant, keyed by the platform user id.
type User struct {
	gorm.Model
	LineUserID  string `gorm:"uniqueIndex;size:64;not null"`
	DisplayName string `gorm:"size:120"`
	PictureURL  string `gorm:"size:500"`
}
