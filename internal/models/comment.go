package models

import (
	"time"
)

type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	Post      Post      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Username  string    `gorm:"size:40" json:"username"`
	IPHash    string    `gorm:"size:64;index" json:"-"` // 只存不发，任何对外序列化都不携带
	IsHidden  bool      `gorm:"default:false;index" json:"is_hidden"`
	CreatedAt time.Time `json:"created_at"`
}
