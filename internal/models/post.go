package models

import (
	"time"
)

type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:120;not null" json:"title"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Username  string    `gorm:"size:40" json:"username"` // 可选昵称，留空显示为匿名
	IPHash    string    `gorm:"size:64;index" json:"-"` // 只存不发，任何对外序列化都不携带
	IsHidden  bool      `gorm:"default:false;index" json:"is_hidden"` // 软隐藏标记，由站外管理流程设置
	CreatedAt time.Time `json:"created_at"`

	// 非数据库字段，列表查询时批量填充
	CommentCount int `gorm:"-" json:"comment_count"`
}
