package db

import "gorm.io/gorm"

// Template 是管理员维护的请柬视觉模板，HTMLContent 中包含 {{field}} 占位符。
type Template struct {
	gorm.Model
	Name          string `gorm:"size:100;not null"`
	Slug          string `gorm:"size:100;uniqueIndex;not null"`
	Description   string `gorm:"type:text"`
	ThumbnailPath string
	HTMLContent   string `gorm:"type:text;not null" json:"-"`
	IsActive      bool   `gorm:"default:true"`
	SortOrder     int    `gorm:"default:0"`
}
