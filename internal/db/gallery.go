package db

import "gorm.io/gorm"

// GalleryPhoto 定义请柬相册中的单张照片，Path 为存储层中的相对路径。
type GalleryPhoto struct {
	gorm.Model
	InvitationID uint   `gorm:"index;not null"`
	Path         string `gorm:"not null"`
	Width        int
	Height       int
	SortOrder    int `gorm:"default:0"`
}
