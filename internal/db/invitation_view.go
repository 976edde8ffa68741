package db

import "time"

// InvitationView 记录一次公开页面访问，用于设备、浏览器维度的统计。
type InvitationView struct {
	ID           uint      `gorm:"primaryKey"`
	InvitationID uint      `gorm:"index:idx_view_dedup,priority:1;not null"`
	IPAddress    string    `gorm:"size:64;index:idx_view_dedup,priority:2"`
	UserAgent    string    `gorm:"size:512"`
	DeviceType   string    `gorm:"size:16"`
	Browser      string    `gorm:"size:32"`
	ViewedAt     time.Time `gorm:"index:idx_view_dedup,priority:3"`
}

// TableName 指定自定义表名。
func (InvitationView) TableName() string {
	return "invitation_views"
}
