package db

import (
	"time"

	"gorm.io/gorm"
)

// Invitation 是用户创建的一份电子请柬。Slug 仅在首次发布时生成，之后保持不变。
type Invitation struct {
	gorm.Model
	UserID       uint   `gorm:"index;not null"`
	TemplateID   uint   `gorm:"index"`
	Title        string `gorm:"size:200"`
	GroomName    string `gorm:"size:100"`
	BrideName    string `gorm:"size:100"`
	EventDate    *time.Time
	EventTime    string  `gorm:"size:5"`
	VenueName    string  `gorm:"size:200"`
	VenueAddress string  `gorm:"size:500"`
	MapURL       string  `gorm:"size:1000"`
	Message      string  `gorm:"type:text"`
	MusicURL     string  `gorm:"size:1000"`
	Status       string  `gorm:"size:16;index;default:draft"`
	Slug         *string `gorm:"size:32;uniqueIndex"`
	PublishedAt  *time.Time
}

// SlugValue 返回 Slug，未发布过的请柬返回空字符串。
func (i Invitation) SlugValue() string {
	if i.Slug == nil {
		return ""
	}
	return *i.Slug
}

// Guest 请柬宾客名单中的一条记录。
type Guest struct {
	gorm.Model
	InvitationID uint   `gorm:"index;not null"`
	Name         string `gorm:"size:200;not null"`
	Category     string `gorm:"size:16;index;not null"`
	Phone        string `gorm:"size:32"`
}

// RSVP 记录访客通过公开页面提交的出席回复。
type RSVP struct {
	gorm.Model
	InvitationID uint   `gorm:"index;not null"`
	GuestName    string `gorm:"size:200;not null"`
	Attendance   string `gorm:"size:16;not null"`
	PartySize    int
	Message      string `gorm:"type:text"`
}

// TableName 指定自定义表名，避免 rsvps 被复数化为 r_s_v_ps。
func (RSVP) TableName() string {
	return "rsvps"
}
