package service

import (
	"errors"
	"strings"
	"time"

	"github.com/weddinvite/internal/db"
	"github.com/weddinvite/internal/useragent"
	"gorm.io/gorm"
)

const defaultViewDedupWindow = 24 * time.Hour

const maxStoredUserAgent = 512

// ViewTracker 记录公开请柬页面的访问，同一 IP 在去重窗口内只计一次。
type ViewTracker struct {
	db          *gorm.DB
	dedupWindow time.Duration
}

// NewViewTracker 创建 ViewTracker，默认去重窗口为 24 小时。
func NewViewTracker(gdb *gorm.DB) *ViewTracker {
	return &ViewTracker{db: gdb, dedupWindow: defaultViewDedupWindow}
}

// WithDedupWindow 允许在测试或特定场景下调整去重窗口。
func (t *ViewTracker) WithDedupWindow(d time.Duration) *ViewTracker {
	if d <= 0 {
		return t
	}
	t.dedupWindow = d
	return t
}

// Track 记录一次访问并返回是否写入。窗口内已有同一 IP 的记录时跳过。
// 检查与写入之间不加锁，并发的首次访问可能各写入一条。
func (t *ViewTracker) Track(invitationID uint, ip, userAgent string, now time.Time) (bool, error) {
	ip = strings.TrimSpace(ip)
	if invitationID == 0 || ip == "" {
		return false, errors.New("invalid invitation or ip")
	}

	now = now.UTC()

	var count int64
	if err := t.db.Model(&db.InvitationView{}).
		Where("invitation_id = ? AND ip_address = ? AND viewed_at > ?", invitationID, ip, now.Add(-t.dedupWindow)).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	client := useragent.Classify(userAgent)
	view := db.InvitationView{
		InvitationID: invitationID,
		IPAddress:    ip,
		UserAgent:    truncateRunes(userAgent, maxStoredUserAgent),
		DeviceType:   client.Device,
		Browser:      client.Browser,
		ViewedAt:     now,
	}
	if err := t.db.Create(&view).Error; err != nil {
		return false, err
	}
	return true, nil
}

func truncateRunes(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}
