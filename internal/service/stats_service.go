package service

import (
	"time"

	"github.com/weddinvite/internal/db"
	"gorm.io/gorm"
)

const dailyStatsDays = 30

// CountItem is a labelled count.
type CountItem struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// DailyCount is the number of views on one UTC day.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// RSVPSummary 汇总回复情况，Headcount 为确认出席的总人数。
type RSVPSummary struct {
	Attending int64 `json:"attending"`
	Declined  int64 `json:"declined"`
	Headcount int64 `json:"headcount"`
}

// InvitationStats 是单个请柬的统计面板数据。
type InvitationStats struct {
	TotalViews       int64            `json:"total_views"`
	UniqueVisitors   int64            `json:"unique_visitors"`
	ByDevice         []CountItem      `json:"by_device"`
	ByBrowser        []CountItem      `json:"by_browser"`
	Daily            []DailyCount     `json:"daily"`
	GuestsByCategory map[string]int64 `json:"guests_by_category"`
	TotalGuests      int64            `json:"total_guests"`
	RSVP             RSVPSummary      `json:"rsvp"`
}

// DashboardStats 是用户首页的汇总数据。
type DashboardStats struct {
	Invitations      map[string]int64 `json:"invitations"`
	TotalInvitations int64            `json:"total_invitations"`
	TotalViews       int64            `json:"total_views"`
	TotalGuests      int64            `json:"total_guests"`
	TotalRSVPs       int64            `json:"total_rsvps"`
}

// TemplateUsage 表示模板被请柬使用的次数。
type TemplateUsage struct {
	TemplateID uint   `json:"template_id"`
	Name       string `json:"name"`
	Count      int64  `json:"count"`
}

// PlatformOverview 是后台总览数据。
type PlatformOverview struct {
	Users           int64            `json:"users"`
	ActiveUsers     int64            `json:"active_users"`
	Admins          int64            `json:"admins"`
	Invitations     map[string]int64 `json:"invitations"`
	Templates       int64            `json:"templates"`
	ActiveTemplates int64            `json:"active_templates"`
	TotalViews      int64            `json:"total_views"`
	TotalRSVPs      int64            `json:"total_rsvps"`
	TopTemplates    []TemplateUsage  `json:"top_templates"`
}

// StatsService 汇总浏览、宾客与回复数据。
type StatsService struct {
	db          *gorm.DB
	invitations *InvitationService
	guests      *GuestService
}

// NewStatsService creates a StatsService instance.
func NewStatsService(gdb *gorm.DB, invitations *InvitationService, guests *GuestService) *StatsService {
	return &StatsService{db: gdb, invitations: invitations, guests: guests}
}

// InvitationStats 返回单个请柬的统计，Daily 覆盖截至 now 的最近 30 天（UTC）。
func (s *StatsService) InvitationStats(ownerID, invitationID uint, now time.Time) (*InvitationStats, error) {
	if _, err := s.invitations.Get(ownerID, invitationID); err != nil {
		return nil, err
	}

	stats := &InvitationStats{}
	views := s.db.Model(&db.InvitationView{}).Where("invitation_id = ?", invitationID)

	if err := views.Session(&gorm.Session{}).Count(&stats.TotalViews).Error; err != nil {
		return nil, err
	}
	if err := views.Session(&gorm.Session{}).Distinct("ip_address").Count(&stats.UniqueVisitors).Error; err != nil {
		return nil, err
	}

	var err error
	if stats.ByDevice, err = s.groupViews(invitationID, "device_type"); err != nil {
		return nil, err
	}
	if stats.ByBrowser, err = s.groupViews(invitationID, "browser"); err != nil {
		return nil, err
	}
	if stats.Daily, err = s.dailyViews(invitationID, now); err != nil {
		return nil, err
	}

	if stats.GuestsByCategory, err = s.guests.CountByCategory(invitationID); err != nil {
		return nil, err
	}
	for _, c := range stats.GuestsByCategory {
		stats.TotalGuests += c
	}

	if stats.RSVP, err = s.rsvpSummary(invitationID); err != nil {
		return nil, err
	}
	return stats, nil
}

// UserDashboard 汇总某个用户全部请柬的数据。
func (s *StatsService) UserDashboard(ownerID uint) (*DashboardStats, error) {
	stats := &DashboardStats{}

	var err error
	if stats.Invitations, err = s.invitationsByStatus(s.db.Where("user_id = ?", ownerID)); err != nil {
		return nil, err
	}
	for _, c := range stats.Invitations {
		stats.TotalInvitations += c
	}

	owned := func() *gorm.DB {
		return s.db.Model(&db.Invitation{}).Select("id").Where("user_id = ?", ownerID)
	}
	if err := s.db.Model(&db.InvitationView{}).Where("invitation_id IN (?)", owned()).Count(&stats.TotalViews).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&db.Guest{}).Where("invitation_id IN (?)", owned()).Count(&stats.TotalGuests).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&db.RSVP{}).Where("invitation_id IN (?)", owned()).Count(&stats.TotalRSVPs).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// PlatformOverview 返回后台总览数据。
func (s *StatsService) PlatformOverview() (*PlatformOverview, error) {
	overview := &PlatformOverview{}

	counts := []struct {
		model any
		where []any
		dest  *int64
	}{
		{&db.User{}, nil, &overview.Users},
		{&db.User{}, []any{"is_active = ?", true}, &overview.ActiveUsers},
		{&db.User{}, []any{"is_admin = ?", true}, &overview.Admins},
		{&db.Template{}, nil, &overview.Templates},
		{&db.Template{}, []any{"is_active = ?", true}, &overview.ActiveTemplates},
		{&db.InvitationView{}, nil, &overview.TotalViews},
		{&db.RSVP{}, nil, &overview.TotalRSVPs},
	}
	for _, c := range counts {
		query := s.db.Model(c.model)
		if len(c.where) > 0 {
			query = query.Where(c.where[0], c.where[1:]...)
		}
		if err := query.Count(c.dest).Error; err != nil {
			return nil, err
		}
	}

	var err error
	if overview.Invitations, err = s.invitationsByStatus(s.db); err != nil {
		return nil, err
	}

	if err := s.db.Model(&db.Invitation{}).
		Select("invitations.template_id AS template_id, templates.name AS name, COUNT(*) AS count").
		Joins("JOIN templates ON templates.id = invitations.template_id").
		Where("invitations.template_id <> 0").
		Group("invitations.template_id, templates.name").
		Order("count desc").Order("invitations.template_id asc").
		Limit(5).
		Scan(&overview.TopTemplates).Error; err != nil {
		return nil, err
	}
	if overview.TopTemplates == nil {
		overview.TopTemplates = []TemplateUsage{}
	}
	return overview, nil
}

func (s *StatsService) groupViews(invitationID uint, column string) ([]CountItem, error) {
	items := []CountItem{}
	if err := s.db.Model(&db.InvitationView{}).
		Select(column+" AS label, COUNT(*) AS count").
		Where("invitation_id = ?", invitationID).
		Group(column).
		Order("count desc").Order("label asc").
		Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *StatsService) dailyViews(invitationID uint, now time.Time) ([]DailyCount, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -(dailyStatsDays - 1))

	var times []time.Time
	if err := s.db.Model(&db.InvitationView{}).
		Where("invitation_id = ? AND viewed_at >= ?", invitationID, start).
		Pluck("viewed_at", &times).Error; err != nil {
		return nil, err
	}

	buckets := make(map[string]int64, dailyStatsDays)
	for _, t := range times {
		buckets[t.UTC().Format("2006-01-02")]++
	}

	daily := make([]DailyCount, 0, dailyStatsDays)
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		daily = append(daily, DailyCount{Date: key, Count: buckets[key]})
	}
	return daily, nil
}

func (s *StatsService) rsvpSummary(invitationID uint) (RSVPSummary, error) {
	var rows []struct {
		Attendance string
		Count      int64
		People     int64
	}
	if err := s.db.Model(&db.RSVP{}).
		Select("attendance, COUNT(*) AS count, COALESCE(SUM(party_size), 0) AS people").
		Where("invitation_id = ?", invitationID).
		Group("attendance").
		Scan(&rows).Error; err != nil {
		return RSVPSummary{}, err
	}

	var summary RSVPSummary
	for _, r := range rows {
		switch r.Attendance {
		case AttendanceAttending:
			summary.Attending = r.Count
			summary.Headcount = r.People
		case AttendanceDeclined:
			summary.Declined = r.Count
		}
	}
	return summary, nil
}

func (s *StatsService) invitationsByStatus(scope *gorm.DB) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := scope.Session(&gorm.Session{}).Model(&db.Invitation{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := map[string]int64{StatusDraft: 0, StatusPublished: 0, StatusUnpublished: 0}
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
