package service

import (
	"strings"
	"unicode/utf8"

	"github.com/weddinvite/internal/db"
	"gorm.io/gorm"
)

// Attendance answers.
const (
	AttendanceAttending = "attending"
	AttendanceDeclined  = "declined"
)

const maxPartySize = 10

// RSVPService 处理访客在公开页面提交的出席回复。
type RSVPService struct {
	db          *gorm.DB
	invitations *InvitationService
}

// RSVPInput 为公开页面提交的回复表单。
type RSVPInput struct {
	GuestName  string
	Attendance string
	PartySize  int
	Message    string
}

// NewRSVPService creates an RSVPService instance.
func NewRSVPService(gdb *gorm.DB, invitations *InvitationService) *RSVPService {
	return &RSVPService{db: gdb, invitations: invitations}
}

// Submit 为已发布的请柬保存一条回复；婉拒时人数记为 0。
func (s *RSVPService) Submit(slug string, input RSVPInput) (*db.RSVP, error) {
	inv, err := s.invitations.GetPublishedBySlug(slug)
	if err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	rsvp := db.RSVP{
		InvitationID: inv.ID,
		GuestName:    cleanText(input.GuestName),
		Attendance:   strings.ToLower(strings.TrimSpace(input.Attendance)),
		Message:      cleanText(input.Message),
	}

	if rsvp.GuestName == "" {
		verr.Add("guest_name", "请填写姓名")
	} else if utf8.RuneCountInString(rsvp.GuestName) > 200 {
		verr.Add("guest_name", "姓名不能超过 200 个字符")
	}
	if utf8.RuneCountInString(rsvp.Message) > 1000 {
		verr.Add("message", "留言不能超过 1000 个字符")
	}

	switch rsvp.Attendance {
	case AttendanceAttending:
		if input.PartySize < 1 || input.PartySize > maxPartySize {
			verr.Add("party_size", "出席人数须在 1 到 10 之间")
		}
		rsvp.PartySize = input.PartySize
	case AttendanceDeclined:
		rsvp.PartySize = 0
	default:
		verr.Add("attendance", "请选择出席或婉拒")
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}
	if err := s.db.Create(&rsvp).Error; err != nil {
		return nil, err
	}
	return &rsvp, nil
}

// List 返回请柬的全部回复，最新的在前。
func (s *RSVPService) List(ownerID, invitationID uint) ([]db.RSVP, error) {
	if _, err := s.invitations.Get(ownerID, invitationID); err != nil {
		return nil, err
	}

	var rsvps []db.RSVP
	if err := s.db.Where("invitation_id = ?", invitationID).
		Order("created_at desc").Order("id desc").
		Find(&rsvps).Error; err != nil {
		return nil, err
	}
	return rsvps, nil
}
