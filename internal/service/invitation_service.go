package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/weddinvite/internal/db"
	"github.com/weddinvite/internal/render"
	"github.com/weddinvite/internal/storage"
	"gorm.io/gorm"
)

// Invitation statuses.
const (
	StatusDraft       = "draft"
	StatusPublished   = "published"
	StatusUnpublished = "unpublished"
)

// SlugLength is the length of a public invitation slug.
const SlugLength = 32

const maxSlugAttempts = 10

var (
	ErrInvitationNotFound   = errors.New("invitation not found")
	ErrInvalidTransition    = errors.New("invalid invitation status transition")
	ErrIncompleteInvitation = errors.New("invitation needs a template and an event date before publishing")
	ErrSlugExhausted        = errors.New("could not generate a unique slug")
	ErrStorageCleanup       = errors.New("stored files could not be removed")
)

// InvitationService 管理请柬的增删改查与发布状态。
type InvitationService struct {
	db      *gorm.DB
	store   storage.Storage
	newSlug func() string
}

// InvitationInput 为创建或更新请柬时可编辑的字段，EventDate 格式为 2006-01-02。
type InvitationInput struct {
	TemplateID   uint
	Title        string
	GroomName    string
	BrideName    string
	EventDate    string
	EventTime    string
	VenueName    string
	VenueAddress string
	MapURL       string
	Message      string
	MusicURL     string
}

// InvitationFilter 用于用户请柬列表。
type InvitationFilter struct {
	Status  string
	Page    int
	PerPage int
}

// InvitationListResult 为分页后的请柬列表。
type InvitationListResult struct {
	Invitations []db.Invitation
	Total       int64
	TotalPages  int
	Page        int
	PerPage     int
}

// NewInvitationService creates an InvitationService instance.
func NewInvitationService(gdb *gorm.DB, store storage.Storage) *InvitationService {
	return &InvitationService{db: gdb, store: store, newSlug: randomSlug}
}

func randomSlug() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Create 为 ownerID 新建草稿请柬。
func (s *InvitationService) Create(ownerID uint, input InvitationInput) (*db.Invitation, error) {
	inv := db.Invitation{UserID: ownerID, Status: StatusDraft}
	if err := s.apply(&inv, input); err != nil {
		return nil, err
	}
	if err := s.db.Create(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// Update 覆盖请柬的可编辑字段，状态与 slug 不受影响。
func (s *InvitationService) Update(ownerID, id uint, input InvitationInput) (*db.Invitation, error) {
	inv, err := s.Get(ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(inv, input); err != nil {
		return nil, err
	}
	if err := s.db.Save(inv).Error; err != nil {
		return nil, err
	}
	return inv, nil
}

// ChangeTemplate 只更换请柬使用的模板。
func (s *InvitationService) ChangeTemplate(ownerID, id, templateID uint) (*db.Invitation, error) {
	inv, err := s.Get(ownerID, id)
	if err != nil {
		return nil, err
	}
	if templateID != inv.TemplateID {
		if err := s.checkTemplate(templateID); err != nil {
			return nil, err
		}
	}
	inv.TemplateID = templateID
	if err := s.db.Model(inv).Update("template_id", templateID).Error; err != nil {
		return nil, err
	}
	return inv, nil
}

// Get 返回属于 ownerID 的请柬；不存在或不属于该用户时均返回 ErrInvitationNotFound。
func (s *InvitationService) Get(ownerID, id uint) (*db.Invitation, error) {
	var inv db.Invitation
	if err := s.db.Where("id = ? AND user_id = ?", id, ownerID).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// ListByOwner 返回用户的请柬，最近更新的在前。
func (s *InvitationService) ListByOwner(ownerID uint, filter InvitationFilter) (InvitationListResult, error) {
	result := InvitationListResult{
		Page:    normalizePage(filter.Page),
		PerPage: normalizePerPage(filter.PerPage, 20),
	}

	query := s.db.Model(&db.Invitation{}).Where("user_id = ?", ownerID)
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&result.Total).Error; err != nil {
		return result, err
	}
	result.TotalPages = calculateTotalPages(result.Total, result.PerPage)

	offset := (result.Page - 1) * result.PerPage
	if err := query.Order("updated_at desc").Order("id desc").
		Limit(result.PerPage).
		Offset(offset).
		Find(&result.Invitations).Error; err != nil {
		return result, err
	}
	return result, nil
}

// Publish 将草稿或已下线的请柬发布；首次发布时生成唯一 slug，之后沿用。
func (s *InvitationService) Publish(ownerID, id uint, now time.Time) (*db.Invitation, error) {
	inv, err := s.Get(ownerID, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != StatusDraft && inv.Status != StatusUnpublished {
		return nil, ErrInvalidTransition
	}
	if inv.TemplateID == 0 || inv.EventDate == nil {
		return nil, ErrIncompleteInvitation
	}

	if inv.Slug == nil || *inv.Slug == "" {
		slug, err := s.uniqueSlug()
		if err != nil {
			return nil, err
		}
		inv.Slug = &slug
	}

	publishedAt := now.UTC()
	inv.Status = StatusPublished
	inv.PublishedAt = &publishedAt

	if err := s.db.Model(inv).Updates(map[string]any{
		"status":       inv.Status,
		"slug":         *inv.Slug,
		"published_at": publishedAt,
	}).Error; err != nil {
		return nil, err
	}
	return inv, nil
}

// Unpublish 将已发布的请柬下线；已下线时不做任何修改，草稿返回 ErrInvalidTransition。
func (s *InvitationService) Unpublish(ownerID, id uint) (*db.Invitation, error) {
	inv, err := s.Get(ownerID, id)
	if err != nil {
		return nil, err
	}

	switch inv.Status {
	case StatusUnpublished:
		return inv, nil
	case StatusPublished:
	default:
		return nil, ErrInvalidTransition
	}

	inv.Status = StatusUnpublished
	if err := s.db.Model(inv).Update("status", inv.Status).Error; err != nil {
		return nil, err
	}
	return inv, nil
}

// GetPublishedBySlug 只解析处于发布状态的请柬。
func (s *InvitationService) GetPublishedBySlug(slug string) (*db.Invitation, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrInvitationNotFound
	}

	var inv db.Invitation
	if err := s.db.Where("slug = ? AND status = ?", slug, StatusPublished).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// Render 使用请柬模板与相册生成 HTML，不校验发布状态。
func (s *InvitationService) Render(inv *db.Invitation) (string, error) {
	var tpl db.Template
	if err := s.db.First(&tpl, inv.TemplateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrTemplateNotFound
		}
		return "", err
	}

	var photos []db.GalleryPhoto
	if err := s.db.Where("invitation_id = ?", inv.ID).
		Order("sort_order asc").Order("id asc").
		Find(&photos).Error; err != nil {
		return "", err
	}

	var urlFor func(string) string
	if s.store != nil {
		urlFor = s.store.URL
	}
	return render.Render(tpl.HTMLContent, BindingFor(*inv, photos, urlFor)), nil
}

// Delete 删除请柬及其宾客、照片、浏览记录和回复；数据库提交后再删除照片文件。
func (s *InvitationService) Delete(ownerID, id uint) error {
	inv, err := s.Get(ownerID, id)
	if err != nil {
		return err
	}

	var paths []string
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.GalleryPhoto{}).Where("invitation_id = ?", inv.ID).Pluck("path", &paths).Error; err != nil {
			return err
		}
		for _, model := range []any{&db.Guest{}, &db.GalleryPhoto{}, &db.InvitationView{}, &db.RSVP{}} {
			if err := tx.Unscoped().Where("invitation_id = ?", inv.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Unscoped().Delete(&db.Invitation{}, inv.ID).Error
	}); err != nil {
		return err
	}

	return s.removeFiles(paths)
}

func (s *InvitationService) removeFiles(paths []string) error {
	if s.store == nil || len(paths) == 0 {
		return nil
	}
	var errs []error
	for _, p := range paths {
		if err := s.store.Delete(context.Background(), p); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrStorageCleanup, errors.Join(errs...))
	}
	return nil
}

func (s *InvitationService) uniqueSlug() (string, error) {
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		slug := s.newSlug()
		if len(slug) != SlugLength {
			continue
		}
		var count int64
		if err := s.db.Unscoped().Model(&db.Invitation{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
	}
	return "", ErrSlugExhausted
}

func (s *InvitationService) apply(inv *db.Invitation, input InvitationInput) error {
	verr := &ValidationError{}

	inv.Title = limitedText(verr, "title", input.Title, 200)
	inv.GroomName = limitedText(verr, "groom_name", input.GroomName, 100)
	inv.BrideName = limitedText(verr, "bride_name", input.BrideName, 100)
	inv.VenueName = limitedText(verr, "venue_name", input.VenueName, 200)
	inv.VenueAddress = limitedText(verr, "venue_address", input.VenueAddress, 500)
	inv.Message = limitedText(verr, "message", input.Message, 5000)
	inv.MapURL = optionalURL(verr, "map_url", input.MapURL)
	inv.MusicURL = optionalURL(verr, "music_url", input.MusicURL)

	if inv.Title == "" {
		verr.Add("title", "请填写请柬标题")
	}

	inv.EventDate = nil
	if date := strings.TrimSpace(input.EventDate); date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			verr.Add("event_date", "日期格式应为 YYYY-MM-DD")
		} else {
			inv.EventDate = &parsed
		}
	}

	inv.EventTime = strings.TrimSpace(input.EventTime)
	if inv.EventTime != "" {
		if _, err := time.Parse("15:04", inv.EventTime); err != nil {
			verr.Add("event_time", "时间格式应为 HH:MM")
		}
	}

	if input.TemplateID != 0 && input.TemplateID != inv.TemplateID {
		if err := s.checkTemplate(input.TemplateID); err != nil {
			if errors.Is(err, ErrTemplateNotFound) {
				verr.Add("template_id", "模板不存在或已停用")
			} else {
				return err
			}
		}
	}
	inv.TemplateID = input.TemplateID

	return verr.Err()
}

func (s *InvitationService) checkTemplate(templateID uint) error {
	var count int64
	if err := s.db.Model(&db.Template{}).Where("id = ? AND is_active = ?", templateID, true).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func limitedText(verr *ValidationError, field, value string, max int) string {
	cleaned := cleanText(value)
	if utf8.RuneCountInString(cleaned) > max {
		verr.Add(field, fmt.Sprintf("不能超过 %d 个字符", max))
	}
	return cleaned
}

func optionalURL(verr *ValidationError, field, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		verr.Add(field, "请输入以 http:// 或 https:// 开头的链接")
		return value
	}
	return value
}
