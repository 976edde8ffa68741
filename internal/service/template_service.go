package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/weddinvite/internal/db"
	"github.com/weddinvite/internal/render"
	"github.com/weddinvite/internal/storage"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gorm.io/gorm"
)

var (
	ErrTemplateNotFound  = errors.New("template not found")
	ErrTemplateInUse     = errors.New("template is used by invitations")
	ErrTemplateSlugTaken = errors.New("template slug already exists")
)

var (
	templateSlugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

	descriptionMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM, extension.Linkify))
	descriptionPolicy   = bluemonday.UGCPolicy()
)

// TemplateService 管理请柬模板目录。
type TemplateService struct {
	db          *gorm.DB
	store       storage.Storage
	maxUpload   int64
	allowFields map[string]struct{}
}

// TemplateInput 为后台创建或更新模板的表单，IsActive 为空时保持原值（新建默认为启用）。
type TemplateInput struct {
	Name        string
	Slug        string
	Description string
	HTMLContent string
	IsActive    *bool
	SortOrder   int
}

// TemplateCard 是用户选择模板时看到的目录条目。
type TemplateCard struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	DescriptionHTML string `json:"description_html"`
	ThumbnailURL    string `json:"thumbnail_url"`
}

// NewTemplateService creates a TemplateService. maxUpload limits thumbnail size in bytes.
func NewTemplateService(gdb *gorm.DB, store storage.Storage, maxUpload int64) *TemplateService {
	allow := make(map[string]struct{}, len(TemplateFields)+2)
	for _, f := range TemplateFields {
		allow[f] = struct{}{}
	}
	allow[render.PhotoPathField] = struct{}{}
	allow[render.PhotoOrderField] = struct{}{}
	return &TemplateService{db: gdb, store: store, maxUpload: maxUpload, allowFields: allow}
}

// ListActive 返回启用中的模板目录，描述由 Markdown 渲染并清洗。
func (s *TemplateService) ListActive() ([]TemplateCard, error) {
	var templates []db.Template
	if err := s.db.Where("is_active = ?", true).
		Order("sort_order asc").Order("id asc").
		Find(&templates).Error; err != nil {
		return nil, err
	}

	cards := make([]TemplateCard, 0, len(templates))
	for _, tpl := range templates {
		html, err := renderDescription(tpl.Description)
		if err != nil {
			return nil, err
		}
		cards = append(cards, TemplateCard{
			ID:              tpl.ID,
			Name:            tpl.Name,
			Slug:            tpl.Slug,
			DescriptionHTML: html,
			ThumbnailURL:    s.thumbnailURL(tpl.ThumbnailPath),
		})
	}
	return cards, nil
}

// ListAll 返回全部模板，供后台管理。
func (s *TemplateService) ListAll() ([]db.Template, error) {
	var templates []db.Template
	if err := s.db.Order("sort_order asc").Order("id asc").Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

// Get fetches a template by id.
func (s *TemplateService) Get(id uint) (*db.Template, error) {
	var tpl db.Template
	if err := s.db.First(&tpl, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &tpl, nil
}

// Create 新建模板。
func (s *TemplateService) Create(input TemplateInput) (*db.Template, error) {
	tpl := db.Template{IsActive: true}
	if err := s.apply(&tpl, input); err != nil {
		return nil, err
	}
	if err := s.ensureSlugAvailable(tpl.Slug, 0); err != nil {
		return nil, err
	}

	if err := s.db.Create(&tpl).Error; err != nil {
		return nil, err
	}
	// is_active 带有默认值，零值 false 在插入时会被忽略。
	if !tpl.IsActive {
		if err := s.db.Model(&tpl).Update("is_active", false).Error; err != nil {
			return nil, err
		}
	}
	return &tpl, nil
}

// Update 更新模板内容。
func (s *TemplateService) Update(id uint, input TemplateInput) (*db.Template, error) {
	tpl, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(tpl, input); err != nil {
		return nil, err
	}
	if err := s.ensureSlugAvailable(tpl.Slug, tpl.ID); err != nil {
		return nil, err
	}
	if err := s.db.Save(tpl).Error; err != nil {
		return nil, err
	}
	return tpl, nil
}

// SetActive 启用或停用模板；停用不影响已使用它的请柬。
func (s *TemplateService) SetActive(id uint, active bool) (*db.Template, error) {
	tpl, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	tpl.IsActive = active
	if err := s.db.Model(tpl).Update("is_active", active).Error; err != nil {
		return nil, err
	}
	return tpl, nil
}

// Delete 删除未被任何请柬引用的模板及其缩略图。
func (s *TemplateService) Delete(ctx context.Context, id uint) error {
	tpl, err := s.Get(id)
	if err != nil {
		return err
	}

	var count int64
	if err := s.db.Model(&db.Invitation{}).Where("template_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrTemplateInUse
	}

	if err := s.db.Unscoped().Delete(&db.Template{}, id).Error; err != nil {
		return err
	}
	if tpl.ThumbnailPath != "" && s.store != nil {
		if err := s.store.Delete(ctx, tpl.ThumbnailPath); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageCleanup, err)
		}
	}
	return nil
}

// SetThumbnail 上传模板缩略图并替换旧文件。
func (s *TemplateService) SetThumbnail(ctx context.Context, id uint, file UploadFile, now time.Time) (*db.Template, error) {
	if s.store == nil {
		return nil, errors.New("storage is not configured")
	}
	tpl, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	img, err := probeImage(file, s.maxUpload)
	if err != nil {
		return nil, err
	}

	key := storageKey(fmt.Sprintf("templates/%d", tpl.ID), img.Ext, now)
	if err := s.store.Save(ctx, key, bytes.NewReader(img.Data), img.ContentType); err != nil {
		return nil, fmt.Errorf("save thumbnail: %w", err)
	}

	old := tpl.ThumbnailPath
	tpl.ThumbnailPath = key
	if err := s.db.Model(tpl).Update("thumbnail_path", key).Error; err != nil {
		_ = s.store.Delete(ctx, key)
		return nil, err
	}
	if old != "" {
		_ = s.store.Delete(ctx, old)
	}
	return tpl, nil
}

// ThumbnailURL 返回模板缩略图的访问地址。
func (s *TemplateService) ThumbnailURL(tpl db.Template) string {
	return s.thumbnailURL(tpl.ThumbnailPath)
}

func (s *TemplateService) thumbnailURL(path string) string {
	if path == "" || s.store == nil {
		return ""
	}
	return s.store.URL(path)
}

func (s *TemplateService) apply(tpl *db.Template, input TemplateInput) error {
	verr := &ValidationError{}

	tpl.Name = cleanText(input.Name)
	if tpl.Name == "" {
		verr.Add("name", "请填写模板名称")
	} else if utf8.RuneCountInString(tpl.Name) > 100 {
		verr.Add("name", "模板名称不能超过 100 个字符")
	}

	tpl.Slug = strings.ToLower(strings.TrimSpace(input.Slug))
	if !templateSlugPattern.MatchString(tpl.Slug) || len(tpl.Slug) > 100 {
		verr.Add("slug", "标识只能包含小写字母、数字和连字符")
	}

	tpl.Description = strings.TrimSpace(input.Description)
	tpl.HTMLContent = strings.TrimSpace(input.HTMLContent)
	if tpl.HTMLContent == "" {
		verr.Add("html_content", "模板内容不能为空")
	} else if unknown := s.unknownFields(tpl.HTMLContent); len(unknown) > 0 {
		verr.Add("html_content", "模板包含未知字段: "+strings.Join(unknown, ", "))
	}

	if input.IsActive != nil {
		tpl.IsActive = *input.IsActive
	}
	tpl.SortOrder = input.SortOrder

	return verr.Err()
}

func (s *TemplateService) unknownFields(doc string) []string {
	var unknown []string
	for _, name := range render.Placeholders(doc) {
		if _, ok := s.allowFields[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

func (s *TemplateService) ensureSlugAvailable(slug string, exceptID uint) error {
	var count int64
	query := s.db.Unscoped().Model(&db.Template{}).Where("slug = ?", slug)
	if exceptID != 0 {
		query = query.Where("id <> ?", exceptID)
	}
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrTemplateSlugTaken
	}
	return nil
}

func renderDescription(markdown string) (string, error) {
	if strings.TrimSpace(markdown) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := descriptionMarkdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render template description: %w", err)
	}
	return descriptionPolicy.Sanitize(buf.String()), nil
}
