package handler

import (
	"strings"
	"time"

	"github.com/weddinvite/internal/service"
	"github.com/weddinvite/internal/storage"
	"gorm.io/gorm"
)

// Options 配置 API 的存储、上传限制与访问去重窗口。
type Options struct {
	Storage         storage.Storage
	MaxUploadBytes  int64
	ViewDedupWindow time.Duration
	SiteBaseURL     string
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db          *gorm.DB
	users       *service.UserService
	templates   *service.TemplateService
	invitations *service.InvitationService
	guests      *service.GuestService
	gallery     *service.GalleryService
	views       *service.ViewTracker
	rsvps       *service.RSVPService
	stats       *service.StatsService
	baseURL     string
	now         func() time.Time
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, opts Options) *API {
	useJSONFieldNames()

	invitations := service.NewInvitationService(db, opts.Storage)
	guests := service.NewGuestService(db, invitations, opts.MaxUploadBytes)

	return &API{
		db:          db,
		users:       service.NewUserService(db),
		templates:   service.NewTemplateService(db, opts.Storage, opts.MaxUploadBytes),
		invitations: invitations,
		guests:      guests,
		gallery:     service.NewGalleryService(db, opts.Storage, invitations, opts.MaxUploadBytes),
		views:       service.NewViewTracker(db).WithDedupWindow(opts.ViewDedupWindow),
		rsvps:       service.NewRSVPService(db, invitations),
		stats:       service.NewStatsService(db, invitations, guests),
		baseURL:     strings.TrimRight(strings.TrimSpace(opts.SiteBaseURL), "/"),
		now:         time.Now,
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

// publicURL 返回请柬公开页面地址，未配置站点地址时返回相对路径。
func (a *API) publicURL(slug string) string {
	if slug == "" {
		return ""
	}
	return a.baseURL + "/i/" + slug
}
