package router

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/weddinvite/internal/handler"
	"github.com/weddinvite/internal/logging"
)

const sessionName = "weddinvite_session"

// Options 描述路由所需的会话、静态上传目录与日志配置。
type Options struct {
	SessionSecret string
	// UploadDir 为空时不挂载本地上传目录（例如使用 S3 存储）。
	UploadDir          string
	UploadURLPath      string
	MaxMultipartMemory int64
	Logger             zerolog.Logger
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(logging.GinLogger(opts.Logger), gin.Recovery())
	if opts.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = opts.MaxMultipartMemory
	}

	// 配置会话中间件
	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	if dir := strings.TrimSpace(opts.UploadDir); dir != "" {
		urlPath := "/" + strings.Trim(opts.UploadURLPath, "/")
		if urlPath == "/" {
			urlPath = "/static/uploads"
		}
		r.Static(urlPath, dir)
	}

	r.GET("/ping", handler.Ping)

	// 公开请柬页面
	r.GET("/i/:slug", api.ShowInvitation)
	r.POST("/i/:slug/rsvp", api.SubmitRSVP)

	auth := r.Group("/api/auth")
	{
		auth.POST("/register", api.Register)
		auth.POST("/login", api.Login)
		auth.POST("/logout", api.Logout)
	}

	// 需要登录的接口
	apiGroup := r.Group("/api")
	apiGroup.Use(api.AuthRequired())
	{
		apiGroup.GET("/me", api.Me)
		apiGroup.PUT("/me", api.UpdateMe)
		apiGroup.PUT("/me/password", api.ChangePassword)

		apiGroup.GET("/templates", api.ListTemplates)
		apiGroup.GET("/dashboard", api.Dashboard)

		apiGroup.GET("/invitations", api.ListInvitations)
		apiGroup.POST("/invitations", api.CreateInvitation)
		apiGroup.GET("/invitations/:id", api.GetInvitation)
		apiGroup.PUT("/invitations/:id", api.UpdateInvitation)
		apiGroup.DELETE("/invitations/:id", api.DeleteInvitation)
		apiGroup.PUT("/invitations/:id/template", api.ChangeInvitationTemplate)
		apiGroup.POST("/invitations/:id/publish", api.PublishInvitation)
		apiGroup.POST("/invitations/:id/unpublish", api.UnpublishInvitation)
		apiGroup.GET("/invitations/:id/preview", api.PreviewInvitation)
		apiGroup.GET("/invitations/:id/stats", api.InvitationStats)
		apiGroup.GET("/invitations/:id/rsvps", api.ListRSVPs)

		apiGroup.GET("/invitations/:id/guests", api.ListGuests)
		apiGroup.POST("/invitations/:id/guests", api.CreateGuest)
		apiGroup.POST("/invitations/:id/guests/import", api.ImportGuests)
		apiGroup.GET("/invitations/:id/guests/export", api.ExportGuests)
		apiGroup.PUT("/invitations/:id/guests/:guestID", api.UpdateGuest)
		apiGroup.DELETE("/invitations/:id/guests/:guestID", api.DeleteGuest)

		apiGroup.GET("/invitations/:id/photos", api.ListPhotos)
		apiGroup.POST("/invitations/:id/photos", api.UploadPhoto)
		apiGroup.PUT("/invitations/:id/photos/order", api.ReorderPhotos)
		apiGroup.DELETE("/invitations/:id/photos/:photoID", api.DeletePhoto)

		// 管理后台
		admin := apiGroup.Group("/admin")
		admin.Use(api.AdminRequired())
		{
			admin.GET("/overview", api.AdminOverview)
			admin.GET("/users", api.AdminListUsers)
			admin.PUT("/users/:id/active", api.AdminSetUserActive)
			admin.PUT("/users/:id/admin", api.AdminSetUserAdmin)
			admin.DELETE("/users/:id", api.AdminDeleteUser)

			admin.GET("/templates", api.AdminListTemplates)
			admin.POST("/templates", api.AdminCreateTemplate)
			admin.GET("/templates/:id", api.AdminGetTemplate)
			admin.PUT("/templates/:id", api.AdminUpdateTemplate)
			admin.PUT("/templates/:id/active", api.AdminSetTemplateActive)
			admin.POST("/templates/:id/thumbnail", api.AdminUploadTemplateThumbnail)
			admin.DELETE("/templates/:id", api.AdminDeleteTemplate)
		}
	}

	return r
}
