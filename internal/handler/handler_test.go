package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/weddinvite/internal/db"
	"github.com/weddinvite/internal/service"
	"github.com/weddinvite/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ginOnce sync.Once

func setupHandlerTest(t *testing.T) (*API, *gorm.DB) {
	t.Helper()

	ginOnce.Do(func() {
		gin.SetMode(gin.TestMode)
	})

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store, err := storage.NewLocalStorage(t.TempDir(), "/static/uploads")
	if err != nil {
		t.Fatalf("create storage: %v", err)
	}
	return NewAPI(gdb, Options{Storage: store, MaxUploadBytes: 1 << 20}), gdb
}

func newSessionEngine() *gin.Engine {
	r := gin.New()
	r.Use(sessions.Sessions("test_session", cookie.NewStore([]byte("test-secret"))))
	return r
}

// asUser 跳过会话，直接把用户写入上下文。
func asUser(user *db.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(currentUserContextKey, user)
		c.Next()
	}
}

func createPublishedInvitation(t *testing.T, api *API, gdb *gorm.DB) (*db.User, *db.Invitation) {
	t.Helper()

	user, err := api.users.Register(service.RegisterInput{Name: "新人", Email: fmt.Sprintf("owner-%d@example.com", time.Now().UnixNano()), Password: "password123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	tpl := db.Template{Name: "经典", Slug: fmt.Sprintf("classic-%d", time.Now().UnixNano()), HTMLContent: "<h1>{{groom_name}} &amp; {{bride_name}}</h1>", IsActive: true}
	if err := gdb.Create(&tpl).Error; err != nil {
		t.Fatalf("create template: %v", err)
	}
	inv, err := api.invitations.Create(user.ID, service.InvitationInput{
		TemplateID: tpl.ID,
		Title:      "婚礼",
		GroomName:  "Budi",
		BrideName:  "Siti",
		EventDate:  "2026-12-12",
	})
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	inv, err = api.invitations.Publish(user.ID, inv.ID, time.Now())
	if err != nil {
		t.Fatalf("publish invitation: %v", err)
	}
	return user, inv
}

func TestShowInvitationUnknownSlugReturnsHTML404(t *testing.T) {
	api, _ := setupHandlerTest(t)

	r := gin.New()
	r.GET("/i/:slug", api.ShowInvitation)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/i/missing", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("expected html response, got %q", rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Body.String(), "请柬不存在") {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestShowInvitationCountsOneViewPerIP(t *testing.T) {
	api, gdb := setupHandlerTest(t)
	_, inv := createPublishedInvitation(t, api, gdb)

	r := gin.New()
	r.GET("/i/:slug", api.ShowInvitation)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/i/"+*inv.Slug, nil)
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
		if rr.Header().Get("Cache-Control") != "no-store" {
			t.Fatalf("expected no-store cache header")
		}
	}

	var views []db.InvitationView
	if err := gdb.Where("invitation_id = ?", inv.ID).Find(&views).Error; err != nil {
		t.Fatalf("load views: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}
	if views[0].DeviceType != "desktop" || views[0].Browser != "Chrome" {
		t.Fatalf("unexpected classification %s/%s", views[0].DeviceType, views[0].Browser)
	}
}

func TestSubmitRSVPAcceptsFormPost(t *testing.T) {
	api, gdb := setupHandlerTest(t)
	_, inv := createPublishedInvitation(t, api, gdb)

	r := gin.New()
	r.POST("/i/:slug/rsvp", api.SubmitRSVP)

	form := url.Values{"guest_name": {"Rina"}, "attendance": {"declined"}, "party_size": {"3"}}
	req := httptest.NewRequest(http.MethodPost, "/i/"+*inv.Slug+"/rsvp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		RSVP struct {
			PartySize int `json:"party_size"`
		} `json:"rsvp"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RSVP.PartySize != 0 {
		t.Fatalf("declined reply should have party size 0, got %d", body.RSVP.PartySize)
	}

	missing := httptest.NewRequest(http.MethodPost, "/i/"+*inv.Slug+"/rsvp", strings.NewReader("attendance=attending"))
	missing.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, missing)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "guest_name") {
		t.Fatalf("expected guest_name field error, got %s", rr.Body.String())
	}
}

func TestExportGuestsRemovesTempFile(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	api, gdb := setupHandlerTest(t)
	user, inv := createPublishedInvitation(t, api, gdb)
	if _, err := api.guests.Create(user.ID, inv.ID, service.GuestInput{Name: "Andi", Category: "family"}); err != nil {
		t.Fatalf("create guest: %v", err)
	}

	r := gin.New()
	r.GET("/invitations/:id/guests/export", asUser(user), api.ExportGuests)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/invitations/%d/guests/export", inv.ID), nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Body.String() != "name,category\nAndi,family\n" {
		t.Fatalf("unexpected csv %q", rr.Body.String())
	}

	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "guests-") {
			t.Fatalf("temp export %s was not removed", entry.Name())
		}
	}
}

func TestAuthRequiredLogsOutDeactivatedUser(t *testing.T) {
	api, _ := setupHandlerTest(t)

	admin, err := api.users.Register(service.RegisterInput{Name: "管理员", Email: "admin@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("register admin: %v", err)
	}
	user, err := api.users.Register(service.RegisterInput{Name: "用户", Email: "user@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("register user: %v", err)
	}

	r := newSessionEngine()
	r.POST("/login", api.Login)
	r.GET("/me", api.AuthRequired(), api.Me)

	login := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"user@example.com","password":"password123"}`))
	login.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, login)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected login 200, got %d: %s", rr.Code, rr.Body.String())
	}
	cookies := rr.Result().Cookies()

	me := func() int {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := me(); code != http.StatusOK {
		t.Fatalf("expected 200 with session, got %d", code)
	}
	if _, err := api.users.SetActive(admin.ID, user.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if code := me(); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after deactivation, got %d", code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	api, _ := setupHandlerTest(t)
	if _, err := api.users.Register(service.RegisterInput{Name: "用户", Email: "user@example.com", Password: "password123"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	r := newSessionEngine()
	r.POST("/login", api.Login)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"user@example.com","password":"wrong-pass"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestAdminRequiredRejectsRegularUser(t *testing.T) {
	api, _ := setupHandlerTest(t)

	r := gin.New()
	r.GET("/admin", asUser(&db.User{Model: gorm.Model{ID: 7}, IsActive: true}), api.AdminRequired(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestRespondServiceErrorStatusCodes(t *testing.T) {
	ginOnce.Do(func() {
		gin.SetMode(gin.TestMode)
	})

	verr := &service.ValidationError{}
	verr.Add("title", "不能为空")

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "not found", err: service.ErrInvitationNotFound, status: http.StatusNotFound},
		{name: "wrapped not found", err: fmt.Errorf("load: %w", service.ErrGuestNotFound), status: http.StatusNotFound},
		{name: "transition", err: service.ErrInvalidTransition, status: http.StatusConflict},
		{name: "incomplete", err: service.ErrIncompleteInvitation, status: http.StatusUnprocessableEntity},
		{name: "validation", err: verr, status: http.StatusUnprocessableEntity},
		{name: "too large", err: service.ErrFileTooLarge, status: http.StatusRequestEntityTooLarge},
		{name: "unsupported image", err: service.ErrUnsupportedImage, status: http.StatusUnsupportedMediaType},
		{name: "gallery full", err: service.ErrGalleryFull, status: http.StatusConflict},
		{name: "unknown", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rr)
			respondServiceError(c, tt.err, "失败")
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rr.Code)
			}
		})
	}
}

func TestParseUintParamRejectsZero(t *testing.T) {
	ginOnce.Do(func() {
		gin.SetMode(gin.TestMode)
	})

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Params = gin.Params{{Key: "id", Value: "0"}}
	if _, err := parseUintParam(c, "id"); err == nil {
		t.Fatal("expected error for zero id")
	}
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	if id, err := parseUintParam(c, "id"); err != nil || id != 42 {
		t.Fatalf("expected 42, got %d (%v)", id, err)
	}
}
