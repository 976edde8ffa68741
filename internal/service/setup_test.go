package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/weddinvite/internal/db"
	"github.com/weddinvite/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:service-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func setupTestStorage(t *testing.T) *storage.LocalStorage {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir(), "/static/uploads")
	if err != nil {
		t.Fatalf("create storage: %v", err)
	}
	return store
}

func createTestUser(t *testing.T, gdb *gorm.DB, email string) db.User {
	t.Helper()
	user := db.User{Name: "测试用户", Email: email, Password: "x", IsActive: true}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func createTestTemplate(t *testing.T, gdb *gorm.DB, slug, html string) db.Template {
	t.Helper()
	tpl := db.Template{Name: "模板 " + slug, Slug: slug, HTMLContent: html, IsActive: true}
	if err := gdb.Create(&tpl).Error; err != nil {
		t.Fatalf("create template: %v", err)
	}
	return tpl
}

// createPublishableInvitation 创建一个已选择模板且填写了日期的草稿请柬。
func createPublishableInvitation(t *testing.T, svc *InvitationService, ownerID, templateID uint) *db.Invitation {
	t.Helper()
	inv, err := svc.Create(ownerID, InvitationInput{
		TemplateID: templateID,
		Title:      "Our Wedding",
		GroomName:  "Budi",
		BrideName:  "Sari",
		EventDate:  "2025-06-14",
		EventTime:  "10:00",
		VenueName:  "Gedung Serbaguna",
	})
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	return inv
}

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
