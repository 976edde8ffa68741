package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/weddinvite/internal/db"
)

func TestTemplateCreateValidatesPlaceholders(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewTemplateService(gdb, nil, 1<<20)

	_, err := svc.Create(TemplateInput{
		Name:        "Rustic",
		Slug:        "rustic",
		HTMLContent: "<h1>{{groom_name}}</h1><p>{{dress_code}}</p>",
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || !strings.Contains(verr.Fields["html_content"], "dress_code") {
		t.Fatalf("expected unknown field error, got %v", err)
	}

	_, err = svc.Create(TemplateInput{Name: "", Slug: "Bad Slug", HTMLContent: ""})
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"name", "slug", "html_content"} {
		if verr.Fields[field] == "" {
			t.Fatalf("expected error on %s, got %v", field, verr.Fields)
		}
	}

	tpl, err := svc.Create(TemplateInput{
		Name:        "Rustic",
		Slug:        "rustic",
		HTMLContent: "<h1>{{groom_name}}</h1>{{#gallery}}<img src=\"{{photo_path}}\">{{/gallery}}",
	})
	if err != nil {
		t.Fatalf("create valid template: %v", err)
	}
	if !tpl.IsActive {
		t.Fatalf("new templates should default to active")
	}

	if _, err := svc.Create(TemplateInput{Name: "Copy", Slug: "rustic", HTMLContent: "<p>{{title}}</p>"}); !errors.Is(err, ErrTemplateSlugTaken) {
		t.Fatalf("expected ErrTemplateSlugTaken, got %v", err)
	}
}

func TestTemplateListActiveRendersDescription(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewTemplateService(gdb, setupTestStorage(t), 1<<20)

	inactive := false
	if _, err := svc.Create(TemplateInput{Name: "Hidden", Slug: "hidden", HTMLContent: "<p>{{title}}</p>", IsActive: &inactive}); err != nil {
		t.Fatalf("create hidden: %v", err)
	}
	if _, err := svc.Create(TemplateInput{
		Name:        "Garden",
		Slug:        "garden",
		Description: "**Outdoor** theme <script>alert(1)</script>",
		HTMLContent: "<p>{{title}}</p>",
	}); err != nil {
		t.Fatalf("create garden: %v", err)
	}

	cards, err := svc.ListActive()
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(cards) != 1 || cards[0].Slug != "garden" {
		t.Fatalf("expected only the active template, got %+v", cards)
	}
	if !strings.Contains(cards[0].DescriptionHTML, "<strong>Outdoor</strong>") {
		t.Fatalf("markdown not rendered: %q", cards[0].DescriptionHTML)
	}
	if strings.Contains(cards[0].DescriptionHTML, "<script") {
		t.Fatalf("description not sanitised: %q", cards[0].DescriptionHTML)
	}

	all, err := svc.ListAll()
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 templates in admin list, got %d (%v)", len(all), err)
	}
}

func TestTemplateDeleteInUse(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewTemplateService(gdb, nil, 1<<20)
	tpl := createTestTemplate(t, gdb, "classic", "<p>{{title}}</p>")
	owner := createTestUser(t, gdb, "owner@example.com")

	inv := db.Invitation{UserID: owner.ID, TemplateID: tpl.ID, Title: "x", Status: StatusDraft}
	if err := gdb.Create(&inv).Error; err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	if err := svc.Delete(context.Background(), tpl.ID); !errors.Is(err, ErrTemplateInUse) {
		t.Fatalf("expected ErrTemplateInUse, got %v", err)
	}

	if err := gdb.Unscoped().Delete(&inv).Error; err != nil {
		t.Fatalf("delete invitation: %v", err)
	}
	if err := svc.Delete(context.Background(), tpl.ID); err != nil {
		t.Fatalf("delete unused template: %v", err)
	}
	if _, err := svc.Get(tpl.ID); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestTemplateSetActiveHidesFromNewInvitations(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewTemplateService(gdb, nil, 1<<20)
	invitations := NewInvitationService(gdb, nil)
	tpl := createTestTemplate(t, gdb, "classic", "<p>{{title}}</p>")
	owner := createTestUser(t, gdb, "owner@example.com")

	if _, err := svc.SetActive(tpl.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err := invitations.Create(owner.ID, InvitationInput{Title: "x", TemplateID: tpl.ID})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["template_id"] == "" {
		t.Fatalf("inactive template should be rejected, got %v", err)
	}
}

func TestTemplateSetThumbnail(t *testing.T) {
	gdb := setupServiceTestDB(t)
	store := setupTestStorage(t)
	svc := NewTemplateService(gdb, store, 1<<20)
	tpl := createTestTemplate(t, gdb, "classic", "<p>{{title}}</p>")
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	data := testPNG(t, 4, 3)
	first, err := svc.SetThumbnail(ctx, tpl.ID, UploadFile{Filename: "t.png", ContentType: "image/png", Size: int64(len(data)), Reader: bytes.NewReader(data)}, now)
	if err != nil {
		t.Fatalf("set thumbnail: %v", err)
	}
	if !strings.HasPrefix(first.ThumbnailPath, "templates/") || !strings.HasSuffix(first.ThumbnailPath, ".png") {
		t.Fatalf("unexpected thumbnail path %q", first.ThumbnailPath)
	}
	oldPath := first.ThumbnailPath

	second, err := svc.SetThumbnail(ctx, tpl.ID, UploadFile{Filename: "t.png", ContentType: "image/png", Reader: bytes.NewReader(data)}, now)
	if err != nil {
		t.Fatalf("replace thumbnail: %v", err)
	}
	if exists, _ := store.Exists(ctx, oldPath); exists {
		t.Fatalf("old thumbnail should be removed")
	}
	if svc.ThumbnailURL(*second) != "/static/uploads/"+second.ThumbnailPath {
		t.Fatalf("unexpected url %q", svc.ThumbnailURL(*second))
	}

	if _, err := svc.SetThumbnail(ctx, tpl.ID, UploadFile{Filename: "t.txt", ContentType: "text/plain", Reader: strings.NewReader("hi")}, now); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
}
