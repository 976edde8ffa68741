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

func pngUpload(data []byte) UploadFile {
	return UploadFile{Filename: "photo.png", ContentType: "image/png", Size: int64(len(data)), Reader: bytes.NewReader(data)}
}

func TestGalleryUploadListReorderDelete(t *testing.T) {
	gdb := setupServiceTestDB(t)
	store := setupTestStorage(t)
	invitations := NewInvitationService(gdb, store)
	svc := NewGalleryService(gdb, store, invitations, 1<<20)
	owner := createTestUser(t, gdb, "owner@example.com")
	inv, err := invitations.Create(owner.ID, InvitationInput{Title: "Gallery"})
	if err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	ctx := context.Background()
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	var ids []uint
	for i := 0; i < 3; i++ {
		photo, err := svc.Upload(ctx, owner.ID, inv.ID, pngUpload(testPNG(t, 6+i, 4)), now)
		if err != nil {
			t.Fatalf("upload %d: %v", i, err)
		}
		if photo.Width != 6+i || photo.Height != 4 || photo.SortOrder != i+1 {
			t.Fatalf("unexpected photo %+v", photo)
		}
		if !strings.HasPrefix(photo.URL, "/static/uploads/gallery/") || !strings.HasSuffix(photo.URL, ".png") {
			t.Fatalf("unexpected url %q", photo.URL)
		}
		ids = append(ids, photo.ID)
	}

	if _, err := svc.Reorder(owner.ID, inv.ID, []uint{ids[0], ids[1]}); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder for partial list, got %v", err)
	}
	if _, err := svc.Reorder(owner.ID, inv.ID, []uint{ids[0], ids[0], ids[1]}); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder for duplicates, got %v", err)
	}

	reordered, err := svc.Reorder(owner.ID, inv.ID, []uint{ids[2], ids[0], ids[1]})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if reordered[0].ID != ids[2] || reordered[1].ID != ids[0] || reordered[2].ID != ids[1] {
		t.Fatalf("unexpected order %+v", reordered)
	}

	var photo db.GalleryPhoto
	if err := gdb.First(&photo, ids[2]).Error; err != nil {
		t.Fatalf("load photo: %v", err)
	}
	if err := svc.Delete(ctx, owner.ID, inv.ID, ids[2]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if exists, _ := store.Exists(ctx, photo.Path); exists {
		t.Fatalf("photo file should be removed")
	}
	if err := svc.Delete(ctx, owner.ID, inv.ID, ids[2]); !errors.Is(err, ErrPhotoNotFound) {
		t.Fatalf("expected ErrPhotoNotFound, got %v", err)
	}

	list, err := svc.List(owner.ID, inv.ID)
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 photos, got %d (%v)", len(list), err)
	}
}

func TestGalleryUploadRejections(t *testing.T) {
	gdb := setupServiceTestDB(t)
	store := setupTestStorage(t)
	invitations := NewInvitationService(gdb, store)
	svc := NewGalleryService(gdb, store, invitations, 512)
	owner := createTestUser(t, gdb, "owner@example.com")
	other := createTestUser(t, gdb, "other@example.com")
	inv, _ := invitations.Create(owner.ID, InvitationInput{Title: "Gallery"})
	ctx := context.Background()

	if _, err := svc.Upload(ctx, other.ID, inv.ID, pngUpload(testPNG(t, 2, 2)), time.Now()); !errors.Is(err, ErrInvitationNotFound) {
		t.Fatalf("expected ErrInvitationNotFound, got %v", err)
	}
	if _, err := svc.Upload(ctx, owner.ID, inv.ID, UploadFile{Filename: "a.pdf", ContentType: "application/pdf", Reader: strings.NewReader("%PDF")}, time.Now()); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage, got %v", err)
	}
	if _, err := svc.Upload(ctx, owner.ID, inv.ID, UploadFile{Filename: "fake.png", ContentType: "image/png", Reader: strings.NewReader("not an image")}, time.Now()); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("expected ErrUnsupportedImage for fake png, got %v", err)
	}
	if _, err := svc.Upload(ctx, owner.ID, inv.ID, UploadFile{Filename: "big.png", ContentType: "image/png", Reader: bytes.NewReader(make([]byte, 1024))}, time.Now()); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}

	for i := 0; i < MaxGalleryPhotos; i++ {
		gdb.Create(&db.GalleryPhoto{InvitationID: inv.ID, Path: "gallery/x.png", SortOrder: i + 1})
	}
	if _, err := svc.Upload(ctx, owner.ID, inv.ID, pngUpload(testPNG(t, 2, 2)), time.Now()); !errors.Is(err, ErrGalleryFull) {
		t.Fatalf("expected ErrGalleryFull, got %v", err)
	}
}
