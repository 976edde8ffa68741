package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/weddinvite/internal/db"
	"github.com/weddinvite/internal/storage"
	"gorm.io/gorm"
)

// MaxGalleryPhotos limits the number of photos per invitation.
const MaxGalleryPhotos = 30

var (
	ErrPhotoNotFound = errors.New("gallery photo not found")
	ErrGalleryFull   = errors.New("gallery photo limit reached")
	ErrInvalidOrder  = errors.New("photo order must list every photo exactly once")
)

// GalleryService handles invitation photo uploads and ordering.
type GalleryService struct {
	db          *gorm.DB
	store       storage.Storage
	invitations *InvitationService
	maxUpload   int64
}

// GalleryPhotoView is a photo with its public URL.
type GalleryPhotoView struct {
	ID        uint   `json:"id"`
	URL       string `json:"url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SortOrder int    `json:"sort_order"`
}

// NewGalleryService creates a GalleryService instance.
func NewGalleryService(gdb *gorm.DB, store storage.Storage, invitations *InvitationService, maxUpload int64) *GalleryService {
	return &GalleryService{db: gdb, store: store, invitations: invitations, maxUpload: maxUpload}
}

// List returns the photos of an invitation in display order.
func (s *GalleryService) List(ownerID, invitationID uint) ([]GalleryPhotoView, error) {
	if _, err := s.invitations.Get(ownerID, invitationID); err != nil {
		return nil, err
	}

	var photos []db.GalleryPhoto
	if err := s.db.Where("invitation_id = ?", invitationID).
		Order("sort_order asc").Order("id asc").
		Find(&photos).Error; err != nil {
		return nil, err
	}

	views := make([]GalleryPhotoView, 0, len(photos))
	for _, p := range photos {
		views = append(views, s.view(p))
	}
	return views, nil
}

// Upload stores an image and appends it to the end of the gallery.
func (s *GalleryService) Upload(ctx context.Context, ownerID, invitationID uint, file UploadFile, now time.Time) (*GalleryPhotoView, error) {
	if _, err := s.invitations.Get(ownerID, invitationID); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&db.GalleryPhoto{}).Where("invitation_id = ?", invitationID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count >= MaxGalleryPhotos {
		return nil, ErrGalleryFull
	}

	img, err := probeImage(file, s.maxUpload)
	if err != nil {
		return nil, err
	}

	key := storageKey(fmt.Sprintf("gallery/%d", invitationID), img.Ext, now)
	if err := s.store.Save(ctx, key, bytes.NewReader(img.Data), img.ContentType); err != nil {
		return nil, fmt.Errorf("save photo: %w", err)
	}

	var maxOrder int
	if err := s.db.Model(&db.GalleryPhoto{}).
		Where("invitation_id = ?", invitationID).
		Select("COALESCE(MAX(sort_order), 0)").
		Scan(&maxOrder).Error; err != nil {
		_ = s.store.Delete(ctx, key)
		return nil, err
	}

	photo := db.GalleryPhoto{
		InvitationID: invitationID,
		Path:         key,
		Width:        img.Width,
		Height:       img.Height,
		SortOrder:    maxOrder + 1,
	}
	if err := s.db.Create(&photo).Error; err != nil {
		_ = s.store.Delete(ctx, key)
		return nil, err
	}

	view := s.view(photo)
	return &view, nil
}

// Delete removes a photo record and its stored file.
func (s *GalleryService) Delete(ctx context.Context, ownerID, invitationID, photoID uint) error {
	if _, err := s.invitations.Get(ownerID, invitationID); err != nil {
		return err
	}

	var photo db.GalleryPhoto
	if err := s.db.Where("id = ? AND invitation_id = ?", photoID, invitationID).First(&photo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPhotoNotFound
		}
		return err
	}

	if err := s.db.Unscoped().Delete(&photo).Error; err != nil {
		return err
	}
	if err := s.store.Delete(ctx, photo.Path); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageCleanup, err)
	}
	return nil
}

// Reorder assigns sort orders 1..n following ids, which must contain every photo exactly once.
func (s *GalleryService) Reorder(ownerID, invitationID uint, ids []uint) ([]GalleryPhotoView, error) {
	if _, err := s.invitations.Get(ownerID, invitationID); err != nil {
		return nil, err
	}

	var existing []uint
	if err := s.db.Model(&db.GalleryPhoto{}).Where("invitation_id = ?", invitationID).Pluck("id", &existing).Error; err != nil {
		return nil, err
	}
	if len(existing) != len(ids) {
		return nil, ErrInvalidOrder
	}
	known := make(map[uint]bool, len(existing))
	for _, id := range existing {
		known[id] = false
	}
	for _, id := range ids {
		seen, ok := known[id]
		if !ok || seen {
			return nil, ErrInvalidOrder
		}
		known[id] = true
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		for i, id := range ids {
			if err := tx.Model(&db.GalleryPhoto{}).
				Where("id = ? AND invitation_id = ?", id, invitationID).
				Update("sort_order", i+1).Error; err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return s.List(ownerID, invitationID)
}

func (s *GalleryService) view(p db.GalleryPhoto) GalleryPhotoView {
	return GalleryPhotoView{
		ID:        p.ID,
		URL:       s.store.URL(p.Path),
		Width:     p.Width,
		Height:    p.Height,
		SortOrder: p.SortOrder,
	}
}
