package service

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

var (
	ErrFileRequired     = errors.New("file is required")
	ErrFileTooLarge     = errors.New("file exceeds the upload size limit")
	ErrUnsupportedFile  = errors.New("unsupported file type")
	ErrUnsupportedImage = errors.New("unsupported image format")
)

// UploadFile 描述一次上传的文件，Size 为客户端声明的大小，读取时仍会按上限截断校验。
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// probedImage 为解码图片头部得到的信息。
type probedImage struct {
	Data        []byte
	Format      string
	Width       int
	Height      int
	Ext         string
	ContentType string
}

var imageFormats = map[string]struct {
	ext         string
	contentType string
}{
	"jpeg": {".jpg", "image/jpeg"},
	"png":  {".png", "image/png"},
	"gif":  {".gif", "image/gif"},
	"webp": {".webp", "image/webp"},
}

// readLimited 读取全部内容，超过 limit 字节时返回 ErrFileTooLarge。
func readLimited(file UploadFile, limit int64) ([]byte, error) {
	if file.Reader == nil {
		return nil, ErrFileRequired
	}
	if limit > 0 && file.Size > limit {
		return nil, ErrFileTooLarge
	}

	reader := file.Reader
	if limit > 0 {
		reader = io.LimitReader(file.Reader, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, ErrFileRequired
	}
	return data, nil
}

// probeImage 校验上传内容确实是受支持的图片并读取尺寸。
func probeImage(file UploadFile, limit int64) (*probedImage, error) {
	contentType := strings.ToLower(strings.TrimSpace(file.ContentType))
	if contentType != "" && !strings.HasPrefix(contentType, "image/") && contentType != "application/octet-stream" {
		return nil, ErrUnsupportedImage
	}

	data, err := readLimited(file, limit)
	if err != nil {
		return nil, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrUnsupportedImage
	}
	meta, ok := imageFormats[format]
	if !ok {
		return nil, ErrUnsupportedImage
	}

	return &probedImage{
		Data:        data,
		Format:      format,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Ext:         meta.ext,
		ContentType: meta.contentType,
	}, nil
}

// storageKey 生成 <dir>/<日期>-<uuid><ext> 形式的存储路径。
func storageKey(dir, ext string, now time.Time) string {
	return filepath.ToSlash(filepath.Join(dir, now.UTC().Format("20060102")+"-"+uuid.NewString()+ext))
}
