package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/weddinvite/internal/service"
)

type photoOrderRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

// ListPhotos 返回请柬相册。
func (a *API) ListPhotos(c *gin.Context) {
	id, ok := invitationID(c)
	if !ok {
		return
	}

	photos, err := a.gallery.List(currentUser(c).ID, id)
	if err != nil {
		respondServiceError(c, err, "获取相册失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"photos": photos})
}

// UploadPhoto 上传一张照片（表单字段 image）。
func (a *API) UploadPhoto(c *gin.Context) {
	id, ok := invitationID(c)
	if !ok {
		return
	}

	file, closeFile, err := formUpload(c, "image")
	if err != nil {
		respondServiceError(c, err, "读取上传文件失败")
		return
	}
	defer closeFile()

	photo, err := a.gallery.Upload(requestContext(c), currentUser(c).ID, id, file, a.now())
	if err != nil {
		respondServiceError(c, err, "上传照片失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "上传成功", "photo": photo})
}

// ReorderPhotos 按给定顺序重新排列相册。
func (a *API) ReorderPhotos(c *gin.Context) {
	id, ok := invitationID(c)
	if !ok {
		return
	}

	var req photoOrderRequest
	if !bindJSON(c, &req, "照片顺序格式错误") {
		return
	}

	photos, err := a.gallery.Reorder(currentUser(c).ID, id, req.IDs)
	if err != nil {
		respondServiceError(c, err, "调整顺序失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "顺序已更新", "photos": photos})
}

// DeletePhoto 删除照片及其文件。
func (a *API) DeletePhoto(c *gin.Context) {
	id, ok := invitationID(c)
	if !ok {
		return
	}
	photoID, err := parseUintParam(c, "photoID")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的照片ID")
		return
	}

	if err := a.gallery.Delete(requestContext(c), currentUser(c).ID, id, photoID); err != nil {
		if !errors.Is(err, service.ErrStorageCleanup) {
			respondServiceError(c, err, "删除照片失败")
			return
		}
		c.Error(err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "照片已删除"})
}
