package handler

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/weddinvite/internal/db"
	"github.com/weddinvite/internal/service"
)

type guestRequest struct {
	Name     string `json:"name" binding:"required"`
	Category string `json:"category" binding:"required"`
	Phone    string `json:"phone"`
}

func guestJSON(g *db.Guest) gin.H {
	return gin.H{
		"id":       g.ID,
		"name":     g.Name,
		"category": g.Category,
		"phone":    g.Phone,
	}
}

func guestRoute(c *gin.Context) (uint, uint, bool) {
	id, ok := invitationID(c)
	if !ok {
		return 0, 0, false
	}
	guestID, err := parseUintParam(c, "guestID")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的宾客ID")
		return 0, 0, false
	}
	return id, guestID, true
}

// ListGuests 返回宾客名单，支持按分类与关键字筛选。
func (a *API) ListGuests(c *gin.Context) {
	id, ok := invitationID(c)
	if !ok {
		return
	}

	result, err := a.guests.List(currentUser(c).ID, id, service.GuestFilter{
		Category: c.Query("category"),
		Search:   c.Query("q"),
		Page:     parseIntQuery(c, "page", 1),
		PerPage:  parseIntQuery(c, "per_page", 50),
	})
	if err != nil {
		respondServiceError(c, err, "获取宾客名单失败")
		return
	}

	items := make([]gin.H, 0, len(result.Guests))
	for i := range result.Guests {
		items = append(items, guestJSON(&result.Guests[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"guests":      items,
		"total":       result.Total,
		"page":        result.Page,
		"per_page":    result.PerPage,
		"total_pages": result.TotalPages,
	})
}

// CreateGuest 手动添加宾客。
func (a *API) CreateGuest(c *gin.Context) {
	id, ok := invitationID(c)
	if !ok {
		return
	}

	var req guestRequest
	if !bindJSON(c, &req, "宾客数据格式错误") {
		return
	}

	guest, err := a.guests.Create(currentUser(c).ID, id, service.GuestInput{Name: req.Name, Category: req.Category, Phone: req.Phone})
	if err != nil {
		respondServiceError(c, err, "添加宾客失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "宾客已添加", "guest": guestJSON(guest)})
}

// UpdateGuest 修改宾客信息。
func (a *API) UpdateGuest(c *gin.Context) {
	id, guestID, ok := guestRoute(c)
	if !ok {
		return
	}

	var req guestRequest
	if !bindJSON(c, &req, "宾客数据格式错误") {
		return
	}

	guest, err := a.guests.Update(currentUser(c).ID, id, guestID, service.GuestInput{Name: req.Name, Category: req.Category, Phone: req.Phone})
	if err != nil {
		respondServiceError(c, err, "更新宾客失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "宾客已更新", "guest": guestJSON(guest)})
}

// DeleteGuest 删除宾客。
func (a *API) DeleteGuest(c *gin.Context) {
	id, guestID, ok := guestRoute(c)
	if !ok {
		return
	}

	if err := a.guests.Delete(currentUser(c).ID, id, guestID); err != nil {
		respondServiceError(c, err, "删除宾客失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "宾客已删除"})
}

// ImportGuests 从上传的 CSV（表单字段 file）批量导入宾客。
func (a *API) ImportGuests(c *gin.Context) {
	id, ok := invitationID(c)
	if !ok {
		return
	}

	file, closeFile, err := formUpload(c, "file")
	if err != nil {
		respondServiceError(c, err, "读取上传文件失败")
		return
	}
	defer closeFile()

	result, err := a.guests.ImportCSV(currentUser(c).ID, id, file)
	if err != nil {
		respondServiceError(c, err, "导入宾客失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("成功导入 %d 位宾客，%d 行被跳过", result.Success, result.Failed),
		"result":  result,
	})
}

// ExportGuests 以 CSV 附件下载宾客名单，临时文件在响应结束后删除。
func (a *API) ExportGuests(c *gin.Context) {
	id, ok := invitationID(c)
	if !ok {
		return
	}

	path, err := a.guests.ExportToTempFile(currentUser(c).ID, id)
	if err != nil {
		respondServiceError(c, err, "导出宾客失败")
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.Error(err)
		}
	}()

	c.FileAttachment(path, fmt.Sprintf("guests-%d.csv", id))
}
