package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/weddinvite/internal/db"
	"github.com/weddinvite/internal/service"
)

type flagRequest struct {
	Value *bool `json:"value" binding:"required"`
}

type templateRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug" binding:"required"`
	Description string `json:"description"`
	HTMLContent string `json:"html_content" binding:"required"`
	IsActive    *bool  `json:"is_active"`
	SortOrder   int    `json:"sort_order"`
}

func (r templateRequest) input() service.TemplateInput {
	return service.TemplateInput{
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		HTMLContent: r.HTMLContent,
		IsActive:    r.IsActive,
		SortOrder:   r.SortOrder,
	}
}

func (a *API) adminTemplateJSON(tpl *db.Template) gin.H {
	return gin.H{
		"id":            tpl.ID,
		"name":          tpl.Name,
		"slug":          tpl.Slug,
		"description":   tpl.Description,
		"html_content":  tpl.HTMLContent,
		"thumbnail_url": a.templates.ThumbnailURL(*tpl),
		"is_active":     tpl.IsActive,
		"sort_order":    tpl.SortOrder,
		"updated_at":    tpl.UpdatedAt,
	}
}

func templateID(c *gin.Context) (uint, bool) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的模板ID")
		return 0, false
	}
	return id, true
}

func userID(c *gin.Context) (uint, bool) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的用户ID")
		return 0, false
	}
	return id, true
}

// AdminOverview 返回平台总览。
func (a *API) AdminOverview(c *gin.Context) {
	overview, err := a.stats.PlatformOverview()
	if err != nil {
		respondServiceError(c, err, "获取总览失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"overview": overview})
}

// AdminListUsers 分页列出用户，q 按姓名或邮箱搜索。
func (a *API) AdminListUsers(c *gin.Context) {
	result, err := a.users.List(service.UserFilter{
		Search:  c.Query("q"),
		Page:    parseIntQuery(c, "page", 1),
		PerPage: parseIntQuery(c, "per_page", 20),
	})
	if err != nil {
		respondServiceError(c, err, "获取用户列表失败")
		return
	}

	items := make([]gin.H, 0, len(result.Users))
	for i := range result.Users {
		items = append(items, userJSON(&result.Users[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"users":       items,
		"total":       result.Total,
		"page":        result.Page,
		"per_page":    result.PerPage,
		"total_pages": result.TotalPages,
	})
}

// AdminSetUserActive 启用或停用用户。
func (a *API) AdminSetUserActive(c *gin.Context) {
	a.updateUserFlag(c, a.users.SetActive)
}

// AdminSetUserAdmin 授予或撤销管理员权限。
func (a *API) AdminSetUserAdmin(c *gin.Context) {
	a.updateUserFlag(c, a.users.SetAdmin)
}

func (a *API) updateUserFlag(c *gin.Context, update func(actorID, id uint, value bool) (*db.User, error)) {
	id, ok := userID(c)
	if !ok {
		return
	}

	var req flagRequest
	if !bindJSON(c, &req, "参数格式错误") {
		return
	}

	user, err := update(currentUser(c).ID, id, *req.Value)
	if err != nil {
		respondServiceError(c, err, "更新用户失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "用户已更新", "user": userJSON(user)})
}

// AdminDeleteUser 删除用户及其全部请柬。
func (a *API) AdminDeleteUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	if err := a.users.Delete(currentUser(c).ID, id, a.invitations); err != nil {
		if !errors.Is(err, service.ErrStorageCleanup) {
			respondServiceError(c, err, "删除用户失败")
			return
		}
		c.Error(err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "用户已删除"})
}

// AdminListTemplates 列出全部模板（含停用）。
func (a *API) AdminListTemplates(c *gin.Context) {
	templates, err := a.templates.ListAll()
	if err != nil {
		respondServiceError(c, err, "获取模板失败")
		return
	}

	items := make([]gin.H, 0, len(templates))
	for i := range templates {
		items = append(items, a.adminTemplateJSON(&templates[i]))
	}
	c.JSON(http.StatusOK, gin.H{"templates": items})
}

// AdminGetTemplate 返回模板详情，包括 HTML 内容。
func (a *API) AdminGetTemplate(c *gin.Context) {
	id, ok := templateID(c)
	if !ok {
		return
	}

	tpl, err := a.templates.Get(id)
	if err != nil {
		respondServiceError(c, err, "获取模板失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": a.adminTemplateJSON(tpl)})
}

// AdminCreateTemplate 新建模板。
func (a *API) AdminCreateTemplate(c *gin.Context) {
	var req templateRequest
	if !bindJSON(c, &req, "模板数据格式错误") {
		return
	}

	tpl, err := a.templates.Create(req.input())
	if err != nil {
		respondServiceError(c, err, "创建模板失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "模板已创建", "template": a.adminTemplateJSON(tpl)})
}

// AdminUpdateTemplate 更新模板。
func (a *API) AdminUpdateTemplate(c *gin.Context) {
	id, ok := templateID(c)
	if !ok {
		return
	}

	var req templateRequest
	if !bindJSON(c, &req, "模板数据格式错误") {
		return
	}

	tpl, err := a.templates.Update(id, req.input())
	if err != nil {
		respondServiceError(c, err, "更新模板失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "模板已更新", "template": a.adminTemplateJSON(tpl)})
}

// AdminSetTemplateActive 启用或停用模板。
func (a *API) AdminSetTemplateActive(c *gin.Context) {
	id, ok := templateID(c)
	if !ok {
		return
	}

	var req flagRequest
	if !bindJSON(c, &req, "参数格式错误") {
		return
	}

	tpl, err := a.templates.SetActive(id, *req.Value)
	if err != nil {
		respondServiceError(c, err, "更新模板失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "模板已更新", "template": a.adminTemplateJSON(tpl)})
}

// AdminDeleteTemplate 删除未被使用的模板。
func (a *API) AdminDeleteTemplate(c *gin.Context) {
	id, ok := templateID(c)
	if !ok {
		return
	}

	if err := a.templates.Delete(requestContext(c), id); err != nil {
		if !errors.Is(err, service.ErrStorageCleanup) {
			respondServiceError(c, err, "删除模板失败")
			return
		}
		c.Error(err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "模板已删除"})
}

// AdminUploadTemplateThumbnail 上传模板缩略图（表单字段 image）。
func (a *API) AdminUploadTemplateThumbnail(c *gin.Context) {
	id, ok := templateID(c)
	if !ok {
		return
	}

	file, closeFile, err := formUpload(c, "image")
	if err != nil {
		respondServiceError(c, err, "读取上传文件失败")
		return
	}
	defer closeFile()

	tpl, err := a.templates.SetThumbnail(requestContext(c), id, file, a.now())
	if err != nil {
		respondServiceError(c, err, "上传缩略图失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "缩略图已更新", "template": a.adminTemplateJSON(tpl)})
}

func requestContext(c *gin.Context) context.Context {
	if c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}
