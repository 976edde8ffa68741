package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/weddinvite/internal/db"
	"github.com/weddinvite/internal/service"
)

type invitationRequest struct {
	TemplateID   uint   `json:"template_id"`
	Title        string `json:"title" binding:"required"`
	GroomName    string `json:"groom_name"`
	BrideName    string `json:"bride_name"`
	EventDate    string `json:"event_date"`
	EventTime    string `json:"event_time"`
	VenueName    string `json:"venue_name"`
	VenueAddress string `json:"venue_address"`
	MapURL       string `json:"map_url"`
	Message      string `json:"message"`
	MusicURL     string `json:"music_url"`
}

type templateChoiceRequest struct {
	TemplateID uint `json:"template_id" binding:"required"`
}

func (r invitationRequest) input() service.InvitationInput {
	return service.InvitationInput{
		TemplateID:   r.TemplateID,
		Title:        r.Title,
		GroomName:    r.GroomName,
		BrideName:    r.BrideName,
		EventDate:    r.EventDate,
		EventTime:    r.EventTime,
		VenueName:    r.VenueName,
		VenueAddress: r.VenueAddress,
		MapURL:       r.MapURL,
		Message:      r.Message,
		MusicURL:     r.MusicURL,
	}
}

func (a *API) invitationJSON(inv *db.Invitation) gin.H {
	eventDate := ""
	if inv.EventDate != nil {
		eventDate = inv.EventDate.Format("2006-01-02")
	}
	slug := inv.SlugValue()
	return gin.H{
		"id":            inv.ID,
		"template_id":   inv.TemplateID,
		"title":         inv.Title,
		"groom_name":    inv.GroomName,
		"bride_name":    inv.BrideName,
		"event_date":    eventDate,
		"event_time":    inv.EventTime,
		"venue_name":    inv.VenueName,
		"venue_address": inv.VenueAddress,
		"map_url":       inv.MapURL,
		"message":       inv.Message,
		"music_url":     inv.MusicURL,
		"status":        inv.Status,
		"slug":          slug,
		"public_url":    a.publicURL(slug),
		"published_at":  inv.PublishedAt,
		"created_at":    inv.CreatedAt,
		"updated_at":    inv.UpdatedAt,
	}
}

// invitationID 解析路由中的 :id，失败时直接写入 400 响应。
func invitationID(c *gin.Context) (uint, bool) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的请柬ID")
		return 0, false
	}
	return id, true
}

// ListInvitations 返回当前用户的请柬列表。
func (a *API) ListInvitations(c *gin.Context) {
	result, err := a.invitations.ListByOwner(currentUser(c).ID, service.InvitationFilter{
		Status:  c.Query("status"),
		Page:    parseIntQuery(c, "page", 1),
		PerPage: parseIntQuery(c, "per_page", 20),
	})
	if err != nil {
		respondServiceError(c, err, "获取请柬列表失败")
		return
	}

	items := make([]gin.H, 0, len(result.Invitations))
	for i := range result.Invitations {
		items = append(items, a.invitationJSON(&result.Invitations[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"invitations": items,
		"total":       result.Total,
		"page":        result.Page,
		"per_page":    result.PerPage,
		"total_pages": result.TotalPages,
	})
}

// CreateInvitation 新建草稿请柬。
func (a *API) CreateInvitation(c *gin.Context) {
	var req invitationRequest
	if !bindJSON(c, &req, "请柬数据格式错误") {
		return
	}

	inv, err := a.invitations.Create(currentUser(c).ID, req.input())
	if err != nil {
		respondServiceError(c, err, "创建请柬失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "请柬已创建", "invitation": a.invitationJSON(inv)})
}

// GetInvitation 返回单个请柬。
func (a *API) GetInvitation(c *gin.Context) {
	id, ok := invitationID(c)
	if !ok {
		return
	}

	inv, err := a.invitations.Get(currentUser(c).ID, id)
	if err != nil {
		respondServiceError(c, err, "获取请柬失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitation": a.invitationJSON(inv)})
}

// UpdateInvitation 更新请柬内容。
func (a *API) UpdateInvitation(c *gin.Context) {
	id, ok := invitationID(c)
	if !ok {
		return
	}

	var req invitationRequest
	if !bindJSON(c, &req, "请柬数据格式错误") {
		return
	}

	inv, err := a.invitations.Update(currentUser(c).ID, id, req.input())
	if err != nil {
		respondServiceError(c, err, "更新请柬失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "请柬已更新", "invitation": a.invitationJSON(inv)})
}

// ChangeInvitationTemplate 只更换模板，其他字段保持不变。
func (a *API) ChangeInvitationTemplate(c *gin.Context) {
	id, ok := invitationID(c)
	if !ok {
		return
	}

	var req templateChoiceRequest
	if !bindJSON(c, &req, "请选择模板") {
		return
	}

	inv, err := a.invitations.ChangeTemplate(currentUser(c).ID, id, req.TemplateID)
	if err != nil {
		respondServiceError(c, err, "更换模板失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "模板已更换", "invitation": a.invitationJSON(inv)})
}

// DeleteInvitation 删除请柬及其关联数据。
func (a *API) DeleteInvitation(c *gin.Context) {
	id, ok := invitationID(c)
	if !ok {
		return
	}

	if err := a.invitations.Delete(currentUser(c).ID, id); err != nil {
		if !errors.Is(err, service.ErrStorageCleanup) {
			respondServiceError(c, err, "删除请柬失败")
			return
		}
		c.Error(err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "请柬已删除"})
}

// PublishInvitation 发布请柬并返回公开链接。
func (a *API) PublishInvitation(c *gin.Context) {
	id, ok := invitationID(c)
	if !ok {
		return
	}

	inv, err := a.invitations.Publish(currentUser(c).ID, id, a.now())
	if err != nil {
		if errors.Is(err, service.ErrInvalidTransition) {
			respondError(c, http.StatusConflict, "请柬已经处于发布状态")
			return
		}
		respondServiceError(c, err, "发布请柬失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "请柬已发布", "invitation": a.invitationJSON(inv)})
}

// UnpublishInvitation 下线请柬，公开链接保留但不再可访问。
func (a *API) UnpublishInvitation(c *gin.Context) {
	id, ok := invitationID(c)
	if !ok {
		return
	}

	inv, err := a.invitations.Unpublish(currentUser(c).ID, id)
	if err != nil {
		if errors.Is(err, service.ErrInvalidTransition) {
			respondError(c, http.StatusConflict, "草稿请柬无需下线")
			return
		}
		respondServiceError(c, err, "下线请柬失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "请柬已下线", "invitation": a.invitationJSON(inv)})
}

// PreviewInvitation 以任意状态渲染请柬，仅所有者可见。
func (a *API) PreviewInvitation(c *gin.Context) {
	id, ok := invitationID(c)
	if !ok {
		return
	}

	inv, err := a.invitations.Get(currentUser(c).ID, id)
	if err != nil {
		respondServiceError(c, err, "获取请柬失败")
		return
	}
	if inv.TemplateID == 0 {
		respondError(c, http.StatusUnprocessableEntity, "请先选择模板")
		return
	}

	html, err := a.invitations.Render(inv)
	if err != nil {
		respondServiceError(c, err, "渲染请柬失败")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// InvitationStats 返回请柬的浏览、宾客与回复统计。
func (a *API) InvitationStats(c *gin.Context) {
	id, ok := invitationID(c)
	if !ok {
		return
	}

	stats, err := a.stats.InvitationStats(currentUser(c).ID, id, a.now())
	if err != nil {
		respondServiceError(c, err, "获取统计数据失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// ListRSVPs 返回请柬收到的回复。
func (a *API) ListRSVPs(c *gin.Context) {
	id, ok := invitationID(c)
	if !ok {
		return
	}

	rsvps, err := a.rsvps.List(currentUser(c).ID, id)
	if err != nil {
		respondServiceError(c, err, "获取回复失败")
		return
	}

	items := make([]gin.H, 0, len(rsvps))
	for _, r := range rsvps {
		items = append(items, gin.H{
			"id":          r.ID,
			"guest_name":  r.GuestName,
			"attendance":  r.Attendance,
			"party_size":  r.PartySize,
			"message":     r.Message,
			"received_at": r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"rsvps": items})
}

// Dashboard 返回当前用户的汇总数据。
func (a *API) Dashboard(c *gin.Context) {
	stats, err := a.stats.UserDashboard(currentUser(c).ID)
	if err != nil {
		respondServiceError(c, err, "获取概览失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"dashboard": stats})
}

// ListTemplates 返回可供选择的模板目录。
func (a *API) ListTemplates(c *gin.Context) {
	cards, err := a.templates.ListActive()
	if err != nil {
		respondServiceError(c, err, "获取模板失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": cards})
}
