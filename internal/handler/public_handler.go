package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/weddinvite/internal/service"
)

const notFoundPage = `<!DOCTYPE html>
<html lang="zh-CN">
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>请柬不存在</title></head>
<body><main><h1>请柬不存在或已下线</h1></main></body>
</html>`

type rsvpRequest struct {
	GuestName  string `json:"guest_name" form:"guest_name" binding:"required"`
	Attendance string `json:"attendance" form:"attendance" binding:"required"`
	PartySize  int    `json:"party_size" form:"party_size"`
	Message    string `json:"message" form:"message"`
}

// Ping 用于健康检查。
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// ShowInvitation 渲染已发布的请柬公开页面并记录访问。
func (a *API) ShowInvitation(c *gin.Context) {
	inv, err := a.invitations.GetPublishedBySlug(c.Param("slug"))
	if err != nil {
		if !errors.Is(err, service.ErrInvitationNotFound) {
			c.Error(err)
		}
		c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte(notFoundPage))
		return
	}

	html, err := a.invitations.Render(inv)
	if err != nil {
		c.Error(err)
		c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", []byte(notFoundPage))
		return
	}

	if _, trackErr := a.views.Track(inv.ID, c.ClientIP(), c.Request.UserAgent(), a.now()); trackErr != nil {
		c.Error(trackErr) // 不中断渲染，但记录错误
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// SubmitRSVP 接收公开页面提交的出席回复。
func (a *API) SubmitRSVP(c *gin.Context) {
	var req rsvpRequest
	if !bindRequest(c, &req, "回复内容格式错误") {
		return
	}

	rsvp, err := a.rsvps.Submit(c.Param("slug"), service.RSVPInput{
		GuestName:  req.GuestName,
		Attendance: req.Attendance,
		PartySize:  req.PartySize,
		Message:    req.Message,
	})
	if err != nil {
		respondServiceError(c, err, "提交回复失败")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "感谢您的回复",
		"rsvp": gin.H{
			"id":         rsvp.ID,
			"guest_name": rsvp.GuestName,
			"attendance": rsvp.Attendance,
			"party_size": rsvp.PartySize,
		},
	})
}
