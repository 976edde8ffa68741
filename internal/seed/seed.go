// Package seed 提供内置模板和演示数据，供 seed 命令与本地开发使用。
package seed

import (
	"errors"
	"fmt"
	"time"

	"github.com/weddinvite/internal/db"
	"github.com/weddinvite/internal/service"
	"gorm.io/gorm"
)

// DemoEmail 与 DemoPassword 是演示账号的登录信息。
const (
	DemoEmail    = "demo@weddinvite.local"
	DemoPassword = "demo12345"
)

const classicHTML = `<!DOCTYPE html>
<html lang="id">
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>{{title}}</title></head>
<body class="classic">
<header><p>The Wedding of</p><h1>{{groom_name}} &amp; {{bride_name}}</h1></header>
<section class="event">
<p>{{event_date}} &middot; {{event_time}}</p>
<p><strong>{{venue_name}}</strong><br>{{venue_address}}</p>
<p><a href="{{map_url}}">Lihat peta</a></p>
</section>
<section class="message"><p>{{message}}</p></section>
<section class="gallery">{{#gallery}}<img src="{{photo_path}}" alt="Foto {{photo_order}}" loading="lazy">{{/gallery}}</section>
<audio src="{{music_url}}" autoplay loop></audio>
</body>
</html>`

const gardenHTML = `<!DOCTYPE html>
<html lang="id">
<head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>{{title}}</title></head>
<body class="garden">
<main>
<h1>{{bride_name}} <span>&amp;</span> {{groom_name}}</h1>
<time>{{event_date}}</time>
<p>{{venue_name}}, {{venue_address}}</p>
<ol class="photos">{{#gallery}}<li data-order="{{photo_order}}"><img src="{{photo_path}}" alt=""></li>{{/gallery}}</ol>
<blockquote>{{message}}</blockquote>
</main>
</body>
</html>`

// BuiltinTemplates 是初始化时写入的默认模板。
var BuiltinTemplates = []service.TemplateInput{
	{
		Name:        "Klasik",
		Slug:        "classic",
		Description: "经典排版，包含**活动信息**、相册与背景音乐。",
		HTMLContent: classicHTML,
		SortOrder:   10,
	},
	{
		Name:        "Taman",
		Slug:        "garden",
		Description: "清新的花园风格，相册以编号列表展示。",
		HTMLContent: gardenHTML,
		SortOrder:   20,
	},
}

// Templates 写入缺失的内置模板，返回新建数量。已存在的 slug 会被跳过。
func Templates(gdb *gorm.DB) (int, error) {
	templates := service.NewTemplateService(gdb, nil, 0)

	created := 0
	for _, input := range BuiltinTemplates {
		if _, err := templates.Create(input); err != nil {
			if errors.Is(err, service.ErrTemplateSlugTaken) {
				continue
			}
			return created, fmt.Errorf("seed template %s: %w", input.Slug, err)
		}
		created++
	}
	return created, nil
}

// Demo 创建演示账号及一份已发布的请柬（含宾客与回复），账号已存在时不做任何操作。
// 返回请柬的公开 slug，未创建时为空。
func Demo(gdb *gorm.DB, now time.Time) (string, error) {
	if _, err := Templates(gdb); err != nil {
		return "", err
	}

	users := service.NewUserService(gdb)
	user, err := users.Register(service.RegisterInput{Name: "Budi & Siti", Email: DemoEmail, Password: DemoPassword})
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			return "", nil
		}
		return "", fmt.Errorf("seed demo user: %w", err)
	}

	var tpl db.Template
	if err := gdb.Where("slug = ?", "classic").First(&tpl).Error; err != nil {
		return "", fmt.Errorf("load classic template: %w", err)
	}

	invitations := service.NewInvitationService(gdb, nil)
	inv, err := invitations.Create(user.ID, service.InvitationInput{
		TemplateID:   tpl.ID,
		Title:        "Pernikahan Budi & Siti",
		GroomName:    "Budi Santoso",
		BrideName:    "Siti Rahma",
		EventDate:    now.AddDate(0, 2, 0).Format("2006-01-02"),
		EventTime:    "10:00",
		VenueName:    "Gedung Serbaguna",
		VenueAddress: "Jl. Merdeka No. 1, Bandung",
		MapURL:       "https://maps.example.com/?q=Gedung+Serbaguna",
		Message:      "Kami mengundang Anda untuk hadir di hari bahagia kami.",
	})
	if err != nil {
		return "", fmt.Errorf("seed demo invitation: %w", err)
	}

	guests := service.NewGuestService(gdb, invitations, 0)
	for _, g := range []service.GuestInput{
		{Name: "Andi Wijaya", Category: "family"},
		{Name: "Rina Putri", Category: "friend"},
		{Name: "Dewi Lestari", Category: "friend"},
		{Name: "Pak Hendra", Category: "colleague"},
	} {
		if _, err := guests.Create(user.ID, inv.ID, g); err != nil {
			return "", fmt.Errorf("seed demo guest: %w", err)
		}
	}

	inv, err = invitations.Publish(user.ID, inv.ID, now)
	if err != nil {
		return "", fmt.Errorf("publish demo invitation: %w", err)
	}

	rsvps := service.NewRSVPService(gdb, invitations)
	if _, err := rsvps.Submit(*inv.Slug, service.RSVPInput{GuestName: "Andi Wijaya", Attendance: service.AttendanceAttending, PartySize: 2, Message: "Selamat!"}); err != nil {
		return "", fmt.Errorf("seed demo rsvp: %w", err)
	}
	return *inv.Slug, nil
}
