package service

import (
	"github.com/weddinvite/internal/db"
	"github.com/weddinvite/internal/render"
)

// Invitation fields available to templates.
const (
	FieldGroomName    = "groom_name"
	FieldBrideName    = "bride_name"
	FieldTitle        = "title"
	FieldEventDate    = "event_date"
	FieldEventTime    = "event_time"
	FieldVenueName    = "venue_name"
	FieldVenueAddress = "venue_address"
	FieldMapURL       = "map_url"
	FieldMessage      = "message"
	FieldMusicURL     = "music_url"
)

// EventDateLayout is how event_date is printed on invitations.
const EventDateLayout = "02 January 2006"

// TemplateFields lists every placeholder a template may reference outside the gallery region.
var TemplateFields = []string{
	FieldGroomName,
	FieldBrideName,
	FieldTitle,
	FieldEventDate,
	FieldEventTime,
	FieldVenueName,
	FieldVenueAddress,
	FieldMapURL,
	FieldMessage,
	FieldMusicURL,
}

// BindingFor 根据请柬字段和相册照片构造渲染上下文，urlFor 把存储路径转换为可访问地址。
func BindingFor(inv db.Invitation, photos []db.GalleryPhoto, urlFor func(string) string) render.Context {
	eventDate := ""
	if inv.EventDate != nil {
		eventDate = inv.EventDate.Format(EventDateLayout)
	}

	ctx := render.Context{
		Values: map[string]string{
			FieldGroomName:    inv.GroomName,
			FieldBrideName:    inv.BrideName,
			FieldTitle:        inv.Title,
			FieldEventDate:    eventDate,
			FieldEventTime:    inv.EventTime,
			FieldVenueName:    inv.VenueName,
			FieldVenueAddress: inv.VenueAddress,
			FieldMapURL:       inv.MapURL,
			FieldMessage:      inv.Message,
			FieldMusicURL:     inv.MusicURL,
		},
		Gallery: make([]render.Photo, 0, len(photos)),
	}

	for _, p := range photos {
		path := p.Path
		if urlFor != nil {
			path = urlFor(p.Path)
		}
		ctx.Gallery = append(ctx.Gallery, render.Photo{Path: path, Order: p.SortOrder})
	}
	return ctx
}
