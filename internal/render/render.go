// Package render substitutes {{field}} placeholders in invitation templates.
//
// Rendering is plain text substitution: there are no expressions or
// conditionals, only the single repeating gallery region
// {{#gallery}}...{{/gallery}}. Bound values are HTML-escaped; placeholders
// with no binding are left verbatim.
package render

import (
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	// GalleryOpen starts the region repeated once per gallery photo.
	GalleryOpen = "{{#gallery}}"
	// GalleryClose ends the gallery region.
	GalleryClose = "{{/gallery}}"

	// PhotoPathField is bound to the photo path inside the gallery region.
	PhotoPathField = "photo_path"
	// PhotoOrderField is bound to the 1-based photo position inside the gallery region.
	PhotoOrderField = "photo_order"
)

var placeholderPattern = regexp.MustCompile(`\{\{([a-z_]+)\}\}`)

// Photo is one gallery entry.
type Photo struct {
	Path  string
	Order int
}

// Context carries the values bound to a template.
type Context struct {
	Values  map[string]string
	Gallery []Photo
}

// Render returns doc with gallery regions expanded and placeholders substituted.
func Render(doc string, ctx Context) string {
	photos := orderedPhotos(ctx.Gallery)

	var out strings.Builder
	out.Grow(len(doc))

	rest := doc
	for {
		start := strings.Index(rest, GalleryOpen)
		if start < 0 {
			break
		}
		end := strings.Index(rest[start+len(GalleryOpen):], GalleryClose)
		if end < 0 {
			break
		}
		end += start + len(GalleryOpen)

		out.WriteString(substitute(rest[:start], ctx.Values, nil))

		body := rest[start+len(GalleryOpen) : end]
		for i, photo := range photos {
			out.WriteString(substitute(body, ctx.Values, map[string]string{
				PhotoPathField:  photo.Path,
				PhotoOrderField: strconv.Itoa(i + 1),
			}))
		}

		rest = rest[end+len(GalleryClose):]
	}
	out.WriteString(substitute(rest, ctx.Values, nil))

	return out.String()
}

// Placeholders lists the distinct placeholder names in doc in order of first appearance.
func Placeholders(doc string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(doc, -1)
	seen := make(map[string]struct{}, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

func substitute(text string, values, local map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		name := token[2 : len(token)-2]
		if v, ok := local[name]; ok {
			return html.EscapeString(v)
		}
		if v, ok := values[name]; ok {
			return html.EscapeString(v)
		}
		return token
	})
}

func orderedPhotos(photos []Photo) []Photo {
	out := append([]Photo(nil), photos...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}
