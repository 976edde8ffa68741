package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesEveryBoundPlaceholder(t *testing.T) {
	doc := `<h1>{{groom_name}} &amp; {{bride_name}}</h1><p>{{venue_name}}</p><p>{{groom_name}}</p>`
	values := map[string]string{
		"groom_name": "Romeo",
		"bride_name": "Juliet",
		"venue_name": "Verona Hall",
	}

	out := Render(doc, Context{Values: values})

	for name, value := range values {
		assert.NotContains(t, out, "{{"+name+"}}")
		assert.Contains(t, out, value)
	}
	assert.Equal(t, `<h1>Romeo &amp; Juliet</h1><p>Verona Hall</p><p>Romeo</p>`, out)
}

func TestRenderEscapesValues(t *testing.T) {
	doc := `<p title="{{message}}">{{message}}</p>`
	out := Render(doc, Context{Values: map[string]string{
		"message": `<script>alert("x")</script> & 'friends'`,
	}})

	assert.NotContains(t, out, "<script>")
	assert.Equal(t,
		`<p title="&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt; &amp; &#39;friends&#39;">`+
			`&lt;script&gt;alert(&#34;x&#34;)&lt;/script&gt; &amp; &#39;friends&#39;</p>`,
		out)
}

func TestRenderLeavesUnboundPlaceholdersVerbatim(t *testing.T) {
	doc := `{{groom_name}} {{unknown_field}} {{ spaced }} {{Upper}}`
	out := Render(doc, Context{Values: map[string]string{"groom_name": "Romeo"}})
	assert.Equal(t, `Romeo {{unknown_field}} {{ spaced }} {{Upper}}`, out)
}

func TestRenderEmptyOptionalValue(t *testing.T) {
	doc := `<audio src="{{music_url}}"></audio>`
	out := Render(doc, Context{Values: map[string]string{"music_url": ""}})
	assert.Equal(t, `<audio src=""></audio>`, out)
}

func TestRenderExpandsGalleryInOrder(t *testing.T) {
	doc := `<div>{{#gallery}}<img src="{{photo_path}}" alt="{{bride_name}} {{photo_order}}">{{/gallery}}</div>`
	out := Render(doc, Context{
		Values: map[string]string{"bride_name": "Juliet"},
		Gallery: []Photo{
			{Path: "/uploads/c.jpg", Order: 3},
			{Path: "/uploads/a.jpg", Order: 1},
			{Path: `/uploads/b".jpg`, Order: 2},
		},
	})

	assert.Equal(t,
		`<div><img src="/uploads/a.jpg" alt="Juliet 1">`+
			`<img src="/uploads/b&#34;.jpg" alt="Juliet 2">`+
			`<img src="/uploads/c.jpg" alt="Juliet 3"></div>`,
		out)
}

func TestRenderEmptyGalleryRemovesRegion(t *testing.T) {
	doc := `a{{#gallery}}<img src="{{photo_path}}">{{/gallery}}b`
	assert.Equal(t, "ab", Render(doc, Context{}))
}

func TestRenderKeepsPhotoFieldsOutsideGallery(t *testing.T) {
	doc := `{{photo_path}}`
	out := Render(doc, Context{Gallery: []Photo{{Path: "x.jpg"}}})
	assert.Equal(t, `{{photo_path}}`, out)
}

func TestRenderUnclosedGalleryLeftVerbatim(t *testing.T) {
	doc := `{{#gallery}}<img src="{{photo_path}}">{{title}}`
	out := Render(doc, Context{Values: map[string]string{"title": "T"}, Gallery: []Photo{{Path: "x.jpg"}}})
	assert.Equal(t, `{{#gallery}}<img src="{{photo_path}}">T`, out)
}

func TestRenderMultipleGalleryRegions(t *testing.T) {
	doc := `{{#gallery}}[{{photo_order}}]{{/gallery}}|{{#gallery}}({{photo_path}}){{/gallery}}`
	out := Render(doc, Context{Gallery: []Photo{{Path: "a", Order: 1}, {Path: "b", Order: 2}}})
	assert.Equal(t, `[1][2]|(a)(b)`, out)
}

func TestRenderIsDeterministic(t *testing.T) {
	doc := strings.Repeat(`{{title}}{{#gallery}}<img src="{{photo_path}}">{{/gallery}}{{message}}`, 3)
	ctx := Context{
		Values: map[string]string{"title": "T", "message": "<m>"},
		Gallery: []Photo{
			{Path: "b", Order: 1},
			{Path: "a", Order: 1},
		},
	}

	first := Render(doc, ctx)
	second := Render(doc, ctx)
	require.Equal(t, first, second)
	assert.Contains(t, first, `<img src="b"><img src="a">`)
}

func TestRenderDoesNotMutateInput(t *testing.T) {
	photos := []Photo{{Path: "b", Order: 2}, {Path: "a", Order: 1}}
	Render(`{{#gallery}}{{photo_path}}{{/gallery}}`, Context{Gallery: photos})
	assert.Equal(t, "b", photos[0].Path)
}

func TestPlaceholders(t *testing.T) {
	doc := `{{title}} {{#gallery}}{{photo_path}}{{/gallery}} {{title}} {{map_url}} {{Bad}}`
	assert.Equal(t, []string{"title", "photo_path", "map_url"}, Placeholders(doc))
	assert.Empty(t, Placeholders("no placeholders"))
}
