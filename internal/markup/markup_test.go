package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBold(t *testing.T) {
	r := NewRenderer()
	htmlBody, plain, err := r.Render("**hi**")
	require.NoError(t, err)
	assert.Contains(t, htmlBody, "<strong>hi</strong>")
	assert.Equal(t, "hi", plain)
}

func TestRenderMultiParagraph(t *testing.T) {
	r := NewRenderer()
	_, plain, err := r.Render("first paragraph\n\nsecond *paragraph*")
	require.NoError(t, err)
	assert.Equal(t, "first paragraph\nsecond paragraph", plain)
}

func TestRenderStrikethroughAndLink(t *testing.T) {
	r := NewRenderer()
	htmlBody, _, err := r.Render("~~old~~ see https://example.com")
	require.NoError(t, err)
	assert.Contains(t, htmlBody, "<del>old</del>")
	assert.Contains(t, htmlBody, `href="https://example.com"`)
}

func TestRenderEscapesRawHTML(t *testing.T) {
	r := NewRenderer()
	htmlBody, _, err := r.Render(`hello <script>alert("x")</script>`)
	require.NoError(t, err)
	assert.NotContains(t, htmlBody, "<script>")
}

func TestRenderEmptyPlainText(t *testing.T) {
	r := NewRenderer()
	// An image-only message has no extractable text; callers fall back to
	// the raw markdown in that case.
	_, plain, err := r.Render("![](https://example.com/cat.png)")
	require.NoError(t, err)
	assert.Equal(t, "", plain)
}

func TestPlainFromHTML(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"tags stripped", "<p><strong>hi</strong> there</p>", "hi there"},
		{"entities decoded", "&lt;3 &amp; more", "<3 & more"},
		{"line breaks", "one<br>two", "one\ntwo"},
		{"script dropped", `before<script>alert("x")</script>after`, "beforeafter"},
		{"plain passthrough", "no markup at all", "no markup at all"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PlainFromHTML(tc.in))
		})
	}
}

func TestPlainFromHTMLBlocks(t *testing.T) {
	got := PlainFromHTML("<p>one</p><p>two</p>")
	assert.Equal(t, []string{"one", "two"}, strings.Split(got, "\n"))
}
