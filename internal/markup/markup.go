// Package markup is the pure rendering boundary: markdown to HTML body and
// plain text, and HTML back to plain text. No I/O, no script execution; raw
// HTML embedded in markdown is omitted, never rendered.
package markup

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmtext "github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

// Renderer converts a message's markdown into its HTML body and a plain-text
// fallback. Safe for concurrent use.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer builds a renderer with the chat-friendly markdown dialect
// (strikethrough, autolinked URLs). Raw HTML pass-through stays disabled.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
		),
	}
}

// Render converts markdown to an HTML body and extracts the plain text from
// the parsed document.
func (r *Renderer) Render(markdown string) (htmlBody, plainText string, err error) {
	src := []byte(markdown)

	var buf bytes.Buffer
	if err := r.md.Convert(src, &buf); err != nil {
		return "", "", fmt.Errorf("render markdown: %w", err)
	}

	doc := r.md.Parser().Parse(gmtext.NewReader(src))
	var sb strings.Builder
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			// Block boundaries become line breaks in the plain rendering.
			if _, isBlock := n.(*ast.Paragraph); isBlock {
				sb.WriteByte('\n')
			} else if _, isHeading := n.(*ast.Heading); isHeading {
				sb.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		if t, ok := n.(*ast.Text); ok {
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("extract plain text: %w", err)
	}

	return strings.TrimSpace(buf.String()), strings.TrimSpace(sb.String()), nil
}

// blockTags end with a line break when stripping HTML.
var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "tr": true,
}

// PlainFromHTML strips tags and decodes entities, yielding the plain-text
// content of an HTML fragment. Script and style bodies are discarded.
func PlainFromHTML(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var sb strings.Builder
	skipDepth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(sb.String())
		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skipDepth++
			case "br":
				sb.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			if name, _ := z.TagName(); string(name) == "br" {
				sb.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if skipDepth > 0 {
					skipDepth--
				}
			} else if blockTags[tag] {
				sb.WriteByte('\n')
			}
		}
	}
}
