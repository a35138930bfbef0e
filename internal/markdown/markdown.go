// Package markdown converts model-authored markdown into HTML that is safe to insert into the page,
// and extracts readable text back out of rendered fragments.
package markdown

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// allowedTags are the only elements ToSafeHTML may emit.
var allowedTags = map[string]bool{
	"p":      true,
	"strong": true,
	"em":     true,
	"code":   true,
	"ul":     true,
	"ol":     true,
	"li":     true,
}

// ToSafeHTML renders markdown to HTML limited to paragraphs, emphasis, inline code and lists.
// Raw HTML in the input is rendered as escaped text. Any other markup the parser produces
// (headings, links, rules, code blocks) is reduced to its text content.
func ToSafeHTML(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	mdParser := parser.NewWithExtensions(parser.NoIntraEmphasis)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags:          html.SkipImages | html.Safelink,
		RenderNodeHook: escapeRawHTML,
	})

	out := markdown.ToHTML([]byte(text), mdParser, renderer)
	return restrictTags(strings.TrimSpace(string(out)))
}

// escapeRawHTML writes raw HTML spans and blocks as text instead of markup.
func escapeRawHTML(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	switch node.(type) {
	case *ast.HTMLSpan:
		html.EscapeHTML(w, node.AsLeaf().Literal)
		return ast.GoToNext, true
	case *ast.HTMLBlock:
		io.WriteString(w, "<p>")
		html.EscapeHTML(w, node.AsLeaf().Literal)
		io.WriteString(w, "</p>\n")
		return ast.GoToNext, true
	}
	return ast.GoToNext, false
}

// restrictTags strips attributes from allowed elements and replaces every other element
// with its children. Headings become paragraphs so their text stays on its own line.
func restrictTags(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return escapeString(fragment)
	}
	body := doc.Find("body")

	// Children are visited before their parents, so an unwrapped parent only carries
	// content that has already been cleaned.
	elements := body.Find("*")
	for i := elements.Length() - 1; i >= 0; i-- {
		sel := elements.Eq(i)
		name := goquery.NodeName(sel)
		switch {
		case allowedTags[name]:
			sel.Get(0).Attr = nil
		case isHeading(name):
			inner, _ := sel.Html()
			sel.ReplaceWithHtml("<p>" + inner + "</p>")
		case name == "br":
			sel.ReplaceWithHtml("\n")
		case sel.Contents().Length() == 0:
			sel.Remove()
		default:
			sel.Contents().Unwrap()
		}
	}

	out, err := body.Html()
	if err != nil {
		return escapeString(fragment)
	}
	return strings.TrimSpace(out)
}

func escapeString(s string) string {
	var b strings.Builder
	html.EscapeHTML(&b, []byte(s))
	return b.String()
}

func isHeading(name string) bool {
	return len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6'
}

// PlainText returns the visible text of an HTML fragment with runs of whitespace collapsed.
func PlainText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return CollapseWhitespace(fragment)
	}
	doc.Find("script, style").Remove()
	return CollapseWhitespace(doc.Text())
}

// CollapseWhitespace replaces every whitespace run with a single space and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
