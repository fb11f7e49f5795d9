package richtext

import (
	"html"
	"html/template"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.UGCPolicy()

// RenderHTML renders the document for the preview pane. The output is sanitized.
func RenderHTML(doc *Document) template.HTML {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	for _, block := range doc.Content {
		writeHTML(&b, block)
	}
	return template.HTML(sanitizer.Sanitize(b.String()))
}

func writeHTML(b *strings.Builder, n *Node) {
	switch n.Type {
	case TypeParagraph:
		wrapHTML(b, "p", n.Content)
	case TypeHeading:
		level := attrInt(n.Attrs, "level", 1)
		if level < 1 || level > 6 {
			level = 1
		}
		wrapHTML(b, "h"+strconv.Itoa(level), n.Content)
	case TypeBlockquote:
		wrapHTML(b, "blockquote", n.Content)
	case TypeBulletList:
		wrapHTML(b, "ul", n.Content)
	case TypeOrderedList:
		start := attrInt(n.Attrs, "start", 1)
		if start != 1 {
			b.WriteString(`<ol start="` + strconv.Itoa(start) + `">`)
		} else {
			b.WriteString("<ol>")
		}
		for _, child := range n.Content {
			writeHTML(b, child)
		}
		b.WriteString("</ol>")
	case TypeListItem:
		wrapHTML(b, "li", n.Content)
	case TypeCodeBlock:
		b.WriteString("<pre><code")
		if lang := attrString(n.Attrs, "language"); lang != "" {
			b.WriteString(` class="language-` + html.EscapeString(lang) + `"`)
		}
		b.WriteString(">")
		for _, child := range n.Content {
			b.WriteString(html.EscapeString(child.Text))
		}
		b.WriteString("</code></pre>")
	case TypeHorizontalRule:
		b.WriteString("<hr>")
	case TypeHardBreak:
		b.WriteString("<br>")
	case TypeImage:
		b.WriteString(`<img src="` + html.EscapeString(attrString(n.Attrs, "src")) + `"`)
		b.WriteString(` alt="` + html.EscapeString(attrString(n.Attrs, "alt")) + `"`)
		if title := attrString(n.Attrs, "title"); title != "" {
			b.WriteString(` title="` + html.EscapeString(title) + `"`)
		}
		b.WriteString(">")
	case TypeText:
		writeMarkedText(b, n)
	default:
		for _, child := range n.Content {
			writeHTML(b, child)
		}
	}
}

func wrapHTML(b *strings.Builder, tag string, children []*Node) {
	b.WriteString("<" + tag + ">")
	for _, child := range children {
		writeHTML(b, child)
	}
	b.WriteString("</" + tag + ">")
}

func writeMarkedText(b *strings.Builder, n *Node) {
	var open, closing []string
	for _, m := range n.Marks {
		switch m.Type {
		case MarkBold:
			open, closing = append(open, "<strong>"), append(closing, "</strong>")
		case MarkItalic:
			open, closing = append(open, "<em>"), append(closing, "</em>")
		case MarkStrike:
			open, closing = append(open, "<s>"), append(closing, "</s>")
		case MarkCode:
			open, closing = append(open, "<code>"), append(closing, "</code>")
		case MarkLink:
			open = append(open, `<a href="`+html.EscapeString(attrString(m.Attrs, "href"))+`">`)
			closing = append(closing, "</a>")
		}
	}
	for _, tag := range open {
		b.WriteString(tag)
	}
	b.WriteString(html.EscapeString(n.Text))
	for i := len(closing) - 1; i >= 0; i-- {
		b.WriteString(closing[i])
	}
}
