package richtext

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var markdownEngine = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// FromMarkdown builds a document from markdown source. Raw HTML is dropped.
func FromMarkdown(src string) (*Document, error) {
	source := []byte(src)
	root := markdownEngine.Parser().Parse(text.NewReader(source))

	blocks := convertBlocks(root, source)
	if len(blocks) == 0 {
		blocks = []*Node{{Type: TypeParagraph}}
	}

	doc := NewDocument(blocks...)
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func convertBlocks(parent ast.Node, source []byte) []*Node {
	var blocks []*Node
	for child := parent.FirstChild(); child != nil; child = child.NextSibling() {
		blocks = append(blocks, convertBlock(child, source)...)
	}
	return blocks
}

func convertBlock(n ast.Node, source []byte) []*Node {
	switch node := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		inlines := convertInlines(node, source, nil)
		if images, ok := liftImages(inlines); ok {
			return images
		}
		if len(inlines) == 0 {
			return nil
		}
		return []*Node{{Type: TypeParagraph, Content: inlines}}
	case *ast.Heading:
		return []*Node{{
			Type:    TypeHeading,
			Attrs:   map[string]any{"level": node.Level},
			Content: convertInlines(node, source, nil),
		}}
	case *ast.ThematicBreak:
		return []*Node{{Type: TypeHorizontalRule}}
	case *ast.FencedCodeBlock:
		code := &Node{Type: TypeCodeBlock, Attrs: map[string]any{"language": nil}}
		if lang := string(node.Language(source)); lang != "" {
			code.Attrs["language"] = lang
		}
		if body := blockLines(node, source); body != "" {
			code.Content = []*Node{{Type: TypeText, Text: body}}
		}
		return []*Node{code}
	case *ast.CodeBlock:
		code := &Node{Type: TypeCodeBlock, Attrs: map[string]any{"language": nil}}
		if body := blockLines(node, source); body != "" {
			code.Content = []*Node{{Type: TypeText, Text: body}}
		}
		return []*Node{code}
	case *ast.Blockquote:
		return []*Node{{Type: TypeBlockquote, Content: convertBlocks(node, source)}}
	case *ast.List:
		list := &Node{Type: TypeBulletList}
		if node.IsOrdered() {
			list.Type = TypeOrderedList
			list.Attrs = map[string]any{"start": node.Start}
		}
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			content := convertBlocks(item, source)
			if len(content) == 0 {
				content = []*Node{{Type: TypeParagraph}}
			}
			list.Content = append(list.Content, &Node{Type: TypeListItem, Content: content})
		}
		return []*Node{list}
	case *east.Table:
		var rows []*Node
		for row := node.FirstChild(); row != nil; row = row.NextSibling() {
			var inlines []*Node
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				if len(inlines) > 0 {
					inlines = append(inlines, &Node{Type: TypeText, Text: " | "})
				}
				inlines = append(inlines, convertInlines(cell, source, nil)...)
			}
			if len(inlines) > 0 {
				rows = append(rows, &Node{Type: TypeParagraph, Content: inlines})
			}
		}
		return rows
	case *ast.HTMLBlock:
		return nil
	default:
		return convertBlocks(n, source)
	}
}

func blockLines(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		buf.Write(segment.Value(source))
	}
	return strings.TrimRight(buf.String(), "\n")
}

// liftImages turns a paragraph holding only images into block-level image nodes.
func liftImages(inlines []*Node) ([]*Node, bool) {
	var images []*Node
	for _, n := range inlines {
		switch {
		case n.Type == TypeImage:
			images = append(images, n)
		case n.Type == TypeText && strings.TrimSpace(n.Text) == "":
		default:
			return nil, false
		}
	}
	return images, len(images) > 0
}

func convertInlines(parent ast.Node, source []byte, marks []Mark) []*Node {
	var out []*Node
	for child := parent.FirstChild(); child != nil; child = child.NextSibling() {
		out = append(out, convertInline(child, source, marks)...)
	}
	return mergeText(out)
}

func convertInline(n ast.Node, source []byte, marks []Mark) []*Node {
	switch node := n.(type) {
	case *ast.Text:
		var out []*Node
		if value := unescape(node.Segment.Value(source)); value != "" {
			out = append(out, textNode(value, marks))
		}
		if node.HardLineBreak() {
			out = append(out, &Node{Type: TypeHardBreak})
		} else if node.SoftLineBreak() {
			out = append(out, textNode(" ", marks))
		}
		return out
	case *ast.String:
		if len(node.Value) == 0 {
			return nil
		}
		return []*Node{textNode(string(node.Value), marks)}
	case *ast.Emphasis:
		markType := MarkItalic
		if node.Level >= 2 {
			markType = MarkBold
		}
		return convertInlines(node, source, withMark(marks, Mark{Type: markType}))
	case *east.Strikethrough:
		return convertInlines(node, source, withMark(marks, Mark{Type: MarkStrike}))
	case *ast.CodeSpan:
		value := codeSpanText(node, source)
		if value == "" {
			return nil
		}
		return []*Node{textNode(value, withMark(marks, Mark{Type: MarkCode}))}
	case *ast.Link:
		attrs := map[string]any{"href": string(node.Destination)}
		if len(node.Title) > 0 {
			attrs["title"] = string(node.Title)
		}
		return convertInlines(node, source, withMark(marks, Mark{Type: MarkLink, Attrs: attrs}))
	case *ast.AutoLink:
		href := string(node.URL(source))
		label := string(node.Label(source))
		if label == "" {
			return nil
		}
		return []*Node{textNode(label, withMark(marks, Mark{Type: MarkLink, Attrs: map[string]any{"href": href}}))}
	case *ast.Image:
		attrs := map[string]any{
			"src": string(node.Destination),
			"alt": inlineText(node, source),
		}
		if len(node.Title) > 0 {
			attrs["title"] = string(node.Title)
		}
		return []*Node{{Type: TypeImage, Attrs: attrs}}
	case *ast.RawHTML:
		return nil
	case *east.TaskCheckBox:
		if node.IsChecked {
			return []*Node{textNode("[x] ", marks)}
		}
		return []*Node{textNode("[ ] ", marks)}
	default:
		return convertInlines(n, source, marks)
	}
}

func inlineText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(node ast.Node) {
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			switch c := child.(type) {
			case *ast.Text:
				buf.WriteString(unescape(c.Segment.Value(source)))
				if c.SoftLineBreak() || c.HardLineBreak() {
					buf.WriteByte(' ')
				}
			case *ast.String:
				buf.Write(c.Value)
			default:
				walk(child)
			}
		}
	}
	walk(n)
	return buf.String()
}

// unescape resolves backslash escapes and entities the way the html renderer would.
func unescape(raw []byte) string {
	value := util.UnescapePunctuations(raw)
	value = util.ResolveNumericReferences(value)
	value = util.ResolveEntityNames(value)
	return string(value)
}

func codeSpanText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.Text:
			buf.Write(c.Segment.Value(source))
		case *ast.String:
			buf.Write(c.Value)
		}
	}
	return buf.String()
}

func textNode(value string, marks []Mark) *Node {
	n := &Node{Type: TypeText, Text: value}
	if len(marks) > 0 {
		n.Marks = append([]Mark(nil), marks...)
	}
	return n
}

func withMark(marks []Mark, m Mark) []Mark {
	out := make([]Mark, 0, len(marks)+1)
	out = append(out, marks...)
	return append(out, m)
}

// mergeText joins neighbouring text nodes that carry identical marks.
func mergeText(nodes []*Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		if len(out) > 0 {
			last := out[len(out)-1]
			if last.Type == TypeText && n.Type == TypeText && sameMarks(last.Marks, n.Marks) {
				last.Text += n.Text
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

func sameMarks(a, b []Mark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type {
			return false
		}
		if attrString(a[i].Attrs, "href") != attrString(b[i].Attrs, "href") {
			return false
		}
	}
	return true
}

// ToMarkdown renders the document as markdown for the edit form.
func ToMarkdown(doc *Document) string {
	if doc == nil {
		return ""
	}
	var blocks []string
	for _, block := range doc.Content {
		if rendered := blockMarkdown(block); rendered != "" {
			blocks = append(blocks, rendered)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func blockMarkdown(n *Node) string {
	switch n.Type {
	case TypeParagraph:
		return escapeParagraph(inlineMarkdown(n.Content))
	case TypeHeading:
		level := attrInt(n.Attrs, "level", 1)
		if level < 1 || level > 6 {
			level = 1
		}
		return strings.Repeat("#", level) + " " + inlineMarkdown(n.Content)
	case TypeBlockquote:
		return prefixLines(childBlocksMarkdown(n.Content), "> ", "> ")
	case TypeBulletList:
		var items []string
		for _, item := range n.Content {
			items = append(items, prefixLines(childBlocksMarkdown(item.Content), "- ", "  "))
		}
		return strings.Join(items, "\n")
	case TypeOrderedList:
		start := attrInt(n.Attrs, "start", 1)
		var items []string
		for i, item := range n.Content {
			marker := strconv.Itoa(start+i) + ". "
			items = append(items, prefixLines(childBlocksMarkdown(item.Content), marker, strings.Repeat(" ", len(marker))))
		}
		return strings.Join(items, "\n")
	case TypeCodeBlock:
		lang := attrString(n.Attrs, "language")
		var body strings.Builder
		for _, child := range n.Content {
			body.WriteString(child.Text)
		}
		return "```" + lang + "\n" + body.String() + "\n```"
	case TypeHorizontalRule:
		return "---"
	case TypeImage:
		return imageMarkdown(n)
	default:
		if len(n.Content) == 0 {
			return ""
		}
		return childBlocksMarkdown(n.Content)
	}
}

func childBlocksMarkdown(nodes []*Node) string {
	var parts []string
	for _, child := range nodes {
		if child.Type == TypeText || child.Type == TypeHardBreak {
			parts = append(parts, inlineMarkdown([]*Node{child}))
			continue
		}
		if rendered := blockMarkdown(child); rendered != "" {
			parts = append(parts, rendered)
		}
	}
	return strings.Join(parts, "\n\n")
}

func prefixLines(body, first, rest string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		switch {
		case i == 0:
			lines[i] = first + line
		case line == "":
			lines[i] = strings.TrimRight(rest, " ")
		default:
			lines[i] = rest + line
		}
	}
	return strings.Join(lines, "\n")
}

func inlineMarkdown(nodes []*Node) string {
	var b strings.Builder
	for _, n := range nodes {
		switch n.Type {
		case TypeText:
			b.WriteString(wrapMarks(n.Text, n.Marks))
		case TypeHardBreak:
			b.WriteString("\\\n")
		case TypeImage:
			b.WriteString(imageMarkdown(n))
		default:
			b.WriteString(inlineMarkdown(n.Content))
		}
	}
	return b.String()
}

func imageMarkdown(n *Node) string {
	src := attrString(n.Attrs, "src")
	alt := attrString(n.Attrs, "alt")
	if title := attrString(n.Attrs, "title"); title != "" {
		return "![" + escapeText(alt) + "](" + src + " \"" + strings.ReplaceAll(title, "\"", "\\\"") + "\")"
	}
	return "![" + escapeText(alt) + "](" + src + ")"
}

func wrapMarks(value string, marks []Mark) string {
	out := value
	code := hasMark(marks, MarkCode)
	if code {
		fence := "`"
		if strings.Contains(value, "`") {
			fence = "`` "
			out = fence + value + " ``"
		} else {
			out = fence + value + fence
		}
	} else {
		out = escapeText(value)
	}
	if hasMark(marks, MarkStrike) {
		out = "~~" + out + "~~"
	}
	if hasMark(marks, MarkItalic) {
		out = "*" + out + "*"
	}
	if hasMark(marks, MarkBold) {
		out = "**" + out + "**"
	}
	for _, m := range marks {
		if m.Type == MarkLink {
			out = "[" + out + "](" + attrString(m.Attrs, "href") + ")"
			break
		}
	}
	return out
}

func hasMark(marks []Mark, markType string) bool {
	for _, m := range marks {
		if m.Type == markType {
			return true
		}
	}
	return false
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"~", `\~`,
	"<", `\<`,
	"&", "&amp;",
	"://", `\://`,
	"www.", `www\.`,
)

func escapeText(value string) string {
	return markdownEscaper.Replace(value)
}

var orderedMarker = regexp.MustCompile(`^(\d{1,9})([.)])(\s|$)`)

// escapeParagraph keeps every line of a paragraph from being re-read as a block
// marker, and keeps edge whitespace that markdown would otherwise strip.
func escapeParagraph(paragraph string) string {
	lines := strings.Split(paragraph, "\n")
	for i, line := range lines {
		lines[i] = escapeLine(line)
	}
	return strings.Join(lines, "\n")
}

func escapeLine(line string) string {
	body := strings.TrimLeft(line, " \t")
	lead := line[:len(line)-len(body)]

	var trail string
	if !strings.HasSuffix(body, `\`) {
		trimmed := strings.TrimRight(body, " \t")
		trail = body[len(trimmed):]
		body = trimmed
	}
	return encodeSpaces(lead) + escapeLineStart(body) + encodeSpaces(trail)
}

func encodeSpaces(ws string) string {
	if ws == "" {
		return ""
	}
	return strings.NewReplacer(" ", "&#32;", "\t", "&#9;").Replace(ws)
}

// escapeLineStart keeps a line from being re-read as a heading, quote, list or rule.
func escapeLineStart(line string) string {
	for _, prefix := range []string{"#", ">", "-", "+", "=", "|"} {
		if strings.HasPrefix(line, prefix) {
			return `\` + line
		}
	}
	if m := orderedMarker.FindStringSubmatchIndex(line); m != nil {
		return line[:m[3]] + `\` + line[m[3]:]
	}
	return line
}
