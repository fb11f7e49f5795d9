// Package richtext models post bodies as structured node trees compatible with the
// TipTap/ProseMirror JSON schema, and converts them to and from markdown and HTML.
package richtext

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidDocument is returned when a body is not a well-formed "doc" tree.
var ErrInvalidDocument = errors.New("invalid rich document")

// Node types understood by the converters. Unknown types are carried through untouched.
const (
	TypeDoc            = "doc"
	TypeParagraph      = "paragraph"
	TypeHeading        = "heading"
	TypeBlockquote     = "blockquote"
	TypeBulletList     = "bulletList"
	TypeOrderedList    = "orderedList"
	TypeListItem       = "listItem"
	TypeCodeBlock      = "codeBlock"
	TypeHorizontalRule = "horizontalRule"
	TypeHardBreak      = "hardBreak"
	TypeImage          = "image"
	TypeText           = "text"
)

// Mark types.
const (
	MarkBold   = "bold"
	MarkItalic = "italic"
	MarkStrike = "strike"
	MarkCode   = "code"
	MarkLink   = "link"
)

// Mark decorates a text node.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Node is one element of the document tree.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []*Node        `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

// Document is the root node of a post body.
type Document struct {
	Node
}

// NewDocument wraps block nodes into a doc root.
func NewDocument(blocks ...*Node) *Document {
	return &Document{Node: Node{Type: TypeDoc, Content: blocks}}
}

// Parse decodes and validates a JSON document. A JSON null yields a nil document.
func Parse(raw []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the structural rules every editor-produced document follows.
func (d *Document) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}
	if d.Type != TypeDoc {
		return fmt.Errorf("%w: root type %q", ErrInvalidDocument, d.Type)
	}
	for _, child := range d.Content {
		if err := validateNode(child, 1); err != nil {
			return err
		}
	}
	return nil
}

const maxDepth = 64

func validateNode(n *Node, depth int) error {
	if n == nil {
		return fmt.Errorf("%w: null node", ErrInvalidDocument)
	}
	if depth > maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrInvalidDocument, maxDepth)
	}
	if n.Type == "" {
		return fmt.Errorf("%w: node without type", ErrInvalidDocument)
	}
	if n.Type == TypeDoc {
		return fmt.Errorf("%w: nested doc node", ErrInvalidDocument)
	}
	if n.Type == TypeText {
		if n.Text == "" {
			return fmt.Errorf("%w: empty text node", ErrInvalidDocument)
		}
		if len(n.Content) > 0 {
			return fmt.Errorf("%w: text node with children", ErrInvalidDocument)
		}
	}
	for _, child := range n.Content {
		if err := validateNode(child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// PlainText concatenates the text of the document, one block per line.
func (d *Document) PlainText() string {
	if d == nil {
		return ""
	}
	var buf bytes.Buffer
	for i, block := range d.Content {
		if i > 0 {
			buf.WriteByte('\n')
		}
		writePlainText(&buf, block)
	}
	return buf.String()
}

func writePlainText(buf *bytes.Buffer, n *Node) {
	switch n.Type {
	case TypeText:
		buf.WriteString(n.Text)
	case TypeHardBreak:
		buf.WriteByte('\n')
	default:
		for _, child := range n.Content {
			writePlainText(buf, child)
		}
	}
}

func attrString(attrs map[string]any, key string) string {
	if attrs == nil {
		return ""
	}
	if v, ok := attrs[key].(string); ok {
		return v
	}
	return ""
}

func attrInt(attrs map[string]any, key string, fallback int) int {
	if attrs == nil {
		return fallback
	}
	switch v := attrs[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
	}
	return fallback
}
