package segment

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

// Kind identifies the markup of a chapter source.
type Kind int

const (
	// KindText is plain text.
	KindText Kind = iota
	// KindHTML is HTML or XHTML, as found inside EPUB containers.
	KindHTML
	// KindMarkdown is CommonMark.
	KindMarkdown
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindHTML:
		return "html"
	case KindMarkdown:
		return "markdown"
	default:
		return "unknown"
	}
}

// KindFromPath guesses the kind of a file from its extension.
func KindFromPath(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return KindHTML
	case ".md", ".markdown", ".mdown", ".mkd":
		return KindMarkdown
	default:
		return KindText
	}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize extracts the speakable text of raw and collapses every
// whitespace run to a single space.
func Normalize(raw string, kind Kind) string {
	var s string
	switch kind {
	case KindHTML:
		s = htmlText(raw)
	case KindMarkdown:
		s = markdownText(raw)
	default:
		s = raw
	}
	return CollapseWhitespace(norm.NFC.String(s))
}

// CollapseWhitespace replaces whitespace runs with one space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// skippedElements never contribute speakable text.
var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Img:      true,
	atom.Svg:      true,
	atom.Head:     true,
	atom.Noscript: true,
	atom.Template: true,
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Section: true, atom.Article: true, atom.Tr: true,
	atom.Td: true, atom.Th: true, atom.Dt: true, atom.Dd: true, atom.Pre: true,
	atom.Figcaption: true, atom.Aside: true, atom.Hr: true,
}

func htmlText(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		// html.Parse only fails on reader errors; fall back to the raw text.
		return raw
	}
	var buf strings.Builder
	walkHTML(doc, &buf)
	return buf.String()
}

func walkHTML(n *html.Node, buf *strings.Builder) {
	if n.Type == html.ElementNode {
		if skippedElements[n.DataAtom] {
			return
		}
		if blockElements[n.DataAtom] {
			buf.WriteByte(' ')
			defer buf.WriteByte(' ')
		}
	}
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTML(c, buf)
	}
}

func markdownText(raw string) string {
	md := goldmark.New()
	reader := text.NewReader([]byte(raw))
	doc := md.Parser().Parse(reader)

	var buf strings.Builder
	walkMarkdown(doc, reader.Source(), &buf)
	return buf.String()
}

func walkMarkdown(node ast.Node, source []byte, buf *strings.Builder) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.RawHTML:
		return

	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			buf.WriteByte(' ')
		}
		return

	case *ast.String:
		buf.Write(n.Value)
		return

	case *ast.Image:
		// alt text is read only when the image has a title
		if n.Title != nil {
			buf.WriteByte(' ')
			buf.Write(n.Title)
			buf.WriteByte(' ')
		}
		return

	case *ast.Heading, *ast.Paragraph, *ast.ListItem, *ast.TextBlock:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walkMarkdown(c, source, buf)
		}
		buf.WriteByte(' ')
		return
	}

	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		walkMarkdown(c, source, buf)
	}
}
