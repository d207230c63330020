package markdown

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// alt text inserted by the service's OCR, not worth keeping
const machineAltPrefix = "Machine generated alternative text:"

// Parse reads a rich-content document and produces the typed node tree.
//
// The source dialect is HTML with service-specific extensions
// (data-fullres-src image sources, inline styles standing in for
// semantic markup). Unsupported elements degrade rather than fail:
// container elements are transparent, unknown leaf elements become
// KindGeneric nodes.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("cannot parse content document: %v", err)
	}

	body := findElement(root, "body")
	if body == nil {
		return nil, fmt.Errorf("content document has no body")
	}

	doc := &Document{
		Root: &Node{Kind: KindDocument},
	}
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		convert(c, doc.Root)
	}

	return doc, nil
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

// convert translates one source node (and its subtree) into children of
// the given parent.
func convert(src *html.Node, parent *Node) {
	switch src.Type {
	case html.TextNode:
		convertText(src, parent)
		return
	case html.ElementNode:
		// handled below
	default:
		return
	}

	switch src.Data {
	case "script", "style", "head", "title", "meta", "svg", "noscript":
		return

	case "p":
		appendWithChildren(src, parent, &Node{Kind: KindParagraph})

	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(src.Data[1] - '0')
		appendWithChildren(src, parent, &Node{Kind: KindHeading, Level: level})

	case "ul":
		appendWithChildren(src, parent, &Node{Kind: KindList})

	case "ol":
		appendWithChildren(src, parent, &Node{Kind: KindList, Ordered: true})

	case "li":
		appendWithChildren(src, parent, &Node{Kind: KindListItem})

	case "table":
		appendWithChildren(src, parent, &Node{Kind: KindTable})

	case "tr":
		appendWithChildren(src, parent, &Node{Kind: KindTableRow})

	case "td", "th":
		appendWithChildren(src, parent, &Node{Kind: KindTableCell, Header: src.Data == "th"})

	case "b", "strong":
		appendWithChildren(src, parent, &Node{Kind: KindStrong})

	case "i", "em":
		appendWithChildren(src, parent, &Node{Kind: KindEmphasis})

	case "a":
		appendWithChildren(src, parent, &Node{Kind: KindLink, Target: attr(src, "href")})

	case "img":
		img := &Node{
			Kind:   KindImage,
			Target: imageSource(src),
			Alt:    imageAlt(src),
			Block:  parent.Kind == KindDocument,
		}
		if img.Target != "" {
			parent.addChild(img)
		}

	case "br":
		parent.addChild(&Node{Kind: KindBreak})

	case "span":
		// The dialect encodes bold text as a styled span.
		if boldStyle(attr(src, "style")) {
			appendWithChildren(src, parent, &Node{Kind: KindStrong})
		} else {
			passThrough(src, parent)
		}

	case "html", "body", "div", "font", "u", "s", "sub", "sup",
		"thead", "tbody", "tfoot", "center", "section", "article", "main":
		// structural containers without an output mapping of their own
		passThrough(src, parent)

	default:
		parent.addChild(&Node{
			Kind: KindGeneric,
			Name: src.Data,
			Text: flattenText(src),
		})
	}
}

func appendWithChildren(src *html.Node, parent *Node, n *Node) {
	parent.addChild(n)
	for c := src.FirstChild; c != nil; c = c.NextSibling {
		convert(c, n)
	}
}

func passThrough(src *html.Node, parent *Node) {
	for c := src.FirstChild; c != nil; c = c.NextSibling {
		convert(c, parent)
	}
}

func convertText(src *html.Node, parent *Node) {
	if strings.TrimSpace(src.Data) == "" {
		// whitespace between structural elements carries no content
		switch parent.Kind {
		case KindDocument, KindList, KindTable, KindTableRow:
			return
		}
		parent.addChild(&Node{Kind: KindText, Text: " "})
		return
	}
	parent.addChild(&Node{Kind: KindText, Text: collapseSpace(src.Data)})
}

// imageSource picks the best remote locator for an image.
// The full-resolution variant is preferred over the inline thumbnail.
func imageSource(src *html.Node) string {
	if s := attr(src, "data-fullres-src"); s != "" {
		return s
	}
	return attr(src, "src")
}

func imageAlt(src *html.Node) string {
	alt := attr(src, "alt")
	if strings.HasPrefix(alt, machineAltPrefix) {
		return ""
	}
	return strings.TrimSpace(alt)
}

func boldStyle(style string) bool {
	s := strings.ToLower(style)
	return strings.Contains(s, "font-weight:bold") ||
		strings.Contains(s, "font-weight: bold") ||
		strings.Contains(s, "font-weight:700") ||
		strings.Contains(s, "font-weight: 700")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// flattenText joins all text content of a subtree into a single line.
func flattenText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// collapseSpace normalizes runs of whitespace to single spaces while
// keeping a leading/trailing space that separates inline siblings.
func collapseSpace(s string) string {
	collapsed := strings.Join(strings.Fields(s), " ")
	if collapsed == "" {
		return ""
	}
	if s != strings.TrimLeft(s, " \t\n\r") {
		collapsed = " " + collapsed
	}
	if s != strings.TrimRight(s, " \t\n\r") {
		collapsed += " "
	}
	return collapsed
}
