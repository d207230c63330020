package markdown

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/akeil/notemd/internal/logging"
)

// maxHeading is the deepest heading level the output format supports.
const maxHeading = 6

// AssetRef is a binary resource discovered during rendering.
//
// The rendered text refers to the asset through Placeholder; the asset
// pipeline resolves the remote locator to bytes, finalizes the local
// filename (Name plus an extension) and the output planner substitutes
// the placeholder with the final relative path.
type AssetRef struct {
	// URL is the remote locator.
	URL string
	// Name is the deterministic local base name, without extension.
	Name string
	// Ext is the extension guessed from the locator path, possibly empty.
	Ext string
	// Placeholder is the token embedded in the rendered text.
	Placeholder string
}

// PagePlaceholder returns the placeholder token for a link to another
// page in the same run. The output planner resolves it to a relative
// path once the full tree layout is known.
func PagePlaceholder(pageID string) string {
	return "{{page:" + pageID + "}}"
}

func assetPlaceholder(i int) string {
	return "{{asset:" + strconv.Itoa(i) + "}}"
}

// Render converts a parsed content document into output markup.
//
// It returns the rendered text and the list of assets the page refers
// to. Links to other pages and image sources are emitted as placeholder
// tokens (see PagePlaceholder and AssetRef.Placeholder).
func Render(doc *Document, pageID string) (string, []AssetRef) {
	r := &renderer{
		pageSlug: slugify(pageID),
		assets:   make([]AssetRef, 0),
	}
	for _, c := range doc.Root.Children {
		r.block(c)
	}
	return cleanup(r.out.String()), r.assets
}

type renderer struct {
	out      strings.Builder
	assets   []AssetRef
	pageSlug string

	listDepth int
	inStrong  bool
	inEmph    bool
}

type renderFunc func(*renderer, *Node)

// blockFuncs is the node-kind dispatch table for block-level nodes.
// Initialized in init to avoid an initialization cycle.
var blockFuncs map[Kind]renderFunc

func init() {
	blockFuncs = map[Kind]renderFunc{
		KindParagraph: (*renderer).paragraph,
		KindHeading:   (*renderer).heading,
		KindList:      (*renderer).list,
		KindTable:     (*renderer).table,
		KindImage:     (*renderer).blockImage,
		KindGeneric:   (*renderer).generic,
	}
}

func (r *renderer) block(n *Node) {
	if f, ok := blockFuncs[n.Kind]; ok {
		f(r, n)
		return
	}
	// loose inline content at block level renders as a paragraph
	text := strings.TrimSpace(r.inline(n))
	if text != "" {
		r.out.WriteString(text + "\n\n")
	}
}

func (r *renderer) paragraph(n *Node) {
	text := strings.TrimSpace(r.inlineChildren(n))
	if text != "" {
		r.out.WriteString(text + "\n\n")
	}
}

func (r *renderer) heading(n *Node) {
	level := n.Level
	if level < 1 {
		level = 1
	} else if level > maxHeading {
		level = maxHeading
	}
	text := strings.TrimSpace(r.inlineChildren(n))
	if text == "" {
		return
	}
	r.out.WriteString(strings.Repeat("#", level) + " " + text + "\n\n")
}

func (r *renderer) list(n *Node) {
	r.listDepth++
	idx := 0
	for _, c := range n.Children {
		if c.Kind != KindListItem {
			continue
		}
		idx++
		r.listItem(n, c, idx)
	}
	r.listDepth--
	if r.listDepth == 0 {
		r.out.WriteString("\n")
	}
}

// listItem renders one item; nested lists recurse before the next
// sibling item is rendered.
func (r *renderer) listItem(list, item *Node, idx int) {
	indent := strings.Repeat("  ", r.listDepth-1)
	marker := "- "
	if list.Ordered {
		marker = strconv.Itoa(idx) + ". "
	}

	var nested []*Node
	var b strings.Builder
	for _, c := range item.Children {
		if c.Kind == KindList {
			nested = append(nested, c)
			continue
		}
		b.WriteString(r.inline(c))
	}
	r.out.WriteString(indent + marker + flattenLine(b.String()) + "\n")

	for _, l := range nested {
		r.list(l)
	}
}

// table renders a header row, a separator row and the body rows.
// Cells with block content are flattened to a single line because the
// output format's table cells cannot span lines.
func (r *renderer) table(n *Node) {
	rows := make([][]string, 0)
	var collect func(*Node)
	collect = func(n *Node) {
		for _, c := range n.Children {
			if c.Kind != KindTableRow {
				continue
			}
			row := make([]string, 0)
			for _, cell := range c.Children {
				if cell.Kind != KindTableCell {
					continue
				}
				row = append(row, flattenLine(r.inlineChildren(cell)))
			}
			rows = append(rows, row)
		}
	}
	collect(n)

	if len(rows) == 0 {
		return
	}

	writeRow := func(cells []string) {
		r.out.WriteString("|")
		for _, c := range cells {
			r.out.WriteString(" " + c + " |")
		}
		r.out.WriteString("\n")
	}

	header := rows[0]
	writeRow(header)
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(sep)
	for _, row := range rows[1:] {
		writeRow(row)
	}
	r.out.WriteString("\n")
}

func (r *renderer) blockImage(n *Node) {
	text := r.image(n)
	if text != "" {
		r.out.WriteString(text + "\n\n")
	}
}

// generic is the fallback for node kinds without a translation: the
// flattened text content becomes a plain paragraph.
func (r *renderer) generic(n *Node) {
	logging.Warning("unsupported element %q rendered as plain text", n.Name)
	if n.Text != "" {
		r.out.WriteString(n.Text + "\n\n")
	}
}

func (r *renderer) inlineChildren(n *Node) string {
	var b strings.Builder
	for _, c := range n.Children {
		b.WriteString(r.inline(c))
	}
	return b.String()
}

func (r *renderer) inline(n *Node) string {
	switch n.Kind {
	case KindText:
		return n.Text
	case KindBreak:
		return "\n"
	case KindStrong:
		return r.span(n, "**", &r.inStrong)
	case KindEmphasis:
		return r.span(n, "*", &r.inEmph)
	case KindLink:
		return r.link(n)
	case KindImage:
		return r.image(n)
	case KindGeneric:
		logging.Warning("unsupported element %q rendered as plain text", n.Name)
		return n.Text
	case KindParagraph:
		// block content inside a cell or item, flattened by the caller
		return r.inlineChildren(n) + "\n"
	default:
		return r.inlineChildren(n)
	}
}

// span wraps the inner text in the given marker; nested spans of the
// same kind collapse instead of double-wrapping.
func (r *renderer) span(n *Node, marker string, active *bool) string {
	if *active {
		return r.inlineChildren(n)
	}
	*active = true
	inner := strings.TrimSpace(r.inlineChildren(n))
	*active = false

	if inner == "" {
		return ""
	}
	return marker + inner + marker
}

func (r *renderer) link(n *Node) string {
	label := strings.TrimSpace(r.inlineChildren(n))
	target := n.Target

	if target == "" {
		return label
	}
	if pid := pageIDFromURL(target); pid != "" {
		if label == "" {
			label = target
		}
		return "[" + label + "](" + PagePlaceholder(pid) + ")"
	}
	// a link whose text is its own target reads better as plain text
	if label == target || label == "" {
		return target
	}
	return "[" + label + "](" + target + ")"
}

func (r *renderer) image(n *Node) string {
	idx := len(r.assets)
	ref := AssetRef{
		URL:         n.Target,
		Name:        fmt.Sprintf("%v-img-%v", r.pageSlug, idx+1),
		Ext:         extFromURL(n.Target),
		Placeholder: assetPlaceholder(idx),
	}
	r.assets = append(r.assets, ref)

	return "![" + n.Alt + "](" + ref.Placeholder + ")"
}

// pageIDFromURL extracts the target page identifier from links that
// point at another page of the same notebook.
func pageIDFromURL(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return u.Query().Get("page-id")
}

// extFromURL guesses a file extension from the locator path.
func extFromURL(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" || ext == "." || len(ext) > 6 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}

// flattenLine turns possibly multi-line content into a single line.
func flattenLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanup collapses runs of blank lines, trims the edges and makes sure
// the text ends with a single newline.
func cleanup(s string) string {
	lines := strings.Split(s, "\n")
	cleaned := make([]string, 0, len(lines))
	prevBlank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if !prevBlank {
				cleaned = append(cleaned, "")
			}
			prevBlank = true
			continue
		}
		cleaned = append(cleaned, line)
		prevBlank = false
	}
	for len(cleaned) > 0 && cleaned[0] == "" {
		cleaned = cleaned[1:]
	}
	for len(cleaned) > 0 && cleaned[len(cleaned)-1] == "" {
		cleaned = cleaned[:len(cleaned)-1]
	}
	if len(cleaned) == 0 {
		return ""
	}
	return strings.Join(cleaned, "\n") + "\n"
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, c := range strings.ToLower(s) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
			lastDash = false
		default:
			if !lastDash {
				b.WriteString("-")
			}
			lastDash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "page"
	}
	return slug
}
