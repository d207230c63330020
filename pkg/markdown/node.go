package markdown

// Kind identifies the type of a content node.
//
// The set is closed: everything the parser does not recognize becomes
// KindGeneric and degrades to plain text when rendered.
type Kind int

const (
	KindDocument Kind = iota
	KindParagraph
	KindHeading
	KindList
	KindListItem
	KindTable
	KindTableRow
	KindTableCell
	KindEmphasis
	KindStrong
	KindImage
	KindLink
	KindBreak
	KindText
	KindGeneric
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindParagraph:
		return "paragraph"
	case KindHeading:
		return "heading"
	case KindList:
		return "list"
	case KindListItem:
		return "list-item"
	case KindTable:
		return "table"
	case KindTableRow:
		return "table-row"
	case KindTableCell:
		return "table-cell"
	case KindEmphasis:
		return "emphasis"
	case KindStrong:
		return "strong"
	case KindImage:
		return "image"
	case KindLink:
		return "link"
	case KindBreak:
		return "break"
	case KindText:
		return "text"
	default:
		return "generic"
	}
}

// Node is one typed entry in a parsed content document.
// Every node has a single parent, except the document root.
type Node struct {
	Kind     Kind
	Parent   *Node
	Children []*Node

	// Text is set for KindText nodes.
	Text string
	// Level is set for KindHeading (1-based, unclamped).
	Level int
	// Ordered is set for KindList.
	Ordered bool
	// Header is set for KindTableCell nodes in the header row.
	Header bool
	// Target is the href of a KindLink or the remote source of a KindImage.
	Target string
	// Alt is the alternative text of a KindImage.
	Alt string
	// Block marks a KindImage that stands on its own rather than inline.
	Block bool
	// Name is the source element name, kept for KindGeneric diagnostics.
	Name string
}

func (n *Node) addChild(child *Node) {
	n.Children = append(n.Children, child)
	child.Parent = n
}

// Document is the parsed representation of one page's rich content.
type Document struct {
	Root *Node
}
