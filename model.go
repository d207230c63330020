package notemd

import "time"

// Notebook is the top-level named container of sections.
// It is resolved once per run by display name.
type Notebook struct {
	ID   string
	Name string
}

// Section is a named container of pages within a notebook.
type Section struct {
	ID         string
	Name       string
	NotebookID string
}

// Page is the metadata record for one rich-content document.
//
// ParentID refers to another page in the same section; an empty
// ParentID marks a top-level page. Order is the service-reported
// sibling order key and may be absent (nil).
type Page struct {
	ID         string
	Title      string
	ParentID   string
	SectionID  string
	Level      int
	Order      *int
	ContentURL string
	Created    time.Time
	Modified   time.Time
}

// Less is the sibling ordering used throughout: by order key,
// pages without an order key after those with one, ties by ID.
func (p Page) Less(other Page) bool {
	switch {
	case p.Order != nil && other.Order == nil:
		return true
	case p.Order == nil && other.Order != nil:
		return false
	case p.Order != nil && other.Order != nil && *p.Order != *other.Order:
		return *p.Order < *other.Order
	}
	return p.ID < other.ID
}
