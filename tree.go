package notemd

import "sort"

// PageNode is one entry in the page tree of a section.
type PageNode struct {
	Page     Page
	Parent   *PageNode
	Children []*PageNode
}

func newPageNode(p Page) *PageNode {
	return &PageNode{
		Page:     p,
		Children: make([]*PageNode, 0),
	}
}

func (n *PageNode) addChild(child *PageNode) {
	n.Children = append(n.Children, child)
	child.Parent = n
}

// Walk visits this node and all of its descendants, depth-first.
// It stops at the first error returned by the visitor.
func (n *PageNode) Walk(visit func(*PageNode) error) error {
	err := visit(n)
	if err != nil {
		return err
	}
	for _, c := range n.Children {
		err = c.Walk(visit)
		if err != nil {
			return err
		}
	}
	return nil
}

// PageTree is the forest of pages for one section.
type PageTree struct {
	Section Section
	Roots   []*PageNode
}

// Walk visits every node in the tree, depth-first in sibling order.
func (t *PageTree) Walk(visit func(*PageNode) error) error {
	for _, r := range t.Roots {
		err := r.Walk(visit)
		if err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of pages in the tree.
func (t *PageTree) Count() int {
	n := 0
	t.Walk(func(*PageNode) error {
		n++
		return nil
	})
	return n
}

// BuildTree assembles the flat page records of one section into a forest.
//
// Pages are indexed by ID and attached to their parent via ParentID; an
// empty ParentID makes a root. A page whose parent is unknown becomes a
// root as well. Pages on a cyclic parent chain (including a page that is
// its own parent) are excluded from the tree; each such page is reported
// as a MalformedHierarchy warning while its siblings remain usable.
//
// Siblings are ordered by the order key, pages without one last, ties
// broken by ID.
func BuildTree(section Section, pages []Page) (*PageTree, []error) {
	var warnings []error

	byID := make(map[string]Page, len(pages))
	for _, p := range pages {
		byID[p.ID] = p
	}

	// Reject pages whose parent chain revisits an ID.
	cyclic := make(map[string]bool)
	for _, p := range pages {
		seen := map[string]bool{p.ID: true}
		cur := p
		for cur.ParentID != "" {
			if seen[cur.ParentID] {
				cyclic[p.ID] = true
				warnings = append(warnings, NewMalformedHierarchy(section.ID,
					"page %q has a cyclic parent chain", p.ID))
				break
			}
			parent, ok := byID[cur.ParentID]
			if !ok {
				break
			}
			seen[parent.ID] = true
			cur = parent
		}
	}

	nodes := make(map[string]*PageNode, len(pages))
	for _, p := range pages {
		if !cyclic[p.ID] {
			nodes[p.ID] = newPageNode(p)
		}
	}

	tree := &PageTree{
		Section: section,
		Roots:   make([]*PageNode, 0),
	}
	for _, p := range pages {
		n, ok := nodes[p.ID]
		if !ok {
			continue
		}
		parent, ok := nodes[p.ParentID]
		if p.ParentID == "" || !ok {
			tree.Roots = append(tree.Roots, n)
			continue
		}
		parent.addChild(n)
	}

	sortSiblings(tree.Roots)
	for _, n := range nodes {
		sortSiblings(n.Children)
	}

	return tree, warnings
}

func sortSiblings(nodes []*PageNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Page.Less(nodes[j].Page)
	})
}
