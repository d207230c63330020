package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/akeil/notemd"
	"github.com/akeil/notemd/internal/logging"
)

// DefaultBaseURL is the production endpoint of the notebook service.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// API endpoints
const (
	epNotebooks = "/me/onenote/notebooks"
	epSections  = "/me/onenote/notebooks/%v/sections"
	epPages     = "/me/onenote/sections/%v/pages"
	epContent   = "/me/onenote/pages/%v/content"
)

// pageQuery limits the page listing to the fields we need and asks the
// service to include the nesting level.
const pageQuery = "pagelevel=true&$top=100&$select=id,title,level,order,contentUrl,createdDateTime,lastModifiedDateTime"

// maxRestarts bounds how often a paginated walk is restarted after its
// continuation token expired mid-walk.
const maxRestarts = 2

// Client speaks the notebook service's request vocabulary on top of a
// Session: list notebooks/sections/pages, fetch page content, fetch
// asset bytes.
type Client struct {
	session *Session
	base    string
}

// NewClient creates a client for the production service.
func NewClient(session *Session) *Client {
	return &Client{
		session: session,
		base:    DefaultBaseURL,
	}
}

// WithBaseURL points the client at a different service endpoint.
func (c *Client) WithBaseURL(base string) *Client {
	c.base = base
	return c
}

// Notebooks lists all notebooks.
func (c *Client) Notebooks(ctx context.Context) ([]notemd.Notebook, error) {
	raw, err := c.collect(ctx, c.base+epNotebooks, nil)
	if err != nil {
		return nil, notemd.Wrap(err, "cannot list notebooks")
	}

	nbs := make([]notemd.Notebook, 0, len(raw))
	for _, r := range raw {
		var item notebookItem
		err = json.Unmarshal(r, &item)
		if err != nil {
			return nil, notemd.Wrap(err, "cannot read notebook record")
		}
		nbs = append(nbs, notemd.Notebook{
			ID:   item.ID,
			Name: item.DisplayName,
		})
	}
	return nbs, nil
}

// FindNotebook resolves a notebook by display name.
// The match is case-sensitive and exact; no match is a NotFound error.
func (c *Client) FindNotebook(ctx context.Context, name string) (notemd.Notebook, error) {
	nbs, err := c.Notebooks(ctx)
	if err != nil {
		return notemd.Notebook{}, err
	}
	for _, nb := range nbs {
		if nb.Name == name {
			return nb, nil
		}
	}
	return notemd.Notebook{}, notemd.NewNotFound("notebook %q", name)
}

// Sections lists the sections of a notebook.
func (c *Client) Sections(ctx context.Context, notebookID string) ([]notemd.Section, error) {
	ep := fmt.Sprintf(epSections, url.PathEscape(notebookID))
	raw, err := c.collect(ctx, c.base+ep, nil)
	if err != nil {
		return nil, notemd.Wrap(err, "cannot list sections of notebook %q", notebookID)
	}

	secs := make([]notemd.Section, 0, len(raw))
	for _, r := range raw {
		var item sectionItem
		err = json.Unmarshal(r, &item)
		if err != nil {
			return nil, notemd.Wrap(err, "cannot read section record")
		}
		secs = append(secs, notemd.Section{
			ID:         item.ID,
			Name:       item.DisplayName,
			NotebookID: notebookID,
		})
	}
	return secs, nil
}

// FindSection resolves a section by display name within a notebook.
// The match is case-sensitive and exact; no match is a NotFound error.
func (c *Client) FindSection(ctx context.Context, notebookID, name string) (notemd.Section, error) {
	secs, err := c.Sections(ctx, notebookID)
	if err != nil {
		return notemd.Section{}, err
	}
	for _, s := range secs {
		if s.Name == name {
			return s, nil
		}
	}
	return notemd.Section{}, notemd.NewNotFound("section %q", name)
}

// Pages lists all pages of a section, following pagination to the end.
//
// The service reports each page's nesting level and order key; the
// parent reference is derived here: a page at level n is the child of
// the most recent page at level n-1 in the listing order. Pages with no
// such predecessor are top-level.
func (c *Client) Pages(ctx context.Context, sectionID string) ([]notemd.Page, error) {
	ep := fmt.Sprintf(epPages, url.PathEscape(sectionID))
	header := http.Header{}
	header.Set("ConsistencyLevel", "eventual")

	raw, err := c.collect(ctx, c.base+ep+"?"+pageQuery, header)
	if err != nil {
		return nil, notemd.Wrap(err, "cannot list pages of section %q", sectionID)
	}

	pages := make([]notemd.Page, 0, len(raw))
	lastAtLevel := make(map[int]string)
	for _, r := range raw {
		var item pageItem
		err = json.Unmarshal(r, &item)
		if err != nil {
			return nil, notemd.Wrap(err, "cannot read page record")
		}

		parentID := ""
		if item.Level > 0 {
			parentID = lastAtLevel[item.Level-1]
		}
		lastAtLevel[item.Level] = item.ID

		p := notemd.Page{
			ID:         item.ID,
			Title:      item.Title,
			ParentID:   parentID,
			SectionID:  sectionID,
			Level:      item.Level,
			Order:      item.Order,
			ContentURL: item.ContentURL,
		}
		if item.Created != nil {
			p.Created = item.Created.Time
		}
		if item.Modified != nil {
			p.Modified = item.Modified.Time
		}
		pages = append(pages, p)
	}

	logging.Debug("section %q has %d pages", sectionID, len(pages))
	return pages, nil
}

// PageContent retrieves the rich-content document for a page.
func (c *Client) PageContent(ctx context.Context, page notemd.Page) ([]byte, error) {
	u := page.ContentURL
	if u == "" {
		u = c.base + fmt.Sprintf(epContent, url.PathEscape(page.ID))
	}

	res, err := c.session.Get(ctx, u, nil)
	if err != nil {
		return nil, notemd.Wrap(err, "cannot fetch content of page %q", page.ID)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, notemd.Wrap(err, "cannot read content of page %q", page.ID)
	}
	return data, nil
}

// Asset retrieves the raw bytes of an asset (image or attachment)
// together with the reported content type.
func (c *Client) Asset(ctx context.Context, assetURL string) ([]byte, string, error) {
	res, err := c.session.Get(ctx, assetURL, nil)
	if err != nil {
		return nil, "", err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", err
	}
	return data, res.Header.Get("Content-Type"), nil
}

// collect walks a paginated list endpoint, following continuation links
// until none remain, and returns the concatenated items.
//
// If a continuation link expires mid-walk, the walk restarts from the
// first page (bounded by maxRestarts) and items already seen are
// deduplicated by identifier. The result is all-or-nothing: any
// unrecovered failure returns an error and no items.
func (c *Client) collect(ctx context.Context, first string, header http.Header) ([]json.RawMessage, error) {
	items := make([]json.RawMessage, 0)
	seen := make(map[string]bool)

	restarts := 0
	next := first
	for {
		res, err := c.session.Get(ctx, next, header)
		if err != nil {
			if isExpiredContinuation(err) && next != first && restarts < maxRestarts {
				restarts++
				next = first
				logging.Warning("continuation link expired, restarting walk (%d/%d)", restarts, maxRestarts)
				continue
			}
			return nil, err
		}

		var env listEnvelope
		err = json.NewDecoder(res.Body).Decode(&env)
		res.Body.Close()
		if err != nil {
			return nil, notemd.Wrap(err, "cannot decode list response")
		}

		for _, r := range env.Value {
			var id ident
			err = json.Unmarshal(r, &id)
			if err != nil {
				return nil, notemd.Wrap(err, "cannot decode list item")
			}
			if id.ID != "" && seen[id.ID] {
				continue
			}
			seen[id.ID] = true
			items = append(items, r)
		}

		if env.NextLink == "" {
			return items, nil
		}
		next = env.NextLink
	}
}

// isExpiredContinuation tells if an error indicates that a continuation
// link is no longer valid on the server.
func isExpiredContinuation(err error) bool {
	var s statusError
	return errors.As(err, &s) && s.code == http.StatusGone
}
