package export

import (
	"bytes"
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/akeil/notemd"
	"github.com/akeil/notemd/internal/logging"
	"github.com/akeil/notemd/pkg/markdown"
)

// DefaultPageWorkers bounds the per-section page conversion pool.
const DefaultPageWorkers = 5

// Service is the part of the notebook service client the exporter uses.
type Service interface {
	FindNotebook(ctx context.Context, name string) (notemd.Notebook, error)
	Sections(ctx context.Context, notebookID string) ([]notemd.Section, error)
	FindSection(ctx context.Context, notebookID, name string) (notemd.Section, error)
	Pages(ctx context.Context, sectionID string) ([]notemd.Page, error)
	PageContent(ctx context.Context, page notemd.Page) ([]byte, error)
	Asset(ctx context.Context, url string) ([]byte, string, error)
}

// Exporter runs the fetch-and-transpile pipeline: resolve the notebook,
// list sections and pages, build the page trees, convert every page,
// resolve assets and write the output layout.
type Exporter struct {
	service      Service
	writer       *Writer
	pageWorkers  int
	assetWorkers int
}

// NewExporter creates an exporter writing below the given output root.
func NewExporter(service Service, outDir string) *Exporter {
	return &Exporter{
		service:      service,
		writer:       NewWriter(outDir),
		pageWorkers:  DefaultPageWorkers,
		assetWorkers: DefaultAssetWorkers,
	}
}

// WithWorkers changes the page and asset pool sizes.
func (e *Exporter) WithWorkers(pages, assets int) *Exporter {
	if pages > 0 {
		e.pageWorkers = pages
	}
	if assets > 0 {
		e.assetWorkers = assets
	}
	return e
}

// PageResult is the outcome for one page.
type PageResult struct {
	Page notemd.Page
	// Err is set if the page failed; Pending marks a page that was
	// neither converted nor failed when the run was cancelled.
	Err     error
	Pending bool
}

// SectionReport collects the outcomes for one section.
type SectionReport struct {
	Section notemd.Section
	// Err is set when the whole section could not be processed
	// (e.g. its page listing failed after retries).
	Err error
	// Warnings are non-fatal problems, e.g. pages excluded for a
	// malformed hierarchy.
	Warnings     []error
	Pages        []PageResult
	AssetsFailed int
	FilesWritten int
}

// Summary is the final run report.
type Summary struct {
	Notebook     notemd.Notebook
	Sections     []SectionReport
	PagesDone    int
	PagesFailed  int
	PagesPending int
	AssetsFailed int
}

// Failed tells if any accumulated failure should be reflected in the
// process exit status.
func (s *Summary) Failed() bool {
	if s.PagesFailed > 0 || s.AssetsFailed > 0 || s.PagesPending > 0 {
		return true
	}
	for _, r := range s.Sections {
		if r.Err != nil || len(r.Warnings) > 0 {
			return true
		}
	}
	return false
}

// sectionWork carries one section through the phases of a run.
type sectionWork struct {
	section notemd.Section
	tree    *notemd.PageTree
	report  SectionReport
}

// Run exports the named notebook. An empty sectionName means all
// sections. Credential failures and a missing notebook/section abort
// the run; everything else degrades per page, per asset or per section
// and is reported in the summary.
//
// The run has two phases: first every section's page listing is fetched
// and its tree built, then the pages are converted and written. The
// path table spans all sections of the run, so a page link resolves
// even when its target lives in another section.
//
// On cancellation, in-flight requests are aborted, files already
// written are kept and the summary reports completed vs. pending pages.
func (e *Exporter) Run(ctx context.Context, notebookName, sectionName string) (*Summary, error) {
	nb, err := e.service.FindNotebook(ctx, notebookName)
	if err != nil {
		return nil, err
	}
	logging.Info("found notebook %q (%v)", nb.Name, nb.ID)

	var sections []notemd.Section
	if sectionName != "" {
		sec, err := e.service.FindSection(ctx, nb.ID, sectionName)
		if err != nil {
			return nil, err
		}
		sections = []notemd.Section{sec}
	} else {
		sections, err = e.service.Sections(ctx, nb.ID)
		if err != nil {
			return nil, err
		}
	}

	// independent sections run concurrently; pagination within one
	// section stays sequential
	works := make([]*sectionWork, len(sections))
	group, gctx := errgroup.WithContext(ctx)
	for i, sec := range sections {
		i, sec := i, sec
		group.Go(func() error {
			w, fatal := e.fetchSection(gctx, sec)
			works[i] = w
			return fatal
		})
	}
	err = group.Wait()

	if err == nil && ctx.Err() == nil {
		// one path table over all sections of the run
		paths := make(map[string]string)
		taken := make(map[string]bool)
		for _, w := range works {
			if w.tree == nil {
				continue
			}
			pagePaths(w.tree, sanitizeTitle(w.section.Name), paths, taken)
		}

		group, gctx = errgroup.WithContext(ctx)
		for _, w := range works {
			if w.tree == nil {
				continue
			}
			w := w
			group.Go(func() error {
				return e.convertSection(gctx, w, paths)
			})
		}
		err = group.Wait()
	}

	summary := &Summary{
		Notebook: nb,
		Sections: make([]SectionReport, 0, len(works)),
	}
	for _, w := range works {
		// pages that were never attempted count as pending
		if w.tree != nil && len(w.report.Pages) == 0 {
			w.tree.Walk(func(n *notemd.PageNode) error {
				w.report.Pages = append(w.report.Pages, PageResult{Page: n.Page, Pending: true})
				return nil
			})
		}
		summary.Sections = append(summary.Sections, w.report)
		summary.AssetsFailed += w.report.AssetsFailed
		for _, p := range w.report.Pages {
			switch {
			case p.Pending:
				summary.PagesPending++
			case p.Err != nil:
				summary.PagesFailed++
			default:
				summary.PagesDone++
			}
		}
	}

	if err != nil {
		return summary, err
	}
	if ctx.Err() != nil {
		return summary, ctx.Err()
	}
	return summary, nil
}

// fetchSection lists one section's pages and builds its tree.
// The returned error is non-nil only for run-fatal conditions.
func (e *Exporter) fetchSection(ctx context.Context, sec notemd.Section) (*sectionWork, error) {
	w := &sectionWork{section: sec, report: SectionReport{Section: sec}}

	pages, err := e.service.Pages(ctx, sec.ID)
	if err != nil {
		if notemd.IsUnauthenticated(err) {
			return w, err
		}
		w.report.Err = err
		return w, nil
	}

	tree, warnings := notemd.BuildTree(sec, pages)
	for _, warn := range warnings {
		logging.Warning("%v", warn)
	}
	w.report.Warnings = warnings
	w.tree = tree
	return w, nil
}

// convertSection converts one section's pages, resolves their assets
// and writes the planned files. paths is the run-wide path table.
func (e *Exporter) convertSection(ctx context.Context, w *sectionWork, paths map[string]string) error {
	nodes := make([]*notemd.PageNode, 0, w.tree.Count())
	w.tree.Walk(func(n *notemd.PageNode) error {
		nodes = append(nodes, n)
		return nil
	})

	// convert pages in parallel; each page is independent
	results := make([]PageResult, len(nodes))
	rendered := make([]*renderedPage, len(nodes))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(e.pageWorkers)
	for i, n := range nodes {
		i, n := i, n
		group.Go(func() error {
			rp, err := e.convertPage(gctx, n.Page)
			results[i] = PageResult{Page: n.Page, Err: err}
			if err != nil {
				if notemd.IsUnauthenticated(err) {
					return err
				}
				if errors.Is(err, context.Canceled) || gctx.Err() != nil {
					results[i].Err = nil
					results[i].Pending = true
				}
				return nil
			}
			rendered[i] = rp
			return nil
		})
	}
	err := group.Wait()
	if err != nil {
		w.report.Pages = results
		return err
	}

	// resolve all assets of the section in one bounded pool
	resolver := newAssetResolver(e.service, e.assetWorkers)
	refs := make([]markdown.AssetRef, 0)
	byPage := make(map[string][]int)
	for i, rp := range rendered {
		if rp == nil {
			continue
		}
		for _, ref := range rp.refs {
			byPage[nodes[i].Page.ID] = append(byPage[nodes[i].Page.ID], len(refs))
			refs = append(refs, ref)
		}
	}
	resolved := resolver.resolve(ctx, refs)
	for _, a := range resolved {
		if a.Err != nil {
			w.report.AssetsFailed++
		}
	}

	docs := make(map[string]*renderedPage, len(rendered))
	for i, rp := range rendered {
		if rp == nil {
			continue
		}
		for _, idx := range byPage[nodes[i].Page.ID] {
			rp.assets = append(rp.assets, resolved[idx])
		}
		docs[nodes[i].Page.ID] = rp
	}

	for _, fw := range planSection(w.tree, docs, paths) {
		err = e.writer.Write(fw)
		if err != nil {
			logging.Error("%v", err)
			w.report.Warnings = append(w.report.Warnings, err)
			continue
		}
		w.report.FilesWritten++
	}

	w.report.Pages = results
	return nil
}

// convertPage fetches, parses and renders a single page.
func (e *Exporter) convertPage(ctx context.Context, page notemd.Page) (*renderedPage, error) {
	content, err := e.service.PageContent(ctx, page)
	if err != nil {
		return nil, err
	}

	doc, err := markdown.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, notemd.NewContentParseError(page.ID, err)
	}

	text, refs := markdown.Render(doc, page.ID)
	logging.Debug("converted page %q (%d assets)", page.Title, len(refs))

	return &renderedPage{
		page: page,
		text: text,
		refs: refs,
	}, nil
}
