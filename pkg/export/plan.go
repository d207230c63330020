package export

import (
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/akeil/notemd"
	"github.com/akeil/notemd/internal/logging"
	"github.com/akeil/notemd/pkg/markdown"
)

// FileWrite is one file to be emitted, with a path relative to the
// output root. Directories are implied by the path.
type FileWrite struct {
	Path string
	Data []byte
}

// renderedPage is a page's transpiled document: first the raw asset
// references from rendering, later the resolved assets for the
// planning pass.
type renderedPage struct {
	page   notemd.Page
	text   string
	refs   []markdown.AssetRef
	assets []ResolvedAsset
}

// pageLinkRe matches a rendered link whose target is an intra-run page
// placeholder: [label]({{page:ID}}).
var pageLinkRe = regexp.MustCompile(`\[([^\]]*)\]\(\{\{page:([^}]+)\}\}\)`)

// planSection emits the files for one section and resolves the
// placeholder tokens left by the transpiler. paths is the path table
// over all sections of the run, so page links may point across
// section boundaries.
//
// Layout: a page without children becomes a single file next to its
// siblings; a page with children additionally becomes a same-named
// directory holding the children, recursively. Assets live in the
// section's images directory.
func planSection(tree *notemd.PageTree, docs map[string]*renderedPage, paths map[string]string) []FileWrite {
	sectionDir := sanitizeTitle(tree.Section.Name)

	writes := make([]FileWrite, 0, len(docs))
	tree.Walk(func(n *notemd.PageNode) error {
		doc, ok := docs[n.Page.ID]
		if !ok {
			// page failed earlier; its children are still written
			return nil
		}
		pagePath := paths[n.Page.ID]

		text := resolvePageLinks(doc.text, pagePath, paths)
		text = resolveAssetRefs(text, pagePath, sectionDir, doc.assets)

		content := "# " + n.Page.Title + "\n\n" + text
		writes = append(writes, FileWrite{
			Path: pagePath,
			Data: []byte(content),
		})

		for _, a := range doc.assets {
			if a.Err != nil || a.Data == nil {
				continue
			}
			writes = append(writes, FileWrite{
				Path: sectionDir + "/" + a.Path,
				Data: a.Data,
			})
		}
		return nil
	})

	return writes
}

// pagePaths assigns every page in the tree its output path, relative
// to the output root, recording into the shared path and collision
// tables. Pages with the same sanitized title in the same directory
// get a numeric suffix for uniqueness, also across sections whose
// names sanitize to the same directory.
func pagePaths(tree *notemd.PageTree, sectionDir string, paths map[string]string, taken map[string]bool) {
	var assign func(n *notemd.PageNode, dir string)
	assign = func(n *notemd.PageNode, dir string) {
		base := sanitizeTitle(n.Page.Title)
		name := base
		for i := 2; taken[dir+"/"+name+".md"]; i++ {
			name = base + "-" + strconv.Itoa(i)
		}
		taken[dir+"/"+name+".md"] = true
		paths[n.Page.ID] = dir + "/" + name + ".md"

		for _, c := range n.Children {
			assign(c, dir+"/"+name)
		}
	}
	for _, r := range tree.Roots {
		assign(r, sectionDir)
	}
}

// resolvePageLinks replaces intra-run page link placeholders with a
// relative path from this page's file to the target page's file.
// Links to pages outside the run degrade to their label text.
func resolvePageLinks(text, pagePath string, paths map[string]string) string {
	return pageLinkRe.ReplaceAllStringFunc(text, func(m string) string {
		parts := pageLinkRe.FindStringSubmatch(m)
		label, targetID := parts[1], parts[2]

		target, ok := paths[targetID]
		if !ok {
			logging.Warning("link target page %q not in this run, keeping label only", targetID)
			return label
		}
		return "[" + label + "](" + relativePath(pagePath, target) + ")"
	})
}

// resolveAssetRefs replaces asset placeholders with the relative path of
// the extracted file. Unresolved assets keep their remote locator.
func resolveAssetRefs(text, pagePath, sectionDir string, assets []ResolvedAsset) string {
	for _, a := range assets {
		var target string
		if a.Err != nil || a.Data == nil {
			// broken link: point at the remote locator we could not fetch
			target = a.Ref.URL
		} else {
			target = relativePath(pagePath, sectionDir+"/"+a.Path)
		}
		text = strings.ReplaceAll(text, a.Ref.Placeholder, target)
	}
	return text
}

// relativePath computes the path from the directory of one output file
// to another output file. Both are slash-separated and relative to the
// output root.
func relativePath(from, to string) string {
	fromDir := path.Dir(from)
	if fromDir == "." {
		return to
	}

	fromParts := strings.Split(fromDir, "/")
	toParts := strings.Split(to, "/")

	common := 0
	for common < len(fromParts) && common < len(toParts)-1 {
		if fromParts[common] != toParts[common] {
			break
		}
		common++
	}

	var b strings.Builder
	for i := common; i < len(fromParts); i++ {
		b.WriteString("../")
	}
	b.WriteString(strings.Join(toParts[common:], "/"))
	return b.String()
}

// sanitizeTitle makes a display name safe for use as a file name while
// keeping it readable.
var (
	slashes        = strings.NewReplacer("/", "-", "\\", "-")
	multiDash      = regexp.MustCompile(`-+`)
	multiSpace     = regexp.MustCompile(` +`)
	controlChars   = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)
	trimTitleChars = " .-"
)

func sanitizeTitle(title string) string {
	t := slashes.Replace(title)
	t = controlChars.ReplaceAllString(t, "")
	t = multiDash.ReplaceAllString(t, "-")
	t = multiSpace.ReplaceAllString(t, " ")
	t = strings.Trim(t, trimTitleChars)
	if t == "" {
		return "untitled"
	}
	return t
}
