package export

import (
	"bytes"
	"context"
	"image"
	"mime"
	"strconv"

	// registered image formats for content sniffing
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"golang.org/x/sync/errgroup"

	"github.com/akeil/notemd"
	"github.com/akeil/notemd/internal/logging"
	"github.com/akeil/notemd/pkg/markdown"
)

// DefaultAssetWorkers bounds the concurrent asset downloads.
const DefaultAssetWorkers = 6

// assetDir is the per-section directory holding extracted assets.
const assetDir = "images"

// ResolvedAsset is the outcome of fetching one AssetRef.
//
// Path is relative to the section directory (e.g. "images/a-img-1.png").
// A failed fetch leaves Data nil and sets Err; this is non-fatal for
// the page that referenced the asset.
type ResolvedAsset struct {
	Ref  markdown.AssetRef
	Path string
	Data []byte
	Err  error

	// ext is determined during the fetch, the final name later.
	ext string
}

// assetFetcher is the part of the service client the resolver needs.
type assetFetcher interface {
	Asset(ctx context.Context, url string) ([]byte, string, error)
}

// assetResolver fetches asset bytes and assigns collision-free local
// names within one section's asset directory.
type assetResolver struct {
	client  assetFetcher
	workers int
	taken   map[string]bool
}

func newAssetResolver(client assetFetcher, workers int) *assetResolver {
	if workers < 1 {
		workers = DefaultAssetWorkers
	}
	return &assetResolver{
		client:  client,
		workers: workers,
		taken:   make(map[string]bool),
	}
}

// resolve fetches all refs with bounded concurrency.
//
// The result has one entry per ref, in the same order. Local names are
// assigned in ref order after all fetches return, so repeated runs
// produce the same names regardless of fetch completion order.
func (ar *assetResolver) resolve(ctx context.Context, refs []markdown.AssetRef) []ResolvedAsset {
	resolved := make([]ResolvedAsset, len(refs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ar.workers)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			resolved[i] = ar.fetch(ctx, ref)
			return nil
		})
	}
	g.Wait()

	for i := range resolved {
		a := &resolved[i]
		if a.Err != nil {
			continue
		}
		a.Path = assetDir + "/" + ar.claimName(a.Ref.Name, a.ext)
	}

	return resolved
}

func (ar *assetResolver) fetch(ctx context.Context, ref markdown.AssetRef) ResolvedAsset {
	data, contentType, err := ar.client.Asset(ctx, ref.URL)
	if err != nil {
		logging.Warning("failed to fetch asset %q: %v", ref.URL, err)
		return ResolvedAsset{
			Ref: ref,
			Err: notemd.NewAssetUnresolved(ref.URL, err),
		}
	}

	ext := extFromContentType(contentType)
	if ext == "" {
		ext = sniffExt(data)
	}
	if ext == "" {
		ext = ref.Ext
	}
	if ext == "" {
		ext = ".png"
	}

	return ResolvedAsset{
		Ref:  ref,
		Data: data,
		ext:  ext,
	}
}

// claimName reserves a unique filename within the section's asset
// directory, appending a numeric suffix until it no longer collides.
// Not safe for concurrent use; names are claimed in ref order.
func (ar *assetResolver) claimName(base, ext string) string {
	name := base + ext
	for i := 2; ar.taken[name]; i++ {
		name = base + "-" + strconv.Itoa(i) + ext
	}
	ar.taken[name] = true
	return name
}

// extFromContentType maps a response content type to a file extension.
func extFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch mt {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/tiff":
		return ".tiff"
	case "image/bmp":
		return ".bmp"
	case "image/svg+xml":
		return ".svg"
	}
	return ""
}

// sniffExt determines the extension from the image bytes themselves,
// for responses without a usable content type.
func sniffExt(data []byte) string {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	if format == "jpeg" {
		return ".jpg"
	}
	return "." + format
}
