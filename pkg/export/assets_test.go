package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akeil/notemd"
	"github.com/akeil/notemd/pkg/markdown"
)

type fakeAsset struct {
	data        []byte
	contentType string
	err         error
}

type fakeFetcher struct {
	assets map[string]fakeAsset
}

func (f *fakeFetcher) Asset(ctx context.Context, url string) ([]byte, string, error) {
	a, ok := f.assets[url]
	if !ok {
		return nil, "", notemd.NewNotFound("asset %q", url)
	}
	return a.data, a.contentType, a.err
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.White)
	var b bytes.Buffer
	require.NoError(t, png.Encode(&b, img))
	return b.Bytes()
}

func TestResolveAssets(t *testing.T) {
	f := &fakeFetcher{assets: map[string]fakeAsset{
		"https://example.com/1": {data: []byte{1}, contentType: "image/png"},
		"https://example.com/2": {data: []byte{2}, contentType: "image/jpeg"},
	}}
	r := newAssetResolver(f, 2)

	resolved := r.resolve(context.Background(), []markdown.AssetRef{
		{URL: "https://example.com/1", Name: "p-img-1"},
		{URL: "https://example.com/2", Name: "p-img-2"},
	})

	require.Len(t, resolved, 2)
	// order matches the input refs
	assert.Equal(t, "images/p-img-1.png", resolved[0].Path)
	assert.Equal(t, "images/p-img-2.jpg", resolved[1].Path)
	assert.Equal(t, []byte{1}, resolved[0].Data)
}

func TestResolveAssetFailure(t *testing.T) {
	f := &fakeFetcher{assets: map[string]fakeAsset{}}
	r := newAssetResolver(f, 1)

	resolved := r.resolve(context.Background(), []markdown.AssetRef{
		{URL: "https://example.com/missing", Name: "p-img-1"},
	})

	require.Len(t, resolved, 1)
	assert.Nil(t, resolved[0].Data)
	assert.True(t, notemd.IsAssetUnresolved(resolved[0].Err))
}

func TestResolveNameCollision(t *testing.T) {
	f := &fakeFetcher{assets: map[string]fakeAsset{
		"https://example.com/1": {data: []byte{1}, contentType: "image/png"},
		"https://example.com/2": {data: []byte{2}, contentType: "image/png"},
		"https://example.com/3": {data: []byte{3}, contentType: "image/png"},
	}}
	// concurrent workers must not influence which ref gets which suffix
	r := newAssetResolver(f, 3)

	resolved := r.resolve(context.Background(), []markdown.AssetRef{
		{URL: "https://example.com/1", Name: "p-img-1"},
		{URL: "https://example.com/2", Name: "p-img-1"},
		{URL: "https://example.com/3", Name: "p-img-1"},
	})

	// suffixes follow ref order, deterministic across runs
	assert.Equal(t, "images/p-img-1.png", resolved[0].Path)
	assert.Equal(t, "images/p-img-1-2.png", resolved[1].Path)
	assert.Equal(t, "images/p-img-1-3.png", resolved[2].Path)
}

func TestExtensionGuessing(t *testing.T) {
	f := &fakeFetcher{assets: map[string]fakeAsset{
		// content type wins
		"https://example.com/ct": {data: []byte{1}, contentType: "image/webp; charset=binary"},
		// no content type, sniffed from the bytes
		"https://example.com/sniff": {data: pngBytes(t)},
		// neither, the locator extension is used
		"https://example.com/loc": {data: []byte{1}},
		// nothing at all falls back to png
		"https://example.com/none": {data: []byte{1}},
	}}
	r := newAssetResolver(f, 1)

	resolved := r.resolve(context.Background(), []markdown.AssetRef{
		{URL: "https://example.com/ct", Name: "a", Ext: ".gif"},
		{URL: "https://example.com/sniff", Name: "b"},
		{URL: "https://example.com/loc", Name: "c", Ext: ".gif"},
		{URL: "https://example.com/none", Name: "d"},
	})

	assert.Equal(t, "images/a.webp", resolved[0].Path)
	assert.Equal(t, "images/b.png", resolved[1].Path)
	assert.Equal(t, "images/c.gif", resolved[2].Path)
	assert.Equal(t, "images/d.png", resolved[3].Path)
}

func TestExtFromContentType(t *testing.T) {
	assert.Equal(t, ".png", extFromContentType("image/png"))
	assert.Equal(t, ".jpg", extFromContentType("image/jpeg"))
	assert.Equal(t, ".jpg", extFromContentType("image/jpeg; charset=binary"))
	assert.Equal(t, ".svg", extFromContentType("image/svg+xml"))
	assert.Equal(t, "", extFromContentType("application/octet-stream"))
	assert.Equal(t, "", extFromContentType(""))
}

func TestSniffExt(t *testing.T) {
	assert.Equal(t, ".png", sniffExt(pngBytes(t)))
	assert.Equal(t, "", sniffExt([]byte("not an image")))
}

func TestFetchErrorFromService(t *testing.T) {
	f := &fakeFetcher{assets: map[string]fakeAsset{
		"https://example.com/err": {err: errors.New("boom")},
	}}
	r := newAssetResolver(f, 1)

	resolved := r.resolve(context.Background(), []markdown.AssetRef{
		{URL: "https://example.com/err", Name: "a"},
	})
	assert.True(t, notemd.IsAssetUnresolved(resolved[0].Err))
}
