package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akeil/notemd"
)

func testClient(srv *httptest.Server) *Client {
	return NewClient(testSession(1)).WithBaseURL(srv.URL)
}

// notebookServer serves the notebook list paginated with the given
// page size, using continuation links.
func notebookServer(t *testing.T, names []string, pageSize int) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != epNotebooks {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		end := skip + pageSize
		if end > len(names) {
			end = len(names)
		}

		items := make([]map[string]string, 0)
		for i := skip; i < end; i++ {
			items = append(items, map[string]string{
				"id":          fmt.Sprintf("nb-%d", i),
				"displayName": names[i],
			})
		}

		env := map[string]interface{}{"value": items}
		if end < len(names) {
			env["@odata.nextLink"] = fmt.Sprintf("%v%v?skip=%d", srv.URL, epNotebooks, end)
		}
		json.NewEncoder(w).Encode(env)
	}))
	return srv
}

func TestNotebooksPagination(t *testing.T) {
	names := []string{"Alpha", "Beta", "Gamma", "Delta", "Epsilon"}

	// the assembled result must not depend on the service's page size
	for _, size := range []int{1, 2, 5, 100} {
		srv := notebookServer(t, names, size)
		c := testClient(srv)

		nbs, err := c.Notebooks(context.Background())
		srv.Close()
		require.NoError(t, err)

		require.Len(t, nbs, len(names))
		for i, nb := range nbs {
			assert.Equal(t, names[i], nb.Name)
		}
	}
}

func TestFindNotebook(t *testing.T) {
	srv := notebookServer(t, []string{"Work", "Private"}, 100)
	defer srv.Close()
	c := testClient(srv)

	nb, err := c.FindNotebook(context.Background(), "Private")
	require.NoError(t, err)
	assert.Equal(t, "nb-1", nb.ID)

	// exact, case-sensitive match only
	_, err = c.FindNotebook(context.Background(), "private")
	assert.True(t, notemd.IsNotFound(err))
}

func TestCollectRestartAfterExpiry(t *testing.T) {
	contHits := 0
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case epNotebooks:
			fmt.Fprintf(w, `{
				"value": [{"id": "a", "displayName": "A"}, {"id": "b", "displayName": "B"}],
				"@odata.nextLink": "%v/continue"
			}`, srv.URL)
		case "/continue":
			contHits++
			if contHits == 1 {
				// continuation token expired mid-walk
				w.WriteHeader(http.StatusGone)
				return
			}
			fmt.Fprint(w, `{"value": [{"id": "b", "displayName": "B"}, {"id": "c", "displayName": "C"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := testClient(srv)
	nbs, err := c.Notebooks(context.Background())
	require.NoError(t, err)

	// the walk restarted and items seen twice appear once
	ids := make([]string, 0)
	for _, nb := range nbs {
		ids = append(ids, nb.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestCollectExpiryOnFirstPageIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	c := testClient(srv)
	_, err := c.Notebooks(context.Background())
	assert.Error(t, err)
}

func TestPagesParentDerivation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eventual", r.Header.Get("ConsistencyLevel"))
		assert.Equal(t, "true", r.URL.Query().Get("pagelevel"))

		fmt.Fprint(w, `{"value": [
			{"id": "a", "title": "A", "level": 0, "order": 0},
			{"id": "b", "title": "B", "level": 1, "order": 1},
			{"id": "c", "title": "C", "level": 2, "order": 2},
			{"id": "d", "title": "D", "level": 1, "order": 3},
			{"id": "e", "title": "E", "level": 0, "order": 4}
		]}`)
	}))
	defer srv.Close()

	c := testClient(srv)
	pages, err := c.Pages(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, pages, 5)

	// a page at level n is the child of the last preceding page at n-1
	parents := make(map[string]string)
	for _, p := range pages {
		parents[p.ID] = p.ParentID
	}
	assert.Equal(t, "", parents["a"])
	assert.Equal(t, "a", parents["b"])
	assert.Equal(t, "b", parents["c"])
	assert.Equal(t, "a", parents["d"])
	assert.Equal(t, "", parents["e"])
}

func TestPagesTimestamps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"value": [
			{"id": "a", "title": "A", "level": 0, "order": 0,
			 "createdDateTime": "2023-04-05T06:07:08.9Z",
			 "lastModifiedDateTime": "2023-04-06T00:00:00Z"}
		]}`)
	}))
	defer srv.Close()

	c := testClient(srv)
	pages, err := c.Pages(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, pages, 1)

	assert.Equal(t, 2023, pages[0].Created.Year())
	assert.Equal(t, 6, pages[0].Modified.Day())
}

func TestPageContent(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/custom":
			fmt.Fprint(w, "<html><body><p>custom</p></body></html>")
		case fmt.Sprintf(epContent, "p1"):
			fmt.Fprint(w, "<html><body><p>default</p></body></html>")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := testClient(srv)

	// the service-provided content link wins when present
	data, err := c.PageContent(context.Background(), notemd.Page{ID: "p1", ContentURL: srv.URL + "/custom"})
	require.NoError(t, err)
	assert.Contains(t, string(data), "custom")

	data, err = c.PageContent(context.Background(), notemd.Page{ID: "p1"})
	require.NoError(t, err)
	assert.Contains(t, string(data), "default")
}

func TestAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	}))
	defer srv.Close()

	c := testClient(srv)
	data, contentType, err := c.Asset(context.Background(), srv.URL+"/res/x/$value")
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)
	assert.Len(t, data, 4)
}
