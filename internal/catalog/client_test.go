package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promoreel/internal/pkg/errors"
)

func TestProductImages_ExtractsNormalizesDedupes(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/42", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"product": {
				"title": "Gadget",
				"gallery": [
					{"url": "/media/a.jpg"},
					{"url": "` + srv.URL + `/media/b.png?size=large"},
					{"url": "/media/a.jpg"},
					{"thumb": "not-an-image"},
					{"video": "/media/clip.mp4"}
				],
				"cover": {"image": "/media/c.webp"}
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	refs, err := c.ProductImages(context.Background(), "42")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		srv.URL + "/media/c.webp",
		srv.URL + "/media/a.jpg",
		srv.URL + "/media/b.png?size=large",
	}, refs)
	assert.Len(t, refs, 3, "duplicates must be dropped")
}

func TestProductImages_Deterministic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"b": "/2.jpg", "a": "/1.jpg", "c": "/3.jpg"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	first, err := c.ProductImages(context.Background(), "42")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := c.ProductImages(context.Background(), "42")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, []string{srv.URL + "/1.jpg", srv.URL + "/2.jpg", srv.URL + "/3.jpg"}, first)
}

func TestProductImages_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.ProductImages(context.Background(), "42")
	require.Error(t, err)
	assert.Equal(t, errors.CodeUpstream, errors.GetCode(err))
	assert.Equal(t, 502, errors.GetHTTPStatus(err))
}

func TestProductImages_ProductNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.ProductImages(context.Background(), "42")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestProductImages_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"product": [`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.ProductImages(context.Background(), "42")
	require.Error(t, err)
	assert.Equal(t, errors.CodeUpstream, errors.GetCode(err))
}

func TestProductImages_Unconfigured(t *testing.T) {
	c := NewClient("", 0)
	assert.False(t, c.Configured())

	_, err := c.ProductImages(context.Background(), "42")
	require.Error(t, err)
}

func TestImageExt(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"/media/a.jpg", ".jpg"},
		{"/media/a.JPG", ".jpg"},
		{"/media/b.png?size=large", ".png"},
		{"/media/c.webp#frag", ".webp"},
		{"/media/clip.mp4", ""},
		{"plain text", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ImageExt(tt.ref), "ref %q", tt.ref)
	}
}
