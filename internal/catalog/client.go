// Package catalog is the client for the upstream product catalog, used to
// auto-source product images when a submission does not upload any.
package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"promoreel/internal/pkg/errors"
)

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Configured reports whether a catalog base URL was provided.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// ProductImages fetches the catalog document for a product and extracts its
// image references. The document shape is not under our control, so the
// extraction walks the decoded JSON for anything that looks like an image
// URL, resolves relative references against the catalog base, and
// deduplicates while preserving document order.
func (c *Client) ProductImages(ctx context.Context, productID string) ([]string, error) {
	if !c.Configured() {
		return nil, errors.New(errors.CodeUpstream, "catalog base URL not configured")
	}

	endpoint := c.baseURL + "/products/" + url.PathEscape(productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "catalog.request", "failed to build catalog request")
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUpstream, "catalog.fetch", "catalog fetch failed")
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, errors.NotFound("product", productID)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, errors.Newf(errors.CodeUpstream, "catalog http %d", res.StatusCode)
	}

	var doc any
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUpstream, "catalog.decode", "malformed catalog response")
	}

	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "catalog.base", "invalid catalog base URL")
	}

	refs := collectImageRefs(doc, nil)
	out := make([]string, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		abs, ok := normalizeRef(base, ref)
		if !ok {
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	return out, nil
}

// FetchImage downloads one image reference.
func (c *Client) FetchImage(ctx context.Context, imageURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "catalog.image", "failed to build image request")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUpstream, "catalog.image", "image fetch failed")
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		res.Body.Close()
		return nil, errors.Newf(errors.CodeUpstream, "image fetch http %d for %s", res.StatusCode, imageURL)
	}
	return res.Body, nil
}

// ImageExt returns the lowercased extension of an image reference, with the
// query string stripped. Empty when the reference has no recognized extension.
func ImageExt(ref string) string {
	trimmed := ref
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	ext := strings.ToLower(path.Ext(trimmed))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return ext
	}
	return ""
}

// collectImageRefs walks the decoded document depth-first. Map keys are
// visited in sorted order so extraction is deterministic.
func collectImageRefs(v any, acc []string) []string {
	switch t := v.(type) {
	case string:
		if ImageExt(t) != "" {
			acc = append(acc, t)
		}
	case []any:
		for _, item := range t {
			acc = collectImageRefs(item, acc)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			acc = collectImageRefs(t[k], acc)
		}
	}
	return acc
}

func normalizeRef(base *url.URL, ref string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", false
	}
	if !u.IsAbs() {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}
