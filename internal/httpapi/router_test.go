package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promoreel/internal/adapters/storage/localfs"
	"promoreel/internal/catalog"
	"promoreel/internal/job"
	"promoreel/internal/render"
	"promoreel/internal/staging"
	"promoreel/internal/video"
)

const fakeRenderer = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output-path) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
printf 'rendered' > "$out"
`

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, 200, res.StatusCode)
	body := decodeBody(t, res)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "promoreel-api", body["service"])
}

func TestHealth_DeepReportsStorageProvider(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/health?deep=true")
	require.NoError(t, err)
	defer res.Body.Close()

	body := decodeBody(t, res)
	checks, ok := body["checks"].(map[string]any)
	require.True(t, ok)
	storage, ok := checks["storage"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "localfs", storage["provider"])
}

func TestGetVideoStatus_UnknownProduct(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/api/video/status/nobody")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, 200, res.StatusCode)
	body := decodeBody(t, res)
	assert.Equal(t, "not_found", body["status"])
	assert.Equal(t, "nobody", body["productId"])
}

func TestGetVideoStatus_InvalidIdentifier(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/api/video/status/bad%20id")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, 400, res.StatusCode)
	body := decodeBody(t, res)
	assert.Equal(t, false, body["ok"])
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
}

func TestPostVideoRender_FullLifecycle(t *testing.T) {
	srv, dataRoot := newTestServer(t)
	defer srv.Close()

	res := postRender(t, srv.URL, renderForm{
		productID: "42",
		audio:     "track.mp3",
		images:    []string{"a.jpg"},
	})
	defer res.Body.Close()
	assert.Equal(t, 202, res.StatusCode)
	body := decodeBody(t, res)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "running", body["status"])

	p := job.PathsFor(dataRoot, "42")
	require.Eventually(t, func() bool {
		return job.Resolve(p, "http://x").Status == job.StatusDone
	}, 10*time.Second, 20*time.Millisecond)

	statusRes, err := http.Get(srv.URL + "/api/video/status/42")
	require.NoError(t, err)
	defer statusRes.Body.Close()
	statusBody := decodeBody(t, statusRes)
	assert.Equal(t, "done", statusBody["status"])
	fileURL, ok := statusBody["fileUrl"].(string)
	require.True(t, ok)
	assert.Contains(t, fileURL, "/files/42/video.mp4")

	fileRes, err := http.Get(srv.URL + "/files/42/video.mp4")
	require.NoError(t, err)
	defer fileRes.Body.Close()
	assert.Equal(t, 200, fileRes.StatusCode)
	data, err := io.ReadAll(fileRes.Body)
	require.NoError(t, err)
	assert.Equal(t, "rendered", string(data))
}

func TestPostVideoRender_Idempotent(t *testing.T) {
	srv, dataRoot := newTestServer(t)
	defer srv.Close()

	first := postRender(t, srv.URL, renderForm{
		productID: "77",
		audio:     "track.mp3",
		images:    []string{"a.jpg"},
	})
	first.Body.Close()

	p := job.PathsFor(dataRoot, "77")
	require.Eventually(t, func() bool {
		return job.Resolve(p, "http://x").Status == job.StatusDone
	}, 10*time.Second, 20*time.Millisecond)

	// Re-POSTing a finished job reports done with 200 and no new inputs.
	second := postRender(t, srv.URL, renderForm{productID: "77"})
	defer second.Body.Close()
	assert.Equal(t, 200, second.StatusCode)
	body := decodeBody(t, second)
	assert.Equal(t, "done", body["status"])
}

func TestPostVideoRender_MissingProductID(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	res := postRender(t, srv.URL, renderForm{audio: "track.mp3", images: []string{"a.jpg"}})
	defer res.Body.Close()

	assert.Equal(t, 400, res.StatusCode)
	body := decodeBody(t, res)
	assert.Equal(t, false, body["ok"])
}

func TestPostVideoRender_MissingAudio(t *testing.T) {
	srv, dataRoot := newTestServer(t)
	defer srv.Close()

	res := postRender(t, srv.URL, renderForm{productID: "55", images: []string{"a.jpg"}})
	defer res.Body.Close()

	assert.Equal(t, 404, res.StatusCode)
	assert.False(t, job.Locked(job.PathsFor(dataRoot, "55")))
}

func TestServeVideoFile_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/files/missing/video.mp4")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, 404, res.StatusCode)
	body := decodeBody(t, res)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "NOT_FOUND", errObj["code"])
}

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	dataRoot := t.TempDir()
	scriptPath := filepath.Join(t.TempDir(), "renderer.sh")
	require.NoError(t, os.WriteFile(scriptPath, []byte(fakeRenderer), 0o755))

	stager := staging.New(t.TempDir(), catalog.NewClient("", 0), nil)
	supervisor := render.NewSupervisor(render.Deps{
		Command:       []string{"/bin/sh", scriptPath},
		AssetsDir:     t.TempDir(),
		PublicBaseURL: "http://localhost:8080",
	})
	svc := video.NewService(video.Deps{
		DataRoot:      dataRoot,
		PublicBaseURL: "http://localhost:8080",
		Stager:        stager,
		Supervisor:    supervisor,
	})

	router := NewRouter(Deps{
		Video:  svc,
		Mirror: localfs.New(t.TempDir()),
	})
	return httptest.NewServer(router), dataRoot
}

type renderForm struct {
	productID string
	audio     string
	captions  string
	images    []string
}

func postRender(t *testing.T, baseURL string, form renderForm) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if form.productID != "" {
		require.NoError(t, w.WriteField("productId", form.productID))
	}
	if form.audio != "" {
		fw, err := w.CreateFormFile("audio", form.audio)
		require.NoError(t, err)
		_, err = fw.Write([]byte("audio"))
		require.NoError(t, err)
	}
	if form.captions != "" {
		fw, err := w.CreateFormFile("captions", form.captions)
		require.NoError(t, err)
		_, err = fw.Write([]byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n"))
		require.NoError(t, err)
	}
	for _, name := range form.images {
		fw, err := w.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("frame"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	res, err := http.Post(baseURL+"/api/video/render", w.FormDataContentType(), &buf)
	require.NoError(t, err)
	return res
}

func decodeBody(t *testing.T, res *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return body
}
