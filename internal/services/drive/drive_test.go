package drive

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func newTestDrive(t *testing.T, handler http.HandlerFunc) *Drive {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	d, err := NewDrive(context.Background(), srv.Client(), "folder-123", srv.URL+"/")
	require.NoError(t, err)
	return d
}

// TestDrive_StoreMultipartUpload verifies the upload carries JSON metadata
// with the folder parent followed by the text/plain media part.
func TestDrive_StoreMultipartUpload(t *testing.T) {
	var parts []string
	var contentTypes []string
	d := newTestDrive(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/files"), r.URL.Path)
		assert.Equal(t, "multipart", r.URL.Query().Get("uploadType"))
		assert.Equal(t, "id,name,webViewLink", r.URL.Query().Get("fields"))

		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		assert.Equal(t, "multipart/related", mediaType)

		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			data, _ := io.ReadAll(p)
			parts = append(parts, string(data))
			contentTypes = append(contentTypes, p.Header.Get("Content-Type"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"f1","name":"linkedin-post.txt","webViewLink":"https://drive.google.com/file/d/f1/view"}`))
	})

	file, err := d.Store(context.Background(), []byte("Hello LinkedIn"), "linkedin-post.txt")
	require.NoError(t, err)
	assert.Equal(t, File{Name: "linkedin-post.txt", Link: "https://drive.google.com/file/d/f1/view"}, file)

	require.Len(t, parts, 2)
	assert.JSONEq(t, `{"name":"linkedin-post.txt","mimeType":"text/plain","parents":["folder-123"]}`, parts[0])
	assert.Equal(t, "Hello LinkedIn", parts[1])
	assert.True(t, strings.HasPrefix(contentTypes[0], "application/json"))
	assert.True(t, strings.HasPrefix(contentTypes[1], "text/plain"))
}

func TestDrive_StoreAPIError(t *testing.T) {
	d := newTestDrive(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"File not found: folder-123."}}`))
	})

	_, err := d.Store(context.Background(), []byte("x"), "a.txt")
	require.Error(t, err)
	var apiErr *googleapi.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Code)
	assert.Contains(t, err.Error(), "File not found")
}

func TestDrive_StoreRejectsBadFilename(t *testing.T) {
	d := newTestDrive(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})
	_, err := d.Store(context.Background(), []byte("x"), "..")
	assert.Error(t, err)
}

func TestLocal_Store(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "posts")
	file, err := Local{Dir: dir}.Store(context.Background(), []byte("Hello Instagram"), "../instagram-post.txt")
	require.NoError(t, err)
	assert.Equal(t, "instagram-post.txt", file.Name)
	assert.True(t, strings.HasPrefix(file.Link, "file://"))

	data, err := os.ReadFile(filepath.Join(dir, "instagram-post.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Hello Instagram", string(data))
}

func TestLocal_StoreSameNameKeepsBoth(t *testing.T) {
	dir := t.TempDir()
	store := Local{Dir: dir}

	first, err := store.Store(context.Background(), []byte("first run"), "linkedin-post.txt")
	require.NoError(t, err)
	second, err := store.Store(context.Background(), []byte("second run"), "linkedin-post.txt")
	require.NoError(t, err)

	assert.NotEqual(t, first.Link, second.Link)
	assert.Equal(t, "linkedin-post.txt", first.Name)
	assert.Equal(t, "linkedin-post-2.txt", second.Name)

	data, err := os.ReadFile(filepath.Join(dir, first.Name))
	require.NoError(t, err)
	assert.Equal(t, "first run", string(data))
	data, err = os.ReadFile(filepath.Join(dir, second.Name))
	require.NoError(t, err)
	assert.Equal(t, "second run", string(data))
}

func TestLocal_StoreConcurrentSameName(t *testing.T) {
	dir := t.TempDir()
	store := Local{Dir: dir}

	const n = 10
	links := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			file, err := store.Store(context.Background(), []byte("post"), "post.txt")
			assert.NoError(t, err)
			links[i] = file.Link
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, link := range links {
		assert.False(t, seen[link], "duplicate link %s", link)
		seen[link] = true
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

func TestCleanFilename(t *testing.T) {
	for _, bad := range []string{"", "  ", ".", ".."} {
		_, err := CleanFilename(bad)
		assert.Error(t, err, "filename %q", bad)
	}
	name, err := CleanFilename("nested/dir/post.txt")
	require.NoError(t, err)
	assert.Equal(t, "post.txt", name)
}
