package static_test

import (
	"bytes"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/matryer/is"
	"github.com/matthewmueller/devserve/static"
)

func get(t testing.TB, handler http.Handler, path string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	res := rec.Result()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	return res, string(body)
}

func TestFiles(t *testing.T) {
	is := is.New(t)
	fsys := fstest.MapFS{
		"index.html":       &fstest.MapFile{Data: []byte("<html><body>home</body></html>")},
		"index.css":        &fstest.MapFile{Data: []byte("body { color: red }")},
		"index.js":         &fstest.MapFile{Data: []byte("console.log('hi')")},
		"data.json":        &fstest.MapFile{Data: []byte(`{"a":1}`)},
		"docs/index.html":  &fstest.MapFile{Data: []byte("<html><body>docs</body></html>")},
		"empty/readme.txt": &fstest.MapFile{Data: []byte("no index here")},
		".env":             &fstest.MapFile{Data: []byte("SECRET=1")},
		".git/config":      &fstest.MapFile{Data: []byte("[core]")},
	}
	handler := static.New(slog.Default(), fsys)

	res, body := get(t, handler, "/index.css")
	is.Equal(res.StatusCode, 200)
	is.Equal(res.Header.Get("Content-Type"), "text/css; charset=utf-8")
	is.Equal(body, "body { color: red }")

	res, body = get(t, handler, "/index.js")
	is.Equal(res.StatusCode, 200)
	is.Equal(res.Header.Get("Content-Type"), "text/javascript; charset=utf-8")
	is.Equal(body, "console.log('hi')")

	res, body = get(t, handler, "/data.json")
	is.Equal(res.StatusCode, 200)
	is.Equal(res.Header.Get("Content-Type"), "application/json")
	is.Equal(body, `{"a":1}`)

	// Root serves the index
	res, body = get(t, handler, "/")
	is.Equal(res.StatusCode, 200)
	is.Equal(res.Header.Get("Content-Type"), "text/html; charset=utf-8")
	is.Equal(body, "<html><body>home</body></html>")

	// Directories redirect to the slashed path
	res, body = get(t, handler, "/docs")
	is.Equal(res.StatusCode, 301)
	is.Equal(res.Header.Get("Location"), "docs/")
	is.Equal(body, "")

	res, body = get(t, handler, "/docs/")
	is.Equal(res.StatusCode, 200)
	is.Equal(body, "<html><body>docs</body></html>")

	// No directory listings
	res, body = get(t, handler, "/empty/")
	is.Equal(res.StatusCode, 404)
	is.Equal(body, "")
}

func TestNotFound(t *testing.T) {
	is := is.New(t)
	fsys := fstest.MapFS{
		"index.html":  &fstest.MapFile{Data: []byte("<html></html>")},
		".env":        &fstest.MapFile{Data: []byte("SECRET=1")},
		".git/config": &fstest.MapFile{Data: []byte("[core]")},
	}
	handler := static.New(slog.Default(), fsys)
	for _, path := range []string{
		"/missing.html",
		"/missing/",
		"/nested/missing.css",
		"/../../etc/passwd",
		"/.env",
		"/.git/config",
	} {
		res, body := get(t, handler, path)
		is.Equal(res.StatusCode, 404) // path
		is.Equal(body, "")
	}

	req := httptest.NewRequest(http.MethodPost, "/index.html", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	is.Equal(rec.Code, 404)
	is.Equal(rec.Body.Len(), 0)
}

func TestHead(t *testing.T) {
	is := is.New(t)
	fsys := fstest.MapFS{
		"index.css": &fstest.MapFile{Data: []byte("body { color: red }")},
	}
	handler := static.New(slog.Default(), fsys)
	req := httptest.NewRequest(http.MethodHead, "/index.css", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	is.Equal(rec.Code, 200)
	is.Equal(rec.Header().Get("Content-Type"), "text/css; charset=utf-8")
	is.Equal(rec.Body.Len(), 0)
}

func TestDir(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	data := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00}
	is.NoErr(os.WriteFile(filepath.Join(dir, "logo.png"), data, 0644))
	handler := static.Dir(slog.Default(), dir)
	server := httptest.NewServer(handler)
	defer server.Close()

	res, err := http.Get(server.URL + "/logo.png")
	is.NoErr(err)
	defer res.Body.Close()
	is.Equal(res.StatusCode, 200)
	is.Equal(res.Header.Get("Content-Type"), "image/png")
	body, err := io.ReadAll(res.Body)
	is.NoErr(err)
	is.Equal(body, data)

	// Deleted files are not found
	is.NoErr(os.Remove(filepath.Join(dir, "logo.png")))
	res, err = http.Get(server.URL + "/logo.png")
	is.NoErr(err)
	defer res.Body.Close()
	is.Equal(res.StatusCode, 404)
	body, err = io.ReadAll(res.Body)
	is.NoErr(err)
	is.Equal(len(body), 0)
}

// lockedFS refuses to open the locked paths
type lockedFS struct {
	fs.FS
	locked map[string]bool
}

func (l lockedFS) Open(name string) (fs.File, error) {
	if l.locked[name] {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return l.FS.Open(name)
}

func TestUnreadable(t *testing.T) {
	is := is.New(t)
	fsys := lockedFS{
		FS: fstest.MapFS{
			"secret.html":        &fstest.MapFile{Data: []byte("<html>secret</html>")},
			"public.html":        &fstest.MapFile{Data: []byte("<html>public</html>")},
			"private/index.html": &fstest.MapFile{Data: []byte("<html>private</html>")},
		},
		locked: map[string]bool{
			"secret.html":        true,
			"private/index.html": true,
		},
	}
	var logs bytes.Buffer
	handler := static.New(slog.New(slog.NewTextHandler(&logs, nil)), fsys)

	res, body := get(t, handler, "/secret.html")
	is.Equal(res.StatusCode, 500)
	is.Equal(body, "")

	res, body = get(t, handler, "/private/")
	is.Equal(res.StatusCode, 500)
	is.Equal(body, "")
	is.True(bytes.Contains(logs.Bytes(), []byte("static: unable to serve file")))

	// Other files are still served
	res, body = get(t, handler, "/public.html")
	is.Equal(res.StatusCode, 200)
	is.Equal(body, "<html>public</html>")
}
