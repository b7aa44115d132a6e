// Package static serves files from a directory for local development.
package static

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
)

// Dir serves the files under dir
func Dir(log *slog.Logger, dir string) *Handler {
	return New(log, os.DirFS(dir))
}

// New serves the files in fsys
func New(log *slog.Logger, fsys fs.FS) *Handler {
	return &Handler{"index.html", log, fsys}
}

// Handler resolves request paths against a filesystem root. Missing paths
// are 404s with an empty body, unreadable files are 500s.
type Handler struct {
	Index string
	log   *slog.Logger
	fsys  fs.FS
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		notFound(w)
		return
	}
	urlPath := r.URL.Path
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}
	name := strings.TrimPrefix(path.Clean(urlPath), "/")
	if name == "" {
		name = "."
	}
	if hidden(name) {
		notFound(w)
		return
	}
	file, stat, err := h.open(name)
	if err != nil {
		h.fail(w, name, err)
		return
	}
	defer file.Close()
	if stat.IsDir() {
		// Redirect to the slashed path so relative links resolve
		if !strings.HasSuffix(urlPath, "/") {
			redirect(w, r, path.Base(urlPath)+"/")
			return
		}
		name = path.Join(name, h.Index)
		if file, stat, err = h.open(name); err != nil {
			h.fail(w, name, err)
			return
		}
		defer file.Close()
		if stat.IsDir() {
			notFound(w)
			return
		}
	}
	content, err := seeker(file)
	if err != nil {
		h.fail(w, name, err)
		return
	}
	http.ServeContent(w, r, stat.Name(), stat.ModTime(), content)
}

func (h *Handler) open(name string) (fs.File, fs.FileInfo, error) {
	file, err := h.fsys.Open(name)
	if err != nil {
		return nil, nil, err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	return file, stat, nil
}

func (h *Handler) fail(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
		notFound(w)
		return
	}
	h.log.Error("static: unable to serve file", "path", name, "error", err)
	w.WriteHeader(http.StatusInternalServerError)
}

// seeker returns the file as an io.ReadSeeker, reading it into memory when
// the filesystem doesn't support seeking.
func seeker(file fs.File) (io.ReadSeeker, error) {
	if rs, ok := file.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// hidden reports whether any segment of name is a dotfile
func hidden(name string) bool {
	if name == "." {
		return false
	}
	for _, segment := range strings.Split(name, "/") {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}

func notFound(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNotFound)
}

func redirect(w http.ResponseWriter, r *http.Request, location string) {
	if r.URL.RawQuery != "" {
		location += "?" + r.URL.RawQuery
	}
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusMovedPermanently)
}
