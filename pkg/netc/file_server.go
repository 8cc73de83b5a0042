package netc

import (
	"io"
	"io/fs"
	"net/http"
	"path"
	"slices"
	"strings"
)

const indexName = "index.html"

// FileServer serves the regular files of Root. Directories are only served
// through their index.html, everything else is not found.
type FileServer struct {
	root  fs.FS
	files http.Handler
}

// NewFileServer expects root to keep names inside of it, as the FS of an
// os.Root does, including for symlinks.
func NewFileServer(root fs.FS) *FileServer {
	return &FileServer{
		root:  root,
		files: http.FileServerFS(root),
	}
}

func (f *FileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if slices.Contains(strings.Split(r.URL.Path, "/"), "..") {
		http.NotFound(w, r)
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "."
	}
	if !fs.ValidPath(name) || !f.servable(name) {
		http.NotFound(w, r)
		return
	}

	if path.Base(name) == indexName && f.serveIndexFile(w, r, name) {
		return
	}
	f.files.ServeHTTP(w, r)
}

// serveIndexFile answers a direct request for an index.html with its content,
// where http.FileServerFS would redirect to the directory.
func (f *FileServer) serveIndexFile(w http.ResponseWriter, r *http.Request, name string) bool {
	file, err := f.root.Open(name)
	if err != nil {
		return false
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	content, ok := file.(io.ReadSeeker)
	if !ok {
		return false
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), content)
	return true
}

func (f *FileServer) servable(name string) bool {
	info, err := fs.Stat(f.root, name)
	switch {
	case err != nil:
		return false
	case info.Mode().IsRegular():
		return true
	case info.IsDir():
		index, err := fs.Stat(f.root, path.Join(name, indexName))
		return err == nil && index.Mode().IsRegular()
	default:
		return false
	}
}
