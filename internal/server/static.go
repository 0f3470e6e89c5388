package server

import (
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v5"
)

// staticHandler serves the dashboard build from dir. Paths that do not name
// a file fall back to index.html so client-side routes resolve.
func (s *Server) staticHandler(dir string) echo.HandlerFunc {
	fsys := os.DirFS(dir)
	fileServer := http.FileServer(http.FS(fsys))
	return echo.WrapHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if name == "" || !fs.ValidPath(name) {
			r.URL.Path = "/"
		} else if info, err := fs.Stat(fsys, name); err != nil || info.IsDir() {
			r.URL.Path = "/"
		}
		fileServer.ServeHTTP(w, r)
	}))
}
