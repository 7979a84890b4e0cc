package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
)

const assetCacheControl = "public, max-age=3600"

//go:embed static
var embedded embed.FS

// static serves /static/ from StaticDir when configured, else from the
// assets compiled into the binary.
func (s *Server) static(mux *http.ServeMux) {
	var root http.FileSystem
	if s.StaticDir != "" {
		root = http.Dir(s.StaticDir)
	} else {
		sub, err := fs.Sub(embedded, "static")
		if err != nil {
			panic(err)
		}
		root = http.FS(sub)
	}
	files := http.StripPrefix("/static/", http.FileServer(root))
	mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !safeAssetPath(strings.TrimPrefix(r.URL.Path, "/static/")) {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", assetCacheControl)
		files.ServeHTTP(w, r)
	}))
}

// safeAssetPath accepts plain file names only: no directories, no listings
// and no traversal.
func safeAssetPath(name string) bool {
	clean := filepath.Clean(name)
	if name == "" || clean == "." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
		return false
	}
	return !strings.ContainsAny(clean, `/\`)
}
