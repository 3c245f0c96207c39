package httpserver

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
)

const indexPage = "cabinet.html"

var webAppPages = map[string]bool{
	"cabinet.html":     true,
	"stub.html":        true,
	"search.html":      true,
	"listings.html":    true,
	"cian-report.html": true,
}

// MountWebApp serves the mini app pages from dir. Only the known pages are
// exposed at the root; "/" is the cabinet. Scripts and styles the pages load
// live under /static.
func (s *Server) MountWebApp(dir string) {
	assets := http.StripPrefix("/static/", http.FileServer(http.Dir(dir)))
	s.mux.Handle("/static/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		assets.ServeHTTP(w, r)
	}))

	serve := func(w http.ResponseWriter, r *http.Request, page string) {
		path := filepath.Join(dir, page)
		if _, err := os.Stat(path); err != nil {
			writeProblem(w, http.StatusNotFound, "Not Found", "page not found")
			return
		}
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, path)
	}
	s.mux.Get("/", func(w http.ResponseWriter, r *http.Request) { serve(w, r, indexPage) })
	s.mux.Get("/{page}", func(w http.ResponseWriter, r *http.Request) {
		page := chi.URLParam(r, "page")
		if !webAppPages[page] {
			writeProblem(w, http.StatusNotFound, "Not Found", "page not found")
			return
		}
		serve(w, r, page)
	})
}
