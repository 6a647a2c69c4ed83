// Package web embeds the consultation chat page (dist/).
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// reserved prefixes belong to the API; unknown paths under them are 404s,
// not the chat page.
var reserved = []string{"/api/", "/ws/", "/metrics"}

// ChatPage serves embedded assets and falls back to the chat page for any
// other path so deep links such as /consultations/{id} load the client.
func ChatPage() http.Handler {
	dist, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	assets := http.FileServer(http.FS(dist))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, p := range reserved {
			if strings.HasPrefix(r.URL.Path, p) {
				http.NotFound(w, r)
				return
			}
		}

		name := strings.TrimPrefix(r.URL.Path, "/")
		if name != "" && name != "index.html" {
			if st, err := fs.Stat(dist, name); err == nil && !st.IsDir() {
				assets.ServeHTTP(w, r)
				return
			}
		}

		// Always revalidate the page.
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFileFS(w, r, dist, "index.html")
	})
}
