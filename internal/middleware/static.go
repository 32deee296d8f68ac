package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 300 400"><rect width="300" height="400" fill="#f5f5f5"/><rect x="40" y="50" width="220" height="300" rx="6" fill="#fff" stroke="#ccc"/><g fill="#ddd"><rect x="60" y="80" width="180" height="10"/><rect x="60" y="105" width="160" height="10"/><rect x="60" y="130" width="175" height="10"/><rect x="60" y="155" width="120" height="10"/></g><text x="150" y="380" text-anchor="middle" font-family="Arial" font-size="14" fill="#888">REFERENCE UNAVAILABLE</text></svg>`

// ReferenceFileServer serves task reference images from dir, answering with a
// placeholder page when the file does not exist.
func ReferenceFileServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(placeholderSVG))
	})
}
