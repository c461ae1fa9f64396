package api

import (
	"io/fs"
	"net/http"
)

// IndexHandler serves index.html from the web FS. The file is read on every
// request so edits show up in dev mode without a restart.
func IndexHandler(webFS fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(webFS, "index.html")
		if err != nil {
			http.Error(w, "form page not available", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(data)
	}
}
