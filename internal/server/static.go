package server

import (
	"bytes"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// handleStatic serves files from the destination root. HTML pages get the
// reload client, plus the failure overlay when a rerun has failed.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	root := s.config.DestDir()
	urlPath := path.Clean("/" + r.URL.Path)
	target := filepath.Join(root, filepath.FromSlash(urlPath))

	info, err := os.Stat(target)
	if err == nil && info.IsDir() {
		target = filepath.Join(target, "index.html")
		info, err = os.Stat(target)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.serveNotFound(w, r, urlPath)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if !strings.EqualFold(filepath.Ext(target), ".html") {
		http.ServeFile(w, r, target)
		return
	}

	page, err := os.ReadFile(target)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	snippet := []byte(reloadClient)
	if msg := s.hub.LastError(); msg != "" {
		overlay, err := render(r.Context(), errorOverlay(msg))
		if err == nil {
			snippet = append(overlay, snippet...)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeContent(w, r, info.Name(), info.ModTime(), bytes.NewReader(inject(page, snippet)))
}

func (s *Server) serveNotFound(w http.ResponseWriter, r *http.Request, requested string) {
	var entries []string
	if dirEntries, err := os.ReadDir(s.config.DestDir()); err == nil {
		for _, e := range dirEntries {
			name := e.Name()
			if e.IsDir() {
				name += "/"
			}
			entries = append(entries, name)
		}
		sort.Strings(entries)
	}

	body, err := render(r.Context(), notFoundPage(requested, entries))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write(body)
}
