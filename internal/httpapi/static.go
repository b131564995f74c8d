package httpapi

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"go.uber.org/zap"
)

var contentTypes = map[string]string{
	".js":   "text/javascript",
	".css":  "text/css",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpg",
}

// Static serves the game client from dir. Anything outside dir, including
// through symlinks, is reported as missing.
func Static(dir string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			name = "index.html"
		}

		root, err := os.OpenRoot(dir)
		if err != nil {
			serveErr(w, name, err, log)
			return
		}
		defer root.Close()

		f, err := root.Open(name)
		if err != nil {
			serveErr(w, name, err, log)
			return
		}
		defer f.Close()

		if fi, err := f.Stat(); err != nil || fi.IsDir() {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}

		ct, ok := contentTypes[path.Ext(name)]
		if !ok {
			ct = "text/html"
		}
		w.Header().Set("Content-Type", ct)
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, f)
	}
}

func serveErr(w http.ResponseWriter, name string, err error, log *zap.Logger) {
	var pe *fs.PathError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		http.Error(w, "File not found", http.StatusNotFound)
	case errors.As(err, &pe) && strings.Contains(pe.Err.Error(), "escapes"):
		http.Error(w, "File not found", http.StatusNotFound)
	default:
		log.Warn("static file", zap.String("path", name), zap.Error(err))
		http.Error(w, "Server error: "+errCode(err), http.StatusInternalServerError)
	}
}

// errCode strips the path from err so clients only see the cause.
func errCode(err error) string {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err.Error()
	}
	return err.Error()
}
