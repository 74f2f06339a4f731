// Package playback streams stored clip artifacts over HTTP.
package playback

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// The builtin mime table does not know video containers on every platform.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
}

type PlaybackService interface {
	ServeArtifact(w http.ResponseWriter, r *http.Request, filePath, downloadName string) error
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{logger: logger.With("component", "playback")}
}

// ServeArtifact writes filePath with Range and conditional request support.
// A non-empty downloadName is sent as an attachment filename.
func (s *Server) ServeArtifact(w http.ResponseWriter, r *http.Request, filePath, downloadName string) error {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.IsDir() {
		http.Error(w, "file not found", http.StatusNotFound)
		return nil
	}

	w.Header().Set("Content-Type", contentTypeFor(filePath))
	if downloadName != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": downloadName}))
	}

	s.logger.Debug("serving artifact", "path", filePath, "size", stat.Size(), "range", r.Header.Get("Range"))
	http.ServeContent(w, r, filepath.Base(filePath), stat.ModTime(), file)
	return nil
}

func contentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := videoTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
