package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultYTDLPPath = "yt-dlp"

	downloadFormat = "best[ext=mp4]/best"
	downloadStem   = "video"
)

var ErrInvalidSourceURL = errors.New("invalid YouTube URL")

// YTDLP fetches YouTube sources and metadata through the yt-dlp CLI.
type YTDLP struct {
	bin    string
	logger *slog.Logger
}

func NewYTDLP(bin string, logger *slog.Logger) *YTDLP {
	if bin == "" {
		bin = DefaultYTDLPPath
	}
	return &YTDLP{bin: bin, logger: logger.With("component", "yt-dlp")}
}

// Fetch downloads url into workDir as video.<ext>.
func (y *YTDLP) Fetch(ctx context.Context, sourceURL, workDir string) (string, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return "", &MediaFetchError{URL: sourceURL, Err: errors.New("source URL is required")}
	}

	args := []string{
		"--no-playlist",
		"--newline",
		"--format", downloadFormat,
		"--output", filepath.Join(workDir, downloadStem+".%(ext)s"),
		sourceURL,
	}

	y.logger.Info("downloading source", "url", sourceURL)
	if _, err := run(ctx, y.logger, y.bin, args...); err != nil {
		return "", &MediaFetchError{URL: sourceURL, Err: err}
	}

	path, err := findDownloaded(workDir)
	if err != nil {
		return "", &MediaFetchError{URL: sourceURL, Err: err}
	}
	return path, nil
}

// Metadata validates url and reads title, channel and duration via --dump-json.
func (y *YTDLP) Metadata(ctx context.Context, sourceURL string) (*SourceInfo, error) {
	videoID, err := ExtractVideoID(sourceURL)
	if err != nil {
		return nil, err
	}

	out, err := run(ctx, y.logger, y.bin,
		"--dump-json",
		"--no-playlist",
		"--skip-download",
		"https://www.youtube.com/watch?v="+videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("read video metadata: %w", err)
	}
	return parseVideoInfo(out)
}

type ytdlpInfo struct {
	ID         string   `json:"id"`
	Title      *string  `json:"title"`
	Uploader   *string  `json:"uploader"`
	Channel    string   `json:"channel"`
	Duration   *float64 `json:"duration"`
	Thumbnail  string   `json:"thumbnail"`
	ViewCount  int64    `json:"view_count"`
	LikeCount  int64    `json:"like_count"`
	UploadDate string   `json:"upload_date"`
}

func parseVideoInfo(data []byte) (*SourceInfo, error) {
	var raw ytdlpInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("cannot decode video metadata: %w", err)
	}

	var missing []string
	if raw.ID == "" {
		missing = append(missing, "id")
	}
	if raw.Title == nil {
		missing = append(missing, "title")
	}
	if raw.Uploader == nil && raw.Channel == "" {
		missing = append(missing, "uploader")
	}
	if raw.Duration == nil {
		missing = append(missing, "duration")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("video metadata missing fields: %s", strings.Join(missing, ", "))
	}

	channel := raw.Channel
	if raw.Uploader != nil {
		channel = *raw.Uploader
	}

	return &SourceInfo{
		ID:         raw.ID,
		Title:      *raw.Title,
		Channel:    channel,
		Duration:   *raw.Duration,
		Thumbnail:  raw.Thumbnail,
		ViewCount:  raw.ViewCount,
		LikeCount:  raw.LikeCount,
		UploadDate: raw.UploadDate,
	}, nil
}

// ExtractVideoID accepts youtube.com/watch?v=ID, youtu.be/ID and
// youtube.com/embed/ID forms.
func ExtractVideoID(rawURL string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", ErrInvalidSourceURL
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSourceURL, err)
	}

	host := strings.ToLower(u.Hostname())
	var id string
	switch {
	case isYouTubeHost(host) && u.Path == "/watch":
		id = u.Query().Get("v")
	case host == "youtu.be" || host == "www.youtu.be":
		id = strings.Trim(u.Path, "/")
	case isYouTubeHost(host) && strings.HasPrefix(u.Path, "/embed/"):
		id = strings.TrimPrefix(u.Path, "/embed/")
	case isYouTubeHost(host) && strings.HasPrefix(u.Path, "/shorts/"):
		id = strings.TrimPrefix(u.Path, "/shorts/")
	}

	id = strings.Trim(id, "/")
	if id == "" || strings.ContainsAny(id, "/?&#") {
		return "", fmt.Errorf("%w: %s", ErrInvalidSourceURL, rawURL)
	}
	return id, nil
}

func isYouTubeHost(host string) bool {
	return host == "youtube.com" || strings.HasSuffix(host, ".youtube.com")
}

func findDownloaded(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read download dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, downloadStem+".") {
			continue
		}
		// yt-dlp leaves .part files behind on interrupted downloads.
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") {
			continue
		}
		return filepath.Join(dir, name), nil
	}
	return "", errors.New("downloaded video file not found")
}
