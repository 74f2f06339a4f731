package api

import (
	"time"

	"github.com/bestof/clipper/internal/clips"
	"github.com/bestof/clipper/internal/media"
	"github.com/bestof/clipper/internal/planner"
	"github.com/bestof/clipper/internal/storage"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

type HealthResponse struct {
	Status       string              `json:"status"`
	Message      string              `json:"message"`
	Version      string              `json:"version"`
	UptimeS      int64               `json:"uptime_s"`
	Dependencies *media.Dependencies `json:"dependencies,omitempty"`
}

// CreateClipRequest is the POST /api/clips body. Mode and Transitions are
// pointers so absent fields can take their defaults.
type CreateClipRequest struct {
	URL         string  `json:"url"`
	Mode        *string `json:"mode"`
	Transitions *bool   `json:"transitions"`
}

type CreateClipResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	ClipID  string `json:"clip_id"`
}

type ClipResponse struct {
	ID          string       `json:"id"`
	YoutubeURL  string       `json:"youtube_url"`
	Title       string       `json:"title"`
	Channel     string       `json:"channel"`
	Duration    float64      `json:"duration"`
	Thumbnail   string       `json:"thumbnail,omitempty"`
	Mode        planner.Mode `json:"mode"`
	Transitions bool         `json:"transitions"`
	Status      clips.Status `json:"status"`
	CreatedAt   string       `json:"created_at"`
	CompletedAt *string      `json:"completed_at"`
	Error       string       `json:"error,omitempty"`
	FilePath    string       `json:"file_path,omitempty"`
	Segments    planner.Plan `json:"segments,omitempty"`
	DownloadURL string       `json:"download_url,omitempty"`
}

type ClipEnvelope struct {
	Status string       `json:"status"`
	Clip   ClipResponse `json:"clip"`
}

type ClipsEnvelope struct {
	Status string         `json:"status"`
	Clips  []ClipResponse `json:"clips"`
}

type ClipStatusResponse struct {
	ID          string       `json:"id"`
	Status      clips.Status `json:"status"`
	CreatedAt   string       `json:"created_at"`
	CompletedAt *string      `json:"completed_at"`
	Error       *string      `json:"error"`
}

type ClipStatusEnvelope struct {
	Status     string             `json:"status"`
	ClipStatus ClipStatusResponse `json:"clip_status"`
}

type PlanResponse struct {
	Status         string       `json:"status"`
	ID             string       `json:"id"`
	Mode           planner.Mode `json:"mode"`
	SourceDuration float64      `json:"source_duration"`
	TotalDuration  float64      `json:"total_duration"`
	Segments       planner.Plan `json:"segments"`
}

type StorageResponse struct {
	Status  string        `json:"status"`
	Storage storage.Stats `json:"storage"`
}

type HistoryResponse struct {
	Status string                `json:"status"`
	Clips  []*clips.HistoryEntry `json:"clips"`
}

type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ClipToResponse builds the clip view. baseURL prefixes the download link
// when the service sits behind a public host.
func ClipToResponse(info *clips.Info, baseURL string) ClipResponse {
	j := info.Job
	resp := ClipResponse{
		ID:          j.ID,
		YoutubeURL:  j.SourceURL,
		Title:       j.Source.Title,
		Channel:     j.Source.Channel,
		Duration:    j.Source.Duration,
		Thumbnail:   j.Source.Thumbnail,
		Mode:        j.Mode,
		Transitions: j.Transitions,
		Status:      j.Status(),
		CreatedAt:   formatTime(j.CreatedAt),
		CompletedAt: formatTimePtr(j.CompletedAt()),
		Error:       j.ErrorDetail(),
		FilePath:    j.ArtifactPath(),
		Segments:    j.Plan(),
	}
	if info.DownloadURL != "" {
		resp.DownloadURL = baseURL + info.DownloadURL
	}
	return resp
}

func StatusToResponse(s *clips.StatusView) ClipStatusResponse {
	return ClipStatusResponse{
		ID:          s.ID,
		Status:      s.Status,
		CreatedAt:   formatTime(s.CreatedAt),
		CompletedAt: formatTimePtr(s.CompletedAt),
		Error:       errorDetail(s),
	}
}

// errorDetail is null unless the job failed.
func errorDetail(s *clips.StatusView) *string {
	if s.Status != clips.StatusFailed {
		return nil
	}
	msg := s.Error
	return &msg
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
