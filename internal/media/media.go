// Package media adapts the external tools the clip pipeline depends on:
// yt-dlp for fetching sources and their metadata, ffprobe for measuring
// duration and ffmpeg for lossless concatenation of planned segments.
package media

import (
	"context"
	"fmt"

	"github.com/bestof/clipper/internal/planner"
)

// Fetcher downloads a source video into workDir and returns the local path.
type Fetcher interface {
	Fetch(ctx context.Context, url, workDir string) (string, error)
}

// MetadataSource returns display metadata for a source URL without
// downloading the media.
type MetadataSource interface {
	Metadata(ctx context.Context, url string) (*SourceInfo, error)
}

// Inspector measures the duration of a local media file in seconds.
type Inspector interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// Assembler writes the segments of plan, taken from sourcePath in plan
// order, into a single file at outPath without re-encoding.
type Assembler interface {
	Assemble(ctx context.Context, sourcePath string, plan planner.Plan, outPath string, opts AssembleOptions) error
}

type AssembleOptions struct {
	// Transitions is accepted for forward compatibility. Segments are
	// always joined with a stream copy; no crossfade is rendered.
	Transitions bool
}

type SourceInfo struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Channel    string  `json:"channel"`
	Duration   float64 `json:"duration"`
	Thumbnail  string  `json:"thumbnail,omitempty"`
	ViewCount  int64   `json:"view_count,omitempty"`
	LikeCount  int64   `json:"like_count,omitempty"`
	UploadDate string  `json:"upload_date,omitempty"`
}

// MediaFetchError reports a source that could not be downloaded.
type MediaFetchError struct {
	URL string
	Err error
}

func (e *MediaFetchError) Error() string {
	return fmt.Sprintf("media fetch failed for %s: %v", e.URL, e.Err)
}

func (e *MediaFetchError) Unwrap() error { return e.Err }

// DurationParseError reports a duration probe whose output was missing or
// not a number.
type DurationParseError struct {
	Raw string
	Err error
}

func (e *DurationParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot parse media duration %q: %v", e.Raw, e.Err)
	}
	return fmt.Sprintf("cannot parse media duration %q", e.Raw)
}

func (e *DurationParseError) Unwrap() error { return e.Err }

type MediaAssemblyError struct {
	Segments int
	Err      error
}

func (e *MediaAssemblyError) Error() string {
	return fmt.Sprintf("media assembly of %d segments failed: %v", e.Segments, e.Err)
}

func (e *MediaAssemblyError) Unwrap() error { return e.Err }
