package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bestof/clipper/internal/planner"
)

const (
	DefaultFFmpegPath  = "ffmpeg"
	DefaultFFprobePath = "ffprobe"

	concatListName = "segments.ffconcat"
)

// FFprobe measures media duration.
type FFprobe struct {
	bin    string
	logger *slog.Logger
}

func NewFFprobe(bin string, logger *slog.Logger) *FFprobe {
	if bin == "" {
		bin = DefaultFFprobePath
	}
	return &FFprobe{bin: bin, logger: logger.With("component", "ffprobe")}
}

func (f *FFprobe) Duration(ctx context.Context, path string) (float64, error) {
	out, err := run(ctx, f.logger, f.bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w", err)
	}
	return parseDuration(string(out))
}

func parseDuration(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "N/A" {
		return 0, &DurationParseError{Raw: s}
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &DurationParseError{Raw: s, Err: err}
	}
	return d, nil
}

// FFmpeg joins planned segments with the concat demuxer and stream copy.
type FFmpeg struct {
	bin    string
	logger *slog.Logger
}

func NewFFmpeg(bin string, logger *slog.Logger) *FFmpeg {
	if bin == "" {
		bin = DefaultFFmpegPath
	}
	return &FFmpeg{bin: bin, logger: logger.With("component", "ffmpeg")}
}

// Assemble writes a concat list next to outPath, runs ffmpeg with -c copy
// and always removes the list afterwards.
func (f *FFmpeg) Assemble(ctx context.Context, sourcePath string, plan planner.Plan, outPath string, opts AssembleOptions) error {
	if len(plan) == 0 {
		return &MediaAssemblyError{Err: errors.New("plan has no segments")}
	}

	listPath := filepath.Join(filepath.Dir(outPath), concatListName)
	if err := writeConcatList(listPath, sourcePath, plan); err != nil {
		return &MediaAssemblyError{Segments: len(plan), Err: err}
	}
	defer func() {
		if err := os.Remove(listPath); err != nil && !os.IsNotExist(err) {
			f.logger.Warn("failed to remove concat list", "path", listPath, "error", err)
		}
	}()

	if opts.Transitions && len(plan) > 1 {
		f.logger.Debug("transitions requested; segments are joined without crossfade", "segments", len(plan))
	}

	f.logger.Info("assembling clip", "segments", len(plan), "total_s", plan.TotalDuration())

	_, err := run(ctx, f.logger, f.bin,
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outPath,
	)
	if err != nil {
		return &MediaAssemblyError{Segments: len(plan), Err: err}
	}
	return nil
}

func writeConcatList(listPath, sourcePath string, plan planner.Plan) error {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		return fmt.Errorf("resolve source path: %w", err)
	}

	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, seg := range plan {
		fmt.Fprintf(&b, "file %s\n", quoteConcatPath(abs))
		fmt.Fprintf(&b, "inpoint %s\n", formatSeconds(seg.Start))
		fmt.Fprintf(&b, "outpoint %s\n", formatSeconds(seg.End))
	}

	if err := os.WriteFile(listPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return nil
}

// quoteConcatPath single-quotes p for the concat demuxer, escaping embedded quotes.
func quoteConcatPath(p string) string {
	return "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
