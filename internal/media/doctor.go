package media

import (
	"context"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

const defaultDoctorTTL = 5 * time.Minute

type ToolStatus struct {
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
}

// Dependencies reports which external tools the pipeline can find.
type Dependencies struct {
	YTDLP    ToolStatus `json:"yt_dlp"`
	FFmpeg   ToolStatus `json:"ffmpeg"`
	FFprobe  ToolStatus `json:"ffprobe"`
	ProbedAt time.Time  `json:"probed_at"`
}

func (d Dependencies) AllAvailable() bool {
	return d.YTDLP.Available && d.FFmpeg.Available && d.FFprobe.Available
}

// Doctor looks up the configured tool binaries and caches the result.
type Doctor struct {
	ytdlp, ffmpeg, ffprobe string
	ttl                    time.Duration
	lookPath               func(string) (string, error)
	logger                 *slog.Logger

	mu     sync.RWMutex
	cached *Dependencies
}

func NewDoctor(ytdlpBin, ffmpegBin, ffprobeBin string, logger *slog.Logger) *Doctor {
	if ytdlpBin == "" {
		ytdlpBin = DefaultYTDLPPath
	}
	if ffmpegBin == "" {
		ffmpegBin = DefaultFFmpegPath
	}
	if ffprobeBin == "" {
		ffprobeBin = DefaultFFprobePath
	}
	return &Doctor{
		ytdlp:    ytdlpBin,
		ffmpeg:   ffmpegBin,
		ffprobe:  ffprobeBin,
		ttl:      defaultDoctorTTL,
		lookPath: exec.LookPath,
		logger:   logger,
	}
}

// Get returns cached results while fresh, otherwise probes again.
func (d *Doctor) Get(ctx context.Context) Dependencies {
	d.mu.RLock()
	if d.cached != nil && time.Since(d.cached.ProbedAt) < d.ttl {
		deps := *d.cached
		d.mu.RUnlock()
		return deps
	}
	d.mu.RUnlock()

	return d.Refresh(ctx)
}

func (d *Doctor) Refresh(ctx context.Context) Dependencies {
	deps := Dependencies{
		YTDLP:    d.lookup(d.ytdlp),
		FFmpeg:   d.lookup(d.ffmpeg),
		FFprobe:  d.lookup(d.ffprobe),
		ProbedAt: time.Now(),
	}

	d.mu.Lock()
	d.cached = &deps
	d.mu.Unlock()

	if !deps.AllAvailable() {
		d.logger.Warn("media dependencies missing",
			"yt_dlp", deps.YTDLP.Available,
			"ffmpeg", deps.FFmpeg.Available,
			"ffprobe", deps.FFprobe.Available,
		)
	}
	return deps
}

func (d *Doctor) Invalidate() {
	d.mu.Lock()
	d.cached = nil
	d.mu.Unlock()
}

func (d *Doctor) lookup(bin string) ToolStatus {
	p, err := d.lookPath(bin)
	if err != nil {
		return ToolStatus{}
	}
	return ToolStatus{Available: true, Path: p}
}
