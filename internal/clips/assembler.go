package clips

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bestof/clipper/internal/logging"
	"github.com/bestof/clipper/internal/media"
	"github.com/bestof/clipper/internal/planner"
)

// ArtifactStore persists a finished clip under its job id.
type ArtifactStore interface {
	Persist(tempPath, jobID string) (string, error)
}

type Request struct {
	JobID       string
	SourceURL   string
	Mode        planner.Mode
	Transitions bool
}

type Result struct {
	ArtifactPath   string
	Plan           planner.Plan
	SourceDuration float64
}

// Assembler turns a source URL into a stored clip: fetch, measure, plan,
// join, persist. Everything it downloads lives in a per-job work directory
// that is removed on return.
type Assembler struct {
	fetcher   media.Fetcher
	inspector media.Inspector
	planner   *planner.Planner
	joiner    media.Assembler
	store     ArtifactStore
	workRoot  string
	logger    *slog.Logger
	now       func() time.Time
}

// NewAssembler wires the pipeline. An empty workRoot uses os.TempDir.
func NewAssembler(fetcher media.Fetcher, inspector media.Inspector, p *planner.Planner, joiner media.Assembler, store ArtifactStore, workRoot string, logger *slog.Logger) *Assembler {
	if p == nil {
		p = planner.New(nil)
	}
	return &Assembler{
		fetcher:   fetcher,
		inspector: inspector,
		planner:   p,
		joiner:    joiner,
		store:     store,
		workRoot:  workRoot,
		logger:    logging.WithComponent(logger, "assembler"),
		now:       time.Now,
	}
}

func (a *Assembler) Run(ctx context.Context, req Request) (*Result, error) {
	logger := logging.WithJobID(a.logger, req.JobID)

	if a.workRoot != "" {
		if err := os.MkdirAll(a.workRoot, 0755); err != nil {
			return nil, a.fail(req, "workdir", err)
		}
	}
	workDir, err := os.MkdirTemp(a.workRoot, "clip-"+req.JobID+"-")
	if err != nil {
		return nil, a.fail(req, "workdir", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn("failed to clean up work directory", "path", workDir, "error", err)
		}
	}()

	sourcePath, err := a.fetcher.Fetch(ctx, req.SourceURL, workDir)
	if err != nil {
		return nil, a.fail(req, "fetch", err)
	}

	duration, err := a.inspector.Duration(ctx, sourcePath)
	if err != nil {
		return nil, a.fail(req, "inspect", err)
	}
	logger.Info("source measured", "duration_s", duration)

	plan, err := a.planner.Plan(req.Mode, duration)
	if err != nil {
		return nil, a.fail(req, "plan", err)
	}
	if len(plan) == 0 {
		return nil, a.fail(req, "plan", ErrEmptyPlan)
	}
	logger.Info("segments planned", "mode", req.Mode, "segments", len(plan), "total_s", plan.TotalDuration())

	ext := filepath.Ext(sourcePath)
	if ext == "" {
		ext = ".mp4"
	}
	outPath := filepath.Join(workDir, "clip_"+a.now().Format("20060102_150405")+ext)
	opts := media.AssembleOptions{Transitions: req.Transitions}
	if err := a.joiner.Assemble(ctx, sourcePath, plan, outPath, opts); err != nil {
		return nil, a.fail(req, "assemble", err)
	}

	artifact, err := a.store.Persist(outPath, req.JobID)
	if err != nil {
		return nil, a.fail(req, "persist", err)
	}

	return &Result{ArtifactPath: artifact, Plan: plan, SourceDuration: duration}, nil
}

func (a *Assembler) fail(req Request, stage string, err error) error {
	return &ClipGenerationError{JobID: req.JobID, Stage: stage, Err: err}
}
