package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

const maxStderrBytes = 8 * 1024

// CommandError is returned when an external tool exits unsuccessfully.
type CommandError struct {
	Tool       string
	ExitCode   int
	StderrTail string
	Err        error
}

func (e *CommandError) Error() string {
	msg := strings.TrimSpace(e.StderrTail)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s exited %d: %s", e.Tool, e.ExitCode, truncate(msg, 512))
}

func (e *CommandError) Unwrap() error { return e.Err }

// run executes bin with args and returns its stdout. Only the last
// maxStderrBytes of stderr are kept for the error message.
func run(ctx context.Context, logger *slog.Logger, bin string, args ...string) ([]byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &tailWriter{buf: &stderr, limit: maxStderrBytes}

	logger.Debug("executing media command", "tool", bin, "args", args)

	err := cmd.Run()
	elapsed := time.Since(start)
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		logger.Warn("media command failed",
			"tool", bin,
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderr.String(), 512),
		)
		return stdout.Bytes(), &CommandError{Tool: bin, ExitCode: exitCode, StderrTail: stderr.String(), Err: err}
	}

	logger.Debug("media command succeeded", "tool", bin, "duration_ms", elapsed.Milliseconds())
	return stdout.Bytes(), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// tailWriter keeps only the last limit bytes written to it.
type tailWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *tailWriter) Write(p []byte) (int, error) {
	n := len(p)
	w.buf.Write(p)
	if w.buf.Len() > w.limit {
		b := w.buf.Bytes()
		tail := append([]byte(nil), b[len(b)-w.limit:]...)
		w.buf.Reset()
		w.buf.Write(tail)
	}
	return n, nil
}
