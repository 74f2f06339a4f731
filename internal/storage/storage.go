// Package storage keeps generated clips on the local filesystem, one
// directory per job id.
package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const filenameLayout = "20060102_150405"

var (
	ErrNotFound     = errors.New("artifact not found")
	ErrInvalidJobID = errors.New("invalid job id")
)

type Stats struct {
	Path       string `json:"path"`
	Exists     bool   `json:"exists"`
	ClipsCount int    `json:"clips_count"`
	TotalSize  int64  `json:"total_size"`
	SizeHuman  string `json:"total_size_human"`
}

type Store struct {
	root   string
	logger *slog.Logger
	now    func() time.Time
}

func New(root string, logger *slog.Logger) *Store {
	return &Store{
		root:   root,
		logger: logger.With("component", "storage"),
		now:    time.Now,
	}
}

func (s *Store) Root() string {
	return s.root
}

// Init creates the storage root if it does not exist.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	return nil
}

// Persist copies tempPath into the job's directory as clip_<timestamp><ext>
// and returns the permanent path. The source file is left in place.
func (s *Store) Persist(tempPath, jobID string) (string, error) {
	if err := validateJobID(jobID); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, jobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create clip directory: %w", err)
	}

	name := "clip_" + s.now().Format(filenameLayout) + filepath.Ext(tempPath)
	dest := filepath.Join(dir, name)

	size, err := copyFile(tempPath, dest)
	if err != nil {
		s.logger.Error("failed to persist clip", "job_id", jobID, "error", err)
		return "", fmt.Errorf("failed to persist clip: %w", err)
	}

	s.logger.Info("clip persisted", "job_id", jobID, "path", dest, "size", humanize.Bytes(uint64(size)))
	return dest, nil
}

// Resolve returns the path of filename inside the job's directory, or some
// file from it when filename is empty.
func (s *Store) Resolve(jobID, filename string) (string, error) {
	if err := validateJobID(jobID); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, jobID)
	if filename != "" {
		if filename != filepath.Base(filename) || filename == "." || filename == ".." {
			return "", ErrNotFound
		}
		p := filepath.Join(dir, filename)
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			return "", ErrNotFound
		}
		return p, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read clip directory: %w", err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", ErrNotFound
}

// Delete removes the job's directory. It reports false when nothing was stored.
func (s *Store) Delete(jobID string) (bool, error) {
	if err := validateJobID(jobID); err != nil {
		return false, err
	}

	dir := filepath.Join(s.root, jobID)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat clip directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("failed to delete clip directory: %w", err)
	}
	s.logger.Info("clip deleted", "job_id", jobID)
	return true, nil
}

// List returns the ids of all jobs with a directory under the root, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) Stats() (Stats, error) {
	st := Stats{Path: s.root, SizeHuman: humanize.Bytes(0)}
	if _, err := os.Stat(s.root); err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, fmt.Errorf("failed to stat storage directory: %w", err)
	}
	st.Exists = true

	ids, err := s.List()
	if err != nil {
		return st, err
	}
	st.ClipsCount = len(ids)

	for _, id := range ids {
		entries, err := os.ReadDir(filepath.Join(s.root, id))
		if err != nil {
			s.logger.Warn("failed to read clip directory", "job_id", id, "error", err)
			continue
		}
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			st.TotalSize += info.Size()
		}
	}
	st.SizeHuman = humanize.Bytes(uint64(st.TotalSize))
	return st, nil
}

func validateJobID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.ContainsRune(id, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidJobID, id)
	}
	return nil
}

// copyFile copies src to dst, carrying over permission bits and modification time.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return 0, err
	}

	// Best effort, like cp -p.
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return n, nil
}
