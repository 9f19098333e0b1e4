package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
	"github.com/alexisbeaulieu97/buildgraph/internal/domain/graph"
	"github.com/alexisbeaulieu97/buildgraph/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/buildgraph/internal/ports"
)

const (
	fileVersion = "1.0"

	// DefaultRetention caps how many runs the store keeps.
	DefaultRetention = 50
)

// File is the on-disk layout of the run history.
type File struct {
	Version string            `json:"version"`
	Runs    []build.RunResult `json:"runs"`
}

// Store persists finished runs in a single JSON file.
type Store struct {
	path      string
	retention int
	logger    ports.Logger

	mu   sync.RWMutex
	runs []build.RunResult
}

// Option customises a Store.
type Option func(*Store)

// WithRetention sets how many runs are kept; older runs are dropped on save.
func WithRetention(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.retention = n
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger ports.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store and loads existing history from path.
func NewStore(path string, opts ...Option) (*Store, error) {
	s := &Store{path: path, retention: DefaultRetention}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNoOp(s.logger).With("component", "run_history")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	if err := s.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		s.runs = []build.RunResult{}
	}
	return s, nil
}

// DefaultPath is where history lives when no path is configured.
func DefaultPath() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "buildgraph", "history.json")
	}
	return filepath.Join(".buildgraph", "history.json")
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var file File
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse run history: %w", err)
	}
	s.runs = file.Runs
	return nil
}

// Save implements ports.RunStore. A run saved twice replaces the earlier copy.
func (s *Store) Save(ctx context.Context, result build.RunResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if result.RunID == "" {
		return &graph.DomainError{Code: graph.ErrCodeMissing, Message: "missing required field", Context: map[string]interface{}{"field": "runId"}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	runs := make([]build.RunResult, 0, len(s.runs)+1)
	for _, r := range s.runs {
		if r.RunID != result.RunID {
			runs = append(runs, r)
		}
	}
	runs = append(runs, result)
	sortNewestFirst(runs)
	if len(runs) > s.retention {
		runs = runs[:s.retention]
	}

	if err := s.write(runs); err != nil {
		s.logger.Error(ctx, "failed to persist run history", "path", s.path, "error", err)
		return err
	}
	s.runs = runs
	s.logger.Debug(ctx, "run archived", "run_id", result.RunID, "runs", len(runs))
	return nil
}

// write stores runs atomically; callers hold the lock.
func (s *Store) write(runs []build.RunResult) error {
	data, err := json.MarshalIndent(File{Version: fileVersion, Runs: runs}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run history: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// Get implements ports.RunStore.
func (s *Store) Get(ctx context.Context, runID string) (*build.RunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.runs {
		if r.RunID == runID {
			result := r
			return &result, nil
		}
	}
	return nil, &graph.DomainError{Code: graph.ErrCodeNotFound, Message: "run not found", Context: map[string]interface{}{"id": runID}}
}

// List implements ports.RunStore, newest first. A limit of zero or less
// returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]build.RunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.runs)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]build.RunResult, n)
	copy(result, s.runs[:n])
	return result, nil
}

func sortNewestFirst(runs []build.RunResult) {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
}

var _ ports.RunStore = (*Store)(nil)
