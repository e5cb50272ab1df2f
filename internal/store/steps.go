// Package store writes debug artifacts and run records as timestamped files
// under the cache directory. Nothing here is read back by a run.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kolangzi/naver-automation/internal/config"
	"github.com/kolangzi/naver-automation/internal/types"
)

// StepName identifies an artifact kind and names its directory.
type StepName string

const (
	StepRuns      StepName = "runs"
	StepExchanges StepName = "llm"
	StepReports   StepName = "reports"
)

// Store is rooted at one cache directory.
type Store struct {
	root string
	now  func() time.Time
}

// New returns a store rooted at root.
func New(root string) *Store {
	return &Store{root: root, now: time.Now}
}

// Open returns a store rooted at the user cache directory.
func Open() (*Store, error) {
	dir, err := config.CacheDir()
	if err != nil {
		return nil, err
	}
	return New(dir), nil
}

// Root returns the cache directory.
func (s *Store) Root() string { return s.root }

// StepDir returns the directory of a step.
func (s *Store) StepDir(step StepName) string {
	return filepath.Join(s.root, string(step))
}

// generateFilename creates a timestamped filename. Names sort
// chronologically.
func (s *Store) generateFilename(suffix, ext string) string {
	name := s.now().Format("2006-01-02T15-04-05.000")
	if suffix != "" {
		name += "_" + suffix
	}
	return name + ext
}

func (s *Store) write(step StepName, suffix, ext string, data []byte) (string, error) {
	dir := s.StepDir(step)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create step cache dir: %w", err)
	}
	path := filepath.Join(dir, s.generateFilename(suffix, ext))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write step output: %w", err)
	}
	return path, nil
}

// SaveStepOutput saves JSON-serializable data to the step's directory.
// Returns the path to the saved file.
func SaveStepOutput[T any](s *Store, step StepName, suffix string, data T) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal step output: %w", err)
	}
	return s.write(step, suffix, ".json", jsonData)
}

// SaveTextOutput saves text content such as an HTML report.
func (s *Store) SaveTextOutput(step StepName, suffix, content, ext string) (string, error) {
	return s.write(step, suffix, ext, []byte(content))
}

// SaveRun records the summary of a finished run.
func (s *Store) SaveRun(sum types.Summary) (string, error) {
	return SaveStepOutput(s, StepRuns, sum.Campaign, sum)
}

// LatestRun loads the most recent run summary.
func (s *Store) LatestRun() (types.Summary, string, error) {
	return LoadLatestStepOutput[types.Summary](s, StepRuns)
}

// LoadLatestStepOutput loads the most recent output of a step.
func LoadLatestStepOutput[T any](s *Store, step StepName) (T, string, error) {
	var zero T

	latestPath, err := s.LatestStepFile(step)
	if err != nil {
		return zero, "", err
	}

	data, err := LoadStepOutput[T](latestPath)
	if err != nil {
		return zero, "", err
	}

	return data, latestPath, nil
}

// LoadStepOutput loads JSON data from a specific file path.
func LoadStepOutput[T any](path string) (T, error) {
	var data T

	jsonData, err := os.ReadFile(path)
	if err != nil {
		return data, fmt.Errorf("failed to read step output: %w", err)
	}

	if err := json.Unmarshal(jsonData, &data); err != nil {
		return data, fmt.Errorf("failed to unmarshal step output: %w", err)
	}

	return data, nil
}

// LatestStepFile returns the path to the most recent file of a step.
func (s *Store) LatestStepFile(step StepName) (string, error) {
	entries, err := os.ReadDir(s.StepDir(step))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no cached output for step %s", step)
		}
		return "", err
	}

	// os.ReadDir sorts by name, which is chronological for our timestamps
	var latest string
	for _, entry := range entries {
		if !entry.IsDir() {
			latest = entry.Name()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no cached output for step %s", step)
	}

	return filepath.Join(s.StepDir(step), latest), nil
}
