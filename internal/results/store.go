// Package results persists flagging results as JSON under
// <base>/<stage>/<run-id>.json.
package results

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lucasnoah/skyflag/internal/fileutil"
	"github.com/lucasnoah/skyflag/internal/flagger"
)

// Record is one stored controller run.
type Record struct {
	RunID     string          `json:"run_id"`
	Stage     string          `json:"stage"`
	Shape     string          `json:"shape"`
	CreatedAt string          `json:"created_at"`
	Result    *flagger.Result `json:"result"`
}

// timeFormat sorts lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Store manages result records on disk.
type Store struct {
	baseDir string
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

func (s *Store) stageDir(stage string) string {
	return filepath.Join(s.baseDir, stage)
}

func (s *Store) recordPath(stage, runID string) string {
	return filepath.Join(s.stageDir(stage), runID+".json")
}

// Save writes res as a new record and returns it. A run ID is assigned
// when runID is empty.
func (s *Store) Save(stage, shape, runID string, res *flagger.Result) (*Record, error) {
	if stage == "" {
		return nil, fmt.Errorf("save result: empty stage name")
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	rec := &Record{
		RunID:     runID,
		Stage:     stage,
		Shape:     shape,
		CreatedAt: time.Now().UTC().Format(timeFormat),
		Result:    res,
	}
	if err := fileutil.WriteJSON(s.recordPath(stage, runID), rec); err != nil {
		return nil, fmt.Errorf("write result %s: %w", runID, err)
	}
	return rec, nil
}

// Get reads one record.
func (s *Store) Get(stage, runID string) (*Record, error) {
	var rec Record
	if err := fileutil.ReadJSON(s.recordPath(stage, runID), &rec); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("result %s/%s not found", stage, runID)
		}
		return nil, err
	}
	return &rec, nil
}

// List returns the records of a stage, oldest first.
func (s *Store) List(stage string) ([]Record, error) {
	entries, err := os.ReadDir(s.stageDir(stage))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", s.stageDir(stage), err)
	}

	var out []Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := s.Get(stage, strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue // skip broken entries
		}
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].RunID < out[j].RunID
	})
	return out, nil
}

// Latest returns the most recent record of a stage.
func (s *Store) Latest(stage string) (*Record, error) {
	recs, err := s.List(stage)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no results for stage %q", stage)
	}
	return &recs[len(recs)-1], nil
}

// Delete removes one record.
func (s *Store) Delete(stage, runID string) error {
	path := s.recordPath(stage, runID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("result %s/%s not found", stage, runID)
	}
	return os.Remove(path)
}
