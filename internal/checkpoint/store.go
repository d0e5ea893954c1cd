// Package checkpoint implements the durable, atomically-written plan
// checkpoint store (spec component C1).
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ainoob2025/AICore/internal/idsafe"
	"github.com/ainoob2025/AICore/internal/model"
)

// SchemaVersion is the only schema_version this store accepts on load.
const SchemaVersion = 1

// State is the on-disk envelope wrapping a Plan.
type State struct {
	SchemaVersion  int            `json:"schema_version"`
	PlanID         string         `json:"plan_id"`
	Goal           string         `json:"goal"`
	CreatedUTC     string         `json:"created_utc"`
	UpdatedUTC     string         `json:"updated_utc"`
	Status         model.PlanStatus `json:"status"`
	Cursors        map[string]any `json:"cursors,omitempty"`
	ToolResultsRef string         `json:"tool_results_ref,omitempty"`
	Plan           *model.Plan    `json:"plan"`
}

// SaveResult reports the outcome of a successful Save. Returned verbatim
// as the /chat response's checkpoint field (spec.md §4.1, §8).
type SaveResult struct {
	OK         bool             `json:"ok"`
	Status     model.PlanStatus `json:"status"`
	Path       string           `json:"path"`
	Bytes      int              `json:"bytes"`
	UpdatedUTC string           `json:"updated_utc"`
}

// Store persists plan checkpoints under RootDir, one JSON file per plan.
type Store struct {
	RootDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		dir = ".runtime/plans"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create root dir: %w", err)
	}
	return &Store{RootDir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

func utcISOms() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// PathFor returns the on-disk path for a plan id, sanitizing it first.
func (s *Store) PathFor(planID string) string {
	safe := idsafe.Sanitize(planID, "plan")
	return filepath.Join(s.RootDir, safe+".json")
}

func (s *Store) lockFor(planID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[planID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[planID] = l
	}
	return l
}

// Wrap builds a State envelope around plan, defaulting status to
// "running". createdUTC, when non-empty, carries forward the plan's
// original creation timestamp from an earlier save; an empty createdUTC
// stamps the current time, for a plan's first save.
func Wrap(plan *model.Plan, status model.PlanStatus, toolResultsRef string, cursors map[string]any, createdUTC string) *State {
	if status == "" {
		status = model.PlanStatusRunning
	}
	now := utcISOms()
	created := createdUTC
	if created == "" {
		created = now
	}
	return &State{
		SchemaVersion:  SchemaVersion,
		PlanID:         plan.PlanID,
		Goal:           plan.Goal,
		CreatedUTC:     created,
		UpdatedUTC:     now,
		Status:         status,
		Cursors:        cursors,
		ToolResultsRef: toolResultsRef,
		Plan:           plan,
	}
}

func validate(st *State) error {
	if st == nil || st.Plan == nil {
		return fmt.Errorf("checkpoint: state or plan is nil")
	}
	if st.SchemaVersion != SchemaVersion {
		return fmt.Errorf("checkpoint: schema_version mismatch: got %d want %d", st.SchemaVersion, SchemaVersion)
	}
	if st.PlanID == "" {
		return fmt.Errorf("checkpoint: missing plan_id")
	}
	if st.CreatedUTC == "" || st.UpdatedUTC == "" {
		return fmt.Errorf("checkpoint: missing timestamps")
	}
	if st.Status == "" {
		return fmt.Errorf("checkpoint: missing status")
	}
	return nil
}

// canonicalJSON re-encodes v through a generic map so keys are sorted and
// no extraneous whitespace is emitted, yielding byte-stable output.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(generic)
}

// Save atomically writes state to its checkpoint file: serialize, write to
// a temp file in the same directory, fsync, then rename over the target.
// Readers only ever observe a fully-written prior or new file.
func (s *Store) Save(st *State) (SaveResult, error) {
	if st.CreatedUTC == "" {
		st.CreatedUTC = utcISOms()
	}
	st.UpdatedUTC = utcISOms()
	st.SchemaVersion = SchemaVersion
	if err := validate(st); err != nil {
		return SaveResult{}, err
	}

	lock := s.lockFor(st.PlanID)
	lock.Lock()
	defer lock.Unlock()

	path := s.PathFor(st.PlanID)
	data, err := canonicalJSON(st)
	if err != nil {
		return SaveResult{}, fmt.Errorf("checkpoint: marshal: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return SaveResult{}, fmt.Errorf("checkpoint: open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return SaveResult{}, fmt.Errorf("checkpoint: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return SaveResult{}, fmt.Errorf("checkpoint: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return SaveResult{}, fmt.Errorf("checkpoint: close temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return SaveResult{}, fmt.Errorf("checkpoint: rename: %w", err)
	}
	if dir, err := os.Open(s.RootDir); err == nil {
		dir.Sync()
		dir.Close()
	}

	return SaveResult{OK: true, Status: st.Status, Path: path, Bytes: len(data), UpdatedUTC: st.UpdatedUTC}, nil
}

// Exists reports whether a checkpoint file exists for planID.
func (s *Store) Exists(planID string) bool {
	_, err := os.Stat(s.PathFor(planID))
	return err == nil
}

// Load reads and validates the checkpoint for planID.
func (s *Store) Load(planID string) (*State, error) {
	lock := s.lockFor(planID)
	lock.Lock()
	defer lock.Unlock()

	path := s.PathFor(planID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read %s: %w", path, err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("checkpoint: unmarshal %s: %w", path, err)
	}
	if err := validate(&st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Delete removes the checkpoint file for planID, if any.
func (s *Store) Delete(planID string) error {
	lock := s.lockFor(planID)
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(s.PathFor(planID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpoint: delete: %w", err)
	}
	return nil
}
