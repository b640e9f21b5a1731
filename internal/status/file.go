package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// statsFormatVersion identifies the on-disk layout of the status file.
const statsFormatVersion = "0.3.0"

// FileStore persists lesson indices to a JSON status file, rewriting the
// whole file on every set so the on-disk state is always current.
type FileStore struct {
	mu   sync.Mutex
	path string
	doc  statusDoc
}

type statusDoc struct {
	Metadata   statusMetadata            `json:"metadata"`
	Parameters map[string]parameterState `json:"parameters"`
}

type statusMetadata struct {
	StatsFormatVersion string `json:"stats_format_version"`
	RunID              string `json:"run_id"`
}

type parameterState struct {
	LessonNum int `json:"lesson_num"`
}

// NewFileStore opens (or creates) a JSON status file at path. An existing
// file is loaded so prior lesson indices are visible to GetLessonNum.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path: path,
		doc: statusDoc{
			Metadata: statusMetadata{
				StatsFormatVersion: statsFormatVersion,
				RunID:              uuid.NewString(),
			},
			Parameters: make(map[string]parameterState),
		},
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("failed to parse status file %s: %w", path, err)
	}
	if s.doc.Parameters == nil {
		s.doc.Parameters = make(map[string]parameterState)
	}
	return s, nil
}

// RunID returns the run identifier stamped on the status file.
func (s *FileStore) RunID() string {
	return s.doc.Metadata.RunID
}

func (s *FileStore) GetLessonNum(parameter string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.doc.Parameters[parameter]
	return state.LessonNum, ok, nil
}

func (s *FileStore) SetLessonNum(parameter string, lessonNum int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Parameters[parameter] = parameterState{LessonNum: lessonNum}
	return s.flush()
}

// flush writes the document atomically via a temp file rename.
func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	return os.Rename(tmp, s.path)
}
