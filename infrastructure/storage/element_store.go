package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ui_relocator/domain/entities"
	"ui_relocator/domain/interfaces"
)

const (
	elementsDirName = "elements"
	indexFileName   = "index.json"
)

// JSONStore persists captured-element records as one JSON file per element
// plus a summary index. Writes go through a temp file and a rename so a
// crash mid-write never leaves a half-written record behind.
type JSONStore struct {
	mu     sync.Mutex
	dir    string
	logger *logrus.Logger
}

var _ interfaces.ElementStore = (*JSONStore)(nil)

type indexDocument struct {
	UpdatedAt time.Time                         `json:"updated_at"`
	Entries   []entities.CapturedElementSummary `json:"entries"`
}

// NewJSONStore opens (or creates) a store rooted at dir. An empty dir means
// .ui_relocator under the user's home directory.
func NewJSONStore(dir string, logger *logrus.Logger) (*JSONStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate home directory: %w", err)
		}
		dir = filepath.Join(home, ".ui_relocator")
	}
	if err := os.MkdirAll(filepath.Join(dir, elementsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &JSONStore{dir: dir, logger: logger}, nil
}

// Dir returns the store root.
func (s *JSONStore) Dir() string {
	return s.dir
}

// Save writes the record and refreshes the index.
func (s *JSONStore) Save(element *entities.CapturedElement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if element == nil {
		return fmt.Errorf("nothing to save")
	}
	if element.ID == "" {
		element.ID = uuid.NewString()
	}
	element.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(element, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal element %s: %w", element.ID, err)
	}
	if err := s.writeAtomic(s.elementPath(element.ID), data); err != nil {
		return fmt.Errorf("failed to write element %s: %w", element.ID, err)
	}
	if err := s.updateIndex(summaryOf(element)); err != nil {
		return err
	}
	s.logger.Debugf("saved element %s (%s)", element.ID, element.Name)
	return nil
}

// Load reads one record by id.
func (s *JSONStore) Load(id string) (*entities.CapturedElement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(id)
}

func (s *JSONStore) load(id string) (*entities.CapturedElement, error) {
	data, err := os.ReadFile(s.elementPath(id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("no captured element with id %q", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read element %s: %w", id, err)
	}
	var element entities.CapturedElement
	if err := json.Unmarshal(data, &element); err != nil {
		return nil, fmt.Errorf("failed to unmarshal element %s: %w", id, err)
	}
	return &element, nil
}

// List returns summaries of every stored record, newest capture first.
func (s *JSONStore) List() ([]entities.CapturedElementSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(idx.Entries, func(i, j int) bool {
		return idx.Entries[i].CapturedAt.After(idx.Entries[j].CapturedAt)
	})
	return idx.Entries, nil
}

// Delete removes a record and its index entry.
func (s *JSONStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.elementPath(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no captured element with id %q", id)
		}
		return fmt.Errorf("failed to delete element %s: %w", id, err)
	}
	idx, err := s.readIndex()
	if err != nil {
		return err
	}
	kept := idx.Entries[:0]
	for _, e := range idx.Entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	idx.Entries = kept
	return s.writeIndex(idx)
}

// FindByFingerprint returns the stored record most similar to fp along with
// the similarity, provided it reaches minScore.
func (s *JSONStore) FindByFingerprint(fp entities.Fingerprint, minScore float64) (*entities.CapturedElement, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.readIndex()
	if err != nil {
		return nil, 0, err
	}
	bestID := ""
	bestScore := 0.0
	for _, e := range idx.Entries {
		score := fp.Similarity(e.Fingerprint)
		if score > bestScore {
			bestID, bestScore = e.ID, score
		}
	}
	if bestID == "" || bestScore < minScore {
		return nil, 0, nil
	}
	element, err := s.load(bestID)
	if err != nil {
		return nil, 0, err
	}
	return element, bestScore, nil
}

func (s *JSONStore) elementPath(id string) string {
	return filepath.Join(s.dir, elementsDirName, id+".json")
}

func (s *JSONStore) indexPath() string {
	return filepath.Join(s.dir, indexFileName)
}

func (s *JSONStore) readIndex() (*indexDocument, error) {
	data, err := os.ReadFile(s.indexPath())
	if os.IsNotExist(err) {
		return &indexDocument{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	var idx indexDocument
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index: %w", err)
	}
	return &idx, nil
}

func (s *JSONStore) writeIndex(idx *indexDocument) error {
	idx.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	if err := s.writeAtomic(s.indexPath(), data); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

func (s *JSONStore) updateIndex(summary entities.CapturedElementSummary) error {
	idx, err := s.readIndex()
	if err != nil {
		return err
	}
	replaced := false
	for i, e := range idx.Entries {
		if e.ID == summary.ID {
			idx.Entries[i] = summary
			replaced = true
			break
		}
	}
	if !replaced {
		idx.Entries = append(idx.Entries, summary)
	}
	return s.writeIndex(idx)
}

func (s *JSONStore) writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func summaryOf(element *entities.CapturedElement) entities.CapturedElementSummary {
	summary := entities.CapturedElementSummary{
		ID:          element.ID,
		Name:        element.Name,
		WindowTitle: element.WindowTitle,
		Fingerprint: element.Fingerprint,
		Entries:     element.Cascade.Len(),
		CapturedAt:  element.CapturedAt,
	}
	if best, ok := element.Cascade.Best(); ok {
		summary.BestTier = best.Score.Tier
	}
	return summary
}
