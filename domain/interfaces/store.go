package interfaces

import "ui_relocator/domain/entities"

// ElementStore persists captured-element records between sessions.
type ElementStore interface {
	// Save writes the record, replacing any previous version with the same
	// id.
	Save(element *entities.CapturedElement) error

	// Load reads one record by id.
	Load(id string) (*entities.CapturedElement, error)

	// List returns summaries of every stored record, newest capture first.
	List() ([]entities.CapturedElementSummary, error)

	// Delete removes a record.
	Delete(id string) error

	// FindByFingerprint returns the stored record most similar to fp along
	// with its similarity, provided the similarity reaches minScore. It
	// returns nil and 0 when no record qualifies.
	FindByFingerprint(fp entities.Fingerprint, minScore float64) (*entities.CapturedElement, float64, error)
}
