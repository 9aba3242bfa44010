package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// TaskDescription returns the persisted task description for a document.
// Returns "" with no error if the document has never been saved.
func (s *Store) TaskDescription(docID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var desc string
	err := s.db.QueryRow(
		`SELECT task_description FROM documents WHERE doc_id = ?`, docID,
	).Scan(&desc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load task description: %w", err)
	}
	return desc, nil
}

// SaveTaskDescription persists the task description for a document.
func (s *Store) SaveTaskDescription(docID, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
	INSERT INTO documents (doc_id, task_description, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(doc_id) DO UPDATE SET
		task_description = excluded.task_description,
		updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, docID, description, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to save task description: %w", err)
	}
	return nil
}
