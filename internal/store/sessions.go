package store

import (
	"fmt"
	"time"
)

// Session is one completed tracked session.
type Session struct {
	ID             int64
	Description    string
	ProjectID      string
	ProjectName    string
	ClientName     string
	StartedAt      int64 // unix seconds
	DurationSecs   int64
	Hours          float64
	BillableAmount float64
	Rate           float64
	CreatedAt      int64 // unix ms
}

// SaveSession appends a completed session to the history.
func (s *Store) SaveSession(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.CreatedAt == 0 {
		sess.CreatedAt = time.Now().UnixMilli()
	}

	query := `
	INSERT INTO sessions (
		description, project_id, project_name, client_name,
		started_at, duration_secs, hours, billable_amount, rate, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.Exec(query,
		sess.Description, sess.ProjectID, sess.ProjectName, sess.ClientName,
		sess.StartedAt, sess.DurationSecs, sess.Hours, sess.BillableAmount,
		sess.Rate, sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	sess.ID, _ = res.LastInsertId()
	return nil
}

// RecentSessions returns up to limit sessions, newest first.
func (s *Store) RecentSessions(limit int) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
	SELECT id, description, project_id, project_name, client_name,
	       started_at, duration_secs, hours, billable_amount, rate, created_at
	FROM sessions ORDER BY created_at DESC, id DESC LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess := &Session{}
		if err := rows.Scan(
			&sess.ID, &sess.Description, &sess.ProjectID, &sess.ProjectName,
			&sess.ClientName, &sess.StartedAt, &sess.DurationSecs, &sess.Hours,
			&sess.BillableAmount, &sess.Rate, &sess.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// ProjectTotals returns the summed duration and billable amount recorded
// locally for a project since the given instant.
func (s *Store) ProjectTotals(projectID string, since time.Time) (int64, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
	SELECT COALESCE(SUM(duration_secs), 0), COALESCE(SUM(billable_amount), 0)
	FROM sessions WHERE project_id = ? AND created_at >= ?
	`

	var secs int64
	var amount float64
	err := s.db.QueryRow(query, projectID, since.UnixMilli()).Scan(&secs, &amount)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query project totals: %w", err)
	}
	return secs, amount, nil
}
