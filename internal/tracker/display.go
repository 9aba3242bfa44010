package tracker

import "sync"

// Snapshot is the host-facing view of the tracker, rebuilt by the dispatcher
// as messages are handled. All fields are plain values so the host can render
// them without further lookups.
type Snapshot struct {
	Status string `json:"status"`

	TimerRunning    bool   `json:"timer_running"`
	ActiveEntryID   string `json:"active_entry_id,omitempty"`
	ActiveTask      string `json:"active_task,omitempty"`
	ProjectName     string `json:"project_name,omitempty"`
	ClientName      string `json:"client_name,omitempty"`
	ElapsedDisplay  string `json:"elapsed,omitempty"`
	BillableDisplay string `json:"billable,omitempty"`

	LastSession    string `json:"last_session,omitempty"`
	ProjectSummary string `json:"project_summary,omitempty"`

	SelectedClientID  string `json:"selected_client_id,omitempty"`
	SelectedProjectID string `json:"selected_project_id,omitempty"`

	AwaitingResetConfirm bool `json:"awaiting_reset_confirm,omitempty"`

	VerifiedUser string `json:"verified_user,omitempty"`
}

// Display holds the current snapshot behind a lock. The dispatcher is the
// only writer; the management API reads it concurrently.
type Display struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewDisplay returns a display with an idle status.
func NewDisplay() *Display {
	return &Display{snap: Snapshot{Status: "Ready"}}
}

// Snapshot returns a copy of the current view.
func (d *Display) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap
}

// Update applies fn to the snapshot under the write lock.
func (d *Display) Update(fn func(s *Snapshot)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.snap)
}

// SetStatus replaces just the status line.
func (d *Display) SetStatus(status string) {
	d.Update(func(s *Snapshot) { s.Status = status })
}
