package tracker

import (
	"fmt"
	"time"

	"github.com/kyokaz/trackd/internal/billing"
	"github.com/kyokaz/trackd/internal/clockify"
	"github.com/kyokaz/trackd/internal/store"
	"github.com/kyokaz/trackd/internal/timeutil"
)

// Handlers run on the dispatcher only. They mutate the shared caches and the
// display but never perform network I/O themselves; anything remote is
// relaunched through the launcher.

func (t *Tracker) handleClientsFetched(msg Message) {
	t.state.SetClients(msg.Clients)

	selected := t.state.ResolveClientSelection(t.state.SelectedClientID())
	t.state.SetSelectedClientID(selected)

	t.display.Update(func(s *Snapshot) {
		s.SelectedClientID = selected
		s.SelectedProjectID = t.state.ResolveProjectSelection(s.SelectedProjectID, selected)
	})
	t.logger.Debug().Int("count", len(msg.Clients)).Msg("clients refreshed")
}

func (t *Tracker) handleProjectsFetched(msg Message) {
	t.state.SetProjects(msg.Projects)

	clientSel := t.state.SelectedClientID()
	t.display.Update(func(s *Snapshot) {
		s.SelectedProjectID = t.state.ResolveProjectSelection(s.SelectedProjectID, clientSel)
	})
	t.logger.Debug().Int("count", len(msg.Projects)).Msg("projects refreshed")
}

func (t *Tracker) handleClientCreated(msg Message) {
	if msg.Client == nil {
		return
	}
	t.state.SetSelectedClientID(msg.Client.ID)
	t.display.Update(func(s *Snapshot) {
		s.SelectedClientID = msg.Client.ID
		s.Status = fmt.Sprintf("Client %q created", msg.Client.Name)
	})
	t.launchFetchClients(nil)
}

func (t *Tracker) handleProjectCreated(msg Message) {
	if msg.Project == nil {
		return
	}
	t.display.Update(func(s *Snapshot) {
		s.SelectedProjectID = msg.Project.ID
		s.Status = fmt.Sprintf("Project %q created", msg.Project.Name)
	})
	t.launchFetchProjects(nil)
}

func (t *Tracker) handleTimerStarted(msg Message) {
	if msg.Entry == nil {
		return
	}
	started := time.Now().UTC()
	if ts, err := time.Parse(time.RFC3339, msg.Entry.TimeInterval.Start); err == nil {
		started = ts
	}
	t.state.SetTimerStart(started)

	entry := msg.Entry
	t.display.Update(func(s *Snapshot) {
		s.TimerRunning = true
		s.ActiveEntryID = entry.ID
		s.AwaitingResetConfirm = false
		if t.opts.Display.ShowTaskName {
			s.ActiveTask = entry.Description
		}
		t.fillProjectFields(s, entry.ProjectID)
		s.Status = "Timer started"
	})
	t.logger.Info().Str("entry_id", entry.ID).Msg("timer started")
}

func (t *Tracker) handleTimerStopped(msg Message) {
	if msg.Entry == nil {
		return
	}
	elapsed := t.state.LastSessionDuration()
	sum := billing.Calculate(elapsed, t.opts.HourlyRate)
	line := sum.SessionLine(elapsed, t.opts.Display.ShowElapsedTime, t.opts.Display.ShowBillable)

	t.state.ClearTimer()
	t.summaries.remove(msg.Entry.ProjectID)

	t.display.Update(func(s *Snapshot) {
		s.TimerRunning = false
		s.ActiveEntryID = ""
		s.ActiveTask = ""
		s.ElapsedDisplay = ""
		s.BillableDisplay = ""
		s.Status = line
		if t.opts.Display.ShowLastSession {
			s.LastSession = line
		}
	})

	t.persistSession(msg.Entry, elapsed, sum)
	t.logger.Info().Str("entry_id", msg.Entry.ID).
		Dur("elapsed", elapsed).Float64("amount", sum.Amount).Msg("timer stopped")
}

func (t *Tracker) handleNoActiveTimer(msg Message) {
	if !t.state.TimerRunning() {
		t.display.SetStatus("No timer running")
		return
	}
	// Local state says running but the service disagrees. Ask the host to
	// confirm a reset, once; repeated checks must not re-raise the prompt.
	prompted := false
	t.display.Update(func(s *Snapshot) {
		if s.AwaitingResetConfirm {
			return
		}
		s.AwaitingResetConfirm = true
		s.Status = "No active timer found; confirm reset of local state"
		prompted = true
	})
	if prompted {
		t.logger.Warn().Msg("local timer has no matching entry on the service")
	}
}

func (t *Tracker) handleCurrentTimer(msg Message) {
	if msg.Entry == nil {
		return
	}
	started := time.Now().UTC()
	if ts, err := time.Parse(time.RFC3339, msg.Entry.TimeInterval.Start); err == nil {
		started = ts
	}
	t.state.SetTimerStart(started)

	entry := msg.Entry
	t.display.Update(func(s *Snapshot) {
		s.TimerRunning = true
		s.ActiveEntryID = entry.ID
		s.AwaitingResetConfirm = false
		if t.opts.Display.ShowTaskName {
			s.ActiveTask = entry.Description
		}
		t.fillProjectFields(s, entry.ProjectID)
		s.Status = "Timer running"
	})
	t.logger.Info().Str("entry_id", entry.ID).Time("started", started).Msg("resumed running timer")
}

func (t *Tracker) handleProjectSummary(msg Message) {
	if msg.Summary == nil {
		return
	}
	sum := billing.Calculate(msg.Summary.Total, t.opts.HourlyRate)
	text := sum.MonthLine(msg.Summary.Total, msg.Summary.Entries, t.opts.Display.ShowBillable)

	t.summaries.put(msg.Summary.ProjectID, *msg.Summary)
	t.display.Update(func(s *Snapshot) {
		s.ProjectSummary = text
	})
}

func (t *Tracker) handleUserInfo(msg Message) {
	if msg.User == nil {
		return
	}
	if t.api.UserID() == "" {
		t.api.SetUserID(msg.User.ID)
	}
	t.display.Update(func(s *Snapshot) {
		s.VerifiedUser = msg.User.Name
		s.Status = fmt.Sprintf("Credentials verified for %s", msg.User.Name)
	})
	t.logger.Info().Str("user_id", msg.User.ID).Msg("credentials verified")
}

func (t *Tracker) handleError(msg Message) {
	t.display.SetStatus("Error: " + msg.Err)
	if t.metrics != nil {
		t.metrics.RecordError("tracker", "operation")
	}
	t.logger.Error().Str("op_id", msg.OpID).Str("error", msg.Err).Msg("operation failed")
}

// fillProjectFields resolves the project and client names for the display,
// honoring the visibility toggles. Must be called with the display lock held
// (inside Update).
func (t *Tracker) fillProjectFields(s *Snapshot, projectID string) {
	s.ProjectName = ""
	s.ClientName = ""
	if projectID == "" {
		return
	}
	if t.opts.Display.ShowProjectName {
		s.ProjectName = t.state.ProjectName(projectID)
	}
	if t.opts.Display.ShowClientName {
		for _, p := range t.state.Projects() {
			if p.ID == projectID && p.ClientID != "" {
				s.ClientName = t.state.ClientName(p.ClientID)
				break
			}
		}
	}
}

// persistSession appends the completed session to local history. Persistence
// failures are logged, never surfaced to the host.
func (t *Tracker) persistSession(entry *clockify.TimeEntry, elapsed time.Duration, sum billing.Summary) {
	if t.db == nil {
		return
	}
	startedAt := time.Now().UTC().Add(-elapsed)
	if ts, err := time.Parse(time.RFC3339, entry.TimeInterval.Start); err == nil {
		startedAt = ts
	}

	clientName := ""
	for _, p := range t.state.Projects() {
		if p.ID == entry.ProjectID && p.ClientID != "" {
			clientName = t.state.ClientName(p.ClientID)
			break
		}
	}

	sess := &store.Session{
		Description:    entry.Description,
		ProjectID:      entry.ProjectID,
		ProjectName:    t.state.ProjectName(entry.ProjectID),
		ClientName:     clientName,
		StartedAt:      startedAt.Unix(),
		DurationSecs:   int64(elapsed / time.Second),
		Hours:          sum.Hours,
		BillableAmount: sum.Amount,
		Rate:           sum.Rate,
	}
	if err := t.db.SaveSession(sess); err != nil {
		t.logger.Error().Err(err).Msg("failed to persist session")
	} else {
		t.logger.Debug().Int64("session_id", sess.ID).
			Str("duration", timeutil.FormatDetailed(elapsed)).Msg("session persisted")
	}
}
