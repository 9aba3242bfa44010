// Package tracker coordinates the asynchronous time-tracking operations.
// Workers run network calls off-thread and post exactly one tagged result
// message onto a single-consumer queue; the dispatcher drains the queue in
// bounded batches on a fixed tick and applies results to the shared state
// and the host-facing display.
package tracker

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kyokaz/trackd/internal/billing"
	"github.com/kyokaz/trackd/internal/clockify"
	"github.com/kyokaz/trackd/internal/config"
	trackderrors "github.com/kyokaz/trackd/internal/errors"
	"github.com/kyokaz/trackd/internal/inflight"
	"github.com/kyokaz/trackd/internal/metrics"
	"github.com/kyokaz/trackd/internal/state"
	"github.com/kyokaz/trackd/internal/store"
	"github.com/kyokaz/trackd/internal/timeutil"
)

const defaultQueueSize = 256

// Options configures the tracker.
type Options struct {
	HourlyRate    float64
	Display       config.DisplayOptions
	TickInterval  time.Duration
	DispatchBatch int
	StartupDelay  time.Duration
	QueueSize     int
}

// Tracker owns the result queue, the in-flight guard and the shared caches.
// Public operations spawn workers and return immediately; results surface
// through the Display once the dispatcher has processed them.
type Tracker struct {
	api     *clockify.API
	state   *state.Store
	db      *store.Store
	display *Display
	guard   *inflight.Guard
	metrics *metrics.Metrics
	opts    Options
	logger  zerolog.Logger

	queue     chan Message
	summaries *summaryCache

	// refresh is invoked once per dispatcher tick after a batch is handled.
	// It must be an idempotent redraw signal, cheap to call every tick.
	refresh func()
}

// New creates a tracker. db may be nil, in which case sessions and task
// descriptions are not persisted.
func New(api *clockify.API, st *state.Store, db *store.Store, m *metrics.Metrics, opts Options, logger zerolog.Logger) *Tracker {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 100 * time.Millisecond
	}
	if opts.DispatchBatch <= 0 {
		opts.DispatchBatch = 10
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	return &Tracker{
		api:       api,
		state:     st,
		db:        db,
		display:   NewDisplay(),
		guard:     inflight.New(),
		metrics:   m,
		opts:      opts,
		logger:    logger.With().Str("component", "tracker").Logger(),
		queue:     make(chan Message, opts.QueueSize),
		summaries: newSummaryCache(32, 5*time.Minute),
		refresh:   func() {},
	}
}

// SetRefreshHook registers the host redraw signal. Must be called before Run.
func (t *Tracker) SetRefreshHook(fn func()) {
	if fn != nil {
		t.refresh = fn
	}
}

// Display returns the host-facing view.
func (t *Tracker) Display() *Display {
	return t.display
}

// LiveStatus returns the current snapshot with the running timer's elapsed
// and billable figures computed at call time.
func (t *Tracker) LiveStatus() Snapshot {
	snap := t.display.Snapshot()
	if !t.state.TimerRunning() {
		return snap
	}
	elapsed := t.state.Elapsed(time.Now().UTC())
	snap.TimerRunning = true
	if t.opts.Display.ShowElapsedTime {
		snap.ElapsedDisplay = timeutil.FormatClock(elapsed)
	}
	if t.opts.Display.ShowBillable {
		sum := billing.Calculate(elapsed, t.opts.HourlyRate)
		snap.BillableDisplay = fmt.Sprintf("$%.2f", sum.Amount)
	}
	return snap
}

// State returns the shared cache store.
func (t *Tracker) State() *state.Store {
	return t.state
}

// OperationsInFlight lists the guarded operation kinds currently running.
func (t *Tracker) OperationsInFlight() []string {
	var out []string
	for _, op := range []inflight.Op{inflight.OpStart, inflight.OpStop, inflight.OpStatus} {
		if t.guard.InProgress(op) {
			out = append(out, string(op))
		}
	}
	return out
}

// enqueue posts a result message. The queue is buffered well past the
// number of concurrent workers, so a send only blocks if the dispatcher has
// stalled entirely.
func (t *Tracker) enqueue(msg Message) {
	t.queue <- msg
	if t.metrics != nil {
		t.metrics.SetQueueDepth(len(t.queue))
	}
}

// RefreshClients fetches the workspace client list in the background.
func (t *Tracker) RefreshClients() {
	t.launchFetchClients(nil)
}

// RefreshProjects fetches the workspace project list in the background.
func (t *Tracker) RefreshProjects() {
	t.launchFetchProjects(nil)
}

// CreateClient creates a workspace client in the background. The client list
// is refreshed and the new client selected once the result arrives.
func (t *Tracker) CreateClient(name string) error {
	if name == "" {
		return trackderrors.ErrInvalidInput
	}
	t.launchCreateClient(name)
	return nil
}

// CreateProject creates a workspace project in the background, bound to the
// given client selection. Sentinel selections map to "no client".
func (t *Tracker) CreateProject(name, clientID string) error {
	if name == "" {
		return trackderrors.ErrInvalidInput
	}
	t.launchCreateProject(name, resolveClientID(clientID), nil)
	return nil
}

// Start begins a time entry. If projectID is the create-new sentinel, the
// project named by projectName is created first and the entry started under
// it. Returns ErrDuplicateOperation if a start is already in flight.
func (t *Tracker) Start(description, projectID, projectName string) error {
	if !t.guard.TryBegin(inflight.OpStart) {
		return trackderrors.ErrDuplicateOperation
	}
	if projectID == state.SelectionCreateNew {
		if projectName == "" {
			t.guard.End(inflight.OpStart)
			return trackderrors.ErrInvalidInput
		}
		clientID := resolveClientID(t.state.SelectedClientID())
		t.launchCreateProject(projectName, clientID, func(msg Message) {
			// Chained start: runs on the dispatcher after the project
			// handler, so the fresh project id is already cached.
			if msg.Kind != KindProjectCreated || msg.Project == nil {
				t.guard.End(inflight.OpStart)
				return
			}
			t.launchStart(description, msg.Project.ID)
		})
		return nil
	}
	t.launchStart(description, projectID)
	return nil
}

// Stop ends the running time entry. Returns ErrDuplicateOperation if a stop
// is already in flight.
func (t *Tracker) Stop() error {
	if !t.guard.TryBegin(inflight.OpStop) {
		return trackderrors.ErrDuplicateOperation
	}
	t.launchStop()
	return nil
}

// CheckTimer reconciles local timer state against the service. Returns
// ErrDuplicateOperation if a check is already in flight.
func (t *Tracker) CheckTimer() error {
	if !t.guard.TryBegin(inflight.OpStatus) {
		return trackderrors.ErrDuplicateOperation
	}
	t.launchCheckTimer()
	return nil
}

// ConfirmReset resolves a pending local-reset prompt. With confirm true the
// local timer state is discarded; either way the prompt is cleared and a new
// one may be raised by a later check.
func (t *Tracker) ConfirmReset(confirm bool) {
	if confirm {
		t.state.ClearTimer()
		t.state.SetLastSessionDuration(0)
	}
	t.display.Update(func(s *Snapshot) {
		s.AwaitingResetConfirm = false
		if confirm {
			s.TimerRunning = false
			s.ActiveEntryID = ""
			s.ActiveTask = ""
			s.ElapsedDisplay = ""
			s.BillableDisplay = ""
			s.Status = "Timer state reset"
		} else {
			s.Status = "Reset cancelled"
		}
	})
	t.refresh()
}

// VerifyCredentials checks the API key in the background and fills in the
// acting user id on success.
func (t *Tracker) VerifyCredentials() {
	t.launchVerifyCredentials()
}

// FetchProjectSummary loads this month's totals for a project. A fresh
// cached summary is replayed through the queue without a network call.
func (t *Tracker) FetchProjectSummary(projectID string) error {
	if projectID == "" || projectID == state.SelectionCreateNew {
		return trackderrors.ErrInvalidInput
	}
	if cached, ok := t.summaries.get(projectID); ok {
		t.enqueue(Message{Kind: KindProjectSummary, OpID: uuid.NewString(), Summary: &cached})
		return nil
	}
	t.launchProjectSummary(projectID)
	return nil
}

// SelectClient records the client selection and revalidates the project
// selection against the projects visible under it.
func (t *Tracker) SelectClient(clientID string) {
	t.state.SetSelectedClientID(clientID)
	t.display.Update(func(s *Snapshot) {
		s.SelectedClientID = clientID
		s.SelectedProjectID = t.state.ResolveProjectSelection(s.SelectedProjectID, clientID)
	})
	t.refresh()
}

// SelectProject records the project selection.
func (t *Tracker) SelectProject(projectID string) {
	t.display.Update(func(s *Snapshot) {
		s.SelectedProjectID = projectID
	})
	t.refresh()
}

// resolveClientID maps selection sentinels to the empty id the API expects.
func resolveClientID(clientID string) string {
	if clientID == state.ClientNone || clientID == state.SelectionCreateNew {
		return ""
	}
	return clientID
}
