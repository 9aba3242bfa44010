package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyokaz/trackd/internal/clockify"
	"github.com/kyokaz/trackd/internal/config"
	trackderrors "github.com/kyokaz/trackd/internal/errors"
	"github.com/kyokaz/trackd/internal/inflight"
	"github.com/kyokaz/trackd/internal/metrics"
	"github.com/kyokaz/trackd/internal/state"
	"github.com/kyokaz/trackd/internal/store"
)

func newTestTracker(t *testing.T, handler http.Handler) *Tracker {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	api := clockify.New(clockify.Config{
		BaseURL:     server.URL,
		APIKey:      "test-key",
		WorkspaceID: "ws1",
		UserID:      "u1",
	}, zerolog.Nop())
	api.SetHTTPClient(server.Client())

	return New(api, state.New(), nil, metrics.New(), Options{
		HourlyRate:    25.0,
		Display:       config.DefaultDisplayOptions(),
		TickInterval:  10 * time.Millisecond,
		DispatchBatch: 10,
	}, zerolog.Nop())
}

// waitQueued blocks until at least n messages are waiting for dispatch.
func waitQueued(t *testing.T, tr *Tracker, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(tr.queue) >= n },
		2*time.Second, 5*time.Millisecond, "expected %d queued messages", n)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	json.NewEncoder(w).Encode(v)
}

func TestStart_SingleFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	tr := newTestTracker(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		writeJSON(w, clockify.TimeEntry{
			ID:           "e1",
			Description:  "Modeling",
			TimeInterval: clockify.TimeInterval{Start: "2026-08-29T09:00:00Z"},
		})
	}))

	require.NoError(t, tr.Start("Modeling", "p1", ""))
	<-entered

	// A second start while the first is in flight loses the race.
	err := tr.Start("Modeling", "p1", "")
	require.ErrorIs(t, err, trackderrors.ErrDuplicateOperation)

	close(release)
	waitQueued(t, tr, 1)
	handled := tr.Tick()
	assert.Equal(t, 1, handled, "the losing call must not enqueue anything")

	snap := tr.Display().Snapshot()
	assert.True(t, snap.TimerRunning)
	assert.Equal(t, "e1", snap.ActiveEntryID)
	assert.Equal(t, "Modeling", snap.ActiveTask)

	// The flag is released once the worker finishes.
	assert.True(t, tr.guard.TryBegin(inflight.OpStart))
}

func TestTick_BatchLimitAndFIFO(t *testing.T) {
	tr := newTestTracker(t, http.NotFoundHandler())

	var order []int
	for i := 0; i < 15; i++ {
		i := i
		tr.enqueue(Message{Kind: KindError, Err: fmt.Sprintf("op %d", i), Then: func(Message) {
			order = append(order, i)
		}})
	}

	assert.Equal(t, 10, tr.Tick(), "first tick drains at most the batch limit")
	assert.Equal(t, 5, tr.Tick(), "remainder carries over to the next tick")
	assert.Equal(t, 0, tr.Tick())

	require.Len(t, order, 15)
	for i, got := range order {
		assert.Equal(t, i, got, "messages must dispatch in arrival order")
	}
}

func TestRefreshHook_FiresEveryTick(t *testing.T) {
	tr := newTestTracker(t, http.NotFoundHandler())
	fired := 0
	tr.SetRefreshHook(func() { fired++ })

	tr.Tick()
	tr.enqueue(Message{Kind: KindError, Err: "x"})
	tr.Tick()
	assert.Equal(t, 2, fired, "refresh fires once per tick, empty or not")
}

func TestStopFlow_BillingAndState(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/workspaces/ws1/user/u1/time-entries", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []clockify.TimeEntry{{
			ID:           "e1",
			Description:  "Rigging",
			ProjectID:    "p1",
			TimeInterval: clockify.TimeInterval{Start: "2026-08-29T09:00:00Z"},
		}})
	})
	mux.HandleFunc("/workspaces/ws1/time-entries/e1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotEmpty(t, body["end"], "stop must write an end timestamp")
		writeJSON(w, clockify.TimeEntry{ID: "e1", Description: "Rigging", ProjectID: "p1"})
	})
	tr := newTestTracker(t, mux)

	tr.state.SetTimerStart(time.Now().UTC().Add(-3661 * time.Second))

	require.NoError(t, tr.Stop())
	waitQueued(t, tr, 1)
	tr.Tick()

	assert.False(t, tr.state.TimerRunning())
	assert.InDelta(t, 3661, tr.state.LastSessionDuration().Seconds(), 2)

	snap := tr.Display().Snapshot()
	assert.False(t, snap.TimerRunning)
	assert.Contains(t, snap.LastSession, "1h 1m")
	assert.Contains(t, snap.LastSession, "$25.4")
	assert.Contains(t, snap.LastSession, "@ $25.00/hr")

	// A second stop with nothing running reports the duplicate guard only
	// while one is in flight; after completion it goes through again.
	assert.True(t, tr.guard.TryBegin(inflight.OpStop))
}

func TestNoActiveTimer_PromptIsOneShot(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/workspaces/ws1/user/u1/time-entries", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []clockify.TimeEntry{})
	})
	tr := newTestTracker(t, mux)

	tr.state.SetTimerStart(time.Now().UTC().Add(-time.Minute))

	require.NoError(t, tr.CheckTimer())
	waitQueued(t, tr, 1)
	tr.Tick()

	snap := tr.Display().Snapshot()
	assert.True(t, snap.AwaitingResetConfirm)
	assert.Contains(t, snap.Status, "confirm reset")

	// A repeat check while the prompt is pending must not re-raise it.
	tr.Display().SetStatus("working")
	require.NoError(t, tr.CheckTimer())
	waitQueued(t, tr, 1)
	tr.Tick()

	snap = tr.Display().Snapshot()
	assert.True(t, snap.AwaitingResetConfirm)
	assert.Equal(t, "working", snap.Status, "prompt must not fire twice")

	// Confirming discards local state and re-arms the prompt.
	tr.ConfirmReset(true)
	assert.False(t, tr.state.TimerRunning())
	snap = tr.Display().Snapshot()
	assert.False(t, snap.AwaitingResetConfirm)
	assert.False(t, snap.TimerRunning)
}

func TestConfirmReset_Declined(t *testing.T) {
	tr := newTestTracker(t, http.NotFoundHandler())
	tr.state.SetTimerStart(time.Now().UTC().Add(-time.Minute))
	tr.display.Update(func(s *Snapshot) { s.AwaitingResetConfirm = true })

	tr.ConfirmReset(false)

	assert.True(t, tr.state.TimerRunning(), "declining keeps local state")
	assert.False(t, tr.Display().Snapshot().AwaitingResetConfirm)
}

func TestCheckTimer_ResumesRunningEntry(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/workspaces/ws1/user/u1/time-entries", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []clockify.TimeEntry{{
			ID:           "e7",
			Description:  "Texturing",
			ProjectID:    "p1",
			TimeInterval: clockify.TimeInterval{Start: "2026-08-29T08:30:00Z"},
		}})
	})
	tr := newTestTracker(t, mux)

	require.NoError(t, tr.CheckTimer())
	waitQueued(t, tr, 1)
	tr.Tick()

	assert.True(t, tr.state.TimerRunning())
	want := time.Date(2026, 8, 29, 8, 30, 0, 0, time.UTC)
	assert.True(t, tr.state.TimerStart().Equal(want))

	snap := tr.Display().Snapshot()
	assert.Equal(t, "e7", snap.ActiveEntryID)
	assert.Equal(t, "Texturing", snap.ActiveTask)
}

func TestClientsFetched_SelectionFallback(t *testing.T) {
	tr := newTestTracker(t, http.NotFoundHandler())
	tr.state.SetSelectedClientID("gone")

	tr.enqueue(Message{Kind: KindClientsFetched, Clients: []state.Client{
		{ID: "c1", Name: "Acme"},
		{ID: "c2", Name: "Globex"},
	}})
	tr.Tick()

	assert.Equal(t, "c1", tr.state.SelectedClientID(), "vanished selection falls back to first")

	tr.enqueue(Message{Kind: KindClientsFetched})
	tr.Tick()
	assert.Equal(t, state.SelectionCreateNew, tr.state.SelectedClientID())
}

func TestProjectsFetched_SelectionFallback(t *testing.T) {
	tr := newTestTracker(t, http.NotFoundHandler())
	tr.state.SetSelectedClientID("c1")
	tr.display.Update(func(s *Snapshot) { s.SelectedProjectID = "gone" })

	tr.enqueue(Message{Kind: KindProjectsFetched, Projects: []state.Project{
		{ID: "p1", Name: "Website", ClientID: "c1"},
		{ID: "p2", Name: "Internal"},
	}})
	tr.Tick()

	assert.Equal(t, "p1", tr.Display().Snapshot().SelectedProjectID)
}

func TestStart_CreateNewProjectChain(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/workspaces/ws1/projects", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			writeJSON(w, clockify.Project{ID: "p9", Name: "Short Film"})
			return
		}
		writeJSON(w, []clockify.Project{{ID: "p9", Name: "Short Film"}})
	})
	mux.HandleFunc("/workspaces/ws1/time-entries", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "p9", body["projectId"], "entry must start under the fresh project")
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, clockify.TimeEntry{
			ID: "e3", Description: "Animatic", ProjectID: "p9",
			TimeInterval: clockify.TimeInterval{Start: "2026-08-29T10:00:00Z"},
		})
	})
	tr := newTestTracker(t, mux)

	require.NoError(t, tr.Start("Animatic", state.SelectionCreateNew, "Short Film"))

	// First hop: project created. The chained continuation relaunches the
	// start worker while the flag is still held.
	waitQueued(t, tr, 1)
	err := tr.Start("Animatic", "p9", "")
	require.ErrorIs(t, err, trackderrors.ErrDuplicateOperation, "flag spans the whole chain")
	tr.Tick()
	assert.Equal(t, "p9", tr.Display().Snapshot().SelectedProjectID)

	// Second hop: the timer starts. The project refresh relaunched by the
	// handler may land in either order with it.
	require.Eventually(t, func() bool {
		tr.Tick()
		return tr.Display().Snapshot().TimerRunning
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "e3", tr.Display().Snapshot().ActiveEntryID)
	assert.True(t, tr.guard.TryBegin(inflight.OpStart), "flag released after the chain")
}

func TestStart_CreateNewWithoutName(t *testing.T) {
	tr := newTestTracker(t, http.NotFoundHandler())
	err := tr.Start("Task", state.SelectionCreateNew, "")
	require.ErrorIs(t, err, trackderrors.ErrInvalidInput)
	assert.True(t, tr.guard.TryBegin(inflight.OpStart), "rejected start must release the flag")
}

func TestWorkerPanic_BecomesErrorMessage(t *testing.T) {
	tr := newTestTracker(t, http.NotFoundHandler())

	tr.spawnGuarded("boom", inflight.OpStatus, nil, func(ctx context.Context) Message {
		panic("worker bug")
	})

	waitQueued(t, tr, 1)
	assert.Equal(t, 1, tr.Tick(), "a panicking worker still posts exactly one message")
	assert.Contains(t, tr.Display().Snapshot().Status, "internal error")
	assert.True(t, tr.guard.TryBegin(inflight.OpStatus), "panic must not leave the flag stuck")
}

// panicTransport stands in for an HTTP client whose transport blows up.
type panicTransport struct{}

func (panicTransport) Do(*http.Request) (*http.Response, error) {
	panic("transport bug")
}

func TestChainedStart_WorkerPanicReleasesFlag(t *testing.T) {
	tr := newTestTracker(t, http.NotFoundHandler())
	tr.api.SetHTTPClient(panicTransport{})

	require.NoError(t, tr.Start("Task", state.SelectionCreateNew, "Short Film"))
	waitQueued(t, tr, 1)
	tr.Tick()

	assert.Contains(t, tr.Display().Snapshot().Status, "internal error")
	assert.True(t, tr.guard.TryBegin(inflight.OpStart),
		"a dead create-project worker must not leave the start flag stuck")
}

func TestContinuationPanic_DoesNotKillDispatch(t *testing.T) {
	tr := newTestTracker(t, http.NotFoundHandler())

	tr.enqueue(Message{Kind: KindError, Err: "first", Then: func(Message) { panic("bad callback") }})
	tr.enqueue(Message{Kind: KindError, Err: "second"})

	assert.Equal(t, 2, tr.Tick())
	assert.Equal(t, "Error: second", tr.Display().Snapshot().Status)
}

func TestProjectSummary_CachedReplay(t *testing.T) {
	requests := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/workspaces/ws1/user/u1/time-entries", func(w http.ResponseWriter, r *http.Request) {
		requests++
		writeJSON(w, []clockify.TimeEntry{
			{ID: "e1", TimeInterval: clockify.TimeInterval{Duration: "PT2H"}},
			{ID: "e2", TimeInterval: clockify.TimeInterval{Duration: "PT30M"}},
			{ID: "e3", TimeInterval: clockify.TimeInterval{Start: "2026-08-29T09:00:00Z"}}, // running
		})
	})
	tr := newTestTracker(t, mux)

	require.NoError(t, tr.FetchProjectSummary("p1"))
	waitQueued(t, tr, 1)
	tr.Tick()

	snap := tr.Display().Snapshot()
	assert.Contains(t, snap.ProjectSummary, "2h 30m")
	assert.Contains(t, snap.ProjectSummary, "(2 sessions)")
	assert.Contains(t, snap.ProjectSummary, "$62.50")
	assert.Equal(t, 1, requests)

	// Second fetch is served from cache: no new request.
	tr.display.Update(func(s *Snapshot) { s.ProjectSummary = "" })
	require.NoError(t, tr.FetchProjectSummary("p1"))
	tr.Tick()
	assert.Contains(t, tr.Display().Snapshot().ProjectSummary, "2h 30m")
	assert.Equal(t, 1, requests)
}

func TestVerifyCredentials_FillsUserID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, clockify.User{ID: "u42", Name: "Kyo"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	api := clockify.New(clockify.Config{
		BaseURL: server.URL, APIKey: "k", WorkspaceID: "ws1",
	}, zerolog.Nop())
	api.SetHTTPClient(server.Client())
	tr := New(api, state.New(), nil, metrics.New(), Options{}, zerolog.Nop())

	tr.VerifyCredentials()
	waitQueued(t, tr, 1)
	tr.Tick()

	assert.Equal(t, "u42", api.UserID())
	assert.Equal(t, "Kyo", tr.Display().Snapshot().VerifiedUser)
}

func TestStopFlow_PersistsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/workspaces/ws1/user/u1/time-entries", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []clockify.TimeEntry{{
			ID: "e1", Description: "Compositing", ProjectID: "p1",
			TimeInterval: clockify.TimeInterval{Start: "2026-08-29T09:00:00Z"},
		}})
	})
	mux.HandleFunc("/workspaces/ws1/time-entries/e1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, clockify.TimeEntry{ID: "e1", Description: "Compositing", ProjectID: "p1",
			TimeInterval: clockify.TimeInterval{Start: "2026-08-29T09:00:00Z"}})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	api := clockify.New(clockify.Config{
		BaseURL: server.URL, APIKey: "k", WorkspaceID: "ws1", UserID: "u1",
	}, zerolog.Nop())
	api.SetHTTPClient(server.Client())

	db, err := store.New(filepath.Join(t.TempDir(), "trackd.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st := state.New()
	st.SetClients([]state.Client{{ID: "c1", Name: "Acme"}})
	st.SetProjects([]state.Project{{ID: "p1", Name: "Website", ClientID: "c1"}})
	st.SetTimerStart(time.Now().UTC().Add(-30 * time.Minute))

	tr := New(api, st, db, metrics.New(), Options{
		HourlyRate: 25.0, Display: config.DefaultDisplayOptions(),
	}, zerolog.Nop())

	require.NoError(t, tr.Stop())
	waitQueued(t, tr, 1)
	tr.Tick()

	sessions, err := db.RecentSessions(5)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Compositing", sessions[0].Description)
	assert.Equal(t, "Website", sessions[0].ProjectName)
	assert.Equal(t, "Acme", sessions[0].ClientName)
	assert.InDelta(t, 1800, sessions[0].DurationSecs, 2)
	assert.InDelta(t, 12.5, sessions[0].BillableAmount, 0.1)
}

func TestSelectClient_RevalidatesProject(t *testing.T) {
	tr := newTestTracker(t, http.NotFoundHandler())
	tr.state.SetProjects([]state.Project{
		{ID: "p1", Name: "Website", ClientID: "c1"},
		{ID: "p2", Name: "Logo", ClientID: "c2"},
	})
	tr.display.Update(func(s *Snapshot) { s.SelectedProjectID = "p1" })

	tr.SelectClient("c2")

	snap := tr.Display().Snapshot()
	assert.Equal(t, "c2", snap.SelectedClientID)
	assert.Equal(t, "p2", snap.SelectedProjectID, "project selection follows the client")
}
