package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kyokaz/trackd/internal/clockify"
	"github.com/kyokaz/trackd/internal/inflight"
	"github.com/kyokaz/trackd/internal/retry"
	"github.com/kyokaz/trackd/internal/state"
	"github.com/kyokaz/trackd/internal/timeutil"
)

// workerTimeout caps a single worker run end to end, on top of the HTTP
// client's own per-request timeout.
const workerTimeout = 30 * time.Second

// spawn runs fn on a fresh goroutine and posts its result message. Exactly
// one message reaches the queue per run: a panic inside fn is converted into
// an error message in the same deferred path that enqueues. then is attached
// to whatever message goes out, so a chained flow still gets its callback
// even when the worker dies.
func (t *Tracker) spawn(op string, then Continuation, fn func(ctx context.Context) Message) {
	t.spawnGuarded(op, "", then, fn)
}

// spawnGuarded is spawn plus an in-flight flag release. The flag is cleared
// in the deferred path before the result is enqueued, so it can never be
// left stuck by a failed or panicking worker.
func (t *Tracker) spawnGuarded(op string, release inflight.Op, then Continuation, fn func(ctx context.Context) Message) {
	opID := uuid.NewString()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), workerTimeout)
		defer cancel()

		var msg Message
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error().Str("op", op).Str("op_id", opID).
					Interface("panic", r).Msg("worker panicked")
				msg = Message{Kind: KindError, Err: fmt.Sprintf("%s: internal error", op)}
			}
			if release != "" {
				t.guard.End(release)
			}
			if msg.Then == nil {
				msg.Then = then
			}
			msg.OpID = opID
			t.enqueue(msg)
		}()

		msg = fn(ctx)
	}()
}

func errMessage(op string, err error) Message {
	return Message{Kind: KindError, Err: op + ": " + err.Error()}
}

func (t *Tracker) launchFetchClients(then Continuation) {
	t.spawn("fetch clients", then, func(ctx context.Context) Message {
		clients, err := t.api.ListClients(ctx)
		if err != nil {
			return errMessage("fetching clients", err)
		}
		out := make([]state.Client, 0, len(clients))
		for _, c := range clients {
			out = append(out, state.Client{ID: c.ID, Name: c.Name})
		}
		return Message{Kind: KindClientsFetched, Clients: out}
	})
}

func (t *Tracker) launchFetchProjects(then Continuation) {
	t.spawn("fetch projects", then, func(ctx context.Context) Message {
		projects, err := t.api.ListProjects(ctx)
		if err != nil {
			return errMessage("fetching projects", err)
		}
		out := make([]state.Project, 0, len(projects))
		for _, p := range projects {
			out = append(out, state.Project{ID: p.ID, Name: p.Name, ClientID: p.ClientID})
		}
		return Message{Kind: KindProjectsFetched, Projects: out}
	})
}

func (t *Tracker) launchCreateClient(name string) {
	t.spawn("create client", nil, func(ctx context.Context) Message {
		c, err := t.api.CreateClient(ctx, name)
		if err != nil {
			return errMessage("creating client", err)
		}
		return Message{Kind: KindClientCreated, Client: c}
	})
}

func (t *Tracker) launchCreateProject(name, clientID string, then Continuation) {
	t.spawn("create project", then, func(ctx context.Context) Message {
		p, err := t.api.CreateProject(ctx, name, clientID)
		if err != nil {
			return errMessage("creating project", err)
		}
		return Message{Kind: KindProjectCreated, Project: p}
	})
}

// launchStart assumes the start flag is already held and releases it when
// the worker finishes.
func (t *Tracker) launchStart(description, projectID string) {
	t.spawnGuarded("start timer", inflight.OpStart, nil, func(ctx context.Context) Message {
		entry, err := t.api.StartTimeEntry(ctx, description, projectID)
		if err != nil {
			return errMessage("starting timer", err)
		}
		return Message{Kind: KindTimerStarted, Entry: entry}
	})
}

// launchStop assumes the stop flag is already held. The worker looks up the
// running entry, records the locally measured elapsed time, then writes the
// end timestamp.
func (t *Tracker) launchStop() {
	t.spawnGuarded("stop timer", inflight.OpStop, nil, func(ctx context.Context) Message {
		entry, err := t.api.InProgressEntry(ctx)
		if err != nil {
			return errMessage("stopping timer", err)
		}
		if entry == nil {
			return Message{Kind: KindNoActiveTimer}
		}

		now := time.Now().UTC()
		elapsed := t.state.Elapsed(now)
		if elapsed == 0 {
			// No local start on record (entry resumed from a previous run
			// that was never synced). Fall back to the server's start stamp.
			if started, perr := time.Parse(time.RFC3339, entry.TimeInterval.Start); perr == nil {
				if d := now.Sub(started); d > 0 {
					elapsed = d
				}
			}
		}
		t.state.SetLastSessionDuration(elapsed)

		updated, err := t.api.UpdateTimeEntry(ctx, entry.ID, clockify.UpdateEntryRequest{
			Start:       entry.TimeInterval.Start,
			End:         now.Format(time.RFC3339),
			Billable:    entry.Billable,
			Description: entry.Description,
			ProjectID:   entry.ProjectID,
			TaskID:      entry.TaskID,
			TagIDs:      entry.TagIDs,
		})
		if err != nil {
			return errMessage("stopping timer", err)
		}
		return Message{Kind: KindTimerStopped, Entry: updated}
	})
}

// launchCheckTimer assumes the status flag is already held.
func (t *Tracker) launchCheckTimer() {
	t.spawnGuarded("check timer", inflight.OpStatus, nil, func(ctx context.Context) Message {
		entry, err := t.api.InProgressEntry(ctx)
		if err != nil {
			return errMessage("checking timer", err)
		}
		if entry == nil {
			return Message{Kind: KindNoActiveTimer}
		}
		return Message{Kind: KindCurrentTimer, Entry: entry}
	})
}

func (t *Tracker) launchVerifyCredentials() {
	t.spawn("verify credentials", nil, func(ctx context.Context) Message {
		user, err := t.api.CurrentUser(ctx)
		if err != nil {
			return errMessage("verifying credentials", err)
		}
		return Message{Kind: KindUserInfo, User: user}
	})
}

func (t *Tracker) launchProjectSummary(projectID string) {
	t.spawn("project summary", nil, func(ctx context.Context) Message {
		now := time.Now().UTC()
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

		entries, err := t.api.TimeEntries(ctx, from, now, projectID)
		if err != nil {
			return errMessage("fetching project summary", err)
		}

		var total time.Duration
		completed := 0
		for _, e := range entries {
			if e.TimeInterval.Duration == "" {
				continue // still running
			}
			total += timeutil.ParseISODuration(e.TimeInterval.Duration)
			completed++
		}
		return Message{Kind: KindProjectSummary, Summary: &ProjectSummary{
			ProjectID: projectID,
			Total:     total,
			Entries:   completed,
			From:      from,
			To:        now,
		}}
	})
}

// Resume runs the startup reconciliation: after the configured delay it asks
// the service for a running entry, retrying transient failures, and posts
// the result like a regular status check. This is the only retried call path.
func (t *Tracker) Resume(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(t.opts.StartupDelay):
		}

		var entry *clockify.TimeEntry
		err := retry.Do(ctx, retry.ResumeConfig(), func(ctx context.Context) error {
			var rerr error
			entry, rerr = t.api.InProgressEntry(ctx)
			return rerr
		})
		opID := uuid.NewString()
		switch {
		case err != nil:
			t.enqueue(errMessage("resuming timer", err))
		case entry == nil:
			t.enqueue(Message{Kind: KindNoActiveTimer, OpID: opID})
		default:
			t.enqueue(Message{Kind: KindCurrentTimer, OpID: opID, Entry: entry})
		}
	}()
}
