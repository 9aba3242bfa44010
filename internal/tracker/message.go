package tracker

import (
	"time"

	"github.com/kyokaz/trackd/internal/clockify"
	"github.com/kyokaz/trackd/internal/state"
)

// Kind tags a result message with the operation that produced it.
type Kind string

const (
	KindClientsFetched  Kind = "clients_fetched"
	KindProjectsFetched Kind = "projects_fetched"
	KindClientCreated   Kind = "client_created"
	KindProjectCreated  Kind = "project_created"
	KindTimerStarted    Kind = "timer_started"
	KindTimerStopped    Kind = "timer_stopped"
	KindNoActiveTimer   Kind = "no_active_timer"
	KindCurrentTimer    Kind = "current_timer"
	KindProjectSummary  Kind = "project_summary"
	KindUserInfo        Kind = "user_info"
	KindError           Kind = "error"
)

// Continuation runs on the dispatcher after the built-in handler for a
// message. Failures inside a continuation are logged, never propagated.
type Continuation func(msg Message)

// ProjectSummary is the payload of a KindProjectSummary message.
type ProjectSummary struct {
	ProjectID string
	Total     time.Duration
	Entries   int
	From      time.Time
	To        time.Time
}

// Message is one result posted by a worker onto the result queue. Exactly
// one field group is populated, selected by Kind. A message is consumed
// exactly once by the dispatcher and then discarded.
type Message struct {
	Kind Kind
	// OpID correlates the message with the worker that produced it in logs.
	OpID string

	Clients  []state.Client
	Projects []state.Project
	Client   *clockify.Client
	Project  *clockify.Project
	Entry    *clockify.TimeEntry
	Summary  *ProjectSummary
	User     *clockify.User
	Err      string

	Then Continuation
}
