// Package state holds the tracker's shared mutable caches. Each logical
// group (reference data, timer session) has its own lock; no lock is ever
// held across a network call and locks are never nested. All access is
// copy-in/copy-out; callers never receive a reference into the store.
package state

import (
	"sync"
	"time"
)

// Selection sentinels used by the client/project dropdowns.
const (
	// ClientNone selects projects with no client assigned.
	ClientNone = "NONE"
	// SelectionCreateNew is the "create a new one" placeholder used when a
	// previous selection is gone or a list is empty.
	SelectionCreateNew = "CREATE_NEW"
)

// Client is a cached workspace client.
type Client struct {
	ID   string
	Name string
}

// Project is a cached workspace project. ClientID is empty when the project
// has no client assigned.
type Project struct {
	ID       string
	Name     string
	ClientID string
}

// Store is the shared state store. The zero value is not usable; use New.
type Store struct {
	refMu            sync.Mutex
	clients          []Client
	projects         []Project
	selectedClientID string

	timerMu     sync.Mutex
	startedAt   time.Time
	lastSession time.Duration
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// Clients returns a copy of the cached client list.
func (s *Store) Clients() []Client {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	out := make([]Client, len(s.clients))
	copy(out, s.clients)
	return out
}

// SetClients replaces the cached client list wholesale.
func (s *Store) SetClients(clients []Client) {
	cp := make([]Client, len(clients))
	copy(cp, clients)
	s.refMu.Lock()
	defer s.refMu.Unlock()
	s.clients = cp
}

// Projects returns a copy of the cached project list.
func (s *Store) Projects() []Project {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	out := make([]Project, len(s.projects))
	copy(out, s.projects)
	return out
}

// SetProjects replaces the cached project list wholesale.
func (s *Store) SetProjects(projects []Project) {
	cp := make([]Project, len(projects))
	copy(cp, projects)
	s.refMu.Lock()
	defer s.refMu.Unlock()
	s.projects = cp
}

// SelectedClientID returns the currently selected client id, which may be a
// sentinel or empty.
func (s *Store) SelectedClientID() string {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	return s.selectedClientID
}

// SetSelectedClientID replaces the selected client id.
func (s *Store) SetSelectedClientID(id string) {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	s.selectedClientID = id
}

// ClientName resolves a client id against the cache. Returns "" if unknown.
func (s *Store) ClientName(id string) string {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	for _, c := range s.clients {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

// ProjectName resolves a project id against the cache. Returns "" if unknown.
func (s *Store) ProjectName(id string) string {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	for _, p := range s.projects {
		if p.ID == id {
			return p.Name
		}
	}
	return ""
}

// ProjectsForClient returns the cached projects visible under a client
// selection: ClientNone yields projects with no client, SelectionCreateNew
// yields nothing, and a concrete id yields that client's projects.
func (s *Store) ProjectsForClient(clientID string) []Project {
	s.refMu.Lock()
	defer s.refMu.Unlock()

	var out []Project
	for _, p := range s.projects {
		switch clientID {
		case ClientNone:
			if p.ClientID == "" {
				out = append(out, p)
			}
		case SelectionCreateNew:
		default:
			if p.ClientID == clientID {
				out = append(out, p)
			}
		}
	}
	return out
}

// TimerStart returns the active session's start instant, or zero time if no
// session is running.
func (s *Store) TimerStart() time.Time {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	return s.startedAt
}

// TimerRunning reports whether a session start instant is recorded.
func (s *Store) TimerRunning() bool {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	return !s.startedAt.IsZero()
}

// SetTimerStart records the active session's start instant.
func (s *Store) SetTimerStart(t time.Time) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	s.startedAt = t
}

// ClearTimer clears the active session's start instant.
func (s *Store) ClearTimer() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	s.startedAt = time.Time{}
}

// Elapsed returns how long the active session has been running at the given
// instant, or 0 if no session is running.
func (s *Store) Elapsed(now time.Time) time.Duration {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	d := now.Sub(s.startedAt)
	if d < 0 {
		return 0
	}
	return d
}

// LastSessionDuration returns the last completed session's duration.
func (s *Store) LastSessionDuration() time.Duration {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	return s.lastSession
}

// SetLastSessionDuration records the last completed session's duration.
func (s *Store) SetLastSessionDuration(d time.Duration) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	s.lastSession = d
}

// ResolveClientSelection applies the fallback rule after a client refresh:
// keep the current selection if still present (sentinels always are), else
// the first cached client, else SelectionCreateNew.
func (s *Store) ResolveClientSelection(current string) string {
	if current == ClientNone || current == SelectionCreateNew {
		return current
	}
	clients := s.Clients()
	for _, c := range clients {
		if c.ID == current {
			return current
		}
	}
	if len(clients) > 0 {
		return clients[0].ID
	}
	return SelectionCreateNew
}

// ResolveProjectSelection applies the fallback rule after a project refresh,
// scoped to the projects visible under the given client selection.
func (s *Store) ResolveProjectSelection(current, clientID string) string {
	visible := s.ProjectsForClient(clientID)
	for _, p := range visible {
		if p.ID == current {
			return current
		}
	}
	if len(visible) > 0 {
		return visible[0].ID
	}
	return SelectionCreateNew
}
