package mgmt

import "github.com/kyokaz/trackd/internal/tracker"

// ProblemDetail follows RFC 7807 for error responses.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// StartTimerRequest is the body of POST /api/v1/timer/start. An empty
// ProjectID falls back to the current project selection; the create-new
// sentinel requires ProjectName.
type StartTimerRequest struct {
	Description string `json:"description"`
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	DocID       string `json:"doc_id"`
}

// ConfirmResetRequest is the body of POST /api/v1/timer/confirm-reset.
type ConfirmResetRequest struct {
	Confirm bool `json:"confirm"`
}

// CreateClientRequest is the body of POST /api/v1/clients.
type CreateClientRequest struct {
	Name string `json:"name"`
}

// CreateProjectRequest is the body of POST /api/v1/projects.
type CreateProjectRequest struct {
	Name     string `json:"name"`
	ClientID string `json:"client_id"`
}

// SelectionRequest is the body of PUT /api/v1/selection. Empty fields leave
// the corresponding selection untouched.
type SelectionRequest struct {
	ClientID  string `json:"client_id"`
	ProjectID string `json:"project_id"`
}

// DescriptionRequest is the body of PUT /api/v1/documents/:id/description.
type DescriptionRequest struct {
	Description string `json:"description"`
}

// AcceptedResponse acknowledges an operation that completes asynchronously;
// its outcome surfaces through GET /api/v1/status.
type AcceptedResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	tracker.Snapshot
	InFlight      []string `json:"in_flight,omitempty"`
	UptimeSeconds int64    `json:"uptime_seconds"`
}

// ClientsResponse lists the cached workspace clients.
type ClientsResponse struct {
	Clients  []ClientItem `json:"clients"`
	Selected string       `json:"selected"`
}

// ClientItem is one cached client.
type ClientItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectsResponse lists the cached workspace projects.
type ProjectsResponse struct {
	Projects []ProjectItem `json:"projects"`
	Selected string        `json:"selected"`
}

// ProjectItem is one cached project.
type ProjectItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ClientID string `json:"client_id,omitempty"`
}

// SessionItem is one completed session from local history.
type SessionItem struct {
	ID             int64   `json:"id"`
	Description    string  `json:"description"`
	ProjectID      string  `json:"project_id,omitempty"`
	ProjectName    string  `json:"project_name,omitempty"`
	ClientName     string  `json:"client_name,omitempty"`
	StartedAt      int64   `json:"started_at"`
	DurationSecs   int64   `json:"duration_secs"`
	Hours          float64 `json:"hours"`
	BillableAmount float64 `json:"billable_amount"`
	Rate           float64 `json:"rate"`
}

// SessionsResponse is the body of GET /api/v1/sessions.
type SessionsResponse struct {
	Sessions []SessionItem `json:"sessions"`
}

// TotalsResponse is the body of GET /api/v1/projects/:id/totals, computed
// from local history only.
type TotalsResponse struct {
	ProjectID      string  `json:"project_id"`
	DurationSecs   int64   `json:"duration_secs"`
	BillableAmount float64 `json:"billable_amount"`
}

// DescriptionResponse is the body of GET /api/v1/documents/:id/description.
type DescriptionResponse struct {
	DocID       string `json:"doc_id"`
	Description string `json:"description"`
}
