package clockify

// Client is a workspace client (the billing counterparty projects belong to).
type Client struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Project is a workspace project. ClientID is empty for projects with no
// client assigned.
type Project struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ClientID string `json:"clientId,omitempty"`
}

// TimeInterval holds the start/end/duration of a time entry. Start and End
// are RFC 3339 timestamps; Duration is an ISO-8601 duration ("PT1H30M45S")
// and is empty while the entry is still running.
type TimeInterval struct {
	Start    string `json:"start"`
	End      string `json:"end,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// TimeEntry is a single tracked interval.
type TimeEntry struct {
	ID           string       `json:"id"`
	Description  string       `json:"description"`
	ProjectID    string       `json:"projectId,omitempty"`
	TaskID       string       `json:"taskId,omitempty"`
	Billable     bool         `json:"billable"`
	TagIDs       []string     `json:"tagIds,omitempty"`
	TimeInterval TimeInterval `json:"timeInterval"`
}

// User is the authenticated account, used for credential verification.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type createClientRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Note    string `json:"note"`
}

type createProjectRequest struct {
	Name     string `json:"name"`
	ClientID string `json:"clientId,omitempty"`
	IsPublic bool   `json:"isPublic"`
	Color    string `json:"color"`
}

type startEntryRequest struct {
	// Start is always null so the service stamps the entry server-side.
	Start       *string `json:"start"`
	Description string  `json:"description"`
	ProjectID   string  `json:"projectId,omitempty"`
}

// UpdateEntryRequest is the full PUT body for a time entry. The service
// replaces the entry wholesale, so every field of the current entry must be
// carried over.
type UpdateEntryRequest struct {
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Billable    bool     `json:"billable"`
	Description string   `json:"description"`
	ProjectID   string   `json:"projectId,omitempty"`
	TaskID      string   `json:"taskId,omitempty"`
	TagIDs      []string `json:"tagIds"`
}
