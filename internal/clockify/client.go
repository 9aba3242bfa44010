// Package clockify wraps the Clockify-compatible REST API consumed by the
// tracker. All calls are blocking; concurrency is the launcher's concern.
package clockify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	trackderrors "github.com/kyokaz/trackd/internal/errors"
)

// DefaultBaseURL is the hosted Clockify endpoint.
const DefaultBaseURL = "https://api.clockify.me/api/v1"

const defaultColor = "#3498db"

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// API wraps the remote time-tracking REST API for one workspace and user.
type API struct {
	baseURL     string
	apiKey      string
	workspaceID string
	httpClient  HTTPClient
	logger      zerolog.Logger

	userMu sync.RWMutex
	userID string
}

// Config holds the credentials and addressing for the API.
type Config struct {
	BaseURL     string
	APIKey      string
	WorkspaceID string
	UserID      string
	Timeout     time.Duration
}

// New creates an API client. Timeout defaults to 10s, matching the
// connect/read ceiling the tracker assumes for worker calls.
func New(cfg Config, logger zerolog.Logger) *API {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &API{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		workspaceID: cfg.WorkspaceID,
		userID:      cfg.UserID,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger.With().Str("component", "clockify").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (a *API) SetHTTPClient(hc HTTPClient) {
	a.httpClient = hc
}

// BaseURL returns the configured API base URL.
func (a *API) BaseURL() string {
	return a.baseURL
}

// UserID returns the acting user id, which may be empty until the
// credential check fills it in.
func (a *API) UserID() string {
	a.userMu.RLock()
	defer a.userMu.RUnlock()
	return a.userID
}

// SetUserID records the acting user id after credential verification.
func (a *API) SetUserID(id string) {
	a.userMu.Lock()
	defer a.userMu.Unlock()
	a.userID = id
}

// do executes an authenticated API request and fails on non-2xx responses.
func (a *API) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("X-Api-Key", a.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, trackderrors.NewAPIError("clockify", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return resp, nil
}

// classifyTransportError maps request execution failures onto the retryable
// sentinels: timeouts become ErrTimeout, everything else (refused
// connections, DNS failures, resets) becomes ErrUnavailable. The original
// cause stays in the chain.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("executing request: %w: %w", trackderrors.ErrTimeout, err)
	}
	return fmt.Errorf("executing request: %w: %w", trackderrors.ErrUnavailable, err)
}

// decodeResponse reads and decodes a JSON response.
func decodeResponse(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (a *API) workspacePath(suffix string) string {
	return "/workspaces/" + a.workspaceID + suffix
}

// ListClients fetches all clients in the workspace.
func (a *API) ListClients(ctx context.Context) ([]Client, error) {
	resp, err := a.do(ctx, http.MethodGet, a.workspacePath("/clients"), nil)
	if err != nil {
		return nil, fmt.Errorf("listing clients: %w", err)
	}
	var clients []Client
	if err := decodeResponse(resp, &clients); err != nil {
		return nil, err
	}
	return clients, nil
}

// CreateClient creates a new client with the given name.
func (a *API) CreateClient(ctx context.Context, name string) (*Client, error) {
	body := createClientRequest{Name: name, Note: "Auto-created by trackd"}
	resp, err := a.do(ctx, http.MethodPost, a.workspacePath("/clients"), body)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	var c Client
	if err := decodeResponse(resp, &c); err != nil {
		return nil, err
	}
	a.logger.Info().Str("client_id", c.ID).Str("name", c.Name).Msg("client created")
	return &c, nil
}

// ListProjects fetches all projects in the workspace, including their
// client association.
func (a *API) ListProjects(ctx context.Context) ([]Project, error) {
	resp, err := a.do(ctx, http.MethodGet, a.workspacePath("/projects"), nil)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	var projects []Project
	if err := decodeResponse(resp, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// CreateProject creates a private project, optionally bound to a client.
func (a *API) CreateProject(ctx context.Context, name, clientID string) (*Project, error) {
	body := createProjectRequest{Name: name, ClientID: clientID, IsPublic: false, Color: defaultColor}
	resp, err := a.do(ctx, http.MethodPost, a.workspacePath("/projects"), body)
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	var p Project
	if err := decodeResponse(resp, &p); err != nil {
		return nil, err
	}
	a.logger.Info().Str("project_id", p.ID).Str("name", p.Name).Msg("project created")
	return &p, nil
}

// InProgressEntry returns the running time entry for the configured user,
// or nil if nothing is running.
func (a *API) InProgressEntry(ctx context.Context) (*TimeEntry, error) {
	path := a.workspacePath("/user/" + a.UserID() + "/time-entries?in-progress=true")
	resp, err := a.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching in-progress entry: %w", err)
	}
	var entries []TimeEntry
	if err := decodeResponse(resp, &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// StartTimeEntry starts a new time entry. The start timestamp is stamped
// server-side.
func (a *API) StartTimeEntry(ctx context.Context, description, projectID string) (*TimeEntry, error) {
	body := startEntryRequest{Description: description, ProjectID: projectID}
	resp, err := a.do(ctx, http.MethodPost, a.workspacePath("/time-entries"), body)
	if err != nil {
		return nil, fmt.Errorf("starting time entry: %w", err)
	}
	var entry TimeEntry
	if err := decodeResponse(resp, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateTimeEntry replaces a time entry wholesale. Used to stop the running
// entry by writing an end timestamp.
func (a *API) UpdateTimeEntry(ctx context.Context, id string, req UpdateEntryRequest) (*TimeEntry, error) {
	if req.TagIDs == nil {
		req.TagIDs = []string{}
	}
	resp, err := a.do(ctx, http.MethodPut, a.workspacePath("/time-entries/"+id), req)
	if err != nil {
		return nil, fmt.Errorf("updating time entry: %w", err)
	}
	var entry TimeEntry
	if err := decodeResponse(resp, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// TimeEntries fetches the user's time entries for a project within a window.
func (a *API) TimeEntries(ctx context.Context, start, end time.Time, projectID string) ([]TimeEntry, error) {
	q := url.Values{}
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))
	if projectID != "" {
		q.Set("project", projectID)
	}
	path := a.workspacePath("/user/" + a.UserID() + "/time-entries?" + q.Encode())
	resp, err := a.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching time entries: %w", err)
	}
	var entries []TimeEntry
	if err := decodeResponse(resp, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CurrentUser fetches the authenticated account. Used to verify the API key
// and auto-fill the user ID.
func (a *API) CurrentUser(ctx context.Context) (*User, error) {
	resp, err := a.do(ctx, http.MethodGet, "/user", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}
	var u User
	if err := decodeResponse(resp, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
