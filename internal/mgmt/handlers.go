package mgmt

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	trackderrors "github.com/kyokaz/trackd/internal/errors"
	"github.com/kyokaz/trackd/internal/store"
	"github.com/kyokaz/trackd/internal/tracker"
)

// Handlers holds dependencies for HTTP handlers. Probe endpoints are served
// by the health package directly, not here.
type Handlers struct {
	tracker   *tracker.Tracker
	db        *store.Store
	logger    zerolog.Logger
	startTime time.Time
}

// NewHandlers creates a new Handlers instance. db may be nil; history and
// document endpoints then report 503.
func NewHandlers(tr *tracker.Tracker, db *store.Store, logger zerolog.Logger) *Handlers {
	return &Handlers{
		tracker:   tr,
		db:        db,
		logger:    logger.With().Str("component", "handlers").Logger(),
		startTime: time.Now(),
	}
}

// operationProblem maps tracker errors onto problem responses.
func operationProblem(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, trackderrors.ErrDuplicateOperation):
		return problemResponse(c, fiber.StatusConflict,
			"operation_in_progress", "Conflict",
			"An operation of this kind is already in flight")
	case errors.Is(err, trackderrors.ErrInvalidInput):
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_input", "Bad Request", err.Error())
	default:
		return problemResponse(c, fiber.StatusInternalServerError,
			"internal_error", "Internal Server Error", err.Error())
	}
}

func (h *Handlers) requireStore(c *fiber.Ctx) error {
	if h.db == nil {
		return problemResponse(c, fiber.StatusServiceUnavailable,
			"no_store", "Service Unavailable",
			"Local history store is not configured")
	}
	return nil
}

func accepted(c *fiber.Ctx) error {
	return c.Status(fiber.StatusAccepted).JSON(AcceptedResponse{Status: "accepted"})
}

// Status handles GET /api/v1/status.
func (h *Handlers) Status(c *fiber.Ctx) error {
	return c.JSON(StatusResponse{
		Snapshot:      h.tracker.LiveStatus(),
		InFlight:      h.tracker.OperationsInFlight(),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}

// StartTimer handles POST /api/v1/timer/start.
func (h *Handlers) StartTimer(c *fiber.Ctx) error {
	var req StartTimerRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}

	// A document-bound start can pull its saved task description.
	if req.Description == "" && req.DocID != "" && h.db != nil {
		if desc, err := h.db.TaskDescription(req.DocID); err == nil {
			req.Description = desc
		}
	}

	projectID := req.ProjectID
	if projectID == "" {
		projectID = h.tracker.LiveStatus().SelectedProjectID
	}

	if err := h.tracker.Start(req.Description, projectID, req.ProjectName); err != nil {
		return operationProblem(c, err)
	}
	return accepted(c)
}

// StopTimer handles POST /api/v1/timer/stop.
func (h *Handlers) StopTimer(c *fiber.Ctx) error {
	if err := h.tracker.Stop(); err != nil {
		return operationProblem(c, err)
	}
	return accepted(c)
}

// CheckTimer handles POST /api/v1/timer/check.
func (h *Handlers) CheckTimer(c *fiber.Ctx) error {
	if err := h.tracker.CheckTimer(); err != nil {
		return operationProblem(c, err)
	}
	return accepted(c)
}

// ConfirmReset handles POST /api/v1/timer/confirm-reset.
func (h *Handlers) ConfirmReset(c *fiber.Ctx) error {
	var req ConfirmResetRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}
	h.tracker.ConfirmReset(req.Confirm)
	return c.JSON(h.tracker.LiveStatus())
}

// ListClients handles GET /api/v1/clients, served from the local cache.
func (h *Handlers) ListClients(c *fiber.Ctx) error {
	st := h.tracker.State()
	clients := st.Clients()
	out := make([]ClientItem, 0, len(clients))
	for _, cl := range clients {
		out = append(out, ClientItem{ID: cl.ID, Name: cl.Name})
	}
	return c.JSON(ClientsResponse{Clients: out, Selected: st.SelectedClientID()})
}

// CreateClient handles POST /api/v1/clients.
func (h *Handlers) CreateClient(c *fiber.Ctx) error {
	var req CreateClientRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}
	if err := h.tracker.CreateClient(req.Name); err != nil {
		return operationProblem(c, err)
	}
	return accepted(c)
}

// RefreshClients handles POST /api/v1/clients/refresh.
func (h *Handlers) RefreshClients(c *fiber.Ctx) error {
	h.tracker.RefreshClients()
	return accepted(c)
}

// ListProjects handles GET /api/v1/projects. With ?client=<id|NONE> the list
// is scoped to the projects visible under that client selection.
func (h *Handlers) ListProjects(c *fiber.Ctx) error {
	st := h.tracker.State()

	projects := st.Projects()
	if clientID := c.Query("client"); clientID != "" {
		projects = st.ProjectsForClient(clientID)
	}

	out := make([]ProjectItem, 0, len(projects))
	for _, p := range projects {
		out = append(out, ProjectItem{ID: p.ID, Name: p.Name, ClientID: p.ClientID})
	}
	return c.JSON(ProjectsResponse{
		Projects: out,
		Selected: h.tracker.LiveStatus().SelectedProjectID,
	})
}

// CreateProject handles POST /api/v1/projects.
func (h *Handlers) CreateProject(c *fiber.Ctx) error {
	var req CreateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}
	if err := h.tracker.CreateProject(req.Name, req.ClientID); err != nil {
		return operationProblem(c, err)
	}
	return accepted(c)
}

// RefreshProjects handles POST /api/v1/projects/refresh.
func (h *Handlers) RefreshProjects(c *fiber.Ctx) error {
	h.tracker.RefreshProjects()
	return accepted(c)
}

// ProjectSummary handles GET /api/v1/projects/:id/summary. The fetch is
// asynchronous; the rendered summary lands in the status snapshot.
func (h *Handlers) ProjectSummary(c *fiber.Ctx) error {
	if err := h.tracker.FetchProjectSummary(c.Params("id")); err != nil {
		return operationProblem(c, err)
	}
	return accepted(c)
}

// ProjectTotals handles GET /api/v1/projects/:id/totals, month to date from
// local history.
func (h *Handlers) ProjectTotals(c *fiber.Ctx) error {
	if err := h.requireStore(c); err != nil {
		return err
	}
	projectID := c.Params("id")

	now := time.Now().UTC()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	secs, amount, err := h.db.ProjectTotals(projectID, since)
	if err != nil {
		h.logger.Error().Err(err).Str("project_id", projectID).Msg("failed to query totals")
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", "Failed to query totals")
	}
	return c.JSON(TotalsResponse{ProjectID: projectID, DurationSecs: secs, BillableAmount: amount})
}

// UpdateSelection handles PUT /api/v1/selection.
func (h *Handlers) UpdateSelection(c *fiber.Ctx) error {
	var req SelectionRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}
	if req.ClientID != "" {
		h.tracker.SelectClient(req.ClientID)
	}
	if req.ProjectID != "" {
		h.tracker.SelectProject(req.ProjectID)
	}
	return c.JSON(h.tracker.LiveStatus())
}

// ListSessions handles GET /api/v1/sessions.
func (h *Handlers) ListSessions(c *fiber.Ctx) error {
	if err := h.requireStore(c); err != nil {
		return err
	}
	sessions, err := h.db.RecentSessions(c.QueryInt("limit", 20))
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to query sessions")
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", "Failed to query sessions")
	}

	out := make([]SessionItem, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionItem{
			ID:             s.ID,
			Description:    s.Description,
			ProjectID:      s.ProjectID,
			ProjectName:    s.ProjectName,
			ClientName:     s.ClientName,
			StartedAt:      s.StartedAt,
			DurationSecs:   s.DurationSecs,
			Hours:          s.Hours,
			BillableAmount: s.BillableAmount,
			Rate:           s.Rate,
		})
	}
	return c.JSON(SessionsResponse{Sessions: out})
}

// GetDescription handles GET /api/v1/documents/:id/description.
func (h *Handlers) GetDescription(c *fiber.Ctx) error {
	if err := h.requireStore(c); err != nil {
		return err
	}
	docID := c.Params("id")
	desc, err := h.db.TaskDescription(docID)
	if err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", "Failed to load description")
	}
	return c.JSON(DescriptionResponse{DocID: docID, Description: desc})
}

// PutDescription handles PUT /api/v1/documents/:id/description.
func (h *Handlers) PutDescription(c *fiber.Ctx) error {
	if err := h.requireStore(c); err != nil {
		return err
	}
	var req DescriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Invalid request body: "+err.Error())
	}
	docID := c.Params("id")
	if err := h.db.SaveTaskDescription(docID, req.Description); err != nil {
		return problemResponse(c, fiber.StatusInternalServerError,
			"store_error", "Internal Server Error", "Failed to save description")
	}
	return c.JSON(DescriptionResponse{DocID: docID, Description: req.Description})
}

// VerifyCredentials handles POST /api/v1/credentials/verify.
func (h *Handlers) VerifyCredentials(c *fiber.Ctx) error {
	h.tracker.VerifyCredentials()
	return accepted(c)
}
