package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
	"github.com/ecodeli/delivery-engine/internal/core/ports"
)

// AnnouncementHandler handles HTTP requests for announcement operations.
type AnnouncementHandler struct {
	service ports.AnnouncementService
}

func NewAnnouncementHandler(service ports.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{service: service}
}

type listResponse struct {
	Items any   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// Create handles POST /v1/announcements.
//
// @Summary      Post a new transport announcement
// @Tags         announcements
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createAnnouncementRequest  true  "Announcement details"
// @Success      201   {object}  domain.Announcement
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /v1/announcements [post]
func (h *AnnouncementHandler) Create(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req createAnnouncementRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	a, err := h.service.Create(c.Request().Context(), ports.CreateAnnouncementInput{
		ClientID:    userID,
		Title:       req.Title,
		Origin:      req.Origin.toInput(),
		Destination: req.Destination.toInput(),
		WindowStart: req.WindowStart,
		WindowEnd:   req.WindowEnd,
		Package: ports.PackageInput{
			WeightKg:    req.Package.WeightKg,
			VolumeM3:    req.Package.VolumeM3,
			Fragile:     req.Package.Fragile,
			Category:    req.Package.Category,
			Description: req.Package.Description,
		},
		Price:    req.Price,
		Currency: req.Currency,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, a)
}

// Get handles GET /v1/announcements/:id.
//
// @Summary      Get an announcement
// @Tags         announcements
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Announcement id"
// @Success      200  {object}  domain.Announcement
// @Failure      404  {object}  map[string]string
// @Router       /v1/announcements/{id} [get]
func (h *AnnouncementHandler) Get(c echo.Context) error {
	a, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// List handles GET /v1/announcements. Clients see their own announcements;
// carriers and admins see everything matching the filters.
//
// @Summary      List announcements
// @Tags         announcements
// @Produce      json
// @Security     BearerAuth
// @Param        status    query     string  false  "Filter by status"
// @Param        category  query     string  false  "Filter by package category"
// @Param        page      query     int     false  "Page (1-based)"
// @Param        limit     query     int     false  "Page size"
// @Success      200       {object}  listResponse
// @Router       /v1/announcements [get]
func (h *AnnouncementHandler) List(c echo.Context) error {
	userID, role, err := ctxClaims(c)
	if err != nil {
		return err
	}

	filter := ports.ListAnnouncementsFilter{
		Status:   c.QueryParam("status"),
		Category: c.QueryParam("category"),
		Page:     queryInt(c, "page", 1),
		Limit:    queryInt(c, "limit", 20),
	}
	if role == domain.RoleClient {
		filter.ClientID = userID
	}

	items, total, err := h.service.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, listResponse{
		Items: items,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	})
}

// Update handles PUT /v1/announcements/:id. Only the owner may edit, and
// only while the announcement is still open.
//
// @Summary      Update an open announcement
// @Tags         announcements
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                     true  "Announcement id"
// @Param        body  body      updateAnnouncementRequest  true  "Editable fields"
// @Success      200   {object}  domain.Announcement
// @Failure      403   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /v1/announcements/{id} [put]
func (h *AnnouncementHandler) Update(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req updateAnnouncementRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	a, err := h.service.Update(c.Request().Context(), ports.UpdateAnnouncementInput{
		AnnouncementID: c.Param("id"),
		ActorID:        userID,
		Title:          req.Title,
		WindowStart:    req.WindowStart,
		WindowEnd:      req.WindowEnd,
		Price:          req.Price,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, a)
}

// Cancel handles DELETE /v1/announcements/:id.
//
// @Summary      Cancel an open announcement
// @Tags         announcements
// @Produce      json
// @Security     BearerAuth
// @Param        id   path  string  true  "Announcement id"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /v1/announcements/{id} [delete]
func (h *AnnouncementHandler) Cancel(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}
	if err := h.service.Cancel(c.Request().Context(), c.Param("id"), userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// queryInt parses an integer query parameter with a fallback.
func queryInt(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
