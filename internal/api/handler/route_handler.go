package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ecodeli/delivery-engine/internal/core/ports"
)

// RouteHandler handles HTTP requests for carrier route operations.
type RouteHandler struct {
	service ports.RouteService
}

func NewRouteHandler(service ports.RouteService) *RouteHandler {
	return &RouteHandler{service: service}
}

// Create handles POST /v1/routes.
//
// @Summary      Declare a carrier trip with spare capacity
// @Tags         routes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createRouteRequest  true  "Route details"
// @Success      201   {object}  domain.Route
// @Failure      400   {object}  map[string]string
// @Router       /v1/routes [post]
func (h *RouteHandler) Create(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req createRouteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	r, err := h.service.Create(c.Request().Context(), ports.CreateRouteInput{
		CarrierID:   userID,
		Origin:      req.Origin.toInput(),
		Destination: req.Destination.toInput(),
		DepartureAt: req.DepartureAt,
		ArrivalAt:   req.ArrivalAt,
		Flexible:    req.Flexible,
		WeightKg:    req.WeightKg,
		VolumeM3:    req.VolumeM3,
		PricePerKg:  req.PricePerKg,
		Currency:    req.Currency,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, r)
}

// Get handles GET /v1/routes/:id.
//
// @Summary      Get a route
// @Tags         routes
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Route id"
// @Success      200  {object}  domain.Route
// @Failure      404  {object}  map[string]string
// @Router       /v1/routes/{id} [get]
func (h *RouteHandler) Get(c echo.Context) error {
	r, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// ListMine handles GET /v1/routes. Returns the calling carrier's routes.
//
// @Summary      List the caller's routes
// @Tags         routes
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  domain.Route
// @Router       /v1/routes [get]
func (h *RouteHandler) ListMine(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}
	routes, err := h.service.ListByCarrier(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, routes)
}
