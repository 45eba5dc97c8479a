package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ecodeli/delivery-engine/internal/core/domain"
	"github.com/ecodeli/delivery-engine/internal/core/ports"
)

// DeliveryHandler handles HTTP requests for the delivery lifecycle and
// proof-of-delivery validation.
type DeliveryHandler struct {
	deliveries ports.DeliveryService
	validation ports.ValidationService
}

func NewDeliveryHandler(deliveries ports.DeliveryService, validation ports.ValidationService) *DeliveryHandler {
	return &DeliveryHandler{deliveries: deliveries, validation: validation}
}

// Get handles GET /v1/deliveries/:id.
//
// @Summary      Get a delivery
// @Tags         deliveries
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Delivery id"
// @Success      200  {object}  domain.Delivery
// @Failure      404  {object}  map[string]string
// @Router       /v1/deliveries/{id} [get]
func (h *DeliveryHandler) Get(c echo.Context) error {
	d, err := h.deliveries.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// List handles GET /v1/deliveries. Clients see deliveries they requested,
// carriers the ones assigned to them, admins everything.
//
// @Summary      List deliveries
// @Tags         deliveries
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "Filter by status"
// @Param        page    query     int     false  "Page (1-based)"
// @Param        limit   query     int     false  "Page size"
// @Success      200     {object}  listResponse
// @Router       /v1/deliveries [get]
func (h *DeliveryHandler) List(c echo.Context) error {
	userID, role, err := ctxClaims(c)
	if err != nil {
		return err
	}

	filter := ports.ListDeliveriesFilter{
		Status: c.QueryParam("status"),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
	}
	switch role {
	case domain.RoleClient:
		filter.ClientID = userID
	case domain.RoleCarrier:
		filter.CarrierID = userID
	}

	items, total, err := h.deliveries.List(c.Request().Context(), filter)
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

// Events handles GET /v1/deliveries/:id/events.
//
// @Summary      Get the tracking history of a delivery
// @Tags         deliveries
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string  true  "Delivery id"
// @Success      200  {array}  domain.TrackingEvent
// @Failure      404  {object} map[string]string
// @Router       /v1/deliveries/{id}/events [get]
func (h *DeliveryHandler) Events(c echo.Context) error {
	events, err := h.deliveries.Events(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, events)
}

// Accept handles POST /v1/deliveries/:id/accept.
//
// @Summary      Carrier accepts the delivery job
// @Tags         deliveries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string             true   "Delivery id"
// @Param        body  body  transitionRequest  false  "Optional location and note"
// @Success      204
// @Failure      409  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /v1/deliveries/{id}/accept [post]
func (h *DeliveryHandler) Accept(c echo.Context) error {
	return h.transition(c, h.deliveries.Accept)
}

// PickUp handles POST /v1/deliveries/:id/pickup.
//
// @Summary      Carrier records the physical pickup
// @Tags         deliveries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string             true   "Delivery id"
// @Param        body  body  transitionRequest  false  "Optional location and note"
// @Success      204
// @Failure      409  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /v1/deliveries/{id}/pickup [post]
func (h *DeliveryHandler) PickUp(c echo.Context) error {
	return h.transition(c, h.deliveries.MarkPickedUp)
}

// Transit handles POST /v1/deliveries/:id/transit.
//
// @Summary      Carrier records departure towards the destination
// @Tags         deliveries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string             true   "Delivery id"
// @Param        body  body  transitionRequest  false  "Optional location and note"
// @Success      204
// @Failure      409  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /v1/deliveries/{id}/transit [post]
func (h *DeliveryHandler) Transit(c echo.Context) error {
	return h.transition(c, h.deliveries.MarkInTransit)
}

// Confirm handles POST /v1/deliveries/:id/confirm. Requires an existing
// proof-of-delivery and fires the payment ledger exactly once.
//
// @Summary      Client confirms a delivered delivery
// @Tags         deliveries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string             true   "Delivery id"
// @Param        body  body  transitionRequest  false  "Optional note"
// @Success      204
// @Failure      409  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /v1/deliveries/{id}/confirm [post]
func (h *DeliveryHandler) Confirm(c echo.Context) error {
	return h.transition(c, h.deliveries.Confirm)
}

// Cancel handles POST /v1/deliveries/:id/cancel.
//
// @Summary      Cancel a non-terminal delivery
// @Tags         deliveries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string             true   "Delivery id"
// @Param        body  body  transitionRequest  false  "Optional note"
// @Success      204
// @Failure      409  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /v1/deliveries/{id}/cancel [post]
func (h *DeliveryHandler) Cancel(c echo.Context) error {
	return h.transition(c, h.deliveries.Cancel)
}

// Dispute handles POST /v1/deliveries/:id/dispute.
//
// @Summary      Flag a delivery for manual resolution
// @Tags         deliveries
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string             true   "Delivery id"
// @Param        body  body  transitionRequest  false  "Optional note"
// @Success      204
// @Failure      422  {object}  map[string]string
// @Router       /v1/deliveries/{id}/dispute [post]
func (h *DeliveryHandler) Dispute(c echo.Context) error {
	return h.transition(c, h.deliveries.Dispute)
}

// Validate handles POST /v1/deliveries/:id/validate. On success the code is
// consumed and the delivery moves to delivered in one atomic step. All
// failures return the same opaque 422.
//
// @Summary      Validate a delivery with the 6-digit code
// @Tags         validation
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string           true  "Delivery id"
// @Param        body  body  validateRequest  true  "Code and optional evidence"
// @Success      204
// @Failure      422  {object}  map[string]string
// @Router       /v1/deliveries/{id}/validate [post]
func (h *DeliveryHandler) Validate(c echo.Context) error {
	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	err := h.validation.Verify(c.Request().Context(), c.Param("id"), req.Code, ports.ProofInput{
		RecipientName: req.RecipientName,
		SignatureURL:  req.SignatureURL,
		PhotoURLs:     req.PhotoURLs,
		Location:      toCoordinates(req.Location),
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ValidateNFC handles POST /v1/deliveries/:id/validate/nfc, the alternate
// proof path for NFC-tagged handoffs.
//
// @Summary      Validate a delivery with an NFC tag
// @Tags         validation
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path  string              true  "Delivery id"
// @Param        body  body  validateNFCRequest  true  "Tag id and optional evidence"
// @Success      204
// @Failure      422  {object}  map[string]string
// @Router       /v1/deliveries/{id}/validate/nfc [post]
func (h *DeliveryHandler) ValidateNFC(c echo.Context) error {
	var req validateNFCRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	err := h.validation.VerifyNFC(c.Request().Context(), c.Param("id"), req.TagID, ports.ProofInput{
		RecipientName: req.RecipientName,
		SignatureURL:  req.SignatureURL,
		PhotoURLs:     req.PhotoURLs,
		Location:      toCoordinates(req.Location),
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// InvalidateCode handles POST /v1/deliveries/:id/code/invalidate. Admin only.
//
// @Summary      Invalidate an unconsumed validation code
// @Tags         validation
// @Produce      json
// @Security     BearerAuth
// @Param        id   path  string  true  "Delivery id"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /v1/deliveries/{id}/code/invalidate [post]
func (h *DeliveryHandler) InvalidateCode(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}
	if err := h.validation.Invalidate(c.Request().Context(), c.Param("id"), userID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ReissueCode handles POST /v1/deliveries/:id/code/reissue. Admin only.
//
// @Summary      Replace the validation code with a fresh one
// @Tags         validation
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Delivery id"
// @Success      200  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /v1/deliveries/{id}/code/reissue [post]
func (h *DeliveryHandler) ReissueCode(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}
	code, err := h.validation.Reissue(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"code": code})
}

func (h *DeliveryHandler) transition(c echo.Context, op func(ctx context.Context, in ports.TransitionInput) error) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}

	err = op(c.Request().Context(), ports.TransitionInput{
		DeliveryID: c.Param("id"),
		ActorID:    userID,
		Location:   toCoordinates(req.Location),
		Note:       req.Note,
	})
	if err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func toCoordinates(r *coordinatesRequest) *domain.Coordinates {
	if r == nil {
		return nil
	}
	return &domain.Coordinates{Lat: r.Lat, Lng: r.Lng}
}
