package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ecodeli/delivery-engine/internal/core/ports"
)

// MatchHandler handles HTTP requests for the matching engine.
type MatchHandler struct {
	service ports.MatchingService
}

func NewMatchHandler(service ports.MatchingService) *MatchHandler {
	return &MatchHandler{service: service}
}

// ProposeForAnnouncement handles POST /v1/announcements/:id/matches.
// Enumerates compatible routes and returns ranked proposals, best first.
//
// @Summary      Propose matches for an announcement
// @Tags         matches
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Announcement id"
// @Success      200  {array}   ports.MatchProposal
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /v1/announcements/{id}/matches [post]
func (h *MatchHandler) ProposeForAnnouncement(c echo.Context) error {
	proposals, err := h.service.ProposeForAnnouncement(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, proposals)
}

// ProposeForRoute handles POST /v1/routes/:id/matches.
//
// @Summary      Propose matches for a route
// @Tags         matches
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Route id"
// @Success      200  {array}   ports.MatchProposal
// @Failure      404  {object}  map[string]string
// @Router       /v1/routes/{id}/matches [post]
func (h *MatchHandler) ProposeForRoute(c echo.Context) error {
	proposals, err := h.service.ProposeForRoute(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, proposals)
}

// OfferDirect handles POST /v1/announcements/:id/offers. The authenticated
// carrier volunteers for the announcement without a declared route.
//
// @Summary      Offer to carry an announcement directly
// @Tags         matches
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Announcement id"
// @Success      201  {object}  ports.MatchProposal
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /v1/announcements/{id}/offers [post]
func (h *MatchHandler) OfferDirect(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	p, err := h.service.OfferDirect(c.Request().Context(), ports.DirectOfferInput{
		AnnouncementID: c.Param("id"),
		CarrierID:      userID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, p)
}

// Accept handles POST /v1/matches/:id/accept. Exactly one concurrent
// acceptance per announcement wins; losers get 409.
//
// @Summary      Accept a match proposal
// @Tags         matches
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Match id"
// @Success      201  {object}  domain.Delivery
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      410  {object}  map[string]string
// @Router       /v1/matches/{id}/accept [post]
func (h *MatchHandler) Accept(c echo.Context) error {
	userID, _, err := ctxClaims(c)
	if err != nil {
		return err
	}

	d, err := h.service.AcceptMatch(c.Request().Context(), ports.AcceptMatchInput{
		MatchID: c.Param("id"),
		ActorID: userID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, d)
}
