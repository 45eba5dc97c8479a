package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ecodeli/delivery-engine/internal/api/handler"
	"github.com/ecodeli/delivery-engine/internal/api/middleware"
	"github.com/ecodeli/delivery-engine/internal/core/domain"
	"github.com/ecodeli/delivery-engine/internal/core/ports"
)

// Deps bundles the wired services the router exposes. Construction happens
// in main so that worker lifecycles stay owned by the process, not the
// HTTP layer.
type Deps struct {
	Mongo     *mongo.Database
	Redis     *redis.Client
	JWTSecret string
	Log       zerolog.Logger

	Auth          ports.AuthService
	Announcements ports.AnnouncementService
	Routes        ports.RouteService
	Matching      ports.MatchingService
	Deliveries    ports.DeliveryService
	Validation    ports.ValidationService
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("delivery"))

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Auth)
	announcementHandler := handler.NewAnnouncementHandler(d.Announcements)
	routeHandler := handler.NewRouteHandler(d.Routes)
	matchHandler := handler.NewMatchHandler(d.Matching)
	deliveryHandler := handler.NewDeliveryHandler(d.Deliveries, d.Validation)

	auth := middleware.Auth(d.JWTSecret)
	clientOnly := middleware.RequireRole(domain.RoleClient, domain.RoleAdmin)
	carrierOnly := middleware.RequireRole(domain.RoleCarrier, domain.RoleAdmin)
	adminOnly := middleware.RequireRole(domain.RoleAdmin)

	// --- Open endpoints ---
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(d.Mongo, d.Redis)
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())

	// --- Announcements ---
	v1 := e.Group("/v1", auth)
	v1.POST("/announcements", announcementHandler.Create, clientOnly)
	v1.GET("/announcements", announcementHandler.List)
	v1.GET("/announcements/:id", announcementHandler.Get)
	v1.PUT("/announcements/:id", announcementHandler.Update, clientOnly)
	v1.DELETE("/announcements/:id", announcementHandler.Cancel, clientOnly)
	v1.POST("/announcements/:id/matches", matchHandler.ProposeForAnnouncement, clientOnly)
	v1.POST("/announcements/:id/offers", matchHandler.OfferDirect, carrierOnly)

	// --- Routes ---
	v1.POST("/routes", routeHandler.Create, carrierOnly)
	v1.GET("/routes", routeHandler.ListMine, carrierOnly)
	v1.GET("/routes/:id", routeHandler.Get)
	v1.POST("/routes/:id/matches", matchHandler.ProposeForRoute, carrierOnly)

	// --- Matches ---
	v1.POST("/matches/:id/accept", matchHandler.Accept, carrierOnly)

	// --- Deliveries ---
	v1.GET("/deliveries", deliveryHandler.List)
	v1.GET("/deliveries/:id", deliveryHandler.Get)
	v1.GET("/deliveries/:id/events", deliveryHandler.Events)
	v1.POST("/deliveries/:id/accept", deliveryHandler.Accept, carrierOnly)
	v1.POST("/deliveries/:id/pickup", deliveryHandler.PickUp, carrierOnly)
	v1.POST("/deliveries/:id/transit", deliveryHandler.Transit, carrierOnly)
	v1.POST("/deliveries/:id/confirm", deliveryHandler.Confirm, clientOnly)
	v1.POST("/deliveries/:id/cancel", deliveryHandler.Cancel)
	v1.POST("/deliveries/:id/dispute", deliveryHandler.Dispute)

	// --- Validation ---
	v1.POST("/deliveries/:id/validate", deliveryHandler.Validate, carrierOnly)
	v1.POST("/deliveries/:id/validate/nfc", deliveryHandler.ValidateNFC, carrierOnly)
	v1.POST("/deliveries/:id/code/invalidate", deliveryHandler.InvalidateCode, adminOnly)
	v1.POST("/deliveries/:id/code/reissue", deliveryHandler.ReissueCode, adminOnly)

	return e
}
