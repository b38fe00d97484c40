package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/movie-ticketing/internal/handler" // import the handlers that implement business logic
)

// RegisterRoutes registers routes that do not require any middleware on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterTickets registers the ticket API under the /tickets prefix.
// Optional middleware (rate limiting on the whole group, response
// caching on reads) is applied when provided; a nil entry is skipped so
// the server degrades gracefully when Redis is unavailable.
func RegisterTickets(e *echo.Echo, t *handler.TicketHandler, rateLimit, readCache echo.MiddlewareFunc) {
	g := e.Group("/tickets")
	if rateLimit != nil {
		g.Use(rateLimit)
	}

	// Issuance with optional Idempotency-Key header.
	g.POST("/issue", t.IssueTickets)
	// Batch refund; idempotent per ticket by construction.
	g.POST("/refund", t.RefundTickets)

	// Read endpoints may be served from the response cache.
	if readCache != nil {
		g.GET("", t.ListTickets, readCache)
		g.GET("/:id", t.GetTicket, readCache)
	} else {
		g.GET("", t.ListTickets)
		g.GET("/:id", t.GetTicket)
	}
}
