package handler

import (
    "errors"   // for errors.Is comparisons
    "net/http" // HTTP status codes
    "strconv"  // parsing query parameters

    "github.com/labstack/echo/v4" // Echo web framework

    "github.com/iliyamo/movie-ticketing/internal/repository" // repository layer for filters and sentinel errors
    "github.com/iliyamo/movie-ticketing/internal/service"    // ticket engine
)

// TicketHandler exposes the ticket engine over HTTP.  Validation of
// structural request shape happens here; the engine re-affirms the
// value contract, so malformed input is rejected before any ticket is
// persisted either way.
type TicketHandler struct {
    Service *service.TicketService
}

// NewTicketHandler constructs a TicketHandler.  The service must be
// non-nil.
func NewTicketHandler(svc *service.TicketService) *TicketHandler {
    if svc == nil {
        panic("nil service passed to NewTicketHandler")
    }
    return &TicketHandler{Service: svc}
}

// IssueTickets handles POST /tickets/issue.  The optional
// Idempotency-Key header makes retries safe: an exact replay returns
// the original payload with 200 instead of 201, and key reuse with a
// different body is rejected with 409.
func (h *TicketHandler) IssueTickets(c echo.Context) error {
    var req service.IssueRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    key := c.Request().Header.Get("Idempotency-Key")

    res, replayed, err := h.Service.Issue(c.Request().Context(), req, key)
    if err != nil {
        switch {
        case errors.Is(err, service.ErrIdempotencyConflict):
            return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
        case errors.Is(err, service.ErrInvalidRequest):
            return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
        default:
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to issue tickets"})
        }
    }
    if replayed {
        return c.JSON(http.StatusOK, res)
    }
    return c.JSON(http.StatusCreated, res)
}

// RefundTickets handles POST /tickets/refund.  Every requested ID is
// classified into exactly one of refunded, alreadyCanceled or notFound;
// refund is naturally idempotent per ticket so no idempotency key is
// involved.
func (h *TicketHandler) RefundTickets(c echo.Context) error {
    var body struct {
        TicketIDs []string `json:"ticketIds"`
        Reason    string   `json:"reason"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }

    res, err := h.Service.Refund(c.Request().Context(), body.TicketIDs, body.Reason)
    if err != nil {
        if errors.Is(err, service.ErrInvalidRequest) {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to refund tickets"})
    }
    return c.JSON(http.StatusOK, res)
}

// GetTicket handles GET /tickets/:id and returns the full ticket
// record or 404 when no ticket has that ID.
func (h *TicketHandler) GetTicket(c echo.Context) error {
    id := c.Param("id")
    if id == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
    }
    t, err := h.Service.Get(c.Request().Context(), id)
    if err != nil {
        if errors.Is(err, repository.ErrTicketNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "ticket not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, t)
}

// ListTickets handles GET /tickets with optional theaterName, userId,
// movieTitle and status filters plus limit/offset pagination (defaults
// 100/0).  Results are ordered by issuance time descending.
func (h *TicketHandler) ListTickets(c echo.Context) error {
    filter := repository.TicketFilter{
        TheaterName: c.QueryParam("theaterName"),
        UserID:      c.QueryParam("userId"),
        MovieTitle:  c.QueryParam("movieTitle"),
        Status:      c.QueryParam("status"),
        Limit:       100,
        Offset:      0,
    }
    if raw := c.QueryParam("limit"); raw != "" {
        n, err := strconv.Atoi(raw)
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be an integer"})
        }
        // An explicit limit=0 is out of range, not a request for the
        // default; only an absent parameter takes the default of 100.
        if n == 0 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be between 1 and 1000"})
        }
        filter.Limit = n
    }
    if raw := c.QueryParam("offset"); raw != "" {
        n, err := strconv.Atoi(raw)
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "offset must be an integer"})
        }
        filter.Offset = n
    }

    tickets, total, err := h.Service.List(c.Request().Context(), filter)
    if err != nil {
        if errors.Is(err, service.ErrInvalidRequest) {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "tickets": tickets,
        "total":   total,
        "limit":   filter.Limit,
        "offset":  filter.Offset,
    })
}
