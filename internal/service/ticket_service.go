// Package service contains the ticket engine: issuance with idempotent
// retry safety, batch refunds, lookups and listing.  The engine owns the
// orchestration between the idempotency cache and the ticket store; it
// holds no state of its own beyond the injected dependencies and is safe
// to call from many concurrent requests.
package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"
    "unicode/utf8"

    "github.com/google/uuid"

    "github.com/iliyamo/movie-ticketing/internal/idempotency"
    "github.com/iliyamo/movie-ticketing/internal/model"
    q "github.com/iliyamo/movie-ticketing/internal/queue"
    "github.com/iliyamo/movie-ticketing/internal/repository"
)

// ErrInvalidRequest is returned when a request violates the input
// contract (empty or oversized fields, out-of-range price, quantity or
// pagination).  Handlers translate it into an HTTP 400 response.
var ErrInvalidRequest = errors.New("invalid request")

// ErrIdempotencyConflict is returned when an idempotency key is reused
// with a different request body.  Handlers translate it into an HTTP
// 409 response; the client must pick a new key.
var ErrIdempotencyConflict = errors.New("idempotency key reused with a different request body")

// Contract bounds re-affirmed by the engine regardless of what the HTTP
// boundary validated.
const (
    maxTheaterNameLen = 100
    maxUserIDLen      = 100
    maxMovieTitleLen  = 200
    maxPriceKRW       = 1_000_000
    maxQuantity       = 10
)

// IssueRequest is the issuance input.  The same struct is bound from
// the HTTP body and fingerprinted by the idempotency cache, so two
// requests with equal field values always fingerprint equal.
type IssueRequest struct {
    TheaterName string  `json:"theaterName"`
    UserID      string  `json:"userId"`
    MovieTitle  string  `json:"movieTitle"`
    PriceKRW    int     `json:"priceKrw"`
    Quantity    int     `json:"quantity"`
    Memo        *string `json:"memo,omitempty"`
}

// IssueSummary echoes the shared fields of an issuance batch.
type IssueSummary struct {
    TheaterName string `json:"theaterName"`
    MovieTitle  string `json:"movieTitle"`
    PriceKRW    int    `json:"priceKrw"`
}

// IssueResult is the issuance output.  This exact structure is what the
// idempotency cache stores and replays.
type IssueResult struct {
    TicketIDs []string     `json:"ticketIds"`
    Count     int          `json:"count"`
    Summary   IssueSummary `json:"summary"`
}

// RefundResult buckets every requested ticket ID into exactly one of
// three disjoint outcomes.
type RefundResult struct {
    Refunded        []string `json:"refunded"`
    AlreadyCanceled []string `json:"alreadyCanceled"`
    NotFound        []string `json:"notFound"`
}

// TicketStore is the persistence contract the engine depends on.  Batch
// operations must be atomic: either every row of the batch commits or
// none do.  GetByIDs must resolve all IDs in a single round trip.
type TicketStore interface {
    CreateBatch(ctx context.Context, tickets []model.Ticket) error
    GetByID(ctx context.Context, id string) (*model.Ticket, error)
    GetByIDs(ctx context.Context, ids []string) ([]model.Ticket, error)
    CancelBatch(ctx context.Context, ids []string, canceledAt time.Time) error
    List(ctx context.Context, f repository.TicketFilter) ([]model.Ticket, int, error)
}

// EventPublisher emits domain events after successful commits.  Errors
// are logged and otherwise ignored; event delivery never interrupts the
// request flow.
type EventPublisher interface {
    TicketIssued(ctx context.Context, event q.TicketIssuedEvent) error
    TicketRefunded(ctx context.Context, event q.TicketRefundedEvent) error
}

// AMQPPublisher publishes events to RabbitMQ via the package-level
// publish helpers.
type AMQPPublisher struct{}

func (AMQPPublisher) TicketIssued(ctx context.Context, event q.TicketIssuedEvent) error {
    return PublishTicketIssued(ctx, event)
}

func (AMQPPublisher) TicketRefunded(ctx context.Context, event q.TicketRefundedEvent) error {
    return PublishTicketRefunded(ctx, event)
}

// TicketService orchestrates issuance, refund, lookup and listing.
type TicketService struct {
    store  TicketStore
    cache  *idempotency.Cache
    events EventPublisher // nil disables event publishing
}

// NewTicketService constructs the engine.  store and cache must be
// non-nil; events may be nil to disable broker publishing (tests, or
// deployments without RabbitMQ).
func NewTicketService(store TicketStore, cache *idempotency.Cache, events EventPublisher) *TicketService {
    if store == nil || cache == nil {
        panic("nil dependency passed to NewTicketService")
    }
    return &TicketService{store: store, cache: cache, events: events}
}

// Issue creates exactly req.Quantity tickets in one atomic batch.  When
// idempotencyKey is non-empty the cache is consulted first: an exact
// replay returns the original result without creating tickets (replayed
// is true), while key reuse with a different body fails with
// ErrIdempotencyConflict.  A same-key request whose first attempt is
// still in flight proceeds and attaches its own result; last write
// wins.  On storage failure nothing persists, no response is cached and
// the reservation is dropped so a retry starts fresh.
func (s *TicketService) Issue(ctx context.Context, req IssueRequest, idempotencyKey string) (*IssueResult, bool, error) {
    if req.Quantity == 0 {
        req.Quantity = 1
    }
    if err := validateIssue(req); err != nil {
        return nil, false, err
    }

    if idempotencyKey != "" {
        outcome, cached, err := s.cache.CheckAndReserve(idempotencyKey, req)
        if err != nil {
            return nil, false, fmt.Errorf("idempotency check: %w", err)
        }
        switch outcome {
        case idempotency.OutcomeConflict:
            return nil, false, ErrIdempotencyConflict
        case idempotency.OutcomeReplay:
            if res, ok := cached.(*IssueResult); ok {
                return res, true, nil
            }
        }
        // OutcomeNew and OutcomeInFlight both fall through to real work.
    }

    now := time.Now().UTC()
    tickets := make([]model.Ticket, 0, req.Quantity)
    ids := make([]string, 0, req.Quantity)
    for i := 0; i < req.Quantity; i++ {
        id := uuid.NewString()
        ids = append(ids, id)
        tickets = append(tickets, model.Ticket{
            ID:          id,
            TheaterName: req.TheaterName,
            UserID:      req.UserID,
            MovieTitle:  req.MovieTitle,
            PriceKRW:    req.PriceKRW,
            Status:      model.StatusIssued,
            Memo:        req.Memo,
            IssuedAt:    now,
        })
    }

    if err := s.store.CreateBatch(ctx, tickets); err != nil {
        if idempotencyKey != "" {
            s.cache.Forget(idempotencyKey)
        }
        return nil, false, fmt.Errorf("create tickets: %w", err)
    }

    res := &IssueResult{
        TicketIDs: ids,
        Count:     len(ids),
        Summary: IssueSummary{
            TheaterName: req.TheaterName,
            MovieTitle:  req.MovieTitle,
            PriceKRW:    req.PriceKRW,
        },
    }
    if idempotencyKey != "" {
        s.cache.AttachResponse(idempotencyKey, res)
    }

    if s.events != nil {
        ev := q.TicketIssuedEvent{
            TicketIDs:   ids,
            UserID:      req.UserID,
            TheaterName: req.TheaterName,
            MovieTitle:  req.MovieTitle,
            PriceKRW:    req.PriceKRW,
            Count:       len(ids),
            IssuedAt:    now.Format(time.RFC3339),
        }
        if err := s.events.TicketIssued(ctx, ev); err != nil {
            log.Printf("ticket-service: publish issued event failed: %v", err)
        }
    }
    return res, false, nil
}

// Refund classifies every requested ID into exactly one bucket and
// cancels all refundable tickets in one atomic batch.  Occurrences are
// classified in input order: a duplicate of an ID refunded earlier in
// the same call lands in alreadyCanceled, never in refunded twice.
func (s *TicketService) Refund(ctx context.Context, ticketIDs []string, reason string) (*RefundResult, error) {
    if len(ticketIDs) == 0 {
        return nil, fmt.Errorf("%w: ticketIds must not be empty", ErrInvalidRequest)
    }

    found, err := s.store.GetByIDs(ctx, ticketIDs)
    if err != nil {
        return nil, fmt.Errorf("lookup tickets: %w", err)
    }
    status := make(map[string]string, len(found))
    for _, t := range found {
        status[t.ID] = t.Status
    }

    res := &RefundResult{
        Refunded:        []string{},
        AlreadyCanceled: []string{},
        NotFound:        []string{},
    }
    toCancel := make([]string, 0, len(ticketIDs))
    for _, id := range ticketIDs {
        st, ok := status[id]
        switch {
        case !ok:
            res.NotFound = append(res.NotFound, id)
        case st == model.StatusCanceled:
            res.AlreadyCanceled = append(res.AlreadyCanceled, id)
        default:
            res.Refunded = append(res.Refunded, id)
            toCancel = append(toCancel, id)
            // Later occurrences of this ID in the same call observe the
            // transition that just happened.
            status[id] = model.StatusCanceled
        }
    }

    now := time.Now().UTC()
    if err := s.store.CancelBatch(ctx, toCancel, now); err != nil {
        return nil, fmt.Errorf("cancel tickets: %w", err)
    }

    if s.events != nil && len(toCancel) > 0 {
        ev := q.TicketRefundedEvent{
            TicketIDs:  toCancel,
            Reason:     reason,
            RefundedAt: now.Format(time.RFC3339),
        }
        if err := s.events.TicketRefunded(ctx, ev); err != nil {
            log.Printf("ticket-service: publish refunded event failed: %v", err)
        }
    }
    return res, nil
}

// Get returns a single ticket; repository.ErrTicketNotFound propagates
// on a miss.
func (s *TicketService) Get(ctx context.Context, id string) (*model.Ticket, error) {
    return s.store.GetByID(ctx, id)
}

// List returns tickets matching the filter plus the total matching
// count.  Defaults of limit 100 / offset 0 are applied here so every
// caller shares them.
func (s *TicketService) List(ctx context.Context, f repository.TicketFilter) ([]model.Ticket, int, error) {
    if f.Limit == 0 {
        f.Limit = 100
    }
    if f.Limit < 1 || f.Limit > 1000 {
        return nil, 0, fmt.Errorf("%w: limit must be between 1 and 1000", ErrInvalidRequest)
    }
    if f.Offset < 0 {
        return nil, 0, fmt.Errorf("%w: offset must be >= 0", ErrInvalidRequest)
    }
    if f.Status != "" && f.Status != model.StatusIssued && f.Status != model.StatusCanceled {
        return nil, 0, fmt.Errorf("%w: status must be %q or %q", ErrInvalidRequest, model.StatusIssued, model.StatusCanceled)
    }
    return s.store.List(ctx, f)
}

func validateIssue(req IssueRequest) error {
    // Length bounds count characters, not bytes: Korean theater and
    // movie names are multi-byte in UTF-8 and the utf8mb4 columns store
    // them by character as well.
    if req.TheaterName == "" || utf8.RuneCountInString(req.TheaterName) > maxTheaterNameLen {
        return fmt.Errorf("%w: theaterName must be 1-%d characters", ErrInvalidRequest, maxTheaterNameLen)
    }
    if req.UserID == "" || utf8.RuneCountInString(req.UserID) > maxUserIDLen {
        return fmt.Errorf("%w: userId must be 1-%d characters", ErrInvalidRequest, maxUserIDLen)
    }
    if req.MovieTitle == "" || utf8.RuneCountInString(req.MovieTitle) > maxMovieTitleLen {
        return fmt.Errorf("%w: movieTitle must be 1-%d characters", ErrInvalidRequest, maxMovieTitleLen)
    }
    if req.PriceKRW < 1 || req.PriceKRW > maxPriceKRW {
        return fmt.Errorf("%w: priceKrw must be between 1 and %d", ErrInvalidRequest, maxPriceKRW)
    }
    if req.Quantity < 1 || req.Quantity > maxQuantity {
        return fmt.Errorf("%w: quantity must be between 1 and %d", ErrInvalidRequest, maxQuantity)
    }
    return nil
}
