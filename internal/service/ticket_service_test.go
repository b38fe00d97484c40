package service

import (
    "context"
    "errors"
    "strings"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/movie-ticketing/internal/idempotency"
    "github.com/iliyamo/movie-ticketing/internal/model"
    "github.com/iliyamo/movie-ticketing/internal/repository"
)

func newService(t *testing.T) (*TicketService, *repository.MemoryTicketStore, *idempotency.Cache) {
    t.Helper()
    store := repository.NewMemoryTicketStore()
    cache := idempotency.New(time.Hour)
    return NewTicketService(store, cache, nil), store, cache
}

func issueReq(quantity int) IssueRequest {
    return IssueRequest{
        TheaterName: "CGV",
        UserID:      "user-1",
        MovieTitle:  "X",
        PriceKRW:    15000,
        Quantity:    quantity,
    }
}

func storedCount(t *testing.T, store *repository.MemoryTicketStore) int {
    t.Helper()
    _, total, err := store.List(context.Background(), repository.TicketFilter{Limit: 1000})
    require.NoError(t, err)
    return total
}

func TestIssue_CreatesQuantityTickets(t *testing.T) {
    svc, store, _ := newService(t)
    ctx := context.Background()

    res, replayed, err := svc.Issue(ctx, issueReq(3), "")
    require.NoError(t, err)
    assert.False(t, replayed)
    assert.Equal(t, 3, res.Count)
    require.Len(t, res.TicketIDs, 3)
    assert.Equal(t, IssueSummary{TheaterName: "CGV", MovieTitle: "X", PriceKRW: 15000}, res.Summary)

    // IDs are distinct and each ticket is retrievable as issued.
    seen := make(map[string]struct{})
    for _, id := range res.TicketIDs {
        seen[id] = struct{}{}
        tk, err := store.GetByID(ctx, id)
        require.NoError(t, err)
        assert.Equal(t, model.StatusIssued, tk.Status)
        assert.Equal(t, 15000, tk.PriceKRW)
    }
    assert.Len(t, seen, 3)
}

func TestIssue_DefaultQuantityIsOne(t *testing.T) {
    svc, store, _ := newService(t)

    req := issueReq(0) // quantity omitted in the request body
    res, _, err := svc.Issue(context.Background(), req, "")
    require.NoError(t, err)
    assert.Equal(t, 1, res.Count)
    assert.Equal(t, 1, storedCount(t, store))
}

func TestIssue_IdempotentReplay(t *testing.T) {
    svc, store, _ := newService(t)
    ctx := context.Background()

    first, replayed, err := svc.Issue(ctx, issueReq(2), "key-1")
    require.NoError(t, err)
    require.False(t, replayed)

    second, replayed, err := svc.Issue(ctx, issueReq(2), "key-1")
    require.NoError(t, err)
    assert.True(t, replayed)
    assert.Equal(t, first.TicketIDs, second.TicketIDs, "replay must return the original identifiers")
    assert.Equal(t, 2, storedCount(t, store), "tickets are created exactly once")
}

func TestIssue_KeyConflict(t *testing.T) {
    svc, store, _ := newService(t)
    ctx := context.Background()

    _, _, err := svc.Issue(ctx, issueReq(2), "key-1")
    require.NoError(t, err)

    _, _, err = svc.Issue(ctx, issueReq(3), "key-1")
    assert.ErrorIs(t, err, ErrIdempotencyConflict)
    assert.Equal(t, 2, storedCount(t, store), "the conflicting call must not create tickets")
}

func TestIssue_ValidationBounds(t *testing.T) {
    svc, store, _ := newService(t)
    ctx := context.Background()

    long := func(n int) string {
        b := make([]byte, n)
        for i := range b {
            b[i] = 'a'
        }
        return string(b)
    }

    cases := []struct {
        name string
        req  IssueRequest
    }{
        {"quantity too high", issueReq(11)},
        {"price zero", IssueRequest{TheaterName: "CGV", UserID: "u", MovieTitle: "X", PriceKRW: 0, Quantity: 1}},
        {"price above cap", IssueRequest{TheaterName: "CGV", UserID: "u", MovieTitle: "X", PriceKRW: 1_000_001, Quantity: 1}},
        {"empty theater", IssueRequest{UserID: "u", MovieTitle: "X", PriceKRW: 100, Quantity: 1}},
        {"theater too long", IssueRequest{TheaterName: long(101), UserID: "u", MovieTitle: "X", PriceKRW: 100, Quantity: 1}},
        {"movie too long", IssueRequest{TheaterName: "CGV", UserID: "u", MovieTitle: long(201), PriceKRW: 100, Quantity: 1}},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            _, _, err := svc.Issue(ctx, tc.req, "")
            assert.ErrorIs(t, err, ErrInvalidRequest)
        })
    }
    assert.Equal(t, 0, storedCount(t, store), "rejected requests must not persist tickets")
}

func TestIssue_LengthBoundsCountCharacters(t *testing.T) {
    svc, _, _ := newService(t)
    ctx := context.Background()

    // 60 Korean characters (180 bytes in UTF-8) are well within the
    // 100-character theater name bound.
    koreanTheater := strings.Repeat("강", 60)
    req := IssueRequest{
        TheaterName: koreanTheater,
        UserID:      "user-1",
        MovieTitle:  strings.Repeat("영", 200), // exactly at the cap
        PriceKRW:    15000,
        Quantity:    1,
    }
    res, _, err := svc.Issue(ctx, req, "")
    require.NoError(t, err)
    assert.Equal(t, 1, res.Count)

    // 101 characters is over the cap regardless of byte width.
    req.TheaterName = strings.Repeat("강", 101)
    _, _, err = svc.Issue(ctx, req, "")
    assert.ErrorIs(t, err, ErrInvalidRequest)
}

// failingStore rejects batch creation to exercise the rollback path.
type failingStore struct {
    *repository.MemoryTicketStore
}

func (f *failingStore) CreateBatch(ctx context.Context, tickets []model.Ticket) error {
    return errors.New("commit failed")
}

func TestIssue_StorageFailureLeavesNoTrace(t *testing.T) {
    mem := repository.NewMemoryTicketStore()
    cache := idempotency.New(time.Hour)
    failing := NewTicketService(&failingStore{mem}, cache, nil)
    ctx := context.Background()

    _, _, err := failing.Issue(ctx, issueReq(3), "key-1")
    require.Error(t, err)
    assert.NotErrorIs(t, err, ErrInvalidRequest)
    assert.Equal(t, 0, storedCount(t, mem), "no partial batch may persist")
    assert.Equal(t, 0, cache.Len(), "no response may be cached and the reservation must be dropped")

    // A retry with the same key against a healthy store is a fresh
    // attempt, not a false replay.
    healthy := NewTicketService(mem, cache, nil)
    res, replayed, err := healthy.Issue(ctx, issueReq(3), "key-1")
    require.NoError(t, err)
    assert.False(t, replayed)
    assert.Equal(t, 3, res.Count)
}

func TestRefund_Classification(t *testing.T) {
    svc, store, _ := newService(t)
    ctx := context.Background()

    res, _, err := svc.Issue(ctx, issueReq(2), "")
    require.NoError(t, err)
    issued := res.TicketIDs

    // Pre-cancel one ticket so it lands in alreadyCanceled.
    require.NoError(t, store.CancelBatch(ctx, []string{issued[1]}, time.Now().UTC()))

    out, err := svc.Refund(ctx, []string{issued[0], issued[1], "ghost"}, "customer request")
    require.NoError(t, err)
    assert.Equal(t, []string{issued[0]}, out.Refunded)
    assert.Equal(t, []string{issued[1]}, out.AlreadyCanceled)
    assert.Equal(t, []string{"ghost"}, out.NotFound)

    // Every input id appears in exactly one bucket.
    assert.Equal(t, 3, len(out.Refunded)+len(out.AlreadyCanceled)+len(out.NotFound))
}

func TestRefund_IdempotentAcrossCalls(t *testing.T) {
    svc, _, _ := newService(t)
    ctx := context.Background()

    res, _, err := svc.Issue(ctx, issueReq(1), "")
    require.NoError(t, err)
    id := res.TicketIDs[0]

    first, err := svc.Refund(ctx, []string{id}, "")
    require.NoError(t, err)
    assert.Equal(t, []string{id}, first.Refunded)

    second, err := svc.Refund(ctx, []string{id}, "")
    require.NoError(t, err)
    assert.Empty(t, second.Refunded)
    assert.Equal(t, []string{id}, second.AlreadyCanceled)
}

func TestRefund_DuplicateWithinOneCall(t *testing.T) {
    svc, _, _ := newService(t)
    ctx := context.Background()

    res, _, err := svc.Issue(ctx, issueReq(1), "")
    require.NoError(t, err)
    id := res.TicketIDs[0]

    out, err := svc.Refund(ctx, []string{id, id}, "")
    require.NoError(t, err)
    assert.Equal(t, []string{id}, out.Refunded, "first occurrence refunds")
    assert.Equal(t, []string{id}, out.AlreadyCanceled, "the repeat observes the transition")
}

func TestRefund_EmptyInput(t *testing.T) {
    svc, _, _ := newService(t)
    _, err := svc.Refund(context.Background(), nil, "")
    assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestList_Validation(t *testing.T) {
    svc, _, _ := newService(t)
    ctx := context.Background()

    _, _, err := svc.List(ctx, repository.TicketFilter{Status: "pending", Limit: 10})
    assert.ErrorIs(t, err, ErrInvalidRequest)

    _, _, err = svc.List(ctx, repository.TicketFilter{Limit: 1001})
    assert.ErrorIs(t, err, ErrInvalidRequest)

    _, _, err = svc.List(ctx, repository.TicketFilter{Limit: 10, Offset: -1})
    assert.ErrorIs(t, err, ErrInvalidRequest)

    // Zero limit takes the default of 100.
    _, _, err = svc.List(ctx, repository.TicketFilter{})
    assert.NoError(t, err)
}

func TestRoundTrip_IssueFetchRefundFetch(t *testing.T) {
    svc, _, _ := newService(t)
    ctx := context.Background()

    res, _, err := svc.Issue(ctx, issueReq(3), "")
    require.NoError(t, err)
    require.Len(t, res.TicketIDs, 3)

    for _, id := range res.TicketIDs {
        tk, err := svc.Get(ctx, id)
        require.NoError(t, err)
        assert.Equal(t, model.StatusIssued, tk.Status)
        assert.Equal(t, 15000, tk.PriceKRW)
    }

    out, err := svc.Refund(ctx, res.TicketIDs, "show canceled")
    require.NoError(t, err)
    assert.ElementsMatch(t, res.TicketIDs, out.Refunded)
    assert.Empty(t, out.AlreadyCanceled)
    assert.Empty(t, out.NotFound)

    for _, id := range res.TicketIDs {
        tk, err := svc.Get(ctx, id)
        require.NoError(t, err)
        assert.Equal(t, model.StatusCanceled, tk.Status)
        require.NotNil(t, tk.CanceledAt)
    }
}
