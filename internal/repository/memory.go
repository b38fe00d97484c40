package repository

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/iliyamo/movie-ticketing/internal/model"
)

// MemoryTicketStore is an in-memory implementation of the ticket store
// with the same semantics as TicketRepo: batch operations are atomic
// and lookups return copies so callers never share references with the
// store.  It is safe for concurrent use and is primarily exercised by
// tests, where it stands in for MySQL.
type MemoryTicketStore struct {
    mu      sync.RWMutex
    tickets map[string]model.Ticket
}

// NewMemoryTicketStore returns an empty in-memory store.
func NewMemoryTicketStore() *MemoryTicketStore {
    return &MemoryTicketStore{tickets: make(map[string]model.Ticket)}
}

// CreateBatch stores all tickets under one lock acquisition, mirroring
// the all-or-nothing contract of the MySQL repository.
func (s *MemoryTicketStore) CreateBatch(ctx context.Context, tickets []model.Ticket) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    for _, t := range tickets {
        s.tickets[t.ID] = cloneTicket(t)
    }
    return nil
}

// GetByID returns a copy of the stored ticket or ErrTicketNotFound.
func (s *MemoryTicketStore) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    t, ok := s.tickets[id]
    if !ok {
        return nil, ErrTicketNotFound
    }
    c := cloneTicket(t)
    return &c, nil
}

// GetByIDs returns copies of all tickets matching the given IDs; misses
// are simply absent from the result.
func (s *MemoryTicketStore) GetByIDs(ctx context.Context, ids []string) ([]model.Ticket, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    out := make([]model.Ticket, 0, len(ids))
    seen := make(map[string]struct{}, len(ids))
    for _, id := range ids {
        if _, dup := seen[id]; dup {
            continue
        }
        seen[id] = struct{}{}
        if t, ok := s.tickets[id]; ok {
            out = append(out, cloneTicket(t))
        }
    }
    return out, nil
}

// CancelBatch transitions every listed issued ticket to canceled under a
// single lock acquisition.  Tickets already canceled are left untouched.
func (s *MemoryTicketStore) CancelBatch(ctx context.Context, ids []string, canceledAt time.Time) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    at := canceledAt.UTC()
    for _, id := range ids {
        t, ok := s.tickets[id]
        if !ok || t.Status != model.StatusIssued {
            continue
        }
        t.Status = model.StatusCanceled
        ca := at
        t.CanceledAt = &ca
        s.tickets[id] = t
    }
    return nil
}

// List filters and paginates like the MySQL repository: issuance time
// descending with the total count taken before pagination.
func (s *MemoryTicketStore) List(ctx context.Context, f TicketFilter) ([]model.Ticket, int, error) {
    s.mu.RLock()
    matched := make([]model.Ticket, 0, len(s.tickets))
    for _, t := range s.tickets {
        if f.TheaterName != "" && t.TheaterName != f.TheaterName {
            continue
        }
        if f.UserID != "" && t.UserID != f.UserID {
            continue
        }
        if f.MovieTitle != "" && t.MovieTitle != f.MovieTitle {
            continue
        }
        if f.Status != "" && t.Status != f.Status {
            continue
        }
        matched = append(matched, cloneTicket(t))
    }
    s.mu.RUnlock()

    sort.Slice(matched, func(i, j int) bool {
        if !matched[i].IssuedAt.Equal(matched[j].IssuedAt) {
            return matched[i].IssuedAt.After(matched[j].IssuedAt)
        }
        return matched[i].ID > matched[j].ID
    })

    total := len(matched)
    if f.Offset >= total {
        return []model.Ticket{}, total, nil
    }
    end := f.Offset + f.Limit
    if end > total {
        end = total
    }
    return matched[f.Offset:end], total, nil
}

func cloneTicket(t model.Ticket) model.Ticket {
    c := t
    if t.Memo != nil {
        m := *t.Memo
        c.Memo = &m
    }
    if t.CanceledAt != nil {
        ca := *t.CanceledAt
        c.CanceledAt = &ca
    }
    return c
}
