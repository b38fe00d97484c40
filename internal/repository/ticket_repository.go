package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/iliyamo/movie-ticketing/internal/model"
)

// TicketFilter narrows List results.  Zero-value string fields are
// ignored; Limit and Offset are applied as given and must already be
// validated by the caller (1..1000 and >= 0 respectively).
type TicketFilter struct {
    TheaterName string
    UserID      string
    MovieTitle  string
    Status      string
    Limit       int
    Offset      int
}

// TicketRepo provides CRUD operations for tickets backed by MySQL.
// Batch operations (issuance inserts, refund cancels) each run inside a
// single transaction so partial batches never commit.  All timestamps
// are stored in UTC.
type TicketRepo struct {
    db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// DB exposes the underlying handle for callers that need to compose
// their own transactions.
func (r *TicketRepo) DB() *sql.DB { return r.db }

// CreateBatch inserts all given tickets in one statement inside one
// transaction: either every row persists or none do.  Passing an empty
// slice has no effect and returns nil.
func (r *TicketRepo) CreateBatch(ctx context.Context, tickets []model.Ticket) error {
    if len(tickets) == 0 {
        return nil
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    query := `INSERT INTO tickets (id, theater_name, user_id, movie_title, price_krw, status, memo, issued_at) VALUES `
    args := make([]interface{}, 0, len(tickets)*8)
    for i, t := range tickets {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?, ?, ?, ?, ?)"
        args = append(args, t.ID, t.TheaterName, t.UserID, t.MovieTitle, t.PriceKRW, t.Status, t.Memo, t.IssuedAt.UTC())
    }
    if _, err := tx.ExecContext(ctx, query, args...); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// GetByID returns a single ticket or ErrTicketNotFound when no row
// matches.
func (r *TicketRepo) GetByID(ctx context.Context, id string) (*model.Ticket, error) {
    const q = `SELECT id, theater_name, user_id, movie_title, price_krw, status, memo, issued_at, canceled_at
               FROM tickets WHERE id = ?`
    t, err := scanTicket(r.db.QueryRowContext(ctx, q, id))
    if err == sql.ErrNoRows {
        return nil, ErrTicketNotFound
    }
    if err != nil {
        return nil, err
    }
    return t, nil
}

// GetByIDs returns the tickets matching any of the given IDs in a single
// round trip.  IDs with no matching row are simply absent from the
// result; callers classify misses themselves.  An empty input returns an
// empty slice without touching the database.
func (r *TicketRepo) GetByIDs(ctx context.Context, ids []string) ([]model.Ticket, error) {
    if len(ids) == 0 {
        return []model.Ticket{}, nil
    }
    placeholders := make([]string, len(ids))
    args := make([]interface{}, len(ids))
    for i, id := range ids {
        placeholders[i] = "?"
        args[i] = id
    }
    query := `SELECT id, theater_name, user_id, movie_title, price_krw, status, memo, issued_at, canceled_at
              FROM tickets WHERE id IN (` + strings.Join(placeholders, ",") + `)`
    rows, err := r.db.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    tickets := make([]model.Ticket, 0, len(ids))
    for rows.Next() {
        t, err := scanTicket(rows)
        if err != nil {
            return nil, err
        }
        tickets = append(tickets, *t)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return tickets, nil
}

// CancelBatch transitions the given tickets from issued to canceled and
// stamps the cancellation time, all inside one transaction.  Rows that
// are not in issued status are left untouched by the guard in the WHERE
// clause, so the statement is safe against concurrent cancels.
func (r *TicketRepo) CancelBatch(ctx context.Context, ids []string, canceledAt time.Time) error {
    if len(ids) == 0 {
        return nil
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    placeholders := make([]string, len(ids))
    args := make([]interface{}, 0, len(ids)+2)
    args = append(args, model.StatusCanceled, canceledAt.UTC())
    for i, id := range ids {
        placeholders[i] = "?"
        args = append(args, id)
    }
    query := `UPDATE tickets SET status = ?, canceled_at = ?
              WHERE id IN (` + strings.Join(placeholders, ",") + `) AND status = '` + model.StatusIssued + `'`
    if _, err := tx.ExecContext(ctx, query, args...); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// List returns tickets matching the filter ordered by issuance time
// descending (newest first), plus the total number of matching rows
// before pagination.
func (r *TicketRepo) List(ctx context.Context, f TicketFilter) ([]model.Ticket, int, error) {
    where, args := buildTicketWhere(f)

    var total int
    if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tickets"+where, args...).Scan(&total); err != nil {
        return nil, 0, err
    }

    query := `SELECT id, theater_name, user_id, movie_title, price_krw, status, memo, issued_at, canceled_at
              FROM tickets` + where + ` ORDER BY issued_at DESC, id DESC LIMIT ? OFFSET ?`
    rows, err := r.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
    if err != nil {
        return nil, 0, err
    }
    defer rows.Close()
    tickets := make([]model.Ticket, 0)
    for rows.Next() {
        t, err := scanTicket(rows)
        if err != nil {
            return nil, 0, err
        }
        tickets = append(tickets, *t)
    }
    if err := rows.Err(); err != nil {
        return nil, 0, err
    }
    return tickets, total, nil
}

// buildTicketWhere assembles the WHERE clause for List from the
// non-empty filter fields.  Returned SQL starts with " WHERE " or is
// empty when no filter applies.
func buildTicketWhere(f TicketFilter) (string, []interface{}) {
    conds := make([]string, 0, 4)
    args := make([]interface{}, 0, 4)
    if f.TheaterName != "" {
        conds = append(conds, "theater_name = ?")
        args = append(args, f.TheaterName)
    }
    if f.UserID != "" {
        conds = append(conds, "user_id = ?")
        args = append(args, f.UserID)
    }
    if f.MovieTitle != "" {
        conds = append(conds, "movie_title = ?")
        args = append(args, f.MovieTitle)
    }
    if f.Status != "" {
        conds = append(conds, "status = ?")
        args = append(args, f.Status)
    }
    if len(conds) == 0 {
        return "", args
    }
    return " WHERE " + strings.Join(conds, " AND "), args
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
    Scan(dest ...interface{}) error
}

func scanTicket(row rowScanner) (*model.Ticket, error) {
    var t model.Ticket
    var memo sql.NullString
    var canceledAt sql.NullTime
    if err := row.Scan(&t.ID, &t.TheaterName, &t.UserID, &t.MovieTitle, &t.PriceKRW,
        &t.Status, &memo, &t.IssuedAt, &canceledAt); err != nil {
        return nil, err
    }
    if memo.Valid {
        m := memo.String
        t.Memo = &m
    }
    if canceledAt.Valid {
        ca := canceledAt.Time.UTC()
        t.CanceledAt = &ca
    }
    t.IssuedAt = t.IssuedAt.UTC()
    return &t, nil
}
