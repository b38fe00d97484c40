package model

import "time"

// Ticket statuses.  A ticket is created as issued and may transition to
// canceled exactly once; the reverse transition never happens.
const (
    StatusIssued   = "issued"
    StatusCanceled = "canceled"
)

// Ticket represents a single issued movie ticket.  One row is created
// per unit of requested quantity during issuance, so a quantity-3
// purchase produces three Ticket records sharing the same theater,
// user, movie and price.
//
// Fields:
//  ID          – random 128-bit identifier rendered as a UUID string.
//  TheaterName – name of the theater the ticket is valid for.
//  UserID      – identifier of the purchasing user.
//  MovieTitle  – title of the movie.
//  PriceKRW    – price in Korean won (1 .. 1,000,000).
//  Status      – "issued" or "canceled".
//  Memo        – optional free-form note (nullable).
//  IssuedAt    – creation timestamp in UTC.
//  CanceledAt  – set when the ticket is refunded (nullable).
type Ticket struct {
    ID          string     `json:"id"`          // tickets.id
    TheaterName string     `json:"theaterName"` // tickets.theater_name
    UserID      string     `json:"userId"`      // tickets.user_id
    MovieTitle  string     `json:"movieTitle"`  // tickets.movie_title
    PriceKRW    int        `json:"priceKrw"`    // tickets.price_krw
    Status      string     `json:"status"`      // tickets.status
    Memo        *string    `json:"memo,omitempty"`       // tickets.memo (nullable)
    IssuedAt    time.Time  `json:"issuedAt"`             // tickets.issued_at
    CanceledAt  *time.Time `json:"canceledAt,omitempty"` // tickets.canceled_at (nullable)
}
