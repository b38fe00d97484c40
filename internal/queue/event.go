// Package queue defines message payloads exchanged over the message broker.
package queue

// TicketIssuedEvent is published after an issuance batch commits.  It
// carries enough information for downstream consumers to log, notify, or
// feed analytics without querying the primary database.
type TicketIssuedEvent struct {
    TicketIDs   []string `json:"ticket_ids"`
    UserID      string   `json:"user_id"`
    TheaterName string   `json:"theater_name"`
    MovieTitle  string   `json:"movie_title"`
    PriceKRW    int      `json:"price_krw"`
    Count       int      `json:"count"`
    IssuedAt    string   `json:"issued_at"`
}

// TicketRefundedEvent is published after a refund batch commits.  Only
// tickets that actually transitioned to canceled are listed.
type TicketRefundedEvent struct {
    TicketIDs  []string `json:"ticket_ids"`
    Reason     string   `json:"reason,omitempty"`
    RefundedAt string   `json:"refunded_at"`
}
