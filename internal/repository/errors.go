// Package repository implements persistence for ticket records.  Sentinel
// error values defined here let higher layers such as the service and
// handlers distinguish failure scenarios without inspecting driver
// errors directly.
package repository

import "errors"

// ErrTicketNotFound is returned when a single-ticket lookup does not
// match any row.  Handlers should translate this into an HTTP 404
// response; the refund path maps it into the notFound bucket instead.
var ErrTicketNotFound = errors.New("ticket not found")
