package handler // declare the package name; contains HTTP handlers

import (
    "net/http"          // net/http provides status codes and response helpers

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Health reports whether the ticketing service is up.  Load balancers
// and uptime probes hit this endpoint; it answers with a plain text
// "ok" body and an HTTP 200 status without touching MySQL or Redis.
func Health(c echo.Context) error { // Health handler signature accepts an echo context and returns an error
    return c.String(http.StatusOK, "ok") // write "ok" with a 200 OK status; String writes plain text
}
