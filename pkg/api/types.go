package api

import "time"

// HealthResponse is the body of the liveness probe.
type HealthResponse struct {
	Status    string    `json:"status"`
	Uptime    int       `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}
