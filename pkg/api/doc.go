// Package api exposes the engine over HTTP.
//
// Every node answers the same generic endpoint:
//
//	GET|POST|PUT|DELETE|OPTIONS /api/{controller}/{name}?caller=...
//
// {name} selects the request processor; {controller} and caller are logged
// but do not change the outcome. Responses:
//
//   - Success: 200 with {"result": [...]}
//   - SimulatedFail: 500 with {"error": "..."}
//   - argument, not-found and Fail outcomes: 400 with {"error": code, "message": ...}
//   - anything else: 500 with a generic message
//
// The handler also serves GET /health and, when a metrics handler is
// supplied, the Prometheus endpoint. Every response echoes X-Request-ID,
// generating one when the caller did not send it.
package api
