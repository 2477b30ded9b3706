package step

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/getmockd/mockmesh/internal/filler"
)

// Request calls another node through a named client. A 2xx response is
// Success, any other status is SimulatedFail, and a transport or policy
// error is Fail.
type Request struct {
	Replication
	ClientName  string `json:"clientName"`
	Path        string `json:"path,omitempty"`
	Method      string `json:"method,omitempty"`
	PayloadSize uint   `json:"payloadSize,omitempty"`

	binding
}

const requestSchema = `{
	"type": "object",
	"required": ["clientName"],
	"properties": {
		"clientName": {"type": "string", "minLength": 1},
		"path": {"type": "string"},
		"method": {"type": "string", "enum": ["GET", "POST", "PUT", "DELETE", "OPTIONS", "get", "post", "put", "delete", "options"]},
		"payloadSize": {"type": "integer", "minimum": 0},` + replicationProperties + `
	}
}`

// Kind implements Step.
func (r *Request) Kind() string { return KindRequest }

// Validate implements factory.Validator.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.ClientName) == "" {
		return errors.New("clientName is required")
	}
	return nil
}

// ClientRefs implements ClientReferrer.
func (r *Request) ClientRefs() []string { return []string{r.ClientName} }

// Bind implements Step.
func (r *Request) Bind(env Env) Step {
	r.bind(KindRequest, env)
	return r
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// Execute implements Step.
func (r *Request) Execute(ctx context.Context) (status Status, err error) {
	log, err := r.begin(KindRequest)
	if err != nil {
		return Fail, err
	}
	start := time.Now()
	defer func() { r.observe(KindRequest, start, status) }()

	if r.env.Clients == nil {
		return Fail, fmt.Errorf("%w: no client resolver bound", ErrInvalidStep)
	}
	c, err := r.env.Clients.GetClient(r.ClientName)
	if err != nil {
		return Fail, err
	}

	var body []byte
	if n := filler.Length(r.PayloadSize); n > 0 {
		body = []byte(filler.String(n))
	}
	method := r.method()

	return r.run(ctx, log, func(ctx context.Context) (Status, error) {
		resp, err := c.Send(ctx, method, r.Path, body)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Fail, fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
			}
			log.Error("request failed", "client", r.ClientName, "method", method, "path", r.Path, "error", err)
			return Fail, nil
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return Success, nil
		}
		log.Debug("request returned non-success status", "client", r.ClientName, "status", resp.StatusCode)
		return SimulatedFail, nil
	})
}
