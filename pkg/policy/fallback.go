package policy

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// FallbackDefinition substitutes a canned response when the wrapped call
// fails transiently.
type FallbackDefinition struct {
	StatusCode int    `json:"statusCode"`
	Reason     string `json:"reason,omitempty"`
	Content    string `json:"content,omitempty"`
}

const fallbackSchema = `{
	"type": "object",
	"required": ["statusCode"],
	"properties": {
		"statusCode": {"type": "integer", "minimum": 100, "maximum": 599},
		"reason": {"type": "string"},
		"content": {"type": "string"}
	}
}`

// Kind implements Definition.
func (d *FallbackDefinition) Kind() string { return KindFallback }

// Validate implements factory.Validator.
func (d *FallbackDefinition) Validate() error {
	if d.StatusCode < 100 || d.StatusCode > 599 {
		return fmt.Errorf("statusCode %d is not a valid HTTP status", d.StatusCode)
	}
	return nil
}

// Compile implements Definition.
func (d *FallbackDefinition) Compile(env Env) (Policy, error) {
	if err := d.Validate(); err != nil {
		return nil, invalid(KindFallback, "%v", err)
	}
	reason := d.Reason
	if reason == "" {
		reason = http.StatusText(d.StatusCode)
	}
	return &fallback{
		env:     env,
		log:     env.logger(KindFallback),
		status:  d.StatusCode,
		reason:  reason,
		content: d.Content,
	}, nil
}

type fallback struct {
	env     Env
	log     *slog.Logger
	status  int
	reason  string
	content string
}

func (f *fallback) Name() string { return f.env.Name }
func (f *fallback) Kind() string { return KindFallback }

func (f *fallback) Wrap(next http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		resp, err := next.RoundTrip(req)
		if !IsTransient(req, resp, err) {
			return resp, err
		}

		attrs := []any{
			"operation", OperationKey(req),
			"status", f.status,
			"reason", f.reason,
		}
		switch {
		case err != nil:
			attrs = append(attrs, "cause", err.Error())
		case resp != nil:
			attrs = append(attrs, "cause", resp.Status)
		}
		f.log.Warn("fallback substituted response", attrs...)
		f.env.observe(KindFallback, EventFallback)

		discard(resp)
		return f.response(req), nil
	})
}

func (f *fallback) response(req *http.Request) *http.Response {
	header := make(http.Header)
	if looksLikeJSON(f.content) {
		header.Set("Content-Type", "application/json")
	} else {
		header.Set("Content-Type", "text/plain; charset=utf-8")
	}
	return &http.Response{
		Status:        strconv.Itoa(f.status) + " " + f.reason,
		StatusCode:    f.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(f.content)),
		ContentLength: int64(len(f.content)),
		Request:       req,
	}
}

// Reason returns the reason phrase of a response status line.
func Reason(resp *http.Response) string {
	return strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" ")
}

func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}
