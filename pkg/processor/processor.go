// Package processor defines the named entry points of a mesh node. A
// processor is a list of step names plus the shape of the response it
// produces.
package processor

import (
	"log/slog"
	"time"

	"github.com/getmockd/mockmesh/internal/filler"
	"github.com/getmockd/mockmesh/pkg/factory"
)

// Processor kinds as written in configuration entries.
const (
	KindRequest = "RequestProcessor"
	KindStartup = "StartupProcessor"
)

// ChunkSize is the maximum length of one string in a success payload.
const ChunkSize = 1024

// Processor is implemented by every processor kind.
type Processor interface {
	Kind() string
	StepNames() []string
}

// Request serves calls arriving over HTTP. It waits Latency milliseconds,
// runs its steps, then answers with a filler payload sized by the outcome.
type Request struct {
	Steps       []string `json:"steps"`
	Latency     uint     `json:"latency,omitempty"`
	ErrorSize   uint     `json:"errorSize,omitempty"`
	SuccessSize uint     `json:"successSize,omitempty"`
}

const requestSchema = `{
	"type": "object",
	"required": ["steps"],
	"properties": {
		"steps": {"type": "array", "items": {"type": "string", "minLength": 1}},
		"latency": {"type": "integer", "minimum": 0},
		"errorSize": {"type": "integer", "minimum": 0},
		"successSize": {"type": "integer", "minimum": 0}
	}
}`

// Kind implements Processor.
func (p *Request) Kind() string { return KindRequest }

// StepNames implements Processor.
func (p *Request) StepNames() []string { return p.Steps }

// IngressLatency returns the delay applied before any step runs.
func (p *Request) IngressLatency() time.Duration {
	return time.Duration(p.Latency) * time.Millisecond
}

// SuccessPayload is the body returned when every step succeeds.
type SuccessPayload struct {
	Result []string `json:"result"`
}

// ErrorPayload is the body returned for a simulated failure.
type ErrorPayload struct {
	Error string `json:"error"`
}

// SuccessPayload builds the success body: SuccessSize/2 filler characters
// split into chunks of at most ChunkSize.
func (p *Request) SuccessPayload() *SuccessPayload {
	return &SuccessPayload{Result: filler.Chunks(filler.Length(p.SuccessSize), ChunkSize)}
}

// ErrorPayload builds the simulated failure body: ErrorSize/2 filler characters.
func (p *Request) ErrorPayload() *ErrorPayload {
	return &ErrorPayload{Error: filler.String(filler.Length(p.ErrorSize))}
}

// Startup runs once when the node starts.
type Startup struct {
	Steps        []string `json:"steps"`
	Asynchronous bool     `json:"asynchronous,omitempty"`
}

const startupSchema = `{
	"type": "object",
	"required": ["steps"],
	"properties": {
		"steps": {"type": "array", "items": {"type": "string", "minLength": 1}},
		"asynchronous": {"type": "boolean"}
	}
}`

// Kind implements Processor.
func (p *Startup) Kind() string { return KindStartup }

// StepNames implements Processor.
func (p *Startup) StepNames() []string { return p.Steps }

// Register adds every processor kind to f.
func Register(f *factory.Factory[Processor, Processor]) error {
	if err := f.Register(KindRequest, func() Processor { return &Request{} }, requestSchema); err != nil {
		return err
	}
	return f.Register(KindStartup, func() Processor { return &Startup{} }, startupSchema)
}

// NewFactory returns a factory for processor entries.
func NewFactory(log *slog.Logger) (*factory.Factory[Processor, Processor], error) {
	f := factory.New("processors", log, factory.Identity[Processor])
	if err := Register(f); err != nil {
		return nil, err
	}
	return f, nil
}
