package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/getmockd/mockmesh/internal/id"
	"github.com/getmockd/mockmesh/pkg/engine"
	"github.com/getmockd/mockmesh/pkg/httputil"
	"github.com/getmockd/mockmesh/pkg/logging"
	"github.com/getmockd/mockmesh/pkg/step"
)

// Processor runs named request processors. *engine.Engine implements it.
type Processor interface {
	Process(ctx context.Context, name string) (*engine.Result, error)
}

// Methods accepted by the processor endpoint.
var Methods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodOptions,
}

// Handler routes inbound requests to the engine.
type Handler struct {
	processor   Processor
	log         *slog.Logger
	metrics     http.Handler
	metricsPath string
	startTime   time.Time
	mux         *http.ServeMux
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger for access and error logs.
func WithHandlerLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithMetrics mounts a metrics handler at path.
func WithMetrics(path string, metrics http.Handler) HandlerOption {
	return func(h *Handler) {
		if path != "" && metrics != nil {
			h.metricsPath = path
			h.metrics = metrics
		}
	}
}

// NewHandler creates a Handler for p.
func NewHandler(p Processor, opts ...HandlerOption) *Handler {
	h := &Handler{
		processor: p,
		log:       logging.Nop(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = logging.Component(h.log, "api")

	mux := http.NewServeMux()
	h.registerRoutes(mux)
	h.mux = mux
	return h
}

func (h *Handler) registerRoutes(mux *http.ServeMux) {
	for _, method := range Methods {
		mux.HandleFunc(method+" /api/{controller}/{name}", h.handleProcess)
	}
	mux.HandleFunc("GET /health", h.handleHealth)
	if h.metrics != nil {
		mux.Handle("GET "+h.metricsPath, h.metrics)
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	withRequestID(withAccessLog(h.log, h.mux)).ServeHTTP(w, r)
}

func (h *Handler) handleProcess(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	log := h.log.With(
		"controller", r.PathValue("controller"),
		"processor", name,
		"caller", r.URL.Query().Get("caller"),
		"request_id", id.FromContext(r.Context()),
	)

	res, err := h.processor.Process(r.Context(), name)
	if err != nil {
		status := httputil.WriteErrorFor(w, err)
		switch {
		case errors.Is(err, context.Canceled):
			log.Debug("request cancelled by caller")
		case status >= http.StatusInternalServerError:
			log.Error("processor failed unexpectedly", "error", err)
		default:
			log.Warn("processor rejected request", "status", status, "error", err)
		}
		return
	}

	if res.Status == step.Success {
		httputil.WriteOK(w, res.Body)
		return
	}
	httputil.WriteJSON(w, http.StatusInternalServerError, res.Body)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, HealthResponse{
		Status:    "healthy",
		Uptime:    int(time.Since(h.startTime).Seconds()),
		Timestamp: time.Now().UTC(),
	})
}
