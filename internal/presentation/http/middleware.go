package httppresentation

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/mochizuki-dev/marketplace/internal/observability"
	"github.com/mochizuki-dev/marketplace/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const headerRequestID = "X-Request-ID"

type routeKey struct{}

// muxHandle wires a route with the observability middleware stack:
// trace extraction, request-scoped logger, HTTP metrics, access log.
func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		// Stable route template keeps metric labels low-cardinality.
		ctx := context.WithValue(r.Context(), routeKey{}, route)
		h.observe(handler).ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) observe(next http.Handler) http.Handler {
	prop := otel.GetTextMapPropagator()
	metrics := h.tel.Metrics()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		sc := trace.SpanContextFromContext(ctx)

		rid := r.Header.Get(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(headerRequestID, rid)

		fields := []observability.Field{observability.F("request_id", rid)}
		if sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		reqLogger := h.log.With(fields...)
		ctx = logctx.With(ctx, reqLogger)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		route, _ := ctx.Value(routeKey{}).(string)
		statusLabel := strconv.Itoa(rec.status)
		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", route),
			observability.L("status", statusLabel),
		}
		metrics.Counter(observability.MHTTPRequests).Add(1, labels...)
		metrics.Histogram(observability.MHTTPRequestDuration).Observe(time.Since(start).Seconds(),
			observability.L("method", r.Method),
			observability.L("route", route),
		)

		reqLogger.Info("http_request_done",
			observability.F("method", r.Method),
			observability.F("route", route),
			observability.F("status", rec.status),
			observability.F("latency_seconds", time.Since(start).Seconds()),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
