package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"schedule-tracker/pkg/task"
)

type ctxKey int

const requestIDKey ctxKey = iota

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// recorder captures the status code for logging and metrics.
type recorder struct {
	http.ResponseWriter
	status int
}

func (rec *recorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *recorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = 200
	}
	return rec.ResponseWriter.Write(b)
}

func (rec *recorder) Flush() {
	_ = http.NewResponseController(rec.ResponseWriter).Flush()
}

func (rec *recorder) Unwrap() http.ResponseWriter { return rec.ResponseWriter }

// middleware tags each request with an id, logs it on completion and
// records request metrics under the matched route pattern.
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, id))

		rec := &recorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = 200
		}

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		s.logger.Info("request",
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", id,
		)

		if s.metrics != nil {
			attrs := metric.WithAttributes(
				attribute.String("http.route", route),
				attribute.Int("http.status_code", rec.status),
			)
			s.metrics.Requests.Add(r.Context(), 1, attrs)
			s.metrics.RequestDuration.Record(r.Context(), elapsed.Seconds(), attrs)
		}
	})
}

func (s *Server) countMutation(r *http.Request, kind task.Kind, op string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Mutations.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("op", op),
	))
}

func (s *Server) countRejection(r *http.Request, status int) {
	if s.metrics == nil {
		return
	}
	s.metrics.Rejections.Add(r.Context(), 1, metric.WithAttributes(
		attribute.Int("http.status_code", status),
	))
}

func (s *Server) trackStream(ctx context.Context, delta int64) {
	if s.metrics == nil {
		return
	}
	s.metrics.ActiveStreams.Add(ctx, delta)
}
