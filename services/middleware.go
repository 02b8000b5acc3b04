// d8cart/services/middleware.go

package services

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/norun9/d8cart/cart"
)

type ctxKeyLog struct{}

// ProvideCart makes store available to every handler below it through cart.FromContext.
func ProvideCart(store *cart.Store) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(cart.NewContext(r.Context(), store)))
		})
	}
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	b      int
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.b += n
	return n, err
}

// LogRequests tags each request with an id and logs its start and completion.
func LogRequests(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := uuid.NewString()
			entry := log.WithFields(logrus.Fields{
				"http.req.path":   r.URL.Path,
				"http.req.method": r.Method,
				"http.req.id":     requestID,
			})
			entry.Debug("request started")

			rr := &responseRecorder{ResponseWriter: w}
			w.Header().Set("X-Request-Id", requestID)
			ctx := context.WithValue(r.Context(), ctxKeyLog{}, entry)
			next.ServeHTTP(rr, r.WithContext(ctx))

			entry.WithFields(logrus.Fields{
				"http.resp.took_ms": int64(time.Since(start) / time.Millisecond),
				"http.resp.status":  rr.status,
				"http.resp.bytes":   rr.b,
			}).Debug("request complete")
		})
	}
}

func requestLogger(r *http.Request, fallback logrus.FieldLogger) logrus.FieldLogger {
	if l, ok := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger); ok {
		return l
	}
	return fallback
}
