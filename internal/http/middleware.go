package http

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dohyunkim-dev/authgate/internal/http/handlers"
	"github.com/dohyunkim-dev/authgate/internal/observability/logger"
	"github.com/dohyunkim-dev/authgate/internal/rate"
)

// RequestID attaches a request id to the response headers so error
// envelopes and logs can be correlated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request.
func RequestLogger(next http.Handler) http.Handler {
	log := logger.Named("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", w.Header().Get("X-Request-ID")))
	})
}

// RateLimit rejects requests over the limiter's budget with 429. Keyed by
// client IP so one caller cannot starve the auth endpoints for everyone.
// Fails open when the limiter backend is unreachable.
func RateLimit(limiter rate.Limiter) func(http.Handler) http.Handler {
	log := logger.Named("rate")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			res, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				log.Warn("limiter unavailable, admitting", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
				handlers.WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// APIKey guards a route with a static X-API-Key header check.
func APIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" || r.Header.Get("X-API-Key") != key {
				handlers.WriteError(w, http.StatusUnauthorized, "INVALID_API_KEY", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
