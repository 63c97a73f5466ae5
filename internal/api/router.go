package api

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/hedgefund/internal/api/handlers"
	"github.com/wonny/hedgefund/internal/report"
	"github.com/wonny/hedgefund/pkg/logger"
	"github.com/wonny/hedgefund/pkg/redis"
)

// Handlers groups the endpoint handlers the router mounts
type Handlers struct {
	Backtest  *handlers.BacktestHandler
	HedgeFund *handlers.HedgeFundHandler
	System    *handlers.SystemHandler
}

// RateLimit throttles submissions per client; a nil Limiter or zero PerMinute disables it
type RateLimit struct {
	Limiter   *redis.RateLimiter
	PerMinute int
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, limit RateLimit, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", h.System.Index).Methods("GET")
	r.HandleFunc("/health", h.System.Health).Methods("GET")

	// /api 경로는 서브라우터 없이 등록: 메서드 불일치가 405로 응답되도록

	// Backtest endpoints
	r.HandleFunc("/api/backtest", h.Backtest.Run).Methods("POST")
	r.HandleFunc("/api/backtest", h.Backtest.List).Methods("GET")
	r.HandleFunc("/api/backtest/{id}", h.Backtest.Get).Methods("GET")
	r.HandleFunc("/api/backtest/{id}", h.Backtest.Cancel).Methods("DELETE")
	r.HandleFunc("/api/backtest/{id}/stream", h.Backtest.Stream).Methods("GET")

	// Analysis endpoints
	r.HandleFunc("/api/hedge-fund", h.HedgeFund.Analyze).Methods("POST")
	r.HandleFunc("/api/analysts", h.System.Analysts).Methods("GET")

	// System endpoints
	r.HandleFunc("/api/system/jobs", h.System.Jobs).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "Not found: "+req.URL.Path)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed: "+req.Method)
	})

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))
	if limit.Limiter != nil && limit.Limiter.Enabled() && limit.PerMinute > 0 {
		r.Use(rateLimitMiddleware(limit, log))
	}

	return r
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware turns a panic into a 500 carrying the panic's description
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					writeError(w, http.StatusInternalServerError, fmt.Sprint(err))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware applies the per-client sliding window to POST requests.
// Redis failures let the request through.
func rateLimitMiddleware(limit RateLimit, log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			key := redis.ClientRateKey(r.URL.Path, clientID(r))
			allowed, remaining, err := limit.Limiter.Allow(r.Context(), redis.PerMinute(key, limit.PerMinute))
			if err != nil {
				log.WithError(err).Warn("Rate limit check failed")
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.PerMinute))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !allowed {
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientID identifies the caller, preferring the first X-Forwarded-For hop
func clientID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(report.ErrorResponse{Status: report.StatusError, Message: message})
}
