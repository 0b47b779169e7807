package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"campsite/internal/metrics"
	"campsite/internal/service"
)

// HTTPServer exposes the booking engine as a REST API.
type HTTPServer struct {
	svc      *service.BookingService
	logger   *zerolog.Logger
	validate *validator.Validate
	limiter  *rate.Limiter
	srv      *http.Server
}

// NewHTTPServer wires the routes and middleware. rps/burst configure the
// token-bucket limiter applied to every request.
func NewHTTPServer(port int, svc *service.BookingService, rps float64, burst int, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		svc:      svc,
		logger:   logger,
		validate: validator.New(),
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/bookings", s.handleListBookings)
	mux.HandleFunc("POST /api/bookings", s.handleAddBooking)
	mux.HandleFunc("GET /api/bookings/export", s.handleExportBookings)
	mux.HandleFunc("GET /api/bookings/{id}", s.handleGetBooking)
	mux.HandleFunc("PUT /api/bookings/{id}", s.handleUpdateBooking)
	mux.HandleFunc("DELETE /api/bookings/{id}", s.handleDeleteBooking)
	mux.HandleFunc("GET /api/availabilities", s.handleAvailabilities)

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.withMiddleware(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler, used directly by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", s.srv.Addr).Msg("API server started")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// withMiddleware adds rate limiting, a request id and request logging.
func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		next.ServeHTTP(w, r)
		elapsed := time.Since(start)

		metrics.IncHTTP(r.Method + " " + r.URL.Path)
		metrics.ObserveRequestDuration(r.URL.Path, elapsed.Seconds())

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", elapsed).
			Msg("Request handled")
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, message string, details ...string) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}
