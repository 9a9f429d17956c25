package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/efreitasn/minibroker/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	// CORSAllowedOrigins enables CORS for the listed origins. Empty disables it.
	CORSAllowedOrigins []string
	// RequestTimeout cancels the request context after the given duration.
	// Zero means no limit.
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation middleware.
func NewRouter(
	orderSvc *service.OrderService,
	accountSvc *service.AccountService,
	instrumentSvc *service.InstrumentService,
	logger *slog.Logger,
	opts RouterOptions,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(middleware.Recoverer)
	if len(opts.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: opts.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
		}).Handler)
	}
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}
	r.Use(contentTypeJSON)

	// Create handlers.
	orderH := NewOrderHandler(orderSvc)
	accountH := NewAccountHandler(accountSvc, orderSvc)
	instrumentH := NewInstrumentHandler(instrumentSvc)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Order routes.
	r.Post("/orders", orderH.SubmitOrder)
	r.Get("/orders/{order_id}", orderH.GetOrder)

	// Account routes.
	r.Get("/accounts/{account_number}/balance", accountH.GetBalance)
	r.Get("/accounts/{account_number}/portfolio", accountH.GetPortfolio)
	r.Get("/accounts/{account_number}/orders", accountH.ListOrders)

	// Instrument routes.
	r.Get("/instruments", instrumentH.Search)
	r.Get("/instruments/{ticker}/quote", instrumentH.GetQuote)
	r.Get("/instruments/{ticker}/quotes", instrumentH.GetQuoteHistory)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON rejects POST, PUT and PATCH requests whose Content-Type
// is not application/json with 400 before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
