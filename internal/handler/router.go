package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tradeflowafrica/tradeflow/internal/engine"
	"github.com/tradeflowafrica/tradeflow/internal/service"
	"github.com/tradeflowafrica/tradeflow/internal/settlement"
	"github.com/tradeflowafrica/tradeflow/internal/store"
)

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation middleware.
func NewRouter(
	intentSvc *service.IntentService,
	webhookSvc *service.WebhookService,
	eng *engine.Engine,
	orch *settlement.Orchestrator,
	matches *store.MatchStore,
	ledger *store.LedgerStore,
	rates RateProvider,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	// Create handlers.
	intentH := NewIntentHandler(intentSvc)
	matchingH := NewMatchingHandler(eng)
	settlementH := NewSettlementHandler(matches, orch)
	webhookH := NewWebhookHandler(webhookSvc)
	ledgerH := NewLedgerHandler(ledger)
	rateH := NewRateHandler(rates)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Intent routes.
	r.Post("/intents", intentH.Submit)
	r.Get("/intents/{intent_id}", intentH.Get)
	r.Delete("/intents/{intent_id}", intentH.Cancel)
	r.Get("/traders/{trader_id}/intents", intentH.ListByTrader)

	// Match and settlement routes.
	r.Get("/matches/{match_id}", settlementH.GetMatch)
	r.Get("/matches/{match_id}/settlement", settlementH.GetCase)
	r.Delete("/matches/{match_id}/settlement", settlementH.CancelCase)

	// Rate routes.
	r.Get("/rates/current", rateH.Current)

	// Webhook routes.
	r.Post("/webhooks", webhookH.Upsert)
	r.Get("/webhooks", webhookH.List)
	r.Delete("/webhooks/{webhook_id}", webhookH.Delete)

	// Admin routes.
	r.Post("/admin/matching/cycles", matchingH.RunCycle)
	r.Get("/admin/matching/cycles/latest", matchingH.LatestCycle)
	r.Get("/admin/settlement/cases", settlementH.ListCases)
	r.Get("/admin/ledger", ledgerH.List)

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

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
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
