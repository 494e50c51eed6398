// Package httpapi is the thin chi-routed transport adapter in front of
// internal/engine: it maps HTTP requests onto Engine methods and maps
// domain.Error codes onto HTTP statuses (spec §7), and otherwise contains
// no business logic of its own.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RaphLorr/vacation-dashboard-gemini/internal/domain"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/engine"
)

// CallbackHandler is the subset of callback.Handler the router wires up.
type CallbackHandler interface {
	ServeVerify(w http.ResponseWriter, r *http.Request)
	ServeEvent(w http.ResponseWriter, r *http.Request)
}

// NewRouter builds the chi.Router for the whole process: the upstream
// callback endpoints plus the control plane.
func NewRouter(eng *engine.Engine, cb CallbackHandler, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(correlationIDMiddleware)
	r.Use(zerologMiddleware(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/callback", cb.ServeVerify)
	r.Post("/callback", cb.ServeEvent)

	r.Route("/control", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, eng.Status())
		})
		r.Get("/active-approvals", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, eng.ActiveApprovals())
		})
		r.Post("/cursor/reset", func(w http.ResponseWriter, r *http.Request) {
			if err := eng.ResetCursor(); err != nil {
				writeDomainError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})
		r.Post("/poller/{state}", func(w http.ResponseWriter, r *http.Request) {
			eng.SetPollerEnabled(chi.URLParam(r, "state") == "on")
			w.WriteHeader(http.StatusNoContent)
		})
		r.Post("/status-checker/{state}", func(w http.ResponseWriter, r *http.Request) {
			eng.SetStatusCheckEnabled(chi.URLParam(r, "state") == "on")
			w.WriteHeader(http.StatusNoContent)
		})
		r.Post("/sync/trigger", func(w http.ResponseWriter, r *http.Request) {
			if err := eng.TriggerManual(engine.TriggerIncrementalSync); err != nil {
				writeDomainError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusAccepted)
		})
		r.Post("/status-check/trigger", func(w http.ResponseWriter, r *http.Request) {
			if err := eng.TriggerManual(engine.TriggerStatusCheck); err != nil {
				writeDomainError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusAccepted)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// errResponse matches the shape the control plane returns on failure,
// carrying the stable machine code alongside the message (spec §7).
type errResponse struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlationId"`
}

// writeDomainError maps a domain.Error's Code onto the HTTP status spec §7
// assigns it. Anything that isn't a *domain.Error is treated as an
// unclassified internal failure.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var domErr *domain.Error
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	msg := err.Error()

	if errors.As(err, &domErr) {
		code = string(domErr.Code)
		msg = domErr.Message
		switch domErr.Code {
		case domain.CodeAuth:
			status = http.StatusUnauthorized
		case domain.CodeAPI:
			status = http.StatusServiceUnavailable
		case domain.CodeTransform, domain.CodeCrypto, domain.CodeStore:
			status = http.StatusInternalServerError
		case domain.CodeLockBusy:
			status = http.StatusConflict
		case domain.CodeRateLimit:
			status = http.StatusTooManyRequests
		case domain.CodeRangeError:
			status = http.StatusBadRequest
		}
	}

	writeJSON(w, status, errResponse{Code: code, Message: msg, CorrelationID: w.Header().Get("X-Correlation-ID")})
}

// correlationIDMiddleware assigns a uuid-based correlation ID to every
// request, independent of chi's own RequestID (which is a simple counter
// meant for log correlation within a single process run, not a
// cross-service identifier).
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Correlation-ID", id)
		next.ServeHTTP(w, r)
	})
}

func zerologMiddleware(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
			next.ServeHTTP(w, r)
		})
	}
}
