package httpapi

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"net/http"
	"time"

	"modeium/backend/internal/adapters"
	"modeium/backend/internal/auth"
	"modeium/backend/internal/config"
	"modeium/backend/internal/models"
	"modeium/backend/internal/session"
	"modeium/backend/internal/telemetry"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	cfg      config.Config
	registry *models.Registry
	adapters adapters.Factory
	cookies  session.Cookies
	verifier auth.Verifier
	metrics  *telemetry.Metrics
}

func NewHandler(cfg config.Config, registry *models.Registry, factory adapters.Factory, verifier auth.Verifier, metrics *telemetry.Metrics) Handler {
	return Handler{
		cfg:      cfg,
		registry: registry,
		adapters: factory,
		cookies:  session.Cookies{Name: cfg.SessionCookieName, Secure: cfg.CookieSecure},
		verifier: verifier,
		metrics:  metrics,
	}
}

func (h Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h Handler) ListModels(w http.ResponseWriter, _ *http.Request) {
	type modelResponse struct {
		Slug               string `json:"slug"`
		Name               string `json:"name"`
		Provider           string `json:"provider"`
		RequiresCredential bool   `json:"requiresCredential"`
		Icon               string `json:"icon,omitempty"`
	}

	rows := h.registry.All()
	out := make([]modelResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, modelResponse{
			Slug:               row.Slug(),
			Name:               row.Name,
			Provider:           row.Provider,
			RequiresCredential: row.RequiresCredential,
			Icon:               row.Icon,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": out})
}

type setCookieRequest struct {
	Token string `json:"token"`
}

func (h Handler) SetCookie(w http.ResponseWriter, r *http.Request) {
	var req setCookieRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to set cookie")
		return
	}

	if _, err := h.verifier.Verify(r.Context(), req.Token); err != nil {
		if errors.Is(err, auth.ErrEmptyToken) {
			writeError(w, http.StatusInternalServerError, "Failed to set cookie")
			return
		}
		log.Printf("session token rejected: err=%v", err)
		writeError(w, http.StatusUnauthorized, "Invalid session token")
		return
	}

	h.cookies.Set(w, req.Token)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h Handler) DeleteCookie(w http.ResponseWriter, _ *http.Request) {
	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Message serves one message variant for the model named by the slug URL
// parameter.
func (h Handler) Message(variant string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		model, err := h.registry.Lookup(slug)
		if err != nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown model: %s", slug))
			return
		}

		adapter, err := h.adapters.For(model, variant)
		if err != nil {
			log.Printf("adapter unavailable: slug=%s variant=%s err=%v", model.Slug(), variant, err)
			writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("%s is not available", model.Name))
			return
		}

		in, cleanup, err := h.readMessageInput(w, r, variant)
		defer cleanup()
		if err != nil {
			var reqErr *requestError
			if errors.As(err, &reqErr) {
				writeError(w, reqErr.status, reqErr.message)
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), h.cfg.UpstreamTimeout)
		defer cancel()

		started := time.Now()
		result := adapter.Handle(ctx, in)
		outcome := adapters.Outcome(result)
		timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded) && outcome == "upstream_error"
		if timedOut {
			outcome = "timeout"
		}
		h.metrics.RecordAdapter(model.Slug(), variant, outcome, time.Since(started))

		switch res := result.(type) {
		case *adapters.Success:
			writeJSON(w, http.StatusOK, res)
		case *adapters.Failure:
			if res.Kind == adapters.KindUpstreamError {
				log.Printf("adapter failed: slug=%s variant=%s err=%s", model.Slug(), variant, res.Message)
			}
			if timedOut {
				writeError(w, http.StatusGatewayTimeout, "Upstream timeout")
				return
			}
			writeFailure(w, res)
		}
	}
}

func writeFailure(w http.ResponseWriter, failure *adapters.Failure) {
	switch failure.Kind {
	case adapters.KindMissingFields, adapters.KindEmptyUpstreamResponse:
		writeJSON(w, failure.Status(), errorResponse{Error: failure.Message, Details: failure.Details})
	default:
		writeJSON(w, failure.Status(), errorResponse{Error: "Server error", Message: failure.Message})
	}
}

// Page renders a placeholder for a UI route behind the session gate.
func Page(title string) http.HandlerFunc {
	body := fmt.Sprintf("<!doctype html><html><head><title>%[1]s</title></head><body><h1>%[1]s</h1></body></html>", html.EscapeString(title))
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}
}
