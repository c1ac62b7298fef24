package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"server/internal/generation"
	"server/internal/infra"
	"server/internal/infra/google"
	"server/internal/middleware"
	"server/internal/providers/evolink"
	"server/internal/sqlinline"
)

// CodeSuccess is the envelope sentinel for a successful response. Error
// envelopes carry the HTTP status as the code instead; code 401 tells the
// client to re-authenticate.
const CodeSuccess = 1000

// GenerationVendor is the slice of the Evolink client the handlers use.
type GenerationVendor interface {
	CreateImageTask(ctx context.Context, req evolink.ImageTaskRequest) (string, error)
	CreateVideoTask(ctx context.Context, req evolink.VideoTaskRequest) (string, error)
	GetTask(ctx context.Context, taskID string) (*evolink.Task, error)
}

// ResultPersister copies transient result URLs into durable storage.
type ResultPersister interface {
	PersistResults(ctx context.Context, taskID string, kind generation.Kind, results []string) []string
}

// IDTokenVerifier validates a Google ID token and returns its claims.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, token string) (*google.Claims, error)
}

// App aggregates the dependencies shared by all route handlers.
type App struct {
	Config    *infra.Config
	Logger    infra.Logger
	SQL       infra.SQLExecutor
	Vendor    GenerationVendor
	Persister ResultPersister
	Verifier  IDTokenVerifier
}

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (a *App) ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Code: CodeSuccess, Message: "success", Data: data})
}

func (a *App) fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Code: status, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}

// currentUserID reads the authenticated user from the request context. The
// auth middleware guarantees it is set on protected routes.
func (a *App) currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.fail(w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return userID, true
}

var errInsufficientCredits = errors.New("insufficient credits")

// spendCredits debits the user's balance atomically and returns the
// remaining balance. errInsufficientCredits is returned when the balance
// does not cover the amount.
func (a *App) spendCredits(ctx context.Context, userID string, amount int, businessType, description string) (int, error) {
	var balance int
	err := a.SQL.QueryRow(ctx, sqlinline.QSpendCredits, userID, amount, businessType, description).Scan(&balance)
	if infra.IsNoRows(err) {
		return 0, errInsufficientCredits
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// failVendor maps a vendor call failure onto the response envelope. Rate
// limiting is surfaced as-is; everything else from upstream is a gateway
// error so it cannot be confused with this API's own 401. The vendor's own
// error text is passed through when it supplies one.
func (a *App) failVendor(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *evolink.APIError
	if errors.As(err, &apiErr) {
		a.Logger.Warn().Err(err).
			Int("upstream_status", apiErr.StatusCode).
			Str("path", r.URL.Path).
			Msg("vendor request failed")
		if apiErr.StatusCode == http.StatusTooManyRequests {
			a.fail(w, http.StatusTooManyRequests, vendorMessage(apiErr, "generation service is busy, try again shortly"))
			return
		}
		a.fail(w, http.StatusBadGateway, vendorMessage(apiErr, "generation service error"))
		return
	}
	a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("vendor request failed")
	a.fail(w, http.StatusBadGateway, "generation service unavailable")
}

func vendorMessage(apiErr *evolink.APIError, fallback string) string {
	if msg := strings.TrimSpace(apiErr.Message); msg != "" {
		return msg
	}
	return fallback
}
