package handlers

import (
	"net/http"
	"time"

	"server/internal/infra"
	"server/internal/sqlinline"
)

// Account returns the caller's profile and credit balance. Subscription
// fields are present for client compatibility; every account is on the
// free tier until paid plans ship.
func (a *App) Account(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}

	var (
		id, email, name, avatarURL, locale string
		createdAt                          time.Time
	)
	err := a.SQL.QueryRow(r.Context(), sqlinline.QSelectUserByID, userID).
		Scan(&id, &email, &name, &avatarURL, &locale, &createdAt)
	if infra.IsNoRows(err) {
		a.fail(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("account lookup failed")
		a.fail(w, http.StatusInternalServerError, "could not load account")
		return
	}

	balance := 0
	err = a.SQL.QueryRow(r.Context(), sqlinline.QSelectCreditBalance, userID).Scan(&balance)
	if err != nil && !infra.IsNoRows(err) {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("balance lookup failed")
		a.fail(w, http.StatusInternalServerError, "could not load account")
		return
	}

	a.ok(w, map[string]any{
		"id":                 id,
		"email":              email,
		"name":               name,
		"picture":            avatarURL,
		"locale":             locale,
		"memberSince":        createdAt.UTC().Format(time.RFC3339),
		"availablePoints":    balance,
		"subscriptionStatus": "free",
		"subscriptionPlan":   nil,
	})
}
