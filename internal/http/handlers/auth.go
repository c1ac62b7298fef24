package handlers

import (
	"net/http"
	"strings"
	"time"

	"server/internal/middleware"
	"server/internal/sqlinline"
)

const sessionTokenTTL = 7 * 24 * time.Hour

type googleVerifyRequest struct {
	IDToken    string `json:"idToken"`
	Credential string `json:"credential"`
}

// GoogleVerify exchanges a Google ID token for an application session. The
// user row is upserted by email; brand-new users receive the initial credit
// grant exactly once.
func (a *App) GoogleVerify(w http.ResponseWriter, r *http.Request) {
	var req googleVerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	idToken := strings.TrimSpace(req.IDToken)
	if idToken == "" {
		idToken = strings.TrimSpace(req.Credential)
	}
	if idToken == "" {
		a.fail(w, http.StatusBadRequest, "idToken is required")
		return
	}

	claims, err := a.Verifier.VerifyIDToken(r.Context(), idToken)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("google id token rejected")
		a.fail(w, http.StatusUnauthorized, "invalid Google credential")
		return
	}
	if claims.Email == "" {
		a.fail(w, http.StatusUnauthorized, "Google account has no verified email")
		return
	}

	locale := claims.Locale
	if locale == "" {
		locale = middleware.LocaleFromContext(r.Context())
	}

	var (
		userID   string
		inserted bool
	)
	err = a.SQL.QueryRow(r.Context(), sqlinline.QUpsertGoogleUser,
		claims.Subject, claims.Email, claims.Name, claims.Picture, locale,
		a.Config.InitialUserCredits,
	).Scan(&userID, &inserted)
	if err != nil {
		a.Logger.Error().Err(err).Msg("user upsert failed")
		a.fail(w, http.StatusInternalServerError, "could not sign in")
		return
	}

	token, err := middleware.SignJWT(a.Config.JWTSecret, middleware.TokenClaims{
		Sub:    userID,
		Email:  claims.Email,
		Locale: locale,
		Exp:    time.Now().Add(sessionTokenTTL).Unix(),
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("session token signing failed")
		a.fail(w, http.StatusInternalServerError, "could not sign in")
		return
	}

	a.Logger.Info().
		Str("user_id", userID).
		Bool("new_user", inserted).
		Msg("google sign-in")
	a.ok(w, map[string]any{
		"token":   token,
		"newUser": inserted,
		"user": map[string]any{
			"id":      userID,
			"email":   claims.Email,
			"name":    claims.Name,
			"picture": claims.Picture,
			"locale":  locale,
		},
	})
}
