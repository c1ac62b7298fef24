package handlers

import (
	"net/http"
	"strconv"
	"time"

	"server/internal/infra"
	"server/internal/sqlinline"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type transactionRow struct {
	ID           int64  `json:"id"`
	Amount       int    `json:"amount"`
	Type         string `json:"type"`
	Description  string `json:"description"`
	BalanceAfter int    `json:"balanceAfter"`
	CreatedAt    string `json:"createdAt"`
}

// Transactions lists the caller's credit history, newest first, with the
// balance after each entry reconstructed from the current balance.
func (a *App) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.currentUserID(w, r)
	if !ok {
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", defaultPageSize)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var total int
	if err := a.SQL.QueryRow(r.Context(), sqlinline.QCountCreditHistory, userID).Scan(&total); err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("history count failed")
		a.fail(w, http.StatusInternalServerError, "could not load transactions")
		return
	}

	balance := 0
	if err := a.SQL.QueryRow(r.Context(), sqlinline.QSelectCreditBalance, userID).Scan(&balance); err != nil && !infra.IsNoRows(err) {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("balance lookup failed")
		a.fail(w, http.StatusInternalServerError, "could not load transactions")
		return
	}

	offset := (page - 1) * pageSize
	rows, err := a.SQL.Query(r.Context(), sqlinline.QSelectCreditHistoryPage, userID, pageSize, offset)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("history page failed")
		a.fail(w, http.StatusInternalServerError, "could not load transactions")
		return
	}
	defer rows.Close()

	transactions := make([]transactionRow, 0, pageSize)
	for rows.Next() {
		var (
			row       transactionRow
			createdAt time.Time
		)
		if err := rows.Scan(&row.ID, &row.Amount, &row.Type, &row.Description, &createdAt); err != nil {
			a.Logger.Error().Err(err).Str("user_id", userID).Msg("history scan failed")
			a.fail(w, http.StatusInternalServerError, "could not load transactions")
			return
		}
		row.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		transactions = append(transactions, row)
	}
	if err := rows.Err(); err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("history iteration failed")
		a.fail(w, http.StatusInternalServerError, "could not load transactions")
		return
	}

	// Rewind from the current balance: the newest entry left the balance
	// where it is now, each older entry's balance undoes the ones after it.
	running := balance
	for i := range transactions {
		transactions[i].BalanceAfter = running
		running -= transactions[i].Amount
	}

	totalPages := (total + pageSize - 1) / pageSize
	a.ok(w, map[string]any{
		"transactions": transactions,
		"pagination": map[string]int{
			"page":       page,
			"pageSize":   pageSize,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
