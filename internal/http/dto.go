package http

import (
	"time"

	"fintrack/internal/core"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
}

func newUserResponse(u core.User) userResponse {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return userResponse{ID: u.ID, Username: u.Username, Roles: roles, CreatedAt: u.CreatedAt}
}

type loginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// createTransactionRequest has no owner field; any owner sent by the client
// is dropped by the decoder.
type createTransactionRequest struct {
	Description string     `json:"description"`
	Amount      core.Money `json:"amount"`
	Type        string     `json:"type"`
	Date        string     `json:"date,omitempty"`
}

type transactionResponse struct {
	ID          int64      `json:"id"`
	Description string     `json:"description"`
	Amount      core.Money `json:"amount"`
	Type        string     `json:"type"`
	Date        time.Time  `json:"date"`
}

func newTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Description: t.Description,
		Amount:      t.Amount,
		Type:        t.Type.String(),
		Date:        t.Date.UTC(),
	}
}

func newTransactionList(ts []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, newTransactionResponse(t))
	}
	return out
}
