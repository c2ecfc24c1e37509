package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady reports 503 while the store is unreachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"store": "ok"}
	status, httpStatus := "ready", http.StatusOK
	if s.ready != nil {
		if err := s.ready.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
			checks["store"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := s.accounts.Register(r.Context(), sanitizeInput(req.Username), req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := s.accounts.Login(r.Context(), sanitizeInput(req.Username), req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	roles := session.User.Roles
	if roles == nil {
		roles = []string{}
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		TokenType: "Bearer",
		Username:  session.User.Username,
		Roles:     roles,
		ExpiresAt: session.ExpiresAt.UTC(),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.accounts.Current(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// handleListTransactions lists everything, or one period when both
// startDate and endDate are given.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	start, end, hasPeriod, err := parsePeriodQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var txs []core.Transaction
	if hasPeriod {
		txs, err = s.transactions.ListByPeriod(r.Context(), start, end)
	} else {
		txs, err = s.transactions.ListAll(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionList(txs))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	typ, err := core.ParseTransactionType(req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}

	tx := &core.Transaction{
		Description: sanitizeInput(req.Description),
		Amount:      req.Amount,
		Type:        typ,
	}
	if req.Date != "" {
		if tx.Date, err = parseTimestamp(req.Date); err != nil {
			writeError(w, r, err)
			return
		}
	}

	created, err := s.transactions.Add(r.Context(), tx)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.metrics.RecordTransaction(log.OpCreate, created.Type.String())
	w.Header().Set("Location", "/api/transactions/"+strconv.FormatInt(created.ID, 10))
	writeJSON(w, http.StatusCreated, newTransactionResponse(created))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.transactions.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	s.metrics.RecordTransaction(log.OpDelete, "")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.transactions.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleSummaryByPeriod requires both bounds; missing ones are rejected by
// the service.
func (s *Server) handleSummaryByPeriod(w http.ResponseWriter, r *http.Request) {
	start, end, _, err := parsePeriodQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary, err := s.transactions.SummaryByPeriod(r.Context(), start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
