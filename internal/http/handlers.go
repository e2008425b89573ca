package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"bilans/internal/balance"
	"bilans/internal/core"
	"bilans/internal/log"
	"bilans/internal/services"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady checks that the ledger store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := s.ledger.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		http.Error(w, "ledger store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.templates == nil {
		log.FromContext(ctx).ErrorContext(ctx, "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	g := s.ledger.Group()
	data := indexView{}
	for _, m := range g.Members() {
		data.Members = append(data.Members, string(m))
	}

	// The page still renders when the store is down; the partials show the error.
	if m, err := s.ledger.Balance(ctx); err == nil {
		data.Balance = newBalanceView(m)
	} else {
		log.FromContext(ctx).ErrorContext(ctx, "Balance unavailable", log.FieldError, err, log.FieldOperation, log.OpBalance)
	}
	if records, err := s.ledger.History(ctx); err == nil {
		data.History = newHistoryView(g, records, historyLimit)
	} else {
		log.FromContext(ctx).ErrorContext(ctx, "History unavailable", log.FieldError, err, log.FieldOperation, log.OpRead)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Index template execution failed",
			log.FieldError, err, log.FieldOperation, log.OpRender)
	}
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "malformed request body", err)
		return
	}

	exp, err := parseExpense(s.ledger.Group(), p)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	rec, err := s.ledger.AddExpense(ctx, exp)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	if isHTMX(r) {
		msg := string(rec.Actor) + " paid " + exp.Amount.String() + " for " + joinParticipants(exp.Participants) + "."
		MessageResponse(http.StatusCreated, "success", msg).
			TriggerLedgerChanged(string(rec.Kind), rec.ID).
			TriggerFormReset().
			Write(w)
		return
	}
	writeJSON(w, http.StatusCreated, newRecordDTO(s.ledger.Group(), rec))
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "malformed request body", err)
		return
	}

	req, err := parseSettlement(s.ledger.Group(), p)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	res, err := s.ledger.Settle(ctx, req)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	if isHTMX(r) {
		b := MessageResponse(http.StatusOK, notificationClass(res.Outcome), res.Message())
		if res.Record != nil {
			b.TriggerLedgerChanged(string(res.Record.Kind), res.Record.ID).TriggerFormReset()
		}
		b.Write(w)
		return
	}
	writeJSON(w, http.StatusOK, newSettlementDTO(s.ledger.Group(), res))
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	m, err := s.ledger.Balance(r.Context())
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBalanceDTO(m))
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	records, err := s.ledger.History(r.Context())
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	g := s.ledger.Group()
	out := make([]recordDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, newRecordDTO(g, rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleBalancePartial renders the balance section for htmx refreshes.
func (s *Server) handleBalancePartial(w http.ResponseWriter, r *http.Request) {
	m, err := s.ledger.Balance(r.Context())
	if err != nil {
		s.renderPartialError(w, r, "balance", "/ui/balances", "Could not load the balance.", err)
		return
	}
	s.renderPartial(w, r, "balance.html", newBalanceView(m))
}

func (s *Server) handleHistoryPartial(w http.ResponseWriter, r *http.Request) {
	records, err := s.ledger.History(r.Context())
	if err != nil {
		s.renderPartialError(w, r, "history", "/ui/history", "Could not load the history.", err)
		return
	}
	s.renderPartial(w, r, "history.html", newHistoryView(s.ledger.Group(), records, historyLimit))
}

func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution error",
			log.FieldError, err, "template", name, log.FieldOperation, log.OpRender)
	}
}

// renderPartialError keeps the refresh trigger so the section recovers on
// the next change.
func (s *Server) renderPartialError(w http.ResponseWriter, r *http.Request, id, url, message string, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Partial load failed", log.FieldError, err, "partial", id)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(`<section id="` + id + `" class="card" hx-get="` + url +
		`" hx-trigger="ledger:changed from:body" hx-swap="outerHTML"><div class="placeholder">` + message + `</div></section>`))
}

// respondFailure maps service errors to status codes: invalid input is 422,
// a store failure 502.
func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		s.respondError(w, r, http.StatusUnprocessableEntity, err.Error(), err)
	case errors.Is(err, services.ErrPersistence):
		s.respondError(w, r, http.StatusBadGateway, "the ledger could not be reached, nothing was recorded", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.respondError(w, r, http.StatusServiceUnavailable, "request cancelled", err)
	default:
		s.respondError(w, r, http.StatusInternalServerError, "internal error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	if status >= 500 {
		log.NewStructuredLogger(logger).LogError(ctx, "Request failed", err, r.Pattern, nil)
	} else {
		logger.WarnContext(ctx, "Request rejected", log.FieldError, err, log.FieldStatusCode, status)
	}

	if isHTMX(r) {
		ErrorResponse(status, message).Write(w)
		return
	}
	writeJSONError(w, status, message)
}

func notificationClass(o balance.Outcome) string {
	switch o {
	case balance.OutcomeCapped:
		return string(NotificationWarning)
	case balance.OutcomeNothingOwed:
		return string(NotificationInfo)
	default:
		return string(NotificationSuccess)
	}
}

func joinParticipants(ps []core.Participant) string {
	out := ""
	for i, p := range ps {
		if i > 0 {
			out += ", "
		}
		out += string(p)
	}
	return out
}
