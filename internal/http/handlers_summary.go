package http

import (
	"net/http"

	"ledger/internal/core"
)

// summaryResponse adds display strings in the configured currency and
// date format.
type summaryResponse struct {
	core.MonthlySummary
	Currency  string `json:"currency"`
	Formatted struct {
		From    string `json:"from"`
		To      string `json:"to"`
		Income  string `json:"income"`
		Expense string `json:"expense"`
		Net     string `json:"net"`
	} `json:"formatted"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month, err := parseMonthParam(r, s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.ledger.MonthlySummary(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	settings := s.ledger.Settings()
	currency := settings.Currency
	resp := summaryResponse{MonthlySummary: sum, Currency: currency}
	resp.Formatted.From = settings.DateFormat.Format(month.FirstDay())
	resp.Formatted.To = settings.DateFormat.Format(month.LastDay())
	resp.Formatted.Income = sum.Income.Format(currency)
	resp.Formatted.Expense = sum.Expense.Format(currency)
	resp.Formatted.Net = sum.Net.Format(currency)
	NewJSONResponse().Body(resp).Write(w)
}
