package http

import (
	"net/http"
	"net/url"
)

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.ledger.ListJobs()).Write(w)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	s.saveJob(w, r, "")
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	s.saveJob(w, r, r.PathValue("id"))
}

func (s *Server) saveJob(w http.ResponseWriter, r *http.Request, id string) {
	var req jobRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	job, err := req.toJob(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.ledger.UpsertJob(r.Context(), job)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := NewJSONResponse().Body(saved)
	if id == "" {
		resp.Status(http.StatusCreated).Header("Location", "/api/jobs/"+url.PathEscape(saved.ID))
	}
	resp.Write(w)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteJob(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.ledger.ListPayments()).Write(w)
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	s.savePayment(w, r, "")
}

func (s *Server) handleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	s.savePayment(w, r, r.PathValue("id"))
}

func (s *Server) savePayment(w http.ResponseWriter, r *http.Request, id string) {
	var req paymentRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	payment, err := req.toPayment(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.ledger.UpsertPayment(r.Context(), payment)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := NewJSONResponse().Body(saved)
	if id == "" {
		resp.Status(http.StatusCreated).Header("Location", "/api/payments/"+url.PathEscape(saved.ID))
	}
	resp.Write(w)
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeletePayment(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
