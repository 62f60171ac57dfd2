package http

import (
	"net/http"
	"net/url"
)

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.ledger.ListProducts()).Write(w)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.ledger.UpsertProduct(r.Context(), req.toProduct(), "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/products/"+url.PathEscape(saved.Name)).
		Body(saved).
		Write(w)
}

// handleUpdateProduct updates the product named in the path. A different
// name in the body renames it.
func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.ledger.UpsertProduct(r.Context(), req.toProduct(), r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(saved).Write(w)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteProduct(r.Context(), r.PathValue("name")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
