package http

import (
	"net/http"
	"net/url"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users := s.ledger.ListUsers()
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.ledger.UpsertUser(r.Context(), req.toUser())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/users/"+url.PathEscape(saved.ID)).
		Body(toUserResponse(saved)).
		Write(w)
}

// handleDeleteUser removes a user. Deleting the signed-in user also ends
// the session.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.ledger.DeleteUser(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	if currentUser(r).ID == id {
		s.sessions.Logout(r.Context())
		s.clearCookie(w)
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.ledger.Settings()).Write(w)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	settings := req.toSettings()
	if err := s.ledger.UpdateSettings(r.Context(), settings); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(settings).Write(w)
}
