package http

import (
	"context"
	"net/http"
	"strings"

	"ledger/internal/core"
	"ledger/internal/log"
)

const sessionCookie = "ledger_session"

type userKey struct{}

// userResponse is a User without its password.
type userResponse struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Role     core.Role `json:"role"`
}

func toUserResponse(u core.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Role: u.Role}
}

type loginResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

// sessionToken reads the token from the session cookie or a bearer
// Authorization header.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return ""
}

// requireSession rejects requests without the active session token and
// puts the signed-in user in the context.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.sessions.Authenticate(sessionToken(r))
		if !ok {
			writeError(w, r, errUnauthenticated)
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, u)
		next(w, r.WithContext(ctx))
	}
}

// requireAdmin is requireSession plus the admin role.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireSession(func(w http.ResponseWriter, r *http.Request) {
		if u := currentUser(r); !u.IsAdmin() {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Admin route refused",
				log.FieldUsername, u.Username,
				log.FieldPath, r.URL.Path,
				log.FieldErrorType, log.ErrorTypeAuth)
			writeError(w, r, ErrForbidden)
			return
		}
		next(w, r)
	})
}

func currentUser(r *http.Request) core.User {
	u, _ := r.Context().Value(userKey{}).(core.User)
	return u
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, token, err := s.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.clearCookie(w)
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
	NewJSONResponse().Body(loginResponse{User: toUserResponse(u), Token: token}).Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout(r.Context())
	s.clearCookie(w)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(toUserResponse(currentUser(r))).Write(w)
}

func (s *Server) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
