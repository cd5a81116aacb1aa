package server

import (
	"net/http"

	"github.com/Tomlord1122/todo-share/internal/service"
)

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.auth.Register(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusCreated, "User registered successfully", resp)
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.auth.Login(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "Login successful", resp)
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), currentClaims(r)); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "Logged out successfully", nil)
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	me, err := s.auth.Me(r.Context(), currentUser(r).ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "", me)
}

func (s *Server) searchUsersHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 0)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	users, err := s.auth.SearchUsers(r.Context(), currentUser(r).ID, r.URL.Query().Get("email"), limit)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "", users)
}
