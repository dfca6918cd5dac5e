package server

import (
	"errors"
	"net/http"

	"github.com/Tomlord1122/todolist/internal/service"
)

const (
	msgSignupOK     = "Signup successfully"
	msgEmailTaken   = "User is already exist, you can login"
	msgLoginOK      = "Login Success"
	msgLoginFailed  = "Auth failed email or password is wrong"
	msgServerError  = "Server error"
	msgTodoNotFound = "Todo not found"
	msgTodoDeleted  = "Todo deleted successfully"
	msgTodosRemoved = "All todos removed"
)

func (s *Server) signupHandler(w http.ResponseWriter, r *http.Request) {
	var req service.SignupRequest
	if !s.decodeOrRespond(w, r, &req, true) {
		return
	}

	err := s.authService.Signup(r.Context(), req)
	var verr *service.ValidationError
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusCreated, map[string]any{"success": true, "message": msgSignupOK})
	case errors.As(err, &verr):
		respondWithError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, service.ErrEmailTaken):
		respondWithError(w, http.StatusConflict, msgEmailTaken)
	default:
		loggerFor(r).Error("signup", "error", err)
		respondWithError(w, http.StatusInternalServerError, msgServerError)
	}
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if !s.decodeOrRespond(w, r, &req, true) {
		return
	}

	resp, err := s.authService.Login(r.Context(), req)
	var verr *service.ValidationError
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"message":  msgLoginOK,
			"jwtToken": resp.Token,
			"email":    resp.Email,
			"name":     resp.Name,
		})
	case errors.As(err, &verr):
		respondWithError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, service.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, msgLoginFailed)
	default:
		loggerFor(r).Error("login", "error", err)
		respondWithError(w, http.StatusInternalServerError, msgServerError)
	}
}
