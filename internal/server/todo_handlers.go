package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Tomlord1122/todolist/internal/auth"
	"github.com/Tomlord1122/todolist/internal/service"
)

// caller returns the authenticated user id. Routes mounting these handlers run auth.Middleware first.
func caller(r *http.Request) uuid.UUID {
	id, _ := auth.IdentityFrom(r.Context())
	return id.UserID
}

// respondTodoError maps service errors to responses. Unexpected errors are logged, never echoed.
func respondTodoError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, service.ErrTodoNotFound):
		respondWithError(w, http.StatusNotFound, msgTodoNotFound)
	default:
		loggerFor(r).Error("todo request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondWithError(w, http.StatusInternalServerError, msgServerError)
	}
}

func (s *Server) createTodoHandler(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTodoRequest
	if !s.decodeOrRespond(w, r, &req, false) {
		return
	}

	todoResp, err := s.todoService.CreateTodo(r.Context(), caller(r), req)
	if err != nil {
		respondTodoError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, todoResp)
}

func (s *Server) listTodosHandler(w http.ResponseWriter, r *http.Request) {
	query := service.ListTodosQuery{
		IsDone:   r.URL.Query().Get("isDone"),
		Priority: r.URL.Query().Get("priority"),
	}
	todos, err := s.todoService.ListTodos(r.Context(), caller(r), query)
	if err != nil {
		respondTodoError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, todos)
}

func (s *Server) getTodoHandler(w http.ResponseWriter, r *http.Request) {
	todo, err := s.todoService.GetTodo(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		respondTodoError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, todo)
}

func (s *Server) updateTodoHandler(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateTodoRequest
	if !s.decodeOrRespond(w, r, &req, false) {
		return
	}

	updatedTodo, err := s.todoService.UpdateTodo(r.Context(), caller(r), chi.URLParam(r, "id"), req)
	if err != nil {
		respondTodoError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, updatedTodo)
}

func (s *Server) deleteTodoHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.todoService.DeleteTodo(r.Context(), caller(r), chi.URLParam(r, "id")); err != nil {
		respondTodoError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"success": true, "message": msgTodoDeleted})
}

func (s *Server) deleteAllTodosHandler(w http.ResponseWriter, r *http.Request) {
	n, err := s.todoService.DeleteAllTodos(r.Context(), caller(r))
	if err != nil {
		respondTodoError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"success": true, "message": msgTodosRemoved, "deleted": n})
}
