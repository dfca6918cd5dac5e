package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Tomlord1122/todolist/internal/auth"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(trustedRealIP(s.trustedProxies))
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.HelloWorldHandler)
	r.Get("/ping", s.pingHandler)
	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Use(s.limiter.Middleware("auth"))
		r.Post("/signup", s.signupHandler)
		r.Post("/login", s.loginHandler)
	})

	// The deployed frontend calls /api/todos; both prefixes serve the same routes.
	r.Route("/todos", s.todoRoutes)
	r.Route("/api/todos", s.todoRoutes)

	if s.hub != nil {
		r.With(auth.QueryToken("token"), auth.Middleware(s.tokens, s.logger)).Get("/alarms/ws", s.alarmsHandler)
	}

	return r
}

func (s *Server) todoRoutes(r chi.Router) {
	r.Use(auth.Middleware(s.tokens, s.logger))
	r.Post("/", s.createTodoHandler)
	r.Get("/", s.listTodosHandler)
	r.Delete("/", s.deleteAllTodosHandler)
	r.Get("/{id}", s.getTodoHandler)
	r.Put("/{id}", s.updateTodoHandler)
	r.Delete("/{id}", s.deleteTodoHandler)
}

func (s *Server) HelloWorldHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Hello World from Todo List!"})
}

func (s *Server) pingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("PONG"))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthStats := s.health.Health()
	if status, ok := healthStats["status"]; ok && status == "down" {
		respondWithJSON(w, http.StatusServiceUnavailable, healthStats)
		return
	}
	respondWithJSON(w, http.StatusOK, healthStats)
}

func (s *Server) alarmsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unauthorized, JWT token is required")
		return
	}
	s.hub.ServeWS(w, r, id.UserID)
}
