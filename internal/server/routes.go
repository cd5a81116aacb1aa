package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Tomlord1122/todo-share/internal/service"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.healthHandler)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.registerHandler)
		r.Post("/login", s.loginHandler)
		r.With(s.requireAuth).Post("/logout", s.logoutHandler)
		r.With(s.requireAuth).Get("/me", s.meHandler)
	})

	r.With(s.requireAuth).Get("/users/search", s.searchUsersHandler)

	r.Route("/todos", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/", s.createTodoHandler)
		r.Get("/", s.listTodosHandler)
		r.Get("/{id}", s.getTodoHandler)
		r.Put("/{id}", s.updateTodoHandler)
		r.Delete("/{id}", s.deleteTodoHandler)
		r.Post("/{id}/complete", s.completeTodoHandler)
		r.Post("/{id}/reopen", s.reopenTodoHandler)
		r.Post("/{id}/share", s.shareTodoHandler)
		r.Post("/{id}/accept", s.acceptShareHandler)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.listNotificationsHandler)
		r.Get("/unread-count", s.unreadCountHandler)
		r.Post("/mark-all-read", s.markAllReadHandler)
		r.Post("/{id}/mark-read", s.markReadHandler)
		r.Delete("/{id}", s.deleteNotificationHandler)
	})

	r.Route("/blogs", func(r chi.Router) {
		r.Get("/published", s.listPublishedBlogsHandler)
		// {id} also accepts a slug here.
		r.With(s.optionalAuth).Get("/{id}", s.getBlogHandler)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/", s.listMyBlogsHandler)
			r.Post("/", s.createBlogHandler)
			r.Put("/{id}", s.updateBlogHandler)
			r.Delete("/{id}", s.deleteBlogHandler)
			r.Post("/{id}/publish", s.publishBlogHandler)
			r.Post("/{id}/unpublish", s.unpublishBlogHandler)
			r.Post("/{id}/archive", s.archiveBlogHandler)
		})
	})

	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthStats := s.db.Health()
	if status, ok := healthStats["status"]; ok && status == "down" {
		respondWithJSON(w, http.StatusServiceUnavailable, healthStats)
		return
	}
	respondWithJSON(w, http.StatusOK, healthStats)
}

// --- Todos ---

func (s *Server) createTodoHandler(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTodoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	todo, err := s.todos.CreateTodo(r.Context(), currentUser(r).ID, req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusCreated, "Todo created successfully", todo)
}

func (s *Server) listTodosHandler(w http.ResponseWriter, r *http.Request) {
	page, err := pageQuery(r)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	query := r.URL.Query()

	todos, err := s.todos.ListTodos(r.Context(), currentUser(r).ID, service.ListTodosRequest{
		Status:      query.Get("status"),
		Search:      query.Get("search"),
		PageRequest: page,
	})
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithPage(w, todos.Items, todos.Pagination)
}

func (s *Server) getTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	todo, err := s.todos.GetTodo(r.Context(), id, currentUser(r).ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "", todo)
}

func (s *Server) updateTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req service.UpdateTodoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	todo, err := s.todos.UpdateTodo(r.Context(), id, currentUser(r).ID, req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "Todo updated successfully", todo)
}

func (s *Server) deleteTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := s.todos.DeleteTodo(r.Context(), id, currentUser(r).ID); err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "Todo deleted successfully", nil)
}

func (s *Server) completeTodoHandler(w http.ResponseWriter, r *http.Request) {
	s.transitionTodo(w, r, s.todos.CompleteTodo, "Todo marked as completed")
}

func (s *Server) reopenTodoHandler(w http.ResponseWriter, r *http.Request) {
	s.transitionTodo(w, r, s.todos.ReopenTodo, "Todo reopened")
}

type todoTransition func(ctx context.Context, id, userID uint) (*service.TodoResponse, error)

func (s *Server) transitionTodo(w http.ResponseWriter, r *http.Request, apply todoTransition, message string) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	todo, err := apply(r.Context(), id, currentUser(r).ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, message, todo)
}

// --- Sharing ---

func (s *Server) shareTodoHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req service.ShareTodoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.shares.ShareTodoBatch(r.Context(), id, currentUser(r).ID, req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if result.AllFailed() {
		respondWithJSON(w, http.StatusBadRequest, envelope{
			Success: false,
			Message: "Failed to share todo",
			Errors:  result.Failures,
		})
		return
	}

	body := envelope{Success: true, Message: "Todo shared successfully", Data: result.Created}
	if len(result.Failures) > 0 {
		body.Errors = result.Failures
	}
	respondWithJSON(w, http.StatusCreated, body)
}

func (s *Server) acceptShareHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	share, err := s.shares.AcceptShare(r.Context(), id, currentUser(r).ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, "Todo share accepted successfully", share)
}
