package rest

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Server represents the REST API server
type Server struct {
	port    string
	server  *http.Server
	handler *Handler
}

// NewServer creates a new REST API server
func NewServer(port string, handler *Handler, corsOrigins []string) *Server {
	return &Server{
		port:    port,
		handler: handler,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", port),
			Handler:           NewRouter(handler, corsOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewRouter builds the admin routes.
func NewRouter(handler *Handler, corsOrigins []string) http.Handler {
	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware(handler.logger))
	router.Use(LoggingMiddleware(handler.logger))

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Match board
	api.HandleFunc("/matches", handler.ListMatches).Methods("GET")
	api.HandleFunc("/snapshots/{sport}/{matchID}", handler.GetCachedSnapshot).Methods("GET")

	// Sessions
	api.HandleFunc("/sessions", handler.ListSessions).Methods("GET")
	api.HandleFunc("/sessions/{sport}/{matchID}", handler.OpenSession).Methods("POST")
	api.HandleFunc("/sessions/{matchID}", handler.GetSession).Methods("GET")
	api.HandleFunc("/sessions/{matchID}", handler.CloseSession).Methods("DELETE")

	// Selection
	api.HandleFunc("/sessions/{matchID}/batting-team", handler.SelectBattingTeam).Methods("PUT")
	api.HandleFunc("/sessions/{matchID}/selection/player", handler.SetPlayer).Methods("PUT")
	api.HandleFunc("/sessions/{matchID}/selection/action", handler.SetAction).Methods("PUT")
	api.HandleFunc("/sessions/{matchID}/selection/aux", handler.SetAuxiliary).Methods("PUT")

	// Mutations
	api.HandleFunc("/sessions/{matchID}/submit", handler.Submit).Methods("POST")
	api.HandleFunc("/sessions/{matchID}/start", handler.StartMatch).Methods("POST")
	api.HandleFunc("/sessions/{matchID}/complete", handler.CompleteMatch).Methods("POST")

	// Feedback
	api.HandleFunc("/sessions/{matchID}/notifications", handler.GetNotifications).Methods("GET")
	api.HandleFunc("/sessions/{matchID}/journal", handler.GetJournal).Methods("GET")

	return CORSMiddleware(corsOrigins)(router)
}

// Start starts the REST API server
func (s *Server) Start() error {
	s.handler.logger.Printf("REST server listening on :%s", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func defaultLogger() *log.Logger {
	return log.New(log.Writer(), "[rest] ", log.LstdFlags)
}
