package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// Server represents the REST API server
type Server struct {
	port    string
	server  *http.Server
	handler *Handler
}

// NewServer creates a new REST API server
func NewServer(port string, loads LoadAPI) *Server {
	handler := NewHandler(loads)

	return &Server{
		port:    port,
		handler: handler,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: NewRouter(handler),
		},
	}
}

// NewRouter wires every route and middleware onto a mux router.
func NewRouter(handler *Handler) *mux.Router {
	router := mux.NewRouter()

	router.Use(RecoveryMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(CORSMiddleware)

	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	// Tables
	api.HandleFunc("/tables", handler.ListTables).Methods("GET")
	api.HandleFunc("/tables/{table}/matches", handler.GetMatches).Methods("GET")
	api.HandleFunc("/tables/{table}/xg-coverage", handler.GetXGCoverage).Methods("GET")

	// Loads
	api.HandleFunc("/loads", handler.GetLoads).Methods("GET")
	api.HandleFunc("/loads", handler.TriggerLoad).Methods("POST")
	api.HandleFunc("/loads/last", handler.GetLastLoad).Methods("GET")

	return router
}

// SetRedis reports Redis health on /health
func (s *Server) SetRedis(p Pinger) {
	s.handler.SetRedis(p)
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
