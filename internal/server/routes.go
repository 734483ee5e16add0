package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Flights
	mux.HandleFunc("/api/flights", s.handleFlightsRoute)  // GET (list), POST (create)
	mux.HandleFunc("/api/flights/", s.handleFlightRoutes) // GET/DELETE /{id} and subpaths

	// API routes - Jobs
	mux.HandleFunc("/api/jobs", s.handleJobsRoute)                                  // GET (list), POST (create)
	mux.HandleFunc("/api/jobs/reset-stuck", s.app.JobHandler.ResetStuckJobsHandler) // POST
	mux.HandleFunc("/api/jobs/check-all", s.app.JobHandler.TriggerCheckAllHandler)  // POST - manual sweep
	mux.HandleFunc("/api/jobs/", s.app.JobHandler.GetJobHandler)                    // GET /{id}

	// API routes - Remote agent bridge
	mux.HandleFunc("/api/agent/jobs/next", s.app.AgentHandler.NextJobHandler) // GET - claim, 204 when empty
	mux.HandleFunc("/api/agent/jobs/", s.handleAgentJobRoutes)                // POST /{id}/complete

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleFlightsRoute dispatches the collection endpoint by method
func (s *Server) handleFlightsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.app.FlightHandler.ListFlightsHandler(w, r)
	case http.MethodPost:
		s.app.FlightHandler.CreateFlightHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleFlightRoutes dispatches /api/flights/{id} and its subpaths
func (s *Server) handleFlightRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// POST /api/flights/{id}/check
	if strings.HasSuffix(path, "/check") {
		s.app.FlightHandler.CheckNowHandler(w, r)
		return
	}

	// POST /api/flights/{id}/flex-scan
	if strings.HasSuffix(path, "/flex-scan") {
		s.app.FlightHandler.FlexScanHandler(w, r)
		return
	}

	// GET /api/flights/{id}/history
	if strings.HasSuffix(path, "/history") {
		s.app.FlightHandler.HistoryHandler(w, r)
		return
	}

	// GET /api/flights/{id}/flex
	if strings.HasSuffix(path, "/flex") {
		s.app.FlightHandler.FlexHandler(w, r)
		return
	}

	// GET /api/flights/{id}/context
	if strings.HasSuffix(path, "/context") {
		s.app.FlightHandler.ContextHandler(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.app.FlightHandler.GetFlightHandler(w, r)
	case http.MethodDelete:
		s.app.FlightHandler.DeactivateFlightHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsRoute dispatches the job collection endpoint by method
func (s *Server) handleJobsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.app.JobHandler.ListJobsHandler(w, r)
	case http.MethodPost:
		s.app.JobHandler.CreateJobHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleAgentJobRoutes dispatches /api/agent/jobs/{id}/complete
func (s *Server) handleAgentJobRoutes(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/complete") {
		s.app.AgentHandler.CompleteJobHandler(w, r)
		return
	}
	http.Error(w, "Not found", http.StatusNotFound)
}
