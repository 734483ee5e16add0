// -----------------------------------------------------------------------
// Flight handler - tracked flight CRUD, history views, and check triggers
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/common"
	"github.com/ternarybob/farewatch/internal/interfaces"
	"github.com/ternarybob/farewatch/internal/models"
	"github.com/ternarybob/farewatch/internal/services/runner"
)

// FlightHandler handles flight-related API requests.
type FlightHandler struct {
	storage    interfaces.StorageManager
	jobService *runner.JobService
	validate   *validator.Validate
	logger     arbor.ILogger
}

// NewFlightHandler creates a new flight handler.
func NewFlightHandler(storage interfaces.StorageManager, jobService *runner.JobService, logger arbor.ILogger) *FlightHandler {
	return &FlightHandler{
		storage:    storage,
		jobService: jobService,
		validate:   validator.New(),
		logger:     logger,
	}
}

// CreateFlightHandler registers a new tracked flight.
// POST /api/flights
func (h *FlightHandler) CreateFlightHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var flight models.Flight
	if err := json.NewDecoder(r.Body).Decode(&flight); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	flight.Normalize()
	if err := h.validate.Struct(&flight); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid flight: %v", err))
		return
	}
	if !flight.CabinClass.IsValid() {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid cabin class %q", flight.CabinClass))
		return
	}

	if flight.ID == "" {
		flight.ID = common.NewFlightID()
	}
	flight.IsActive = true
	now := time.Now().UTC()
	flight.CreatedAt = now
	flight.UpdatedAt = now

	if err := h.storage.FlightStorage().SaveFlight(r.Context(), &flight); err != nil {
		h.logger.Error().Err(err).Msg("Failed to save flight")
		WriteError(w, http.StatusInternalServerError, "Failed to save flight")
		return
	}

	h.logger.Info().Str("flight_id", flight.ID).Str("route", flight.Route()).Msg("Flight registered")
	WriteJSON(w, http.StatusCreated, &flight)
}

// ListFlightsHandler returns tracked flights.
// GET /api/flights?active=true
func (h *FlightHandler) ListFlightsHandler(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	flights, err := h.storage.FlightStorage().ListFlights(r.Context(), activeOnly)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list flights")
		WriteError(w, http.StatusInternalServerError, "Failed to list flights")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"flights": flights,
		"count":   len(flights),
	})
}

// GetFlightHandler returns a single flight by ID.
// GET /api/flights/{id}
func (h *FlightHandler) GetFlightHandler(w http.ResponseWriter, r *http.Request) {
	flightID := PathSegment(r, 2)
	if flightID == "" {
		WriteError(w, http.StatusBadRequest, "Flight ID is required")
		return
	}

	flight, err := h.storage.FlightStorage().GetFlight(r.Context(), flightID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Flight not found")
			return
		}
		h.logger.Error().Err(err).Str("flight_id", flightID).Msg("Failed to get flight")
		WriteError(w, http.StatusInternalServerError, "Failed to get flight")
		return
	}

	WriteJSON(w, http.StatusOK, flight)
}

// DeactivateFlightHandler soft-deactivates a flight. Price history is
// kept; the flight is skipped by future checks.
// DELETE /api/flights/{id}
func (h *FlightHandler) DeactivateFlightHandler(w http.ResponseWriter, r *http.Request) {
	flightID := PathSegment(r, 2)
	if flightID == "" {
		WriteError(w, http.StatusBadRequest, "Flight ID is required")
		return
	}

	if err := h.storage.FlightStorage().DeactivateFlight(r.Context(), flightID); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Flight not found")
			return
		}
		h.logger.Error().Err(err).Str("flight_id", flightID).Msg("Failed to deactivate flight")
		WriteError(w, http.StatusInternalServerError, "Failed to deactivate flight")
		return
	}

	h.logger.Info().Str("flight_id", flightID).Msg("Flight deactivated")
	WriteSuccess(w, "Flight deactivated")
}

// HistoryHandler returns price history plus the derived views.
// GET /api/flights/{id}/history?days=30
func (h *FlightHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	flightID := PathSegment(r, 2)
	if flightID == "" {
		WriteError(w, http.StatusBadRequest, "Flight ID is required")
		return
	}

	days := 0
	if daysStr := r.URL.Query().Get("days"); daysStr != "" {
		if parsed, err := strconv.Atoi(daysStr); err == nil && parsed > 0 {
			days = parsed
		}
	}

	prices := h.storage.PriceStorage()
	history, err := prices.GetHistory(ctx, flightID, days)
	if err != nil {
		h.logger.Error().Err(err).Str("flight_id", flightID).Msg("Failed to get price history")
		WriteError(w, http.StatusInternalServerError, "Failed to get price history")
		return
	}

	response := map[string]interface{}{
		"flight_id": flightID,
		"history":   history,
		"count":     len(history),
	}

	// Derived views are best-effort; an empty history simply omits them.
	if latest, err := prices.GetLatest(ctx, flightID); err == nil {
		response["latest"] = latest
	}
	if lowest, err := prices.GetLowest(ctx, flightID); err == nil {
		response["lowest"] = lowest
	}
	if highest, err := prices.GetHighest(ctx, flightID); err == nil {
		response["highest"] = highest
	}

	WriteJSON(w, http.StatusOK, response)
}

// FlexHandler returns the cached flexible-date entries for a flight and
// the best fresh entry when one exists.
// GET /api/flights/{id}/flex?max_age_hours=24
func (h *FlightHandler) FlexHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	flightID := PathSegment(r, 2)
	if flightID == "" {
		WriteError(w, http.StatusBadRequest, "Flight ID is required")
		return
	}

	flight, err := h.storage.FlightStorage().GetFlight(ctx, flightID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Flight not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to get flight")
		return
	}

	maxAge := 24 * time.Hour
	if hoursStr := r.URL.Query().Get("max_age_hours"); hoursStr != "" {
		if parsed, err := strconv.Atoi(hoursStr); err == nil && parsed > 0 {
			maxAge = time.Duration(parsed) * time.Hour
		}
	}

	entries, err := h.storage.FlexStorage().GetEntries(ctx, flightID, flight.CabinClass, flight.Passengers)
	if err != nil {
		h.logger.Error().Err(err).Str("flight_id", flightID).Msg("Failed to get flex entries")
		WriteError(w, http.StatusInternalServerError, "Failed to get flex entries")
		return
	}

	response := map[string]interface{}{
		"flight_id": flightID,
		"entries":   entries,
		"count":     len(entries),
	}
	if best, err := h.storage.FlexStorage().BestUnderMaxAge(ctx, flightID, flight.CabinClass, flight.Passengers, maxAge); err == nil {
		response["best"] = best
	}

	WriteJSON(w, http.StatusOK, response)
}

// ContextHandler returns the freshest cached travel context snapshot.
// GET /api/flights/{id}/context?max_age_hours=24
func (h *FlightHandler) ContextHandler(w http.ResponseWriter, r *http.Request) {
	flightID := PathSegment(r, 2)
	if flightID == "" {
		WriteError(w, http.StatusBadRequest, "Flight ID is required")
		return
	}

	maxAge := 24 * time.Hour
	if hoursStr := r.URL.Query().Get("max_age_hours"); hoursStr != "" {
		if parsed, err := strconv.Atoi(hoursStr); err == nil && parsed > 0 {
			maxAge = time.Duration(parsed) * time.Hour
		}
	}

	snapshot, err := h.storage.ContextStorage().LatestUnderMaxAge(r.Context(), flightID, maxAge)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "No fresh context snapshot")
			return
		}
		h.logger.Error().Err(err).Str("flight_id", flightID).Msg("Failed to get context snapshot")
		WriteError(w, http.StatusInternalServerError, "Failed to get context snapshot")
		return
	}

	WriteJSON(w, http.StatusOK, snapshot)
}

// CheckNowHandler enqueues an immediate price check for one flight.
// POST /api/flights/{id}/check
func (h *FlightHandler) CheckNowHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	flightID := PathSegment(r, 2)
	if flightID == "" {
		WriteError(w, http.StatusBadRequest, "Flight ID is required")
		return
	}

	jobID, err := h.jobService.CreateAndRunJob(r.Context(), models.JobTypeCheckNow, flightID, nil)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Flight not found")
			return
		}
		h.logger.Error().Err(err).Str("flight_id", flightID).Msg("Failed to create check job")
		WriteError(w, http.StatusInternalServerError, "Failed to create check job")
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "queued",
		"job_id": jobID,
	})
}

// FlexScanHandler enqueues a flexible-date scan for one flight.
// POST /api/flights/{id}/flex-scan   body: {"window_days": 3}
func (h *FlightHandler) FlexScanHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	flightID := PathSegment(r, 2)
	if flightID == "" {
		WriteError(w, http.StatusBadRequest, "Flight ID is required")
		return
	}

	var payload json.RawMessage
	if r.Body != nil {
		var req models.FlexScanPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.WindowDays > 0 {
			payload, _ = json.Marshal(req)
		}
	}

	jobID, err := h.jobService.CreateAndRunJob(r.Context(), models.JobTypeFlexScan, flightID, payload)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Flight not found")
			return
		}
		h.logger.Error().Err(err).Str("flight_id", flightID).Msg("Failed to create flex scan job")
		WriteError(w, http.StatusInternalServerError, "Failed to create flex scan job")
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "queued",
		"job_id": jobID,
	})
}
