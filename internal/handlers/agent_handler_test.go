package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/farewatch/internal/models"
)

func TestAgentNextJobEmptyQueue(t *testing.T) {
	_, _, agent, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/api/agent/jobs/next", nil)
	rec := httptest.NewRecorder()
	agent.NextJobHandler(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAgentClaimCompleteRoundTrip(t *testing.T) {
	flights, _, agent, store := newTestHandlers(t)

	flight := createFlightViaAPI(t, flights, `{"origin": "SYD", "destination": "NRT", "departure_date": "2026-10-10"}`)

	// Enqueue a check through the API, then claim it as the agent would.
	req := httptest.NewRequest(http.MethodPost, "/api/flights/"+flight.ID+"/check", nil)
	rec := httptest.NewRecorder()
	flights.CheckNowHandler(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/agent/jobs/next", nil)
	rec = httptest.NewRecorder()
	agent.NextJobHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var claimed models.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claimed))
	assert.Equal(t, models.JobStatusRunning, claimed.Status)
	assert.Equal(t, flight.ID, claimed.FlightID)

	// A second poll finds nothing; the job is owned by this agent now.
	rec = httptest.NewRecorder()
	agent.NextJobHandler(rec, httptest.NewRequest(http.MethodGet, "/api/agent/jobs/next", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Report success with a quote; the bridge persists the price row.
	completion := fmt.Sprintf(`{
		"status": "success",
		"result": {"flight_id": %q, "price": 742.50, "currency": "AUD", "airline": "Qantas", "source": "scraper"}
	}`, flight.ID)
	req = httptest.NewRequest(http.MethodPost, "/api/agent/jobs/"+claimed.ID+"/complete", bytes.NewBufferString(completion))
	rec = httptest.NewRecorder()
	agent.CompleteJobHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ctx := context.Background()
	job, err := store.JobStorage().GetJob(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSuccess, job.Status)

	latest, err := store.PriceStorage().GetLatest(ctx, flight.ID)
	require.NoError(t, err)
	assert.Equal(t, 742.50, latest.Price)
	assert.Equal(t, models.SourceScraper, latest.Source)
}

func TestAgentCompleteMalformedResult(t *testing.T) {
	flights, _, agent, store := newTestHandlers(t)

	flight := createFlightViaAPI(t, flights, `{"origin": "SYD", "destination": "NRT", "departure_date": "2026-10-10"}`)

	rec := httptest.NewRecorder()
	flights.CheckNowHandler(rec, httptest.NewRequest(http.MethodPost, "/api/flights/"+flight.ID+"/check", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = httptest.NewRecorder()
	agent.NextJobHandler(rec, httptest.NewRequest(http.MethodGet, "/api/agent/jobs/next", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var claimed models.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claimed))

	// A success report without a usable price marks the job failed but
	// never writes price history.
	completion := `{"status": "success", "result": {"airline": "Qantas"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/agent/jobs/"+claimed.ID+"/complete", bytes.NewBufferString(completion))
	rec = httptest.NewRecorder()
	agent.CompleteJobHandler(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	ctx := context.Background()
	job, err := store.JobStorage().GetJob(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusError, job.Status)

	_, err = store.PriceStorage().GetLatest(ctx, flight.ID)
	require.Error(t, err)
}

func TestAgentCompleteUnknownJob(t *testing.T) {
	_, _, agent, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/api/agent/jobs/job_missing/complete", bytes.NewBufferString(`{"status": "error", "error_text": "boom"}`))
	rec := httptest.NewRecorder()
	agent.CompleteJobHandler(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAgentCompleteRejectsUnclaimedJob(t *testing.T) {
	flights, _, agent, _ := newTestHandlers(t)

	flight := createFlightViaAPI(t, flights, `{"origin": "SYD", "destination": "NRT", "departure_date": "2026-10-10"}`)

	rec := httptest.NewRecorder()
	flights.CheckNowHandler(rec, httptest.NewRequest(http.MethodPost, "/api/flights/"+flight.ID+"/check", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	var queued map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queued))

	// Completing a job that was never claimed violates the state machine.
	req := httptest.NewRequest(http.MethodPost, "/api/agent/jobs/"+queued["job_id"]+"/complete", bytes.NewBufferString(`{"status": "success"}`))
	rec = httptest.NewRecorder()
	agent.CompleteJobHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
