package pricing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, offers []Offer) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(offersResponse{Offers: offers})
	}))
}

func TestSearchOffersNotConfigured(t *testing.T) {
	client := NewClient("", "")
	_, err := client.SearchOffers(context.Background(), SearchRequest{Origin: "SYD", Destination: "NRT"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCheapestOfferSelectsMinimum(t *testing.T) {
	offers := []Offer{
		{TotalPrice: 980, Currency: "AUD", Airline: "Qantas", CarrierCode: "QF"},
		{TotalPrice: 720, Currency: "AUD", Airline: "Jetstar", CarrierCode: "JQ"},
		{TotalPrice: 845, Currency: "AUD", Airline: "ANA", CarrierCode: "NH"},
	}
	server := newTestServer(t, offers)
	defer server.Close()

	client := NewClient("key", "secret", WithBaseURL(server.URL))

	best, err := client.CheapestOffer(context.Background(), SearchRequest{
		Origin:        "SYD",
		Destination:   "NRT",
		DepartureDate: "2026-10-10",
		Passengers:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, 720.0, best.TotalPrice)
	assert.Equal(t, "Jetstar", best.Airline)
}

func TestCheapestOfferCarrierFilter(t *testing.T) {
	offers := []Offer{
		{TotalPrice: 720, Currency: "AUD", Airline: "Jetstar", CarrierCode: "JQ"},
		{TotalPrice: 980, Currency: "AUD", Airline: "Qantas", CarrierCode: "QF"},
	}
	server := newTestServer(t, offers)
	defer server.Close()

	client := NewClient("key", "secret", WithBaseURL(server.URL))

	best, err := client.CheapestOffer(context.Background(), SearchRequest{
		Origin:        "SYD",
		Destination:   "NRT",
		DepartureDate: "2026-10-10",
		Passengers:    1,
		CarrierFilter: "qantas",
	})
	require.NoError(t, err)
	assert.Equal(t, "Qantas", best.Airline)

	// Filter by carrier code as well
	best, err = client.CheapestOffer(context.Background(), SearchRequest{
		Origin:        "SYD",
		Destination:   "NRT",
		DepartureDate: "2026-10-10",
		Passengers:    1,
		CarrierFilter: "QF",
	})
	require.NoError(t, err)
	assert.Equal(t, "QF", best.CarrierCode)
}

func TestCheapestOfferTieKeepsFirst(t *testing.T) {
	offers := []Offer{
		{TotalPrice: 500, Currency: "AUD", Airline: "Qantas", CarrierCode: "QF"},
		{TotalPrice: 500, Currency: "AUD", Airline: "ANA", CarrierCode: "NH"},
	}
	server := newTestServer(t, offers)
	defer server.Close()

	client := NewClient("key", "secret", WithBaseURL(server.URL))

	best, err := client.CheapestOffer(context.Background(), SearchRequest{
		Origin:        "SYD",
		Destination:   "NRT",
		DepartureDate: "2026-10-10",
		Passengers:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Qantas", best.Airline)
}

func TestCheapestOfferNoOffers(t *testing.T) {
	server := newTestServer(t, nil)
	defer server.Close()

	client := NewClient("key", "secret", WithBaseURL(server.URL))

	_, err := client.CheapestOffer(context.Background(), SearchRequest{
		Origin:        "SYD",
		Destination:   "NRT",
		DepartureDate: "2026-10-10",
		Passengers:    1,
	})
	assert.ErrorIs(t, err, ErrNoOffers)
}

func TestSearchOffersAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient("key", "secret", WithBaseURL(server.URL))

	_, err := client.SearchOffers(context.Background(), SearchRequest{
		Origin:        "SYD",
		Destination:   "NRT",
		DepartureDate: "2026-10-10",
		Passengers:    1,
	})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}
