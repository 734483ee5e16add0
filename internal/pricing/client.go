package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL for the pricing API.
	DefaultBaseURL = "https://api.flightoffers.example.com/v1"

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 5
)

// Client is a pricing API client. A client constructed without credentials
// is valid but returns ErrNotConfigured from every search.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets a custom HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new pricing API client.
func NewClient(apiKey, apiSecret string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.apiSecret != ""
}

// get performs a GET request to the API.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &RateLimitError{RetryAfter: time.Second}
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("X-Api-Secret", c.apiSecret)

	if c.logger != nil {
		c.logger.Debug().
			Str("url", c.baseURL+path).
			Msg("Pricing API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// SearchOffers retrieves all offers for an itinerary.
func (c *Client) SearchOffers(ctx context.Context, req SearchRequest) ([]Offer, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	params := url.Values{}
	params.Set("origin", req.Origin)
	params.Set("destination", req.Destination)
	params.Set("departure_date", req.DepartureDate)
	if req.ReturnDate != "" {
		params.Set("return_date", req.ReturnDate)
	}
	params.Set("passengers", strconv.Itoa(req.Passengers))
	if req.CabinClass != "" {
		params.Set("cabin_class", req.CabinClass)
	}

	var result offersResponse
	if err := c.get(ctx, "/offers", params, &result); err != nil {
		return nil, err
	}

	return result.Offers, nil
}

// CheapestOffer searches and returns the lowest-priced offer, honoring the
// carrier filter when one is set. Ties keep the first offer seen.
func (c *Client) CheapestOffer(ctx context.Context, req SearchRequest) (*Offer, error) {
	offers, err := c.SearchOffers(ctx, req)
	if err != nil {
		return nil, err
	}

	var best *Offer
	for i := range offers {
		offer := &offers[i]
		if offer.TotalPrice <= 0 {
			continue
		}
		if req.CarrierFilter != "" && !offerMatchesCarrier(offer, req.CarrierFilter) {
			continue
		}
		if best == nil || offer.TotalPrice < best.TotalPrice {
			best = offer
		}
	}

	if best == nil {
		return nil, ErrNoOffers
	}
	return best, nil
}

func offerMatchesCarrier(offer *Offer, filter string) bool {
	filter = strings.ToLower(strings.TrimSpace(filter))
	return strings.EqualFold(offer.CarrierCode, filter) ||
		strings.Contains(strings.ToLower(offer.Airline), filter)
}
