package interfaces

import (
	"context"

	"github.com/ternarybob/farewatch/internal/models"
)

// QuoteRequest describes one itinerary to price.
type QuoteRequest struct {
	Origin           string
	Destination      string
	DepartureDate    string // "2006-01-02"
	ReturnDate       string // empty for one-way
	Passengers       int
	CabinClass       models.CabinClass
	PreferredAirline string
}

// Quote is a single best price result for a request.
type Quote struct {
	Price    float64
	Currency string
	Airline  string
	Source   string // models.SourceAPI or models.SourceScraper
	Raw      string
}

// QuoteSource returns a single best quote for a request, or an error.
// Sources perform no retries; callers issue a fresh job to retry.
type QuoteSource interface {
	GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error)
}

// ScrapeSession is a reusable browser session owned by the caller.
type ScrapeSession interface {
	Close()
}

// ScrapeQuoteSource is a QuoteSource backed by a headless browser.
// A session can be opened once and reused across a batch; GetQuote
// without a session opens and closes a browser within the single call.
type ScrapeQuoteSource interface {
	QuoteSource
	OpenSession(ctx context.Context) (ScrapeSession, error)
	QuoteInSession(ctx context.Context, session ScrapeSession, req QuoteRequest) (*Quote, error)
}
