// Package quotes resolves a single best price for an itinerary, trying
// the structured pricing API first and falling back to the browser
// scraper. The engine performs no retries of its own.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/interfaces"
	"github.com/ternarybob/farewatch/internal/models"
	"github.com/ternarybob/farewatch/internal/pricing"
)

// Engine is the two-stage quote resolver.
type Engine struct {
	api     *pricing.Client
	scraper interfaces.ScrapeQuoteSource
	logger  arbor.ILogger
}

// NewEngine creates a quote engine. The pricing client may be
// unconfigured; the engine then goes straight to the scraper.
func NewEngine(api *pricing.Client, scraper interfaces.ScrapeQuoteSource, logger arbor.ILogger) *Engine {
	return &Engine{
		api:     api,
		scraper: scraper,
		logger:  logger,
	}
}

// GetQuote resolves the best quote for a request. API quotes carry
// source "api"; scraper fallbacks return the scraper's result verbatim.
func (e *Engine) GetQuote(ctx context.Context, req interfaces.QuoteRequest) (*interfaces.Quote, error) {
	quote, err := e.apiQuote(ctx, req)
	if err == nil {
		return quote, nil
	}

	if errors.Is(err, pricing.ErrNotConfigured) {
		e.logger.Debug().Msg("Pricing API not configured, using scraper")
	} else {
		e.logger.Warn().
			Err(err).
			Str("route", req.Origin+"-"+req.Destination).
			Msg("Pricing API quote failed, falling back to scraper")
	}

	return e.scraper.GetQuote(ctx, req)
}

// GetQuoteInSession is GetQuote with an existing scrape session used for
// the fallback path, so a batch reuses one browser.
func (e *Engine) GetQuoteInSession(ctx context.Context, session interfaces.ScrapeSession, req interfaces.QuoteRequest) (*interfaces.Quote, error) {
	quote, err := e.apiQuote(ctx, req)
	if err == nil {
		return quote, nil
	}

	if errors.Is(err, pricing.ErrNotConfigured) {
		e.logger.Debug().Msg("Pricing API not configured, using scraper")
	} else {
		e.logger.Warn().
			Err(err).
			Str("route", req.Origin+"-"+req.Destination).
			Msg("Pricing API quote failed, falling back to scraper")
	}

	return e.scraper.QuoteInSession(ctx, session, req)
}

// OpenScrapeSession opens a browser session for batch use.
func (e *Engine) OpenScrapeSession(ctx context.Context) (interfaces.ScrapeSession, error) {
	return e.scraper.OpenSession(ctx)
}

func (e *Engine) apiQuote(ctx context.Context, req interfaces.QuoteRequest) (*interfaces.Quote, error) {
	offer, err := e.api.CheapestOffer(ctx, pricing.SearchRequest{
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureDate: req.DepartureDate,
		ReturnDate:    req.ReturnDate,
		Passengers:    req.Passengers,
		CabinClass:    string(req.CabinClass),
		CarrierFilter: req.PreferredAirline,
	})
	if err != nil {
		return nil, err
	}

	raw, marshalErr := json.Marshal(offer)
	if marshalErr != nil {
		raw = nil
	}

	return &interfaces.Quote{
		Price:    offer.TotalPrice,
		Currency: offer.Currency,
		Airline:  offer.Airline,
		Source:   models.SourceAPI,
		Raw:      string(raw),
	}, nil
}

// RequestForFlight builds the quote request for a tracked flight.
func RequestForFlight(flight *models.Flight) interfaces.QuoteRequest {
	return interfaces.QuoteRequest{
		Origin:           flight.Origin,
		Destination:      flight.Destination,
		DepartureDate:    flight.DepartureDate,
		ReturnDate:       flight.ReturnDate,
		Passengers:       flight.Passengers,
		CabinClass:       flight.CabinClass,
		PreferredAirline: flight.PreferredAirline,
	}
}

// RecordFromQuote converts an accepted quote into a price history row.
func RecordFromQuote(flightID string, quote *interfaces.Quote) (*models.PriceRecord, error) {
	if quote == nil || quote.Price <= 0 {
		return nil, fmt.Errorf("quote has no usable price")
	}
	return &models.PriceRecord{
		FlightID:   flightID,
		Price:      quote.Price,
		Currency:   quote.Currency,
		Airline:    quote.Airline,
		Source:     quote.Source,
		RawPayload: quote.Raw,
	}, nil
}
