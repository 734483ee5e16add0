package scraper

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ternarybob/farewatch/internal/interfaces"
	"github.com/ternarybob/farewatch/internal/models"
)

// buildSearchQuery encodes an itinerary as the natural-language query the
// flight search page understands.
func buildSearchQuery(req interfaces.QuoteRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "flights from %s to %s on %s", req.Origin, req.Destination, req.DepartureDate)
	if req.ReturnDate != "" {
		fmt.Fprintf(&b, " returning %s", req.ReturnDate)
	}
	if req.Passengers > 1 {
		fmt.Fprintf(&b, " for %d passengers", req.Passengers)
	}
	if class := cabinQueryTerm(req.CabinClass); class != "" {
		fmt.Fprintf(&b, " %s", class)
	}
	if req.PreferredAirline != "" {
		fmt.Fprintf(&b, " %s", req.PreferredAirline)
	}

	return b.String()
}

func cabinQueryTerm(cabin models.CabinClass) string {
	switch cabin {
	case models.CabinPremiumEconomy:
		return "premium economy class"
	case models.CabinBusiness:
		return "business class"
	case models.CabinFirst:
		return "first class"
	}
	return ""
}

// searchURL builds the flight search URL for an itinerary.
func searchURL(req interfaces.QuoteRequest) string {
	return "https://www.google.com/travel/flights?q=" + url.QueryEscape(buildSearchQuery(req))
}
