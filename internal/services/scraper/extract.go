package scraper

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/farewatch/internal/interfaces"
)

// ErrNoPrices is the hard failure for a page with no plausible prices.
// An empty page is never an empty success.
var ErrNoPrices = errors.New("no prices found on page")

// Extraction is the outcome of scanning a rendered page.
type Extraction struct {
	Price   float64
	Airline string
	Snippet string
}

// ExtractionStrategy turns rendered page text into a price estimate.
// The heuristics are inherently brittle against a live search page, so
// they live behind this interface and can be swapped without touching
// the browser lifecycle.
type ExtractionStrategy interface {
	Extract(pageText string, req interfaces.QuoteRequest) (*Extraction, error)
}

// knownAirlines is the fixed list of carrier names matched against page
// text for attribution. Carriers outside this list are not attributed;
// the price is still returned with an empty airline.
var knownAirlines = []string{
	"Qantas",
	"Jetstar",
	"Virgin Australia",
	"Rex",
	"Air New Zealand",
	"Singapore Airlines",
	"Cathay Pacific",
	"ANA",
	"Japan Airlines",
	"Korean Air",
	"Thai Airways",
	"Malaysia Airlines",
	"Vietnam Airlines",
	"China Airlines",
	"Scoot",
	"AirAsia",
	"Emirates",
	"Qatar Airways",
	"Etihad",
	"United",
	"Delta",
	"American Airlines",
	"British Airways",
	"Lufthansa",
	"Air France",
	"KLM",
}

// priceRe matches dollar amounts like $1,234 or $849.00 in page text.
var priceRe = regexp.MustCompile(`\$\s?([0-9][0-9,]*(?:\.[0-9]{2})?)`)

// proximityWindow is how many characters around a price we scan for an
// airline name before giving up on attribution.
const proximityWindow = 200

// priceMatch is one candidate price and its position in the page text.
type priceMatch struct {
	price float64
	start int
	end   int
}

// HeuristicStrategy extracts the cheapest plausible dollar amount from
// full-page text, preferring amounts attributable to a requested airline.
type HeuristicStrategy struct {
	MinPrice float64
	MaxPrice float64
}

func NewHeuristicStrategy(minPrice, maxPrice float64) *HeuristicStrategy {
	return &HeuristicStrategy{MinPrice: minPrice, MaxPrice: maxPrice}
}

func (h *HeuristicStrategy) Extract(pageText string, req interfaces.QuoteRequest) (*Extraction, error) {
	matches := h.plausiblePrices(pageText)
	if len(matches) == 0 {
		return nil, ErrNoPrices
	}

	// A preferred airline wins when its name appears near any plausible
	// price; among those, take the cheapest.
	if req.PreferredAirline != "" {
		if m := cheapestNear(pageText, matches, req.PreferredAirline); m != nil {
			return &Extraction{
				Price:   m.price,
				Airline: req.PreferredAirline,
				Snippet: snippet(pageText, m),
			}, nil
		}
	}

	// Otherwise the globally cheapest plausible price, with a best-guess
	// carrier from the fixed known-airline list.
	best := matches[0]
	for _, m := range matches[1:] {
		if m.price < best.price {
			best = m
		}
	}

	return &Extraction{
		Price:   best.price,
		Airline: nearestKnownAirline(pageText, best),
		Snippet: snippet(pageText, &best),
	}, nil
}

// plausiblePrices returns every dollar amount within the configured range.
func (h *HeuristicStrategy) plausiblePrices(text string) []priceMatch {
	var matches []priceMatch
	for _, loc := range priceRe.FindAllStringSubmatchIndex(text, -1) {
		raw := strings.ReplaceAll(text[loc[2]:loc[3]], ",", "")
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if price < h.MinPrice || price > h.MaxPrice {
			continue
		}
		matches = append(matches, priceMatch{price: price, start: loc[0], end: loc[1]})
	}
	return matches
}

// cheapestNear returns the cheapest price owned by the airline, or nil
// when the airline never appears near one. A price is owned by the
// airline when its name is the closest carrier occurrence within the
// proximity window; a rival carrier named closer to the price claims it
// instead, so a competitor's cheaper fare printed alongside is never
// attributed to the preferred one.
func cheapestNear(text string, matches []priceMatch, airline string) *priceMatch {
	lower := strings.ToLower(text)
	needle := strings.ToLower(airline)

	var best *priceMatch
	for i := range matches {
		m := &matches[i]
		dist := nearestOccurrence(lower, needle, *m)
		if dist > proximityWindow {
			continue
		}
		if _, rivalDist := nearestRival(lower, needle, *m); rivalDist < dist {
			continue
		}
		if best == nil || m.price < best.price {
			best = m
		}
	}
	return best
}

// nearestKnownAirline guesses the carrier for a price by picking the
// known airline name whose occurrence sits closest to it in the text.
// Only occurrences within the proximity window count.
func nearestKnownAirline(text string, m priceMatch) string {
	lower := strings.ToLower(text)

	best := ""
	bestDist := proximityWindow + 1
	for _, airline := range knownAirlines {
		if dist := nearestOccurrence(lower, strings.ToLower(airline), m); dist < bestDist {
			bestDist = dist
			best = airline
		}
	}
	return best
}

// nearestRival is the closest known carrier to a price other than the
// preferred one.
func nearestRival(lowerText, preferred string, m priceMatch) (string, int) {
	best := ""
	bestDist := proximityWindow + 1
	for _, airline := range knownAirlines {
		needle := strings.ToLower(airline)
		if needle == preferred {
			continue
		}
		if dist := nearestOccurrence(lowerText, needle, m); dist < bestDist {
			bestDist = dist
			best = airline
		}
	}
	return best, bestDist
}

// nearestOccurrence returns the smallest gap between any occurrence of
// the needle and the price match, or proximityWindow+1 when the needle
// never appears within the window.
func nearestOccurrence(lowerText, needle string, m priceMatch) int {
	bestDist := proximityWindow + 1
	offset := 0
	for {
		idx := strings.Index(lowerText[offset:], needle)
		if idx < 0 {
			break
		}
		pos := offset + idx
		if dist := distanceTo(pos, pos+len(needle), m); dist < bestDist {
			bestDist = dist
		}
		offset = pos + len(needle)
	}
	return bestDist
}

// distanceTo returns the gap in characters between an airline occurrence
// and a price match, 0 when they overlap.
func distanceTo(start, end int, m priceMatch) int {
	if end <= m.start {
		return m.start - end
	}
	if start >= m.end {
		return start - m.end
	}
	return 0
}

// snippet returns the text surrounding a price match for the raw payload.
func snippet(text string, m *priceMatch) string {
	start := m.start - 80
	if start < 0 {
		start = 0
	}
	end := m.end + 80
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}
