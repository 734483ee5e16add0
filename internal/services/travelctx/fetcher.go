// Package travelctx fetches non-price travel signals (news headlines,
// holiday proximity) used to annotate price-drop alerts.
package travelctx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/common"
	"github.com/ternarybob/farewatch/internal/models"
)

// holidayPeriod is a fixed calendar entry checked against departure dates.
type holidayPeriod struct {
	Name  string
	Start string // "2006-01-02"
	End   string
}

// holidayPeriods covers the school and public holiday windows that move
// Australian leisure fares. Dates roll forward once a year by hand.
var holidayPeriods = []holidayPeriod{
	{Name: "summer school holidays", Start: "2026-12-12", End: "2027-01-27"},
	{Name: "Easter holidays", Start: "2026-04-02", End: "2026-04-19"},
	{Name: "mid-year school holidays", Start: "2026-07-04", End: "2026-07-19"},
	{Name: "spring school holidays", Start: "2026-09-26", End: "2026-10-11"},
	{Name: "Christmas and New Year period", Start: "2026-12-20", End: "2027-01-05"},
}

// holidayProximityDays is how far ahead of a holiday window a departure
// can be and still get the note. Departures after a window ends are not
// noted; demand normalizes once the holiday is over.
const holidayProximityDays = 14

// Fetcher retrieves headlines from an RSS feed scoped to the flight's
// destination, plus a holiday-proximity note from the fixed calendar.
type Fetcher struct {
	config     common.ContextConfig
	logger     arbor.ILogger
	httpClient *http.Client
}

// NewFetcher creates a travel context fetcher.
func NewFetcher(config common.ContextConfig, logger arbor.ILogger) *Fetcher {
	return &Fetcher{
		config: config,
		logger: logger,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
	}
}

// FetchTravelContext builds a snapshot for the flight. A feed failure is
// not fatal when a holiday note exists; an entirely empty result is an
// error so callers do not cache a useless snapshot.
func (f *Fetcher) FetchTravelContext(ctx context.Context, flight *models.Flight) (*models.ContextSnapshot, error) {
	headlines, err := f.fetchHeadlines(ctx, flight.Destination)
	if err != nil {
		f.logger.Warn().
			Err(err).
			Str("destination", flight.Destination).
			Msg("Failed to fetch news headlines")
	}

	holidayNote := f.holidayNote(flight.DepartureDate)

	if len(headlines) == 0 && holidayNote == "" {
		if err != nil {
			return nil, fmt.Errorf("no travel context available: %w", err)
		}
		return nil, fmt.Errorf("no travel context available")
	}

	now := time.Now().UTC()
	return &models.ContextSnapshot{
		FlightID:    flight.ID,
		Headlines:   headlines,
		HolidayNote: holidayNote,
		FetchedAt:   now,
		ExpiresAt:   now.Add(f.config.CacheTTL),
	}, nil
}

// fetchHeadlines pulls item titles from the destination-scoped RSS feed.
func (f *Fetcher) fetchHeadlines(ctx context.Context, destination string) ([]string, error) {
	if f.config.NewsFeedURL == "" {
		return nil, fmt.Errorf("no news feed configured")
	}

	feedURL := strings.Replace(f.config.NewsFeedURL, "{query}", url.QueryEscape(destination+" travel"), 1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news feed returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse news feed: %w", err)
	}

	maxHeadlines := f.config.MaxHeadlines
	if maxHeadlines <= 0 {
		maxHeadlines = 5
	}

	var headlines []string
	doc.Find("item title").EachWithBreak(func(i int, s *goquery.Selection) bool {
		title := strings.TrimSpace(s.Text())
		if title != "" {
			headlines = append(headlines, title)
		}
		return len(headlines) < maxHeadlines
	})

	return headlines, nil
}

// holidayNote returns a note when the departure date falls inside a
// fixed holiday window or within the proximity margin before it starts.
func (f *Fetcher) holidayNote(departureDate string) string {
	dep, err := time.Parse("2006-01-02", departureDate)
	if err != nil {
		return ""
	}

	for _, period := range holidayPeriods {
		start, err := time.Parse("2006-01-02", period.Start)
		if err != nil {
			continue
		}
		end, err := time.Parse("2006-01-02", period.End)
		if err != nil {
			continue
		}

		margin := holidayProximityDays * 24 * time.Hour
		if !dep.Before(start.Add(-margin)) && !dep.After(end) {
			return fmt.Sprintf("Departure falls in or near the %s (%s to %s); expect higher demand.",
				period.Name, period.Start, period.End)
		}
	}
	return ""
}
