// -----------------------------------------------------------------------
// Price history, flex-scan cache and travel context models
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"
)

// Quote source tags. PriceRecord.Source records which quote path produced
// an observation; flex entries use SourceError for failed probes so a
// caller can distinguish "checked and failed" from "never checked".
const (
	SourceAPI     = "api"
	SourceScraper = "scraper"
	SourceAgent   = "agent"
	SourceError   = "error"
)

// PriceRecord is an immutable price observation. Rows are append-only;
// the most recent row by CheckedAt is the flight's current price.
type PriceRecord struct {
	ID         uint64    `json:"id" badgerhold:"key"`
	FlightID   string    `json:"flight_id" badgerholdIndex:"FlightID"`
	Price      float64   `json:"price"`
	Currency   string    `json:"currency"`
	Airline    string    `json:"airline,omitempty"`
	Stops      *int      `json:"stops,omitempty"`
	Duration   string    `json:"duration,omitempty"`
	DepartTime string    `json:"depart_time,omitempty"`
	ArriveTime string    `json:"arrive_time,omitempty"`
	Source     string    `json:"source"`
	RawPayload string    `json:"raw_payload,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

// Validate rejects records that would corrupt price history.
func (p *PriceRecord) Validate() error {
	if p.FlightID == "" {
		return fmt.Errorf("flight ID is required")
	}
	if p.Price <= 0 {
		return fmt.Errorf("price must be positive, got %v", p.Price)
	}
	return nil
}

// FlexPriceEntry is a cached quote for a date-shifted variant of a flight.
// Entries are uniquely keyed by (flight, departure date, return date,
// cabin class, passengers); a later scan overwrites an earlier one.
type FlexPriceEntry struct {
	Key           string     `json:"key" badgerhold:"key"`
	FlightID      string     `json:"flight_id" badgerholdIndex:"FlightID"`
	DepartureDate string     `json:"departure_date"`
	ReturnDate    string     `json:"return_date,omitempty"`
	CabinClass    CabinClass `json:"cabin_class"`
	Passengers    int        `json:"passengers"`
	Price         *float64   `json:"price"` // nil when the probe failed
	Currency      string     `json:"currency,omitempty"`
	Airline       string     `json:"airline,omitempty"`
	Source        string     `json:"source"`
	CheckedAt     time.Time  `json:"checked_at"`
}

// FlexKey builds the composite upsert key for a flex entry.
func FlexKey(flightID, departureDate, returnDate string, cabin CabinClass, passengers int) string {
	return fmt.Sprintf("%s|%s|%s|%s|%d", flightID, departureDate, returnDate, cabin, passengers)
}

// Failed reports whether this entry records a failed probe.
func (e *FlexPriceEntry) Failed() bool {
	return e.Price == nil || e.Source == SourceError
}

// ContextSnapshot is a cached bundle of non-price signals for a flight.
// It is a time-bounded cache, not a queue; lookups honor a caller-supplied
// max age against FetchedAt.
type ContextSnapshot struct {
	ID          uint64    `json:"id" badgerhold:"key"`
	FlightID    string    `json:"flight_id" badgerholdIndex:"FlightID"`
	Headlines   []string  `json:"headlines"`
	HolidayNote string    `json:"holiday_note,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the snapshot has passed its expiry.
func (c *ContextSnapshot) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
