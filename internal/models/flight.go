// -----------------------------------------------------------------------
// Flight - Tracked itinerary and its check status
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"strings"
	"time"
)

// CabinClass is the booking cabin for a tracked flight.
type CabinClass string

const (
	CabinEconomy        CabinClass = "economy"
	CabinPremiumEconomy CabinClass = "premium_economy"
	CabinBusiness       CabinClass = "business"
	CabinFirst          CabinClass = "first"
)

// IsValid reports whether the cabin class is one of the supported values.
func (c CabinClass) IsValid() bool {
	switch c {
	case CabinEconomy, CabinPremiumEconomy, CabinBusiness, CabinFirst:
		return true
	}
	return false
}

// IsPremium reports whether the cabin needs the longer scrape settle delay.
func (c CabinClass) IsPremium() bool {
	return c == CabinPremiumEconomy || c == CabinBusiness || c == CabinFirst
}

// CheckStatus is the outcome of the most recent price check for a flight.
type CheckStatus string

const (
	CheckStatusOK      CheckStatus = "ok"
	CheckStatusError   CheckStatus = "error"
	CheckStatusRunning CheckStatus = "running"
)

// Flight is a tracked itinerary. Flights are never hard-deleted; a
// deactivated flight keeps its price history but is skipped by checks.
type Flight struct {
	ID               string      `json:"id" badgerhold:"key"`
	Name             string      `json:"name"`
	Origin           string      `json:"origin" validate:"required,len=3,alpha"`
	Destination      string      `json:"destination" validate:"required,len=3,alpha"`
	DepartureDate    string      `json:"departure_date" validate:"required,datetime=2006-01-02"`
	ReturnDate       string      `json:"return_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Passengers       int         `json:"passengers" validate:"required,min=1,max=9"`
	CabinClass       CabinClass  `json:"cabin_class"`
	PreferredAirline string      `json:"preferred_airline,omitempty"`
	NotifyEmail      string      `json:"notify_email,omitempty" validate:"omitempty,email"`
	IsActive         bool        `json:"is_active"`
	LastCheckStatus  CheckStatus `json:"last_check_status,omitempty"`
	LastCheckError   string      `json:"last_check_error,omitempty"`
	LastCheckedAt    *time.Time  `json:"last_checked_at,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Normalize uppercases airport codes and applies defaults for optional fields.
func (f *Flight) Normalize() {
	f.Origin = strings.ToUpper(strings.TrimSpace(f.Origin))
	f.Destination = strings.ToUpper(strings.TrimSpace(f.Destination))
	if f.CabinClass == "" {
		f.CabinClass = CabinEconomy
	}
	if f.Passengers == 0 {
		f.Passengers = 1
	}
	if f.Name == "" {
		f.Name = fmt.Sprintf("%s → %s", f.Origin, f.Destination)
	}
}

// Route returns the human-readable route string used in alerts and logs.
func (f *Flight) Route() string {
	if f.ReturnDate != "" {
		return fmt.Sprintf("%s → %s (%s - %s)", f.Origin, f.Destination, f.DepartureDate, f.ReturnDate)
	}
	return fmt.Sprintf("%s → %s (%s)", f.Origin, f.Destination, f.DepartureDate)
}

// TripLengthDays returns the number of days between departure and return,
// or 0 for one-way flights. Shifted flex-scan itineraries preserve this.
func (f *Flight) TripLengthDays() (int, error) {
	if f.ReturnDate == "" {
		return 0, nil
	}
	dep, err := time.Parse("2006-01-02", f.DepartureDate)
	if err != nil {
		return 0, fmt.Errorf("invalid departure date %q: %w", f.DepartureDate, err)
	}
	ret, err := time.Parse("2006-01-02", f.ReturnDate)
	if err != nil {
		return 0, fmt.Errorf("invalid return date %q: %w", f.ReturnDate, err)
	}
	return int(ret.Sub(dep).Hours() / 24), nil
}
