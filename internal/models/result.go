// -----------------------------------------------------------------------
// Job result payloads - contract with the local runner and remote agent
// -----------------------------------------------------------------------

package models

import "encoding/json"

// QuoteResult is the result payload for check_now jobs and the per-flight
// entries of check_all results. Remote agents self-report these, so every
// field is optional and only well-formed numeric prices are persisted.
type QuoteResult struct {
	FlightID   string   `json:"flight_id,omitempty"`
	Price      *float64 `json:"price,omitempty"`
	Currency   string   `json:"currency,omitempty"`
	Airline    string   `json:"airline,omitempty"`
	Stops      *int     `json:"stops,omitempty"`
	Duration   string   `json:"duration,omitempty"`
	DepartTime string   `json:"depart_time,omitempty"`
	ArriveTime string   `json:"arrive_time,omitempty"`
	Source     string   `json:"source,omitempty"`
	Raw        string   `json:"raw,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Usable reports whether the result carries a persistable price.
func (r *QuoteResult) Usable() bool {
	return r.Price != nil && *r.Price > 0
}

// CheckAllResult is the result payload for check_all jobs.
type CheckAllResult struct {
	Flights []QuoteResult `json:"flights"`
}

// FlexProbeResult is one date-shifted probe inside a flex_scan result.
type FlexProbeResult struct {
	DepartureDate string   `json:"departure_date"`
	ReturnDate    string   `json:"return_date,omitempty"`
	Price         *float64 `json:"price,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	Airline       string   `json:"airline,omitempty"`
	Source        string   `json:"source,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// FlexScanResult is the result payload for flex_scan jobs.
type FlexScanResult struct {
	WindowDays int               `json:"window_days"`
	Probes     []FlexProbeResult `json:"probes"`
}

// ContextResult is the result payload for context_refresh jobs.
type ContextResult struct {
	Headlines   []string `json:"headlines"`
	HolidayNote string   `json:"holiday_note,omitempty"`
	ExpiresAt   string   `json:"expires_at,omitempty"` // RFC3339; fetcher TTL applies when absent
}

// FlexScanPayload is the payload for flex_scan jobs.
type FlexScanPayload struct {
	WindowDays int `json:"window_days"`
}

// SendEmailPayload is the payload for send_email jobs, carrying the
// price movement that triggered the alert.
type SendEmailPayload struct {
	To            string  `json:"to"`
	CurrentPrice  float64 `json:"current_price"`
	PreviousPrice float64 `json:"previous_price"`
	LowestPrice   float64 `json:"lowest_price"`
	Currency      string  `json:"currency"`
	Airline       string  `json:"airline,omitempty"`
}

// AgentCompletion is the body of the remote agent completion endpoint.
type AgentCompletion struct {
	Status          string          `json:"status"` // "success" or "error"
	Result          json.RawMessage `json:"result,omitempty"`
	ErrorText       string          `json:"error_text,omitempty"`
	ProgressCurrent *int            `json:"progress_current,omitempty"`
}
