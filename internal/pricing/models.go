package pricing

// SearchRequest describes one itinerary search. Dates use 2006-01-02.
type SearchRequest struct {
	Origin        string
	Destination   string
	DepartureDate string
	ReturnDate    string
	Passengers    int
	CabinClass    string
	CarrierFilter string // optional IATA carrier code or airline name
}

// Offer is a single priced itinerary from the API.
type Offer struct {
	TotalPrice  float64 `json:"total_price"`
	Currency    string  `json:"currency"`
	Airline     string  `json:"airline"`
	CarrierCode string  `json:"carrier_code"`
	Stops       int     `json:"stops"`
	Duration    string  `json:"duration"`
	DepartTime  string  `json:"depart_time"`
	ArriveTime  string  `json:"arrive_time"`
}

// offersResponse is the wire shape of the offers endpoint.
type offersResponse struct {
	Offers []Offer `json:"offers"`
}
