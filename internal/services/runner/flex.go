package runner

import (
	"fmt"
	"time"

	"github.com/ternarybob/farewatch/internal/models"
)

// shiftedDates computes the date-shifted variant of a flight for one flex
// probe offset. The shifted return date preserves the original trip
// length in days; one-way flights shift the departure only.
func shiftedDates(flight *models.Flight, offsetDays int) (departure, ret string, err error) {
	dep, err := time.Parse("2006-01-02", flight.DepartureDate)
	if err != nil {
		return "", "", fmt.Errorf("invalid departure date %q: %w", flight.DepartureDate, err)
	}

	shiftedDep := dep.AddDate(0, 0, offsetDays)
	departure = shiftedDep.Format("2006-01-02")

	if flight.ReturnDate == "" {
		return departure, "", nil
	}

	tripLength, err := flight.TripLengthDays()
	if err != nil {
		return "", "", err
	}
	ret = shiftedDep.AddDate(0, 0, tripLength).Format("2006-01-02")
	return departure, ret, nil
}
