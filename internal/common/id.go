package common

import (
	"github.com/google/uuid"
)

// NewFlightID generates a unique flight ID with the "flight_" prefix
func NewFlightID() string {
	return "flight_" + uuid.New().String()
}

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}
