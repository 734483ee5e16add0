package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/farewatch/internal/common"
	"github.com/ternarybob/farewatch/internal/interfaces"
)

func TestSendPriceDropAlertNotConfigured(t *testing.T) {
	mailer := NewMailer(common.SMTPConfig{}, arbor.NewLogger())

	err := mailer.SendPriceDropAlert(context.Background(), interfaces.PriceDropAlert{
		To:           "user@example.com",
		FlightName:   "SYD → NRT",
		CurrentPrice: 720,
	})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSendPriceDropAlertMissingRecipient(t *testing.T) {
	mailer := NewMailer(common.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "user",
		Password: "pass",
		From:     "alerts@example.com",
	}, arbor.NewLogger())

	err := mailer.SendPriceDropAlert(context.Background(), interfaces.PriceDropAlert{CurrentPrice: 720})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotConfigured)
}

func TestBuildAlertBody(t *testing.T) {
	nextRun := time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC)
	alert := interfaces.PriceDropAlert{
		To:             "user@example.com",
		FlightName:     "Tokyo trip",
		Route:          "SYD → NRT (2026-10-10 - 2026-10-17)",
		CurrentPrice:   720,
		PreviousPrice:  849,
		LowestPrice:    650,
		Currency:       "AUD",
		Airline:        "Jetstar",
		FlexSuggestion: "Departing 2026-10-08 was $690 when last scanned",
		Headlines:      []string{"Japan extends visa-free entry"},
		HolidayNote:    "Departure falls near spring school holidays",
		NextRunAt:      &nextRun,
	}

	body := buildAlertBody(alert)
	assert.Contains(t, body, "Tokyo trip")
	assert.Contains(t, body, "$720.00 AUD")
	assert.Contains(t, body, "(Jetstar)")
	assert.Contains(t, body, "Previous price: $849.00 AUD")
	assert.Contains(t, body, "Lowest seen: $650.00 AUD")
	assert.Contains(t, body, "Departing 2026-10-08")
	assert.Contains(t, body, "Japan extends visa-free entry")
	assert.Contains(t, body, "spring school holidays")
	assert.Contains(t, body, "Next automatic check")
}

func TestBuildAlertBodyMinimal(t *testing.T) {
	body := buildAlertBody(interfaces.PriceDropAlert{
		FlightName:   "SYD → NRT",
		Route:        "SYD → NRT (2026-10-10)",
		CurrentPrice: 720,
	})
	assert.Contains(t, body, "Current price: $720.00 AUD")
	assert.NotContains(t, body, "Previous price")
	assert.NotContains(t, body, "Travel news")
	assert.NotContains(t, body, "Flexible dates")
}
