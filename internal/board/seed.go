package board

import (
	"time"

	"flowtrack/internal/models"
)

// Seed returns the fixed fallback dataset shown when the API is unreachable.
// Open dates are set to now.
func Seed(now time.Time) []models.Asset {
	rows := []models.Asset{
		{
			ID:          "1",
			Email:       "john@example.com",
			Type:        models.TypeLaptop,
			Location:    models.LocationWFO,
			Status:      models.StatusActive,
			Description: "John's primary work laptop.",
		},
		{
			ID:          "2",
			Email:       "user2@example.com",
			Type:        models.TypeCharger,
			Location:    models.LocationWFO,
			Status:      models.StatusActive,
			Description: "Charger for MacBook Pro.",
		},
		{
			ID:          "3",
			Email:       "user3@example.com",
			Type:        models.TypeNetworkIssue,
			Location:    models.LocationWFO,
			Status:      models.StatusActive,
			Description: "Reported intermittent connectivity.",
		},
	}
	for i := range rows {
		opened := now
		rows[i].OpenDate = &opened
	}
	return rows
}
