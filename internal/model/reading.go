// internal/model/reading.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Reading represents one sampled temperature value from a controller channel
type Reading struct {
	ID           uuid.UUID `json:"id" db:"id"`
	ControllerID uuid.UUID `json:"controller_id" db:"controller_id"`
	Channel      string    `json:"channel" db:"channel"`
	Value        float64   `json:"value" db:"value"`
	Unit         string    `json:"unit" db:"unit"`
	TakenAt      time.Time `json:"taken_at" db:"taken_at"`
}

// Default unit for readings; the CTC100 reports kelvin unless reconfigured
const UnitKelvin = "K"
