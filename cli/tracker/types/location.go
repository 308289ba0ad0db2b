package types

import (
	"fmt"
	"time"

	"github.com/golang/geo/s2"
)

const earthRadiusMeters = 6371008.8

// Location координаты устройства в момент получения фиксации.
// Timestamp хранится в миллисекундах Unix, как его отдает платформа.
type Location struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("широта вне диапазона: %v", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("долгота вне диапазона: %v", l.Longitude)
	}
	return nil
}

func (l Location) Time() time.Time {
	return time.UnixMilli(l.Timestamp).UTC()
}

func (l Location) latLng() s2.LatLng {
	return s2.LatLngFromDegrees(l.Latitude, l.Longitude)
}

// DistanceTo расстояние по дуге большого круга в метрах.
func (l Location) DistanceTo(other Location) float64 {
	return l.latLng().Distance(other.latLng()).Radians() * earthRadiusMeters
}

func Float64(v float64) *float64 {
	return &v
}
