package broadcast

import (
	"encoding/json"
	"time"

	"github.com/daniil11ru/fieldnav/cli/tracker/types"
)

var now = time.Now // For mocking time.Now() in tests

type EventType string

const (
	EventRouteSaved   EventType = "route.saved"
	EventRouteSynced  EventType = "route.synced"
	EventRouteRenamed EventType = "route.renamed"
	EventRouteDeleted EventType = "route.deleted"
)

// RouteEvent уведомление о маршруте, подтвержденном удаленным хранилищем
type RouteEvent struct {
	Type           EventType `json:"type"`
	RouteID        string    `json:"route_id"`
	Name           string    `json:"name,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	Points         int       `json:"points"`
	Checkpoints    int       `json:"checkpoints"`
	DistanceMeters float64   `json:"distance_m"`
	At             time.Time `json:"at"`
}

func NewRouteEvent(eventType EventType, route types.Route) RouteEvent {
	return RouteEvent{
		Type:           eventType,
		RouteID:        route.ID,
		Name:           route.Name,
		UserID:         route.UserID,
		Points:         len(route.Points),
		Checkpoints:    len(route.Checkpoints),
		DistanceMeters: route.Distance(),
		At:             now().UTC(),
	}
}

func (e RouteEvent) ToBytes() ([]byte, error) {
	return json.Marshal(e)
}
