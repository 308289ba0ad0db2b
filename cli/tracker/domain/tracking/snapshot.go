package tracking

import (
	"time"

	"github.com/daniil11ru/fieldnav/cli/tracker/types"
)

type EventType string

const (
	EventStarted    EventType = "started"
	EventPoint      EventType = "point"
	EventCheckpoint EventType = "checkpoint"
	EventStopped    EventType = "stopped"
	EventSaved      EventType = "saved"
	EventDiscarded  EventType = "discarded"
	EventViewing    EventType = "viewing"
	EventCleared    EventType = "cleared"
	EventLocation   EventType = "location"
	EventError      EventType = "error"
)

// Snapshot неизменяемая копия состояния контроллера
type Snapshot struct {
	State           types.TrackingState `json:"state"`
	RouteID         string              `json:"route_id,omitempty"`
	StartedAt       *time.Time          `json:"started_at,omitempty"`
	Points          []types.RoutePoint  `json:"points"`
	Checkpoints     []types.Checkpoint  `json:"checkpoints"`
	CurrentLocation *types.Location     `json:"current_location,omitempty"`
	NamePending     bool                `json:"name_pending"`
	Saving          bool                `json:"saving"`
	ViewedRoute     *types.Route        `json:"viewed_route,omitempty"`
	Bounds          *types.Bounds       `json:"bounds,omitempty"`
	Center          *MapCenter          `json:"center,omitempty"`
	Error           string              `json:"error,omitempty"`
}

// MapCenter точка, на которую центрируется карта при просмотре маршрута
type MapCenter struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Event struct {
	Type     EventType `json:"type"`
	Snapshot Snapshot  `json:"snapshot"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:       c.state,
		RouteID:     c.routeID,
		Points:      append([]types.RoutePoint{}, c.points...),
		Checkpoints: append([]types.Checkpoint{}, c.checkpoints...),
		NamePending: c.namePending,
		Saving:      c.saving,
		Error:       c.lastError,
	}
	if !c.startedAt.IsZero() {
		t := c.startedAt
		s.StartedAt = &t
	}
	if c.current != nil {
		l := *c.current
		s.CurrentLocation = &l
	}
	if c.viewed != nil {
		r := c.viewed.Clone()
		s.ViewedRoute = &r
	}
	if c.bounds != nil {
		b := *c.bounds
		s.Bounds = &b
		lat, lng := b.Center()
		s.Center = &MapCenter{Latitude: lat, Longitude: lng}
	}
	return s
}

const defaultEventBuffer = 16

// Events подписка на все события на время жизни контроллера
func (c *Controller) Events() <-chan Event {
	ch, _ := c.Subscribe(defaultEventBuffer)
	return ch
}

// Subscribe возвращает канал событий и функцию отписки.
// Медленный подписчик пропускает события, контроллер не блокируется.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	ch := make(chan Event, buffer)
	c.subscribers[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subscribers[id]; ok {
			delete(c.subscribers, id)
			close(sub)
		}
	}
}

func (c *Controller) emitLocked(eventType EventType) {
	if len(c.subscribers) == 0 {
		return
	}
	event := Event{Type: eventType, Snapshot: c.snapshotLocked()}
	for _, ch := range c.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
