package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/daniil11ru/fieldnav/cli/tracker/location"
	"github.com/daniil11ru/fieldnav/cli/tracker/metrics"
	"github.com/daniil11ru/fieldnav/cli/tracker/session"
	"github.com/daniil11ru/fieldnav/cli/tracker/types"
)

var now = time.Now // For mocking time.Now() in tests

// RouteStore часть репозитория маршрутов, нужная контроллеру
type RouteStore interface {
	SaveRoute(ctx context.Context, route types.Route) (string, error)
	FetchRouteByID(ctx context.Context, id string) (*types.Route, error)
}

type Option func(*Controller)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithIDGenerator подменяет генератор идентификаторов маршрутов, точек и чекпоинтов
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) { c.newID = gen }
}

func newUUID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Controller машина состояний записи маршрута:
// idle -> recording -> stopped -> idle, и независимо idle <-> viewing.
// Все изменения сессии выполняются под одним мьютексом, вызовы провайдера
// геолокации делаются вне его.
type Controller struct {
	provider location.Provider
	routes   RouteStore
	session  session.Source
	metrics  *metrics.Metrics
	newID    func() string

	// lifecycle упорядочивает подписку и отписку провайдера между Start и Stop
	lifecycle sync.Mutex

	mu          sync.Mutex
	state       types.TrackingState
	generation  uint64
	routeID     string
	startedAt   time.Time
	points      []types.RoutePoint
	checkpoints []types.Checkpoint
	lastFix     *types.Location
	current     *types.Location
	namePending bool
	saving      bool
	viewed      *types.Route
	bounds      *types.Bounds
	lastError   string
	subscribers map[int]chan Event
	nextSubID   int
}

func New(provider location.Provider, routes RouteStore, sessionSource session.Source, opts ...Option) *Controller {
	c := &Controller{
		provider:    provider,
		routes:      routes,
		session:     sessionSource,
		newID:       newUUID,
		state:       types.TrackingStateIdle,
		subscribers: map[int]chan Event{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start запрашивает разрешение на геолокацию и начинает новую запись
func (c *Controller) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if err := c.expect(types.TrackingStateIdle); err != nil {
		return err
	}

	if err := c.provider.RequestPermission(ctx); err != nil {
		var permErr *types.PermissionError
		if !errors.As(err, &permErr) {
			permErr = &types.PermissionError{Err: err}
		}
		c.mu.Lock()
		c.lastError = permErr.Error()
		c.emitLocked(EventError)
		c.mu.Unlock()
		log.WithField("err", permErr).Warn("Запись не начата: нет доступа к геолокации")
		return permErr
	}

	c.mu.Lock()
	if c.state != types.TrackingStateIdle {
		c.mu.Unlock()
		return types.ErrInvalidState
	}
	c.resetSessionLocked()
	c.routeID = c.newID()
	c.startedAt = now().UTC()
	c.state = types.TrackingStateRecording
	c.generation++
	gen := c.generation
	c.emitLocked(EventStarted)
	c.mu.Unlock()

	if err := c.provider.StartTracking(func(loc types.Location) { c.onUpdate(gen, loc) }); err != nil {
		c.mu.Lock()
		if c.generation == gen {
			c.resetSessionLocked()
			c.state = types.TrackingStateIdle
			c.generation++
			c.lastError = err.Error()
			c.emitLocked(EventError)
		}
		c.mu.Unlock()
		return fmt.Errorf("не удалось начать отслеживание: %w", err)
	}

	log.WithField("route", c.routeID).Info("Начата запись маршрута")
	return nil
}

func (c *Controller) onUpdate(gen uint64, loc types.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.appendLocked(loc)
}

// OnLocationUpdate добавляет точку, если идет запись, иначе ничего не делает
func (c *Controller) OnLocationUpdate(loc types.Location) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLocked(loc)
}

func (c *Controller) appendLocked(loc types.Location) {
	if c.state != types.TrackingStateRecording {
		return
	}
	if n := len(c.points); n > 0 && loc.Timestamp < c.points[n-1].Timestamp {
		log.WithFields(log.Fields{"timestamp": loc.Timestamp, "last": c.points[n-1].Timestamp}).Warn("Отброшена фиксация с более ранним временем")
		return
	}

	l := loc
	c.lastFix = &l
	c.current = &l
	c.points = append(c.points, types.RoutePoint{ID: c.newID(), Location: loc, Timestamp: loc.Timestamp})
	c.metrics.SetSessionPoints(len(c.points))
	c.emitLocked(EventPoint)
}

// AddCheckpoint отмечает текущую позицию. До первой фиксации в сессии ничего не добавляет.
func (c *Controller) AddCheckpoint() (*types.Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != types.TrackingStateRecording {
		return nil, types.ErrInvalidState
	}
	if c.lastFix == nil {
		log.Warn("Чекпоинт не добавлен: текущая позиция еще не определена")
		return nil, nil
	}

	cp := types.Checkpoint{ID: c.newID(), Location: *c.lastFix}
	c.checkpoints = append(c.checkpoints, cp)
	c.emitLocked(EventCheckpoint)
	return &cp, nil
}

// Stop завершает запись. После возврата точки в сессию не добавляются.
func (c *Controller) Stop() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.state != types.TrackingStateRecording {
		c.mu.Unlock()
		return types.ErrInvalidState
	}
	c.state = types.TrackingStateStopped
	c.generation++
	c.namePending = true
	c.emitLocked(EventStopped)
	points := len(c.points)
	c.mu.Unlock()

	c.provider.StopTracking()
	log.WithField("points", points).Info("Запись маршрута остановлена")
	return nil
}

// Save сохраняет остановленную сессию под именем name.
// При любой ошибке сессия остается нетронутой, сохранение можно повторить.
func (c *Controller) Save(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	if c.state != types.TrackingStateStopped || c.saving {
		c.mu.Unlock()
		return "", types.ErrInvalidState
	}

	route, err := c.buildRouteLocked(name)
	if err != nil {
		c.lastError = err.Error()
		c.emitLocked(EventError)
		c.mu.Unlock()
		return "", err
	}
	c.saving = true
	c.mu.Unlock()

	id, err := c.routes.SaveRoute(ctx, route)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.saving = false
	if err != nil {
		c.lastError = err.Error()
		c.emitLocked(EventError)
		return "", err
	}

	c.resetSessionLocked()
	c.state = types.TrackingStateIdle
	c.emitLocked(EventSaved)
	log.WithFields(log.Fields{"route": id, "points": len(route.Points)}).Info("Маршрут сохранен")
	return id, nil
}

func (c *Controller) buildRouteLocked(name string) (types.Route, error) {
	if len(c.points) == 0 {
		return types.Route{}, &types.ValidationError{Field: "points", Reason: "нет точек для сохранения"}
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return types.Route{}, &types.ValidationError{Field: "name", Reason: "введите название маршрута"}
	}
	userID, ok := c.session.UserID()
	if !ok {
		return types.Route{}, &types.ValidationError{Field: "user_id", Reason: "пользователь не авторизован"}
	}

	ts := now().UTC()
	return types.Route{
		ID:          c.routeID,
		Name:        name,
		CreatedBy:   userID,
		UserID:      userID,
		Points:      append([]types.RoutePoint(nil), c.points...),
		Checkpoints: append([]types.Checkpoint{}, c.checkpoints...),
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}, nil
}

// Discard удаляет остановленную сессию без сохранения, только с подтверждением
func (c *Controller) Discard(confirmed bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != types.TrackingStateStopped || c.saving {
		return types.ErrInvalidState
	}
	if !confirmed {
		return types.ErrConfirmationRequired
	}
	c.resetSessionLocked()
	c.state = types.TrackingStateIdle
	c.emitLocked(EventDiscarded)
	log.Info("Запись маршрута отменена")
	return nil
}

// LoadForViewing показывает сохраненный маршрут
func (c *Controller) LoadForViewing(route types.Route) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != types.TrackingStateIdle {
		return types.ErrInvalidState
	}

	r := route.Clone()
	c.viewed = &r
	c.bounds = nil
	if b, ok := types.ComputeBounds(r.Points); ok {
		c.bounds = &b
	} else {
		log.WithField("route", r.ID).Warn("В маршруте нет точек")
	}
	c.state = types.TrackingStateViewing
	c.emitLocked(EventViewing)
	return nil
}

// View загружает маршрут по идентификатору и показывает его
func (c *Controller) View(ctx context.Context, id string) error {
	if err := c.expect(types.TrackingStateIdle); err != nil {
		return err
	}
	route, err := c.routes.FetchRouteByID(ctx, id)
	if err != nil {
		c.mu.Lock()
		c.lastError = err.Error()
		c.emitLocked(EventError)
		c.mu.Unlock()
		return err
	}
	return c.LoadForViewing(*route)
}

// Clear закрывает просмотр маршрута
func (c *Controller) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != types.TrackingStateViewing {
		return types.ErrInvalidState
	}
	c.viewed = nil
	c.bounds = nil
	c.state = types.TrackingStateIdle
	c.emitLocked(EventCleared)
	return nil
}

// Locate однократно запрашивает текущую позицию для отображения
func (c *Controller) Locate(ctx context.Context) (*types.Location, error) {
	loc, err := c.provider.CurrentLocation(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastError = err.Error()
		c.emitLocked(EventError)
		log.WithField("err", err).Warn("Не удалось определить текущую позицию")
		return nil, err
	}
	l := *loc
	c.current = &l
	c.emitLocked(EventLocation)
	return loc, nil
}

func (c *Controller) expect(state types.TrackingState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != state {
		return types.ErrInvalidState
	}
	return nil
}

func (c *Controller) resetSessionLocked() {
	c.routeID = ""
	c.startedAt = time.Time{}
	c.points = nil
	c.checkpoints = nil
	c.lastFix = nil
	c.namePending = false
	c.lastError = ""
	c.metrics.SetSessionPoints(0)
}
