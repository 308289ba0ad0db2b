package location

import (
	"context"
	"errors"
	"sync"

	"github.com/daniil11ru/fieldnav/cli/tracker/types"
)

// Manual провайдер, которому фиксации передаются вызовом Emit.
// Используется в тестах и в демонстрационном режиме без моста GPS.
type Manual struct {
	mu         sync.Mutex
	permission error
	current    *types.Location
	onUpdate   func(types.Location)
	starts     int
}

var _ Provider = (*Manual)(nil)

func NewManual() *Manual {
	return &Manual{}
}

// DenyPermission последующие запросы разрешения вернут *types.PermissionError
func (m *Manual) DenyPermission() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.permission = &types.PermissionError{}
}

func (m *Manual) SetCurrent(loc types.Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &loc
}

func (m *Manual) RequestPermission(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permission
}

func (m *Manual) CurrentLocation(context.Context) (*types.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, errors.New("позиция еще не определена")
	}
	loc := *m.current
	return &loc, nil
}

func (m *Manual) StartTracking(onUpdate func(types.Location)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = onUpdate
	m.starts++
	return nil
}

func (m *Manual) StopTracking() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = nil
}

// Emit доставляет фиксацию подписчику, false если подписки нет
func (m *Manual) Emit(loc types.Location) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := loc
	m.current = &l
	if m.onUpdate == nil {
		return false
	}
	m.onUpdate(loc)
	return true
}

func (m *Manual) Tracking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onUpdate != nil
}

func (m *Manual) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}
