package route

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/daniil11ru/fieldnav/cli/tracker/storage"
	"github.com/daniil11ru/fieldnav/cli/tracker/types"
)

const (
	// KeyCachedRoutes зеркало списка маршрутов для офлайн-просмотра
	KeyCachedRoutes = "offlineRoutes"
	// KeyPendingRoutes очередь маршрутов, еще не подтвержденных удаленным хранилищем
	KeyPendingRoutes = "pendingRoutes"
)

func routeKey(id string) string {
	return "route_" + id
}

// inUTC msgpack восстанавливает время в локальной зоне
func inUTC(route *types.Route) {
	route.CreatedAt = route.CreatedAt.UTC()
	route.UpdatedAt = route.UpdatedAt.UTC()
}

type PendingReason string

const (
	PendingOffline PendingReason = "offline"
	// PendingPartial строка маршрута уже есть удаленно, но дочерние строки могут отсутствовать
	PendingPartial PendingReason = "partial"
)

type PendingRoute struct {
	Route    types.Route   `json:"route"`
	Reason   PendingReason `json:"reason"`
	QueuedAt time.Time     `json:"queued_at"`
}

// Pending содержимое очереди синхронизации
func (r *Repository) Pending(ctx context.Context) []PendingRoute {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pendingLocked(ctx)
}

func (r *Repository) pendingLocked(ctx context.Context) []PendingRoute {
	var pending []PendingRoute
	if err := r.local.Load(ctx, KeyPendingRoutes, &pending); err != nil && !errors.Is(err, storage.ErrNotFound) {
		log.WithField("err", err).Error("Не удалось прочитать очередь синхронизации")
		return nil
	}
	for i := range pending {
		inUTC(&pending[i].Route)
		pending[i].QueuedAt = pending[i].QueuedAt.UTC()
	}
	return pending
}

func (r *Repository) enqueueLocked(ctx context.Context, route types.Route, reason PendingReason) error {
	pending := r.pendingLocked(ctx)
	entry := PendingRoute{Route: route, Reason: reason, QueuedAt: now().UTC()}

	replaced := false
	for i := range pending {
		if pending[i].Route.ID != route.ID {
			continue
		}
		if pending[i].Reason == PendingPartial {
			entry.Reason = PendingPartial
		}
		pending[i] = entry
		replaced = true
	}
	if !replaced {
		pending = append(pending, entry)
	}
	return r.local.Save(ctx, KeyPendingRoutes, pending)
}

func (r *Repository) removePendingLocked(ctx context.Context, ids map[string]struct{}) error {
	if len(ids) == 0 {
		return nil
	}
	pending := r.pendingLocked(ctx)
	kept := make([]PendingRoute, 0, len(pending))
	for _, p := range pending {
		if _, ok := ids[p.Route.ID]; !ok {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(pending) {
		return nil
	}
	return r.local.Save(ctx, KeyPendingRoutes, kept)
}

// markPartialLocked помечает записи очереди, у которых строка маршрута уже записана удаленно
func (r *Repository) markPartialLocked(ctx context.Context, ids map[string]struct{}) error {
	if len(ids) == 0 {
		return nil
	}
	pending := r.pendingLocked(ctx)
	changed := false
	for i := range pending {
		if _, ok := ids[pending[i].Route.ID]; ok && pending[i].Reason != PendingPartial {
			pending[i].Reason = PendingPartial
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return r.local.Save(ctx, KeyPendingRoutes, pending)
}

func (r *Repository) dropPendingLocked(ctx context.Context, id string) {
	if err := r.removePendingLocked(ctx, map[string]struct{}{id: {}}); err != nil {
		log.WithField("err", err).Warn("Не удалось убрать маршрут из очереди синхронизации")
	}
}

func (r *Repository) isPendingLocked(ctx context.Context, id string) bool {
	for _, p := range r.pendingLocked(ctx) {
		if p.Route.ID == id {
			return true
		}
	}
	return false
}

func (r *Repository) cachedRoutesLocked(ctx context.Context) []types.Route {
	routes := []types.Route{}
	if err := r.local.Load(ctx, KeyCachedRoutes, &routes); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.WithField("err", err).Error("Не удалось прочитать кэш маршрутов")
		}
		return []types.Route{}
	}
	for i := range routes {
		inUTC(&routes[i])
	}
	return routes
}

func (r *Repository) cachedRoutes(ctx context.Context) []types.Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cachedRoutesLocked(ctx)
}

// mirrorLocked добавляет или заменяет маршрут в кэше списка и в персональном ключе
func (r *Repository) mirrorLocked(ctx context.Context, route types.Route) {
	routes := r.cachedRoutesLocked(ctx)
	replaced := false
	for i := range routes {
		if routes[i].ID == route.ID {
			routes[i] = route
			replaced = true
		}
	}
	if !replaced {
		routes = append(routes, route)
	}
	if err := r.local.Save(ctx, KeyCachedRoutes, routes); err != nil {
		log.WithField("err", err).Error("Не удалось обновить кэш маршрутов")
	}
	if err := r.local.Save(ctx, routeKey(route.ID), route); err != nil {
		log.WithField("err", err).Error("Не удалось закэшировать маршрут")
	}
}

// overwriteCache заменяет кэш удаленным списком, сохраняя маршруты из очереди, которых в нем нет
func (r *Repository) overwriteCache(ctx context.Context, remote []types.Route) []types.Route {
	r.mu.Lock()
	defer r.mu.Unlock()

	merged := make([]types.Route, 0, len(remote))
	present := map[string]struct{}{}
	for _, route := range remote {
		merged = append(merged, route)
		present[route.ID] = struct{}{}
	}
	for _, p := range r.pendingLocked(ctx) {
		if _, ok := present[p.Route.ID]; !ok {
			merged = append(merged, p.Route)
		}
	}
	sortNewestFirst(merged)

	if err := r.local.Save(ctx, KeyCachedRoutes, merged); err != nil {
		log.WithField("err", err).Error("Не удалось обновить кэш маршрутов")
	}
	return merged
}

// cachedRoute ищет маршрут в персональном ключе, затем в кэше списка, затем в очереди
func (r *Repository) cachedRoute(ctx context.Context, id string) *types.Route {
	r.mu.Lock()
	defer r.mu.Unlock()

	var route types.Route
	err := r.local.Load(ctx, routeKey(id), &route)
	if err == nil {
		inUTC(&route)
		return &route
	}
	if !errors.Is(err, storage.ErrNotFound) {
		log.WithField("err", err).Warn("Не удалось прочитать маршрут из кэша")
	}

	for _, cached := range r.cachedRoutesLocked(ctx) {
		if cached.ID == id {
			c := cached
			return &c
		}
	}
	for _, p := range r.pendingLocked(ctx) {
		if p.Route.ID == id {
			c := p.Route
			return &c
		}
	}
	return nil
}

// patchLocalLocked применяет изменение ко всем локальным копиям маршрута и возвращает результат
func (r *Repository) patchLocalLocked(ctx context.Context, id string, patch func(*types.Route)) *types.Route {
	var result *types.Route

	pending := r.pendingLocked(ctx)
	for i := range pending {
		if pending[i].Route.ID == id {
			patch(&pending[i].Route)
			c := pending[i].Route
			result = &c
		}
	}
	if result != nil {
		if err := r.local.Save(ctx, KeyPendingRoutes, pending); err != nil {
			log.WithField("err", err).Error("Не удалось обновить очередь синхронизации")
		}
	}

	routes := r.cachedRoutesLocked(ctx)
	changed := false
	for i := range routes {
		if routes[i].ID == id {
			patch(&routes[i])
			c := routes[i]
			result = &c
			changed = true
		}
	}
	if changed {
		if err := r.local.Save(ctx, KeyCachedRoutes, routes); err != nil {
			log.WithField("err", err).Error("Не удалось обновить кэш маршрутов")
		}
	}

	var single types.Route
	if err := r.local.Load(ctx, routeKey(id), &single); err == nil {
		inUTC(&single)
		patch(&single)
		result = &single
		if err = r.local.Save(ctx, routeKey(id), single); err != nil {
			log.WithField("err", err).Error("Не удалось закэшировать маршрут")
		}
	}
	return result
}

// removeLocalLocked удаляет маршрут из всех локальных ключей и возвращает последнюю известную копию
func (r *Repository) removeLocalLocked(ctx context.Context, id string) *types.Route {
	var removed *types.Route

	pending := r.pendingLocked(ctx)
	for _, p := range pending {
		if p.Route.ID == id {
			c := p.Route
			removed = &c
		}
	}
	if removed != nil {
		if err := r.removePendingLocked(ctx, map[string]struct{}{id: {}}); err != nil {
			log.WithField("err", err).Error("Не удалось обновить очередь синхронизации")
		}
	}

	routes := r.cachedRoutesLocked(ctx)
	kept := make([]types.Route, 0, len(routes))
	for _, route := range routes {
		if route.ID == id {
			c := route
			removed = &c
			continue
		}
		kept = append(kept, route)
	}
	if len(kept) != len(routes) {
		if err := r.local.Save(ctx, KeyCachedRoutes, kept); err != nil {
			log.WithField("err", err).Error("Не удалось обновить кэш маршрутов")
		}
	}

	if err := r.local.Remove(ctx, routeKey(id)); err != nil {
		log.WithField("err", err).Warn("Не удалось удалить маршрут из кэша")
	}
	return removed
}
