package route

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/daniil11ru/fieldnav/cli/tracker/broadcast"
	"github.com/daniil11ru/fieldnav/cli/tracker/connectivity"
	"github.com/daniil11ru/fieldnav/cli/tracker/metrics"
	"github.com/daniil11ru/fieldnav/cli/tracker/source"
	"github.com/daniil11ru/fieldnav/cli/tracker/storage"
	"github.com/daniil11ru/fieldnav/cli/tracker/types"
)

var now = time.Now // For mocking time.Now() in tests

var errMissing = errors.New("поле отсутствует")

// Repository сохраняет и читает маршруты, выбирая между удаленным хранилищем
// и локальным кэшем по текущему состоянию сети.
type Repository struct {
	remote  source.TableStore
	local   *storage.Records
	probe   connectivity.Probe
	events  broadcast.Saver
	metrics *metrics.Metrics

	// mu защищает чтение-изменение-запись локальных ключей
	mu sync.Mutex
	// syncMu не дает двум синхронизациям выполняться одновременно
	syncMu sync.Mutex
}

type Option func(*Repository)

// WithEvents события о подтвержденных маршрутах отправляются в saver
func WithEvents(saver broadcast.Saver) Option {
	return func(r *Repository) { r.events = saver }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Repository) { r.metrics = m }
}

func New(remote source.TableStore, local *storage.Records, probe connectivity.Probe, opts ...Option) *Repository {
	r := &Repository{remote: remote, local: local, probe: probe}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SyncReport итог синхронизации очереди
type SyncReport struct {
	Offline        bool `json:"offline"`
	Pending        int  `json:"pending"`
	Pushed         int  `json:"pushed"`
	AlreadyPresent int  `json:"already_present"`
	Failed         int  `json:"failed"`
}

func remoteError(op, table string, err error) error {
	if source.IsConnectivity(err) {
		return &types.ConnectivityError{Err: err}
	}
	return &types.RemoteStoreError{Op: op, Table: table, Err: err}
}

// SaveRoute сохраняет маршрут в удаленное хранилище, если сеть доступна, иначе в очередь.
// Успешное сохранение всегда отражается в локальном кэше.
func (r *Repository) SaveRoute(ctx context.Context, route types.Route) (string, error) {
	if err := route.Validate(); err != nil {
		return "", err
	}

	if r.probe.IsOnline(ctx) {
		id, err := r.saveOnline(ctx, route, broadcast.EventRouteSaved)
		var connErr *types.ConnectivityError
		var partialErr *types.PartialWriteError
		switch {
		case err == nil:
			r.metrics.RouteSaved(metrics.PathOnline)
			r.mu.Lock()
			r.dropPendingLocked(ctx, route.ID)
			r.mirrorLocked(ctx, route)
			r.mu.Unlock()
			return id, nil
		case errors.As(err, &partialErr):
			log.WithFields(log.Fields{"route": route.ID, "err": err}).Warn("Маршрут записан частично, поставлен в очередь на досинхронизацию")
			r.mu.Lock()
			if qErr := r.enqueueLocked(ctx, route, PendingPartial); qErr != nil {
				log.WithField("err", qErr).Error("Не удалось поставить маршрут в очередь")
			}
			r.mirrorLocked(ctx, route)
			r.mu.Unlock()
			return "", err
		case errors.As(err, &connErr):
			log.WithFields(log.Fields{"route": route.ID, "err": err}).Warn("Сеть пропала во время сохранения, маршрут сохраняется офлайн")
		default:
			log.WithFields(log.Fields{"route": route.ID, "err": err}).Error("Не удалось сохранить маршрут")
			return "", err
		}
	}

	id, err := r.SaveRouteOffline(ctx, route)
	if err != nil {
		return "", err
	}
	r.metrics.RouteSaved(metrics.PathOffline)
	return id, nil
}

// SaveRouteOnline пишет строку маршрута и дочерние строки точек и чекпоинтов.
// Уже существующие строки считаются записанными, поэтому повтор безопасен.
func (r *Repository) SaveRouteOnline(ctx context.Context, route types.Route) (string, error) {
	return r.saveOnline(ctx, route, broadcast.EventRouteSaved)
}

func (r *Repository) saveOnline(ctx context.Context, route types.Route, event broadcast.EventType) (string, error) {
	err := r.remote.Insert(ctx, source.TableRoutes, routeToRow(route))
	if err != nil && !errors.Is(err, source.ErrDuplicate) {
		return "", remoteError("insert", source.TableRoutes, err)
	}

	children := []struct {
		table string
		rows  []source.Row
	}{
		{source.TableRoutePoints, pointRows(route)},
		{source.TableCheckpoints, checkpointRows(route)},
	}
	for _, child := range children {
		if err = r.insertTolerant(ctx, child.table, child.rows); err != nil {
			r.metrics.PartialWrite()
			return "", &types.PartialWriteError{RouteID: route.ID, Table: child.table, Err: remoteError("insert", child.table, err)}
		}
	}

	r.publish(event, route)
	log.WithFields(log.Fields{"route": route.ID, "points": len(route.Points)}).Info("Маршрут сохранен в удаленное хранилище")
	return route.ID, nil
}

// insertTolerant при конфликте ключей вставляет строки по одной, пропуская уже существующие
func (r *Repository) insertTolerant(ctx context.Context, table string, rows []source.Row) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.remote.Insert(ctx, table, rows...)
	if err == nil || !errors.Is(err, source.ErrDuplicate) {
		return err
	}

	for _, row := range rows {
		if err = r.remote.Insert(ctx, table, row); err != nil && !errors.Is(err, source.ErrDuplicate) {
			return err
		}
	}
	return nil
}

// SaveRouteOffline ставит маршрут в очередь на синхронизацию
func (r *Repository) SaveRouteOffline(ctx context.Context, route types.Route) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enqueueLocked(ctx, route, PendingOffline); err != nil {
		return "", err
	}
	r.mirrorLocked(ctx, route)
	log.WithField("route", route.ID).Info("Маршрут сохранен офлайн")
	return route.ID, nil
}

// FetchRoutes список маршрутов, новые первыми. При недоступности сети или
// удаленного хранилища возвращается локальный кэш.
func (r *Repository) FetchRoutes(ctx context.Context) ([]types.Route, error) {
	if !r.probe.IsOnline(ctx) {
		return r.cachedRoutes(ctx), nil
	}

	routes, err := r.fetchRemoteRoutes(ctx)
	if err != nil {
		log.WithField("err", err).Warn("Не удалось получить маршруты, используется локальный кэш")
		r.metrics.FetchFallback("fetch_routes")
		return r.cachedRoutes(ctx), nil
	}
	return r.overwriteCache(ctx, routes), nil
}

// Refresh обновление списка, доступное только при наличии сети
func (r *Repository) Refresh(ctx context.Context) ([]types.Route, error) {
	if !r.probe.IsOnline(ctx) {
		return nil, types.ErrOffline
	}
	routes, err := r.fetchRemoteRoutes(ctx)
	if err != nil {
		return nil, err
	}
	return r.overwriteCache(ctx, routes), nil
}

// FetchRouteByID маршрут с точками и чекпоинтами. Любая ошибка удаленного чтения
// или разбора приводит к поиску в локальном кэше.
func (r *Repository) FetchRouteByID(ctx context.Context, id string) (*types.Route, error) {
	if id == "" {
		return nil, &types.ValidationError{Field: "id", Reason: "не задан идентификатор маршрута"}
	}

	if r.probe.IsOnline(ctx) {
		route, err := r.fetchRemoteRoute(ctx, id)
		switch {
		case err != nil:
			log.WithFields(log.Fields{"route": id, "err": err}).Warn("Не удалось получить маршрут, используется локальный кэш")
			r.metrics.FetchFallback("fetch_route")
		case route != nil:
			r.mu.Lock()
			if err = r.local.Save(ctx, routeKey(id), route); err != nil {
				log.WithField("err", err).Warn("Не удалось закэшировать маршрут")
			}
			r.mu.Unlock()
			return route, nil
		}
	}

	route := r.cachedRoute(ctx, id)
	if route == nil {
		return nil, types.ErrRouteNotFound
	}
	return route, nil
}

// SyncOfflineRoutes отправляет маршруты из очереди, которых нет в удаленном хранилище.
// Повторный вызов без новых офлайн-сохранений ничего не меняет.
func (r *Repository) SyncOfflineRoutes(ctx context.Context) (SyncReport, error) {
	r.syncMu.Lock()
	defer r.syncMu.Unlock()

	report := SyncReport{}
	if !r.probe.IsOnline(ctx) {
		report.Offline = true
		return report, nil
	}

	r.mu.Lock()
	pending := r.pendingLocked(ctx)
	r.mu.Unlock()

	report.Pending = len(pending)
	if len(pending) == 0 {
		return report, nil
	}

	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.Route.ID)
	}
	rows, err := r.remote.Select(ctx, source.TableRoutes, source.Query{Where: source.Filter{"id": ids}})
	if err != nil {
		return report, remoteError("select", source.TableRoutes, err)
	}
	present := map[string]struct{}{}
	for _, row := range rows {
		if id, ok := row["id"].(string); ok {
			present[id] = struct{}{}
		} else if b, ok := row["id"].([]byte); ok {
			present[string(b)] = struct{}{}
		}
	}

	synced := map[string]struct{}{}
	partial := map[string]struct{}{}
	for _, p := range pending {
		if _, ok := present[p.Route.ID]; ok && p.Reason != PendingPartial {
			report.AlreadyPresent++
			synced[p.Route.ID] = struct{}{}
			continue
		}

		if _, err = r.saveOnline(ctx, p.Route, broadcast.EventRouteSynced); err != nil {
			report.Failed++
			r.metrics.SyncFailed()
			log.WithFields(log.Fields{"route": p.Route.ID, "err": err}).Error("Не удалось синхронизировать маршрут")
			var partialErr *types.PartialWriteError
			if errors.As(err, &partialErr) {
				partial[p.Route.ID] = struct{}{}
			}
			var connErr *types.ConnectivityError
			if errors.As(err, &connErr) {
				break
			}
			continue
		}
		report.Pushed++
		r.metrics.SyncPushed()
		synced[p.Route.ID] = struct{}{}
	}

	r.mu.Lock()
	if err = r.removePendingLocked(ctx, synced); err != nil {
		log.WithField("err", err).Error("Не удалось обновить очередь синхронизации")
	}
	if err = r.markPartialLocked(ctx, partial); err != nil {
		log.WithField("err", err).Error("Не удалось обновить очередь синхронизации")
	}
	r.mu.Unlock()

	if routes, fetchErr := r.fetchRemoteRoutes(ctx); fetchErr != nil {
		log.WithField("err", fetchErr).Warn("Не удалось обновить кэш после синхронизации")
	} else {
		r.overwriteCache(ctx, routes)
	}

	log.WithFields(log.Fields{
		"pending": report.Pending,
		"pushed":  report.Pushed,
		"present": report.AlreadyPresent,
		"failed":  report.Failed,
	}).Info("Синхронизация офлайн-маршрутов завершена")
	return report, nil
}

// RenameRoute меняет название. Без сети можно переименовать только еще не синхронизированный маршрут.
func (r *Repository) RenameRoute(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &types.ValidationError{Field: "name", Reason: "не задано название маршрута"}
	}
	rename := func(route *types.Route) {
		route.Name = name
		route.UpdatedAt = now().UTC()
	}

	if !r.probe.IsOnline(ctx) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if !r.isPendingLocked(ctx, id) {
			return types.ErrOffline
		}
		r.patchLocalLocked(ctx, id, rename)
		return nil
	}

	n, err := r.remote.Update(ctx, source.TableRoutes, source.Row{"name": name, "updated_at": now().UTC()}, source.Filter{"id": id})
	if err != nil {
		return remoteError("update", source.TableRoutes, err)
	}

	r.mu.Lock()
	pending := r.isPendingLocked(ctx, id)
	route := r.patchLocalLocked(ctx, id, rename)
	r.mu.Unlock()

	if n == 0 && !pending {
		return types.ErrRouteNotFound
	}
	if n > 0 {
		if route == nil {
			route = &types.Route{ID: id, Name: name}
		}
		r.publish(broadcast.EventRouteRenamed, *route)
	}
	return nil
}

// DeleteRoute удаляет маршрут из удаленного хранилища и всех локальных ключей.
// При ошибке удаленного хранилища локальное состояние не меняется.
func (r *Repository) DeleteRoute(ctx context.Context, id string) error {
	if !r.probe.IsOnline(ctx) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if !r.isPendingLocked(ctx, id) {
			return types.ErrOffline
		}
		r.removeLocalLocked(ctx, id)
		return nil
	}

	var deleted int64
	for _, step := range []struct {
		table string
		where source.Filter
	}{
		{source.TableRoutePoints, source.Filter{"route_id": id}},
		{source.TableCheckpoints, source.Filter{"route_id": id}},
		{source.TableRoutes, source.Filter{"id": id}},
	} {
		n, err := r.remote.Delete(ctx, step.table, step.where)
		if err != nil {
			return remoteError("delete", step.table, err)
		}
		if step.table == source.TableRoutes {
			deleted = n
		}
	}

	r.mu.Lock()
	removed := r.removeLocalLocked(ctx, id)
	r.mu.Unlock()

	if deleted == 0 && removed == nil {
		return types.ErrRouteNotFound
	}
	route := types.Route{ID: id}
	if removed != nil {
		route = *removed
	}
	r.publish(broadcast.EventRouteDeleted, route)
	return nil
}

func (r *Repository) publish(event broadcast.EventType, route types.Route) {
	if r.events == nil {
		return
	}
	if err := r.events.Save(broadcast.NewRouteEvent(event, route)); err != nil {
		log.WithFields(log.Fields{"event": event, "err": err}).Warn("Не удалось отправить событие о маршруте")
	}
}

func (r *Repository) fetchRemoteRoute(ctx context.Context, id string) (*types.Route, error) {
	rows, err := r.remote.Select(ctx, source.TableRoutes, source.Query{Where: source.Filter{"id": id}, Limit: 1})
	if err != nil {
		return nil, remoteError("select", source.TableRoutes, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	routes, err := r.assemble(ctx, rows, false)
	if err != nil {
		return nil, err
	}
	return &routes[0], nil
}

func (r *Repository) fetchRemoteRoutes(ctx context.Context) ([]types.Route, error) {
	rows, err := r.remote.Select(ctx, source.TableRoutes, source.Query{OrderBy: []string{"created_at DESC"}})
	if err != nil {
		return nil, remoteError("select", source.TableRoutes, err)
	}
	if len(rows) == 0 {
		return []types.Route{}, nil
	}
	return r.assemble(ctx, rows, true)
}

// assemble собирает маршруты из строк routes и их дочерних таблиц.
// В режиме списка битые строки пропускаются, для одиночного маршрута это ошибка.
func (r *Repository) assemble(ctx context.Context, rows []source.Row, list bool) ([]types.Route, error) {
	routes := make([]types.Route, 0, len(rows))
	index := map[string]int{}
	for _, row := range rows {
		route, err := rowToRoute(row)
		if err != nil {
			if !list {
				return nil, err
			}
			log.WithField("err", err).Warn("Пропущена некорректная строка маршрута")
			continue
		}
		index[route.ID] = len(routes)
		routes = append(routes, route)
	}

	ids := make([]string, 0, len(routes))
	for _, route := range routes {
		ids = append(ids, route.ID)
	}
	var where source.Filter
	if list {
		where = source.Filter{"route_id": ids}
	} else {
		where = source.Filter{"route_id": ids[0]}
	}

	pointRowsOut, err := r.remote.Select(ctx, source.TableRoutePoints, source.Query{Where: where, OrderBy: []string{"timestamp ASC", "id ASC"}})
	if err != nil {
		return nil, remoteError("select", source.TableRoutePoints, err)
	}
	for _, row := range pointRowsOut {
		routeID, point, err := rowToPoint(row)
		if err != nil {
			if !list {
				return nil, err
			}
			log.WithField("err", err).Warn("Пропущена некорректная точка маршрута")
			continue
		}
		if i, ok := index[routeID]; ok {
			routes[i].Points = append(routes[i].Points, point)
		}
	}

	checkpointRowsOut, err := r.remote.Select(ctx, source.TableCheckpoints, source.Query{Where: where, OrderBy: []string{"timestamp ASC", "id ASC"}})
	if err != nil {
		return nil, remoteError("select", source.TableCheckpoints, err)
	}
	for _, row := range checkpointRowsOut {
		routeID, checkpoint, err := rowToCheckpoint(row)
		if err != nil {
			if !list {
				return nil, err
			}
			log.WithField("err", err).Warn("Пропущен некорректный чекпоинт")
			continue
		}
		if i, ok := index[routeID]; ok {
			routes[i].Checkpoints = append(routes[i].Checkpoints, checkpoint)
		}
	}

	if list {
		r.attachAuthors(ctx, routes)
	}
	return routes, nil
}

// attachAuthors дополняет маршруты данными пользователей. Ошибки не критичны.
func (r *Repository) attachAuthors(ctx context.Context, routes []types.Route) {
	set := map[string]struct{}{}
	var userIDs []string
	for _, route := range routes {
		if route.CreatedBy == "" {
			continue
		}
		if _, ok := set[route.CreatedBy]; !ok {
			set[route.CreatedBy] = struct{}{}
			userIDs = append(userIDs, route.CreatedBy)
		}
	}
	if len(userIDs) == 0 {
		return
	}

	rows, err := r.remote.Select(ctx, source.TableUsers, source.Query{Where: source.Filter{"id": userIDs}})
	if err != nil {
		log.WithField("err", err).Warn("Не удалось получить авторов маршрутов")
		return
	}
	authors := map[string]types.Author{}
	for _, row := range rows {
		author, err := rowToAuthor(row)
		if err != nil {
			log.WithField("err", err).Warn("Пропущена некорректная строка пользователя")
			continue
		}
		authors[author.ID] = author
	}
	for i := range routes {
		if author, ok := authors[routes[i].CreatedBy]; ok {
			a := author
			routes[i].Author = &a
		}
	}
}

func sortNewestFirst(routes []types.Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].CreatedAt.After(routes[j].CreatedAt)
	})
}
