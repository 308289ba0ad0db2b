package route

import (
	"context"
	"errors"
	"fmt"
	"io/ioutil"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daniil11ru/fieldnav/cli/tracker/broadcast"
	"github.com/daniil11ru/fieldnav/cli/tracker/connectivity"
	"github.com/daniil11ru/fieldnav/cli/tracker/source"
	"github.com/daniil11ru/fieldnav/cli/tracker/source/memory"
	"github.com/daniil11ru/fieldnav/cli/tracker/storage"
	"github.com/daniil11ru/fieldnav/cli/tracker/types"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []broadcast.RouteEvent
}

func (e *eventRecorder) Save(m interface{ ToBytes() ([]byte, error) }) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ev, ok := m.(broadcast.RouteEvent); ok {
		e.events = append(e.events, ev)
	}
	return nil
}

func (e *eventRecorder) kinds() []broadcast.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	var result []broadcast.EventType
	for _, ev := range e.events {
		result = append(result, ev.Type)
	}
	return result
}

type fixture struct {
	remote *memory.Store
	local  *storage.Records
	probe  *connectivity.Static
	events *eventRecorder
	repo   *Repository
}

func newFixture(t *testing.T, online bool) *fixture {
	log.SetOutput(ioutil.Discard)

	kv, err := storage.LoadStore("memory", nil)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	f := &fixture{
		remote: memory.New(),
		local:  storage.NewRecords(kv, storage.JSONCodec{}),
		probe:  connectivity.NewStatic(online),
		events: &eventRecorder{},
	}
	f.repo = New(f.remote, f.local, f.probe, WithEvents(f.events))
	return f
}

func sampleRoute(id string, createdAt time.Time) types.Route {
	ts := createdAt.UnixMilli()
	acc := 4.0
	return types.Route{
		ID:        id,
		Name:      "Route " + id,
		CreatedBy: "u1",
		UserID:    "u1",
		Points: []types.RoutePoint{
			{ID: id + "-p1", Timestamp: ts, Location: types.Location{Latitude: 55.0, Longitude: 37.0, Accuracy: &acc, Timestamp: ts}},
			{ID: id + "-p2", Timestamp: ts + 2000, Location: types.Location{Latitude: 55.0001, Longitude: 37.0, Timestamp: ts + 2000}},
			{ID: id + "-p3", Timestamp: ts + 4000, Location: types.Location{Latitude: 55.0002, Longitude: 37.0, Timestamp: ts + 4000}},
		},
		Checkpoints: []types.Checkpoint{
			{ID: id + "-c1", Location: types.Location{Latitude: 55.0001, Longitude: 37.0, Timestamp: ts + 2000}},
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

var t0 = time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)

func TestSaveRouteOnlineThenFetchRoutes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	r := sampleRoute("r1", t0)

	id, err := f.repo.SaveRoute(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, "r1", id)

	assert.Len(t, f.remote.Rows(source.TableRoutes), 1)
	assert.Len(t, f.remote.Rows(source.TableRoutePoints), 3)
	assert.Len(t, f.remote.Rows(source.TableCheckpoints), 1)
	assert.Empty(t, f.repo.Pending(ctx))

	routes, err := f.repo.FetchRoutes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, r.ID, routes[0].ID)
	assert.Equal(t, r.Name, routes[0].Name)
	assert.Equal(t, r.Points, routes[0].Points)
	assert.Equal(t, r.Checkpoints, routes[0].Checkpoints)
	assert.True(t, r.CreatedAt.Equal(routes[0].CreatedAt))

	assert.Equal(t, []broadcast.EventType{broadcast.EventRouteSaved}, f.events.kinds())
}

func TestSaveRouteOfflineThenFetchByID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	r := sampleRoute("r1", t0)

	id, err := f.repo.SaveRoute(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, "r1", id)
	assert.Empty(t, f.remote.Rows(source.TableRoutes))

	got, err := f.repo.FetchRouteByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, r, *got)

	pending := f.repo.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, PendingOffline, pending[0].Reason)

	routes, err := f.repo.FetchRoutes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "r1", routes[0].ID)
	assert.Empty(t, f.events.kinds())
}

func TestSaveRouteValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	tests := []struct {
		name  string
		edit  func(r *types.Route)
		field string
	}{
		{"no points", func(r *types.Route) { r.Points = nil }, "points"},
		{"blank name", func(r *types.Route) { r.Name = " " }, "name"},
		{"no user", func(r *types.Route) { r.UserID = "" }, "user_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := sampleRoute("r1", t0)
			tt.edit(&r)
			_, err := f.repo.SaveRoute(ctx, r)
			var vErr *types.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
	assert.Empty(t, f.remote.Rows(source.TableRoutes))
	assert.Empty(t, f.repo.Pending(ctx))
}

func TestSaveRouteFallsBackOfflineOnConnectivityError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.remote.FailNext(memory.OpInsert, source.TableRoutes, fmt.Errorf("dial: %w", source.ErrUnavailable), 1)

	id, err := f.repo.SaveRoute(ctx, sampleRoute("r1", t0))
	require.NoError(t, err)
	assert.Equal(t, "r1", id)

	pending := f.repo.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, PendingOffline, pending[0].Reason)
}

func TestSaveRouteRemoteErrorPropagates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.remote.FailNext(memory.OpInsert, source.TableRoutes, errors.New("permission denied for table routes"), 1)

	_, err := f.repo.SaveRoute(ctx, sampleRoute("r1", t0))
	var remoteErr *types.RemoteStoreError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, source.TableRoutes, remoteErr.Table)
	assert.Empty(t, f.repo.Pending(ctx))
}

func TestSaveRoutePartialWriteIsRetriedBySync(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.remote.FailNext(memory.OpInsert, source.TableRoutePoints, errors.New("check constraint violated"), 1)

	_, err := f.repo.SaveRoute(ctx, sampleRoute("r1", t0))
	var partialErr *types.PartialWriteError
	require.True(t, errors.As(err, &partialErr))
	assert.Equal(t, "r1", partialErr.RouteID)
	assert.Equal(t, source.TableRoutePoints, partialErr.Table)

	assert.Len(t, f.remote.Rows(source.TableRoutes), 1)
	assert.Empty(t, f.remote.Rows(source.TableRoutePoints))
	pending := f.repo.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, PendingPartial, pending[0].Reason)

	report, err := f.repo.SyncOfflineRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pushed)
	assert.Len(t, f.remote.Rows(source.TableRoutes), 1)
	assert.Len(t, f.remote.Rows(source.TableRoutePoints), 3)
	assert.Len(t, f.remote.Rows(source.TableCheckpoints), 1)
	assert.Empty(t, f.repo.Pending(ctx))
}

func TestSaveRouteOnlineIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	r := sampleRoute("r1", t0)

	_, err := f.repo.SaveRouteOnline(ctx, r)
	require.NoError(t, err)
	_, err = f.repo.SaveRouteOnline(ctx, r)
	require.NoError(t, err)

	assert.Len(t, f.remote.Rows(source.TableRoutes), 1)
	assert.Len(t, f.remote.Rows(source.TableRoutePoints), 3)
	assert.Len(t, f.remote.Rows(source.TableCheckpoints), 1)
}

func TestSyncOfflineRoutes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	_, err := f.repo.SaveRoute(ctx, sampleRoute("r1", t0))
	require.NoError(t, err)

	report, err := f.repo.SyncOfflineRoutes(ctx)
	require.NoError(t, err)
	assert.True(t, report.Offline)
	assert.Len(t, f.repo.Pending(ctx), 1)

	f.probe.Set(true)
	report, err = f.repo.SyncOfflineRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Pending: 1, Pushed: 1}, report)
	assert.Len(t, f.remote.Rows(source.TableRoutes), 1)
	assert.Empty(t, f.repo.Pending(ctx))

	report, err = f.repo.SyncOfflineRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{}, report)
	assert.Len(t, f.remote.Rows(source.TableRoutes), 1)
	assert.Len(t, f.remote.Rows(source.TableRoutePoints), 3)

	f.probe.Set(false)
	routes, err := f.repo.FetchRoutes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "r1", routes[0].ID)

	assert.Equal(t, []broadcast.EventType{broadcast.EventRouteSynced}, f.events.kinds())
}

func TestSyncSkipsRoutesAlreadyPresent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	r := sampleRoute("r1", t0)

	_, err := f.repo.SaveRoute(ctx, r)
	require.NoError(t, err)
	_, err = f.repo.SaveRouteOffline(ctx, r)
	require.NoError(t, err)
	_, err = f.repo.SaveRouteOffline(ctx, sampleRoute("r2", t0.Add(time.Hour)))
	require.NoError(t, err)

	report, err := f.repo.SyncOfflineRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Pending: 2, Pushed: 1, AlreadyPresent: 1}, report)
	assert.Len(t, f.remote.Rows(source.TableRoutes), 2)
	assert.Len(t, f.remote.Rows(source.TableRoutePoints), 6)
	assert.Empty(t, f.repo.Pending(ctx))
}

func TestSyncKeepsFailedRoutesQueued(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	_, err := f.repo.SaveRoute(ctx, sampleRoute("r1", t0))
	require.NoError(t, err)
	_, err = f.repo.SaveRoute(ctx, sampleRoute("r2", t0.Add(time.Minute)))
	require.NoError(t, err)

	f.probe.Set(true)
	f.remote.FailNext(memory.OpInsert, source.TableRoutes, errors.New("value too long"), 1)

	report, err := f.repo.SyncOfflineRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Pushed)

	pending := f.repo.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, "r1", pending[0].Route.ID)

	report, err = f.repo.SyncOfflineRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pushed)
	assert.Empty(t, f.repo.Pending(ctx))
}

func TestSyncRetriesChildRowsAfterPartialPush(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	_, err := f.repo.SaveRoute(ctx, sampleRoute("r1", t0))
	require.NoError(t, err)

	f.probe.Set(true)
	f.remote.FailNext(memory.OpInsert, source.TableRoutePoints, errors.New("check constraint violated"), 1)

	report, err := f.repo.SyncOfflineRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Pending: 1, Failed: 1}, report)
	assert.Len(t, f.remote.Rows(source.TableRoutes), 1)
	pending := f.repo.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, PendingPartial, pending[0].Reason)

	report, err = f.repo.SyncOfflineRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Pending: 1, Pushed: 1}, report)
	assert.Empty(t, f.repo.Pending(ctx))
	assert.Len(t, f.remote.Rows(source.TableRoutes), 1)
	assert.Len(t, f.remote.Rows(source.TableRoutePoints), 3)
	assert.Len(t, f.remote.Rows(source.TableCheckpoints), 1)

	route, err := f.repo.FetchRouteByID(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, route.Points, 3)
}

func TestSyncStopsOnConnectivityLoss(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	_, err := f.repo.SaveRoute(ctx, sampleRoute("r1", t0))
	require.NoError(t, err)
	_, err = f.repo.SaveRoute(ctx, sampleRoute("r2", t0.Add(time.Minute)))
	require.NoError(t, err)

	f.probe.Set(true)
	f.remote.FailNext(memory.OpInsert, source.TableRoutes, fmt.Errorf("insert: %w", source.ErrUnavailable), 1)

	report, err := f.repo.SyncOfflineRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Pending: 2, Failed: 1}, report)
	assert.Empty(t, f.remote.Rows(source.TableRoutes))
	assert.Len(t, f.repo.Pending(ctx), 2)

	report, err = f.repo.SyncOfflineRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Pending: 2, Pushed: 2}, report)
	assert.Empty(t, f.repo.Pending(ctx))
}

func TestSyncConnectivityLossAfterParentRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	_, err := f.repo.SaveRoute(ctx, sampleRoute("r1", t0))
	require.NoError(t, err)
	_, err = f.repo.SaveRoute(ctx, sampleRoute("r2", t0.Add(time.Minute)))
	require.NoError(t, err)

	f.probe.Set(true)
	f.remote.FailNext(memory.OpInsert, source.TableRoutePoints, fmt.Errorf("insert: %w", source.ErrUnavailable), 1)

	report, err := f.repo.SyncOfflineRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Pending: 2, Failed: 1}, report)

	reasons := map[string]PendingReason{}
	for _, p := range f.repo.Pending(ctx) {
		reasons[p.Route.ID] = p.Reason
	}
	assert.Equal(t, map[string]PendingReason{"r1": PendingPartial, "r2": PendingOffline}, reasons)

	report, err = f.repo.SyncOfflineRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Pending: 2, Pushed: 2}, report)
	assert.Len(t, f.remote.Rows(source.TableRoutePoints), 6)
	assert.Len(t, f.remote.Rows(source.TableCheckpoints), 2)
}

func TestSyncRemoteUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	_, err := f.repo.SaveRoute(ctx, sampleRoute("r1", t0))
	require.NoError(t, err)

	f.probe.Set(true)
	f.remote.FailNext(memory.OpSelect, source.TableRoutes, fmt.Errorf("select: %w", source.ErrUnavailable), 1)

	_, err = f.repo.SyncOfflineRoutes(ctx)
	var connErr *types.ConnectivityError
	assert.True(t, errors.As(err, &connErr))
	assert.Len(t, f.repo.Pending(ctx), 1)
}

func TestFetchRoutesOrderAndAuthors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	require.NoError(t, f.remote.Insert(ctx, source.TableUsers, source.Row{"id": "u1", "username": "ranger", "email": "ranger@example.com"}))

	_, err := f.repo.SaveRoute(ctx, sampleRoute("old", t0))
	require.NoError(t, err)
	_, err = f.repo.SaveRoute(ctx, sampleRoute("new", t0.Add(24*time.Hour)))
	require.NoError(t, err)

	routes, err := f.repo.FetchRoutes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "new", routes[0].ID)
	assert.Equal(t, "old", routes[1].ID)
	require.NotNil(t, routes[0].Author)
	assert.Equal(t, "ranger", routes[0].Author.Username)
	assert.Len(t, routes[1].Points, 3)
}

func TestFetchRoutesMergesPendingIntoCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	_, err := f.repo.SaveRoute(ctx, sampleRoute("remote", t0))
	require.NoError(t, err)
	_, err = f.repo.SaveRouteOffline(ctx, sampleRoute("local", t0.Add(time.Hour)))
	require.NoError(t, err)

	routes, err := f.repo.FetchRoutes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "local", routes[0].ID)

	f.probe.Set(false)
	cached, err := f.repo.FetchRoutes(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}

func TestFetchRoutesFallsBackToCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	_, err := f.repo.SaveRoute(ctx, sampleRoute("r1", t0))
	require.NoError(t, err)

	f.remote.FailNext(memory.OpSelect, source.TableRoutes, errors.New("relation does not exist"), 1)
	routes, err := f.repo.FetchRoutes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "r1", routes[0].ID)
}

func TestFetchRoutesEmptyCache(t *testing.T) {
	f := newFixture(t, false)
	routes, err := f.repo.FetchRoutes(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, routes)
	assert.Empty(t, routes)
}

func TestFetchRouteByID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	r := sampleRoute("r1", t0)
	_, err := f.repo.SaveRoute(ctx, r)
	require.NoError(t, err)

	got, err := f.repo.FetchRouteByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, r.Points, got.Points)
	assert.Equal(t, r.Checkpoints, got.Checkpoints)

	_, err = f.repo.FetchRouteByID(ctx, "missing")
	assert.Equal(t, types.ErrRouteNotFound, err)

	_, err = f.repo.FetchRouteByID(ctx, "")
	var vErr *types.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestFetchRouteByIDFallsBackOnReshapeError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	r := sampleRoute("r1", t0)
	_, err := f.repo.SaveRoute(ctx, r)
	require.NoError(t, err)

	_, err = f.remote.Update(ctx, source.TableRoutePoints, source.Row{"latitude": "north"}, source.Filter{"id": "r1-p2"})
	require.NoError(t, err)

	got, err := f.repo.FetchRouteByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 55.0001, got.Points[1].Location.Latitude)
}

func TestFetchRouteByIDFallsBackOnRemoteError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	_, err := f.repo.SaveRoute(ctx, sampleRoute("r1", t0))
	require.NoError(t, err)

	f.remote.FailNext(memory.OpSelect, source.TableCheckpoints, errors.New("timeout"), 1)
	got, err := f.repo.FetchRouteByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
}

func TestRenameRoute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	_, err := f.repo.SaveRoute(ctx, sampleRoute("r1", t0))
	require.NoError(t, err)

	require.NoError(t, f.repo.RenameRoute(ctx, "r1", "  Summit loop "))
	assert.Equal(t, "Summit loop", f.remote.Rows(source.TableRoutes)[0]["name"])

	f.probe.Set(false)
	got, err := f.repo.FetchRouteByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Summit loop", got.Name)

	assert.Equal(t, types.ErrOffline, f.repo.RenameRoute(ctx, "r1", "Offline name"))

	_, err = f.repo.SaveRoute(ctx, sampleRoute("r2", t0))
	require.NoError(t, err)
	require.NoError(t, f.repo.RenameRoute(ctx, "r2", "Queued name"))
	assert.Equal(t, "Queued name", f.repo.Pending(ctx)[0].Route.Name)

	var vErr *types.ValidationError
	assert.True(t, errors.As(f.repo.RenameRoute(ctx, "r2", ""), &vErr))

	f.probe.Set(true)
	assert.Equal(t, types.ErrRouteNotFound, f.repo.RenameRoute(ctx, "missing", "x"))
	assert.Contains(t, f.events.kinds(), broadcast.EventRouteRenamed)
}

func TestDeleteRoute(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	_, err := f.repo.SaveRoute(ctx, sampleRoute("r1", t0))
	require.NoError(t, err)

	f.remote.FailNext(memory.OpDelete, source.TableRoutes, errors.New("foreign key violation"), 1)
	err = f.repo.DeleteRoute(ctx, "r1")
	var remoteErr *types.RemoteStoreError
	require.True(t, errors.As(err, &remoteErr))
	f.probe.Set(false)
	_, err = f.repo.FetchRouteByID(ctx, "r1")
	assert.NoError(t, err, "local copy survives a failed remote delete")

	f.probe.Set(true)
	require.NoError(t, f.repo.DeleteRoute(ctx, "r1"))
	assert.Empty(t, f.remote.Rows(source.TableRoutes))
	assert.Empty(t, f.remote.Rows(source.TableRoutePoints))
	assert.Empty(t, f.remote.Rows(source.TableCheckpoints))

	f.probe.Set(false)
	_, err = f.repo.FetchRouteByID(ctx, "r1")
	assert.Equal(t, types.ErrRouteNotFound, err)

	f.probe.Set(true)
	assert.Equal(t, types.ErrRouteNotFound, f.repo.DeleteRoute(ctx, "r1"))
	assert.Contains(t, f.events.kinds(), broadcast.EventRouteDeleted)
}

func TestDeleteRouteOffline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	_, err := f.repo.SaveRoute(ctx, sampleRoute("r1", t0))
	require.NoError(t, err)

	require.NoError(t, f.repo.DeleteRoute(ctx, "r1"))
	assert.Empty(t, f.repo.Pending(ctx))
	routes, err := f.repo.FetchRoutes(ctx)
	require.NoError(t, err)
	assert.Empty(t, routes)

	assert.Equal(t, types.ErrOffline, f.repo.DeleteRoute(ctx, "r-remote"))
}

func TestRefreshRequiresNetwork(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.repo.Refresh(context.Background())
	assert.Equal(t, types.ErrOffline, err)

	f.probe.Set(true)
	routes, err := f.repo.Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestConcurrentOfflineSaves(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.repo.SaveRoute(ctx, sampleRoute(fmt.Sprintf("r%d", i), t0.Add(time.Duration(i)*time.Minute)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, f.repo.Pending(ctx), 20)
	routes, err := f.repo.FetchRoutes(ctx)
	require.NoError(t, err)
	assert.Len(t, routes, 20)
}

func TestMsgpackCacheKeepsUTC(t *testing.T) {
	ctx := context.Background()
	log.SetOutput(ioutil.Discard)

	local := time.Local
	time.Local = time.FixedZone("UTC+3", 3*60*60)
	t.Cleanup(func() { time.Local = local })

	kv, err := storage.LoadStore("memory", nil)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	repo := New(memory.New(), storage.NewRecords(kv, storage.MsgpackCodec{}), connectivity.NewStatic(false))

	_, err = repo.SaveRoute(ctx, sampleRoute("r1", t0))
	require.NoError(t, err)

	routes, err := repo.FetchRoutes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, time.UTC, routes[0].CreatedAt.Location())
	assert.Equal(t, time.UTC, routes[0].UpdatedAt.Location())
	assert.True(t, t0.Equal(routes[0].CreatedAt))

	route, err := repo.FetchRouteByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, route.CreatedAt.Location())

	pending := repo.Pending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, time.UTC, pending[0].Route.CreatedAt.Location())
	assert.Equal(t, time.UTC, pending[0].QueuedAt.Location())
}
