package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID        string
	Name      string
	Points    []float64
	Accuracy  *float64
	CreatedAt time.Time
}

func openStores(t *testing.T) map[string]Store {
	stores := map[string]Store{}

	mem, err := LoadStore("memory", nil)
	require.NoError(t, err)
	stores["memory"] = mem

	lite, err := LoadStore("sqlite", map[string]string{"path": filepath.Join(t.TempDir(), "kv", "tracker.db")})
	require.NoError(t, err)
	stores["sqlite"] = lite

	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStoreGetSetRemove(t *testing.T) {
	ctx := context.Background()

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Get(ctx, "offlineRoutes")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, "offlineRoutes", "[]"))
			require.NoError(t, store.Set(ctx, "offlineRoutes", `[{"id":"r1"}]`))

			v, ok, err := store.Get(ctx, "offlineRoutes")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `[{"id":"r1"}]`, v)

			require.NoError(t, store.Remove(ctx, "offlineRoutes"))
			_, ok, err = store.Get(ctx, "offlineRoutes")
			require.NoError(t, err)
			assert.False(t, ok)

			// removing a missing key is not an error
			assert.NoError(t, store.Remove(ctx, "route_missing"))
		})
	}
}

func TestLoadStoreUnknown(t *testing.T) {
	_, err := LoadStore("leveldb", nil)
	assert.Equal(t, ErrUnknownStorage, err)
}

func TestRecordsCodecs(t *testing.T) {
	ctx := context.Background()
	acc := 4.5
	in := record{
		ID:        "r1",
		Name:      "Ridge",
		Points:    []float64{55.1, 37.2},
		Accuracy:  &acc,
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	for _, codecName := range []string{"json", "msgpack"} {
		t.Run(codecName, func(t *testing.T) {
			mem, err := LoadStore("memory", nil)
			require.NoError(t, err)
			codec, err := NewCodec(codecName)
			require.NoError(t, err)
			records := NewRecords(mem, codec)

			var out record
			assert.Equal(t, ErrNotFound, records.Load(ctx, "route_r1", &out))

			require.NoError(t, records.Save(ctx, "route_r1", in))
			require.NoError(t, records.Load(ctx, "route_r1", &out))
			assert.Equal(t, in.ID, out.ID)
			assert.Equal(t, in.Points, out.Points)
			require.NotNil(t, out.Accuracy)
			assert.Equal(t, acc, *out.Accuracy)
			assert.True(t, in.CreatedAt.Equal(out.CreatedAt))

			require.NoError(t, records.Remove(ctx, "route_r1"))
			assert.Equal(t, ErrNotFound, records.Load(ctx, "route_r1", &out))
		})
	}
}

func TestRecordsCorruptedValue(t *testing.T) {
	ctx := context.Background()
	mem, err := LoadStore("memory", nil)
	require.NoError(t, err)
	require.NoError(t, mem.Set(ctx, "offlineRoutes", "{not json"))

	var out []record
	err = NewRecords(mem, nil).Load(ctx, "offlineRoutes", &out)
	assert.Error(t, err)
	assert.NotEqual(t, ErrNotFound, err)
}

func TestNewCodecUnknown(t *testing.T) {
	_, err := NewCodec("xml")
	assert.Error(t, err)
}
