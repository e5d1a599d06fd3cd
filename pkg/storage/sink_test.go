package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleRows = []Row{
	{ID: "761743895206227968", Favorites: 12, Replies: 3, Retweets: 4},
	{ID: "A", Favorites: 2, Replies: 0, Retweets: 1},
	{ID: "C", Favorites: 5, Replies: 1, Retweets: 0},
	{ID: "with,comma", Favorites: 0, Replies: 0, Retweets: 0},
}

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func sinksUnderTest(t *testing.T) map[string]func(t *testing.T) Sink {
	return map[string]func(t *testing.T) Sink{
		"csv": func(t *testing.T) Sink {
			return NewCSVSink(filepath.Join(t.TempDir(), "out", "engagement.csv"))
		},
		"json": func(t *testing.T) Sink {
			return NewJSONSink(filepath.Join(t.TempDir(), "engagement.json"))
		},
		"sqlite": func(t *testing.T) Sink {
			s, err := NewSQLiteSink(context.Background(), filepath.Join(t.TempDir(), "engagement.db"), "")
			require.NoError(t, err)
			return s
		},
		"redis": func(t *testing.T) Sink {
			return NewRedisSink(setupTestRedis(t), "engagedl:test")
		},
	}
}

func TestSinkRoundTrip(t *testing.T) {
	for name, open := range sinksUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sink := open(t)
			defer sink.Close()

			require.NoError(t, sink.Save(ctx, sampleRows))
			loaded, err := sink.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, sampleRows, loaded)
		})
	}
}

func TestSinkSaveReplacesContents(t *testing.T) {
	for name, open := range sinksUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sink := open(t)
			defer sink.Close()

			require.NoError(t, sink.Save(ctx, sampleRows))
			require.NoError(t, sink.Save(ctx, sampleRows[:1]))

			loaded, err := sink.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, sampleRows[:1], loaded)

			require.NoError(t, sink.Save(ctx, nil))
			loaded, err = sink.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, loaded)
		})
	}
}

func TestSinkLoadBeforeSave(t *testing.T) {
	for name, open := range sinksUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			sink := open(t)
			defer sink.Close()

			loaded, err := sink.Load(context.Background())
			require.NoError(t, err)
			assert.Empty(t, loaded)
		})
	}
}

func TestFileSinkLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	sink := NewCSVSink(filepath.Join(dir, "engagement.csv"))

	for i := 0; i < 3; i++ {
		require.NoError(t, sink.Save(context.Background(), sampleRows))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "engagement.csv", entries[0].Name())
}

func TestCSVLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engagement.csv")
	sink := NewCSVSink(path)
	require.NoError(t, sink.Save(context.Background(), sampleRows[1:3]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,favorites,replies,retweets\nA,2,0,1\nC,5,1,0\n", string(data))
}

func TestCSVLoadRejectsBadCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engagement.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,favorites,replies,retweets\nA,x,0,1\n"), 0644))

	_, err := NewCSVSink(path).Load(context.Background())
	assert.ErrorContains(t, err, "invalid favorites for A")
}

func TestSaveHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "engagement.json")
	assert.ErrorIs(t, NewJSONSink(path).Save(ctx, sampleRows), context.Canceled)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	tests := []struct {
		dest string
		kind string
	}{
		{filepath.Join(dir, "a.csv"), "csv"},
		{filepath.Join(dir, "a.JSON"), "json"},
		{filepath.Join(dir, "a.db"), "sqlite"},
		{filepath.Join(dir, "a.sqlite3"), "sqlite"},
	}
	for _, tt := range tests {
		sink, err := Open(ctx, tt.dest, Options{SQLiteTable: "results"})
		require.NoError(t, err, tt.dest)
		assert.Equal(t, tt.kind, sink.Kind())
		assert.NoError(t, sink.Close())
	}

	_, err := Open(ctx, filepath.Join(dir, "a.pkl"), Options{})
	assert.ErrorContains(t, err, "unsupported output")

	_, err = Open(ctx, "redis://%zz", Options{})
	assert.Error(t, err)
}

func TestSQLiteRejectsBadTableName(t *testing.T) {
	_, err := NewSQLiteSink(context.Background(), filepath.Join(t.TempDir(), "a.db"), "rows; DROP TABLE x")
	assert.ErrorContains(t, err, "invalid table name")
}
