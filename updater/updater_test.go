package updater

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rowfilter/config"
	"rowfilter/engine"
	"rowfilter/source"
)

func TestNewUpdaterInterval(t *testing.T) {
	u := NewUpdater(&config.Config{URLInterval: time.Second}, nil, nil)
	assert.Equal(t, MinInterval, u.Interval)

	u = NewUpdater(&config.Config{}, nil, nil)
	assert.Equal(t, config.DefaultURLInterval, u.Interval)

	u = NewUpdater(&config.Config{URLInterval: 2 * time.Hour}, nil, nil)
	assert.Equal(t, 2*time.Hour, u.Interval)
}

func TestRunSimpleWithoutRemoteTables(t *testing.T) {
	cfg := &config.Config{Tables: []config.Table{{Name: "local", Path: "x.csv"}}}
	u := NewUpdater(cfg, engine.NewEngine(cfg), source.NewLoader(t.TempDir()))

	assert.False(t, u.RunSimple())
	u.Stop()
}

func TestRunSimpleReloads(t *testing.T) {
	var version atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "name\nv%d\n", version.Add(1))
	}))
	defer srv.Close()

	cfg := &config.Config{Tables: []config.Table{{Name: "remote", URL: srv.URL, Separator: ","}}}
	eng := engine.NewEngine(cfg)
	loader := source.NewLoader(t.TempDir())
	loader.MaxAge = time.Nanosecond

	require.NoError(t, eng.ReloadTables(context.Background(), loader))
	first, ok := eng.Table("remote")
	require.True(t, ok)
	assert.Equal(t, [][]string{{"v1"}}, first.Rows)

	u := NewUpdater(cfg, eng, loader)
	u.Interval = 10 * time.Millisecond
	reloaded := make(chan error, 8)
	u.OnReload = func(err error) {
		select {
		case reloaded <- err:
		default:
		}
	}
	require.True(t, u.RunSimple())
	defer u.Stop()

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("updater did not reload")
	}

	next, ok := eng.Table("remote")
	require.True(t, ok)
	assert.NotEqual(t, first.Rows, next.Rows)
}

func TestStopIsIdempotent(t *testing.T) {
	cfg := &config.Config{Tables: []config.Table{{Name: "remote", URL: "http://127.0.0.1:1/none", Separator: ","}}}
	u := NewUpdater(cfg, engine.NewEngine(cfg), source.NewLoader(t.TempDir()))
	require.True(t, u.RunSimple())

	u.Stop()
	u.Stop()
}

func TestStopWithoutRun(t *testing.T) {
	cfg := &config.Config{Tables: []config.Table{{Name: "remote", URL: "http://127.0.0.1:1/none", Separator: ","}}}
	u := NewUpdater(cfg, engine.NewEngine(cfg), source.NewLoader(t.TempDir()))

	stopped := make(chan struct{})
	go func() {
		u.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked without RunSimple")
	}
}

func TestRunSimpleOnce(t *testing.T) {
	cfg := &config.Config{Tables: []config.Table{{Name: "remote", URL: "http://127.0.0.1:1/none", Separator: ","}}}
	u := NewUpdater(cfg, engine.NewEngine(cfg), source.NewLoader(t.TempDir()))

	require.True(t, u.RunSimple())
	assert.False(t, u.RunSimple())
	u.Stop()
}
