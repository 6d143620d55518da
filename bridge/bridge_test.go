package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/sthembisoo/reportit/bridge"
	"github.com/sthembisoo/reportit/config"
	"github.com/sthembisoo/reportit/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport(id, scope string) *report.Report {
	return &report.Report{
		ID:               id,
		Timestamp:        "2026-10-19T10:00:00.000000Z",
		ExceptionType:    "runtime.errorString",
		ExceptionMessage: "runtime error: integer divide by zero",
		Traceback:        "main.divide\n\t/src/main.go:10\n",
		ThreadInfo:       report.Thread{Name: "worker-1", ID: 7},
		Scope:            scope,
	}
}

func TestFileBridge_AppendsText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "exceptions.log")
	b := bridge.NewFileBridge(path)

	require.NoError(t, b.Send(context.Background(), sampleReport("a", "worker")))
	require.NoError(t, b.Send(context.Background(), sampleReport("b", "")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	assert.Equal(t, 2, strings.Count(text, "Exception Report - "))
	assert.Contains(t, text, "Scope: worker")
	assert.Contains(t, text, "Message: runtime error: integer divide by zero")
}

func TestFileBridge_ConcurrentSends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exceptions.log")
	b := bridge.NewFileBridge(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, b.Send(context.Background(), sampleReport("x", "")))
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 20, strings.Count(string(data), "Exception Report - "))
}

func TestFileBridge_UnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	b := bridge.NewFileBridge(filepath.Join(blocker, "exceptions.log"))
	err := b.Send(context.Background(), sampleReport("a", ""))

	var de *bridge.DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "file", de.Bridge)
}

func TestHTTPBridge_PostsJSON(t *testing.T) {
	var (
		mu       sync.Mutex
		received []report.Report
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var rep report.Report
		require.NoError(t, json.Unmarshal(body, &rep))

		mu.Lock()
		received = append(received, rep)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	b := bridge.NewHTTPBridge(srv.URL+"/exception", time.Second)
	require.NoError(t, b.Send(context.Background(), sampleReport("a", "worker")))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "a", received[0].ID)
	assert.Equal(t, "worker", received[0].Scope)
	assert.Equal(t, "worker-1", received[0].ThreadInfo.Name)
}

func TestHTTPBridge_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := bridge.NewHTTPBridge(srv.URL, time.Second).Send(context.Background(), sampleReport("a", ""))

	var de *bridge.DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "http", de.Bridge)
	assert.Contains(t, err.Error(), "500")
}

func TestHTTPBridge_BoundedByTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	err := bridge.NewHTTPBridge(srv.URL, 100*time.Millisecond).Send(context.Background(), sampleReport("a", ""))

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHTTPBridge_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := bridge.NewHTTPBridge(url, 200*time.Millisecond).Send(context.Background(), sampleReport("a", ""))
	assert.Error(t, err)
}

func TestStoreBridge_SendAndQuery(t *testing.T) {
	store, err := bridge.NewStoreBridge(bridge.StoreConfig{Path: filepath.Join(t.TempDir(), "db", "reports.db")})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	first := sampleReport("r1", "worker")
	second := sampleReport("r2", "api")
	second.Timestamp = "2026-10-19T11:00:00.000000Z"
	second.ExceptionType = "*errors.errorString"
	third := sampleReport("r3", "worker")
	third.Timestamp = "2026-10-19T12:00:00.000000Z"

	for _, r := range []*report.Report{first, second, third} {
		require.NoError(t, store.Send(ctx, r))
	}

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := store.Query(ctx, bridge.ReportQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"r3", "r2", "r1"}, lo.Map(all, func(r *report.Report, _ int) string { return r.ID }))

	workers, err := store.Query(ctx, bridge.ReportQuery{Scope: "worker", Limit: 1})
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Equal(t, "r3", workers[0].ID)

	typed, err := store.Query(ctx, bridge.ReportQuery{Type: "*errors.errorString"})
	require.NoError(t, err)
	require.Len(t, typed, 1)
	assert.Equal(t, "api", typed[0].Scope)

	got, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, first.Traceback, got.Traceback)
	assert.Equal(t, first.ThreadInfo, got.ThreadInfo)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, bridge.ErrReportNotFound)
}

func TestStoreBridge_DuplicateIDFails(t *testing.T) {
	store, err := bridge.NewStoreBridge(bridge.StoreConfig{Path: filepath.Join(t.TempDir(), "reports.db")})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Send(context.Background(), sampleReport("dup", "")))
	err = store.Send(context.Background(), sampleReport("dup", ""))

	var de *bridge.DeliveryError
	assert.True(t, errors.As(err, &de))
}

func TestNew_SelectsBridgesInOrder(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		bridge config.BridgeType
		want   []string
	}{
		{config.BridgeFile, []string{"file"}},
		{config.BridgeHTTP, []string{"http"}},
		{config.BridgeBoth, []string{"file", "http"}},
		{config.BridgeSQLite, []string{"sqlite"}},
		{config.BridgeNone, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.bridge), func(t *testing.T) {
			cfg := config.Default()
			cfg.Bridge = tt.bridge
			cfg.LogFile = filepath.Join(dir, "exceptions.log")
			cfg.StorePath = filepath.Join(dir, string(tt.bridge)+".db")

			bridges, err := bridge.New(cfg)
			require.NoError(t, err)
			defer bridge.Close(bridges)

			names := lo.Map(bridges, func(b bridge.Bridge, _ int) string { return b.Name() })
			if tt.want == nil {
				assert.Empty(t, names)
			} else {
				assert.Equal(t, tt.want, names)
			}
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Bridge = "smoke-signal"

	_, err := bridge.New(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidBridge)
}

func TestPanicError(t *testing.T) {
	err := error(&bridge.PanicError{Bridge: "x", Value: "boom"})
	assert.True(t, bridge.IsPanic(err))
	assert.False(t, bridge.IsPanic(errors.New("plain")))
	assert.Contains(t, err.Error(), "boom")
}
