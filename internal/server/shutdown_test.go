package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestShutdown_ClosesInReverseOrder(t *testing.T) {
	sm := NewShutdownManager(ShutdownConfig{}, nil)
	var order []string
	for _, name := range []string{"store", "grpc", "http"} {
		name := name
		sm.RegisterCloser(name, CloserFunc(func() error {
			order = append(order, name)
			if name == "grpc" {
				return errors.New("boom")
			}
			return nil
		}))
	}

	err := sm.Shutdown(context.Background(), "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close grpc: boom")
	assert.Equal(t, []string{"http", "grpc", "store"}, order)
	assert.True(t, sm.IsShuttingDown())

	// Second call returns the same result without closing again.
	assert.Equal(t, err, sm.Shutdown(context.Background(), "again"))
	assert.Len(t, order, 3)
}

func TestShutdownMiddleware(t *testing.T) {
	sm := NewShutdownManager(ShutdownConfig{DrainTimeout: time.Second}, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	h := ShutdownMiddleware(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusNoContent)
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	rec := httptest.NewRecorder()
	go func() {
		defer wg.Done()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	}()
	<-started
	assert.Equal(t, int64(1), sm.InFlightCount())

	done := make(chan error, 1)
	go func() { done <- sm.Shutdown(context.Background(), "test") }()

	// New requests are rejected while draining.
	require.Eventually(t, sm.IsShuttingDown, time.Second, 5*time.Millisecond)
	rejected := httptest.NewRecorder()
	h.ServeHTTP(rejected, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rejected.Code)

	close(release)
	wg.Wait()
	require.NoError(t, <-done)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(0), sm.InFlightCount())
}

func TestShutdown_DrainTimeout(t *testing.T) {
	sm := NewShutdownManager(ShutdownConfig{DrainTimeout: 30 * time.Millisecond}, nil)
	require.True(t, sm.TrackRequest())
	err := sm.Shutdown(context.Background(), "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 in-flight")
	assert.False(t, sm.TrackRequest())
	sm.UntrackRequest()
}

func TestGracefulHTTPServer(t *testing.T) {
	sm := NewShutdownManager(ShutdownConfig{}, nil)
	srv := &http.Server{Handler: ShutdownMiddleware(sm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))}
	gs := NewGracefulHTTPServer(srv, sm)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- gs.Serve(ln) }()

	transport := &http.Transport{DisableKeepAlives: true}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport}
	resp, err := client.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	require.NoError(t, sm.Shutdown(context.Background(), "test"))
	assert.NoError(t, <-served)
}

func TestListenForSignals_ContextCancel(t *testing.T) {
	sm := NewShutdownManager(ShutdownConfig{}, nil)
	closed := false
	sm.RegisterCloser("x", CloserFunc(func() error { closed = true; return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, sm.ListenForSignals(ctx))
	assert.True(t, closed)
}
