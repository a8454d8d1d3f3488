package health

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/pkg/clock"
	"github.com/OtmaneTouhami/budget-wise/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestChecker(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "ok", status: http.StatusOK},
		{name: "no content", status: http.StatusNoContent},
		{name: "unauthorized still means up", status: http.StatusUnauthorized},
		{name: "not found still means up", status: http.StatusNotFound},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
		{name: "bad gateway", status: http.StatusBadGateway, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var method, path atomic.Value
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				method.Store(r.Method)
				path.Store(r.URL.Path)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := NewChecker(srv.URL+"/api/v1", srv.Client(), time.Second).Check(context.Background())
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, http.MethodOptions, method.Load())
			assert.Equal(t, "/api/v1/", path.Load())
		})
	}
}

func TestChecker_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	require.Error(t, NewChecker(url, nil, time.Second).Check(context.Background()))
}

func TestChecker_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	err := NewChecker(srv.URL, srv.Client(), 50*time.Millisecond).Check(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

type probeFunc func(ctx context.Context) error

func (f probeFunc) Check(ctx context.Context) error {
	return f(ctx)
}

func TestMonitor_CheckNow(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	var fail atomic.Bool
	probe := probeFunc(func(context.Context) error {
		if fail.Load() {
			return errors.New("connection refused")
		}
		return nil
	})

	m := NewMonitor(probe, time.Minute, clock.Fixed(now), logger.Discard())
	assert.Equal(t, StateChecking, m.Status().State)
	assert.True(t, m.Status().LastChecked.IsZero())

	st := m.CheckNow(context.Background())
	assert.Equal(t, StateConnected, st.State)
	assert.Equal(t, now, st.LastChecked)
	assert.NoError(t, st.Err)

	fail.Store(true)
	st = m.CheckNow(context.Background())
	assert.Equal(t, StateDisconnected, st.State)
	assert.Error(t, st.Err)
	assert.Equal(t, st, m.Status())
}

func TestMonitor_ReportsCheckingWhileProbing(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	probe := probeFunc(func(context.Context) error {
		close(entered)
		<-release
		return nil
	})
	m := NewMonitor(probe, time.Minute, nil, logger.Discard())

	done := make(chan Status)
	go func() { done <- m.CheckNow(context.Background()) }()

	<-entered
	assert.Equal(t, StateChecking, m.Status().State)
	close(release)
	assert.Equal(t, StateConnected, (<-done).State)
}

func TestMonitor_RunChecksImmediatelyAndOnInterval(t *testing.T) {
	var calls atomic.Int32
	probe := probeFunc(func(context.Context) error {
		calls.Add(1)
		return nil
	})
	m := NewMonitor(probe, 10*time.Millisecond, nil, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, StateConnected, m.Status().State)
}

func TestMonitor_DefaultInterval(t *testing.T) {
	m := NewMonitor(probeFunc(func(context.Context) error { return nil }), 0, nil, nil)
	assert.Equal(t, DefaultInterval, m.interval)
}

func TestMonitor_OnCheckReceivesEveryResult(t *testing.T) {
	var fail atomic.Bool
	probe := probeFunc(func(context.Context) error {
		if fail.Load() {
			return errors.New("connection refused")
		}
		return nil
	})
	m := NewMonitor(probe, time.Minute, nil, logger.Discard())

	var got []State
	m.OnCheck(func(st Status) { got = append(got, st.State) })

	m.CheckNow(context.Background())
	fail.Store(true)
	m.CheckNow(context.Background())
	m.CheckNow(context.Background())

	assert.Equal(t, []State{StateConnected, StateDisconnected, StateDisconnected}, got)
}

func TestMonitor_OverlappingChecksStillLogTransitions(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewSlogConfig(logger.SlogConfig{Level: logger.LevelInfo, Format: logger.FormatJSON, Writer: &buf})

	var calls atomic.Int32
	slowEntered := make(chan struct{})
	releaseSlow := make(chan struct{})
	probe := probeFunc(func(context.Context) error {
		switch calls.Add(1) {
		case 2:
			close(slowEntered)
			<-releaseSlow
			return nil
		case 3:
			return errors.New("connection refused")
		default:
			return nil
		}
	})
	m := NewMonitor(probe, time.Minute, nil, log)
	require.Equal(t, StateConnected, m.CheckNow(context.Background()).State)

	slow := make(chan Status)
	go func() { slow <- m.CheckNow(context.Background()) }()
	<-slowEntered

	require.Equal(t, StateDisconnected, m.CheckNow(context.Background()).State)
	assert.Equal(t, 1, strings.Count(buf.String(), "API_CONNECTIVITY_CHANGED"))
	assert.Contains(t, buf.String(), `"from":"connected","to":"disconnected"`)

	close(releaseSlow)
	require.Equal(t, StateConnected, (<-slow).State)
	assert.Equal(t, 2, strings.Count(buf.String(), "API_CONNECTIVITY_CHANGED"))
}

// manualClock fires ticks only when the test sends them
type manualClock struct {
	ticks   chan time.Time
	stopped atomic.Bool
}

func (c *manualClock) Now() time.Time {
	return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (c *manualClock) NewTicker(time.Duration) (<-chan time.Time, func()) {
	return c.ticks, func() { c.stopped.Store(true) }
}

func TestMonitor_RunUsesClockTicker(t *testing.T) {
	var calls atomic.Int32
	probe := probeFunc(func(context.Context) error {
		calls.Add(1)
		return nil
	})
	clk := &manualClock{ticks: make(chan time.Time)}
	m := NewMonitor(probe, time.Hour, clk, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx)
	}()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	clk.ticks <- clk.Now()
	clk.ticks <- clk.Now()
	require.Eventually(t, func() bool { return calls.Load() == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.True(t, clk.stopped.Load())
	assert.Equal(t, clk.Now(), m.Status().LastChecked)
}
