package ingest_test

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/hanoi-aq-nowcast/internal/domain"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/ingest"
	"github.com/couchcryptid/hanoi-aq-nowcast/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pollNow = time.Date(2026, time.August, 20, 15, 0, 0, 0, time.UTC)

type mockFetcher struct {
	mu       sync.Mutex
	airErr   error
	wxErr    error
	lastFrom time.Time
	lastTo   time.Time
	fetched  chan struct{} // signalled after each weather fetch
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{fetched: make(chan struct{}, 16)}
}

func (m *mockFetcher) FetchAirQuality(_ context.Context, from, to time.Time) ([]domain.Reading, error) {
	m.mu.Lock()
	m.lastFrom, m.lastTo = from, to
	err := m.airErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	r := domain.Reading{Timestamp: to.Truncate(time.Hour), PM25: 55, Temperature: math.NaN()}
	return []domain.Reading{r}, nil
}

func (m *mockFetcher) FetchWeather(_ context.Context, _, to time.Time) ([]domain.Reading, error) {
	m.mu.Lock()
	err := m.wxErr
	m.mu.Unlock()
	defer func() { m.fetched <- struct{}{} }()
	if err != nil {
		return nil, err
	}
	r := domain.Reading{Timestamp: to.Truncate(time.Hour), PM25: math.NaN(), Temperature: 31}
	return []domain.Reading{r}, nil
}

func (m *mockFetcher) window() (time.Time, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastFrom, m.lastTo
}

func runPoller(t *testing.T, p *ingest.Poller) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()
	return func() {
		stop()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("poller did not stop")
		}
	}
}

func TestPoller_PollsImmediately(t *testing.T) {
	fetcher := newMockFetcher()
	ldr := &mockLoader{}
	clk := clockwork.NewFakeClockAt(pollNow)

	refreshed := make(chan struct{}, 1)
	p := ingest.NewPoller(fetcher, ldr, time.Hour, func(context.Context) {
		refreshed <- struct{}{}
	}, clk, slog.Default(), observability.NewMetricsForTesting())

	stop := runPoller(t, p)
	defer stop()

	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh hook never fired")
	}

	assert.Equal(t, 2, ldr.count(), "one air and one weather reading stored")

	from, to := fetcher.window()
	assert.Equal(t, pollNow, to)
	assert.Equal(t, pollNow.Add(-48*time.Hour), from, "each poll re-fetches the revision window")
}

func TestPoller_PollsOnEveryTick(t *testing.T) {
	fetcher := newMockFetcher()
	ldr := &mockLoader{}
	clk := clockwork.NewFakeClockAt(pollNow)

	refreshed := make(chan struct{}, 4)
	p := ingest.NewPoller(fetcher, ldr, time.Hour, func(context.Context) {
		refreshed <- struct{}{}
	}, clk, slog.Default(), observability.NewMetricsForTesting())

	stop := runPoller(t, p)
	defer stop()

	<-refreshed // initial poll

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clk.BlockUntilContext(ctx, 1), "poller never armed its ticker")
	clk.Advance(time.Hour)

	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("tick did not trigger a poll")
	}

	_, to := fetcher.window()
	assert.Equal(t, pollNow.Add(time.Hour), to, "second poll uses the advanced clock")
}

func TestPoller_PartialFetchFailureStillStores(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.airErr = errors.New("open-meteo API error: status 502")
	ldr := &mockLoader{}

	refreshed := make(chan struct{}, 1)
	p := ingest.NewPoller(fetcher, ldr, time.Hour, func(context.Context) {
		refreshed <- struct{}{}
	}, clockwork.NewFakeClockAt(pollNow), slog.Default(), observability.NewMetricsForTesting())

	stop := runPoller(t, p)
	defer stop()

	select {
	case <-refreshed:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh hook never fired")
	}

	require.Equal(t, 1, ldr.count(), "weather readings stored despite the air fetch failure")
	assert.Equal(t, 31.0, ldr.loaded[0].Temperature)
}

func TestPoller_NoRefreshWhenNothingStored(t *testing.T) {
	fetcher := newMockFetcher()
	fetcher.airErr = errors.New("air down")
	fetcher.wxErr = errors.New("weather down")
	ldr := &mockLoader{}

	refreshCalls := 0
	p := ingest.NewPoller(fetcher, ldr, time.Hour, func(context.Context) {
		refreshCalls++
	}, clockwork.NewFakeClockAt(pollNow), slog.Default(), observability.NewMetricsForTesting())

	stop := runPoller(t, p)

	select {
	case <-fetcher.fetched: // first poll cycle finished
	case <-time.After(2 * time.Second):
		t.Fatal("poll never completed")
	}
	stop()

	assert.Zero(t, ldr.count())
	assert.Zero(t, refreshCalls)
}

func TestPoller_NilRefreshHook(t *testing.T) {
	fetcher := newMockFetcher()
	ldr := &mockLoader{}

	p := ingest.NewPoller(fetcher, ldr, time.Hour, nil, clockwork.NewFakeClockAt(pollNow), slog.Default(), observability.NewMetricsForTesting())

	stop := runPoller(t, p)
	defer stop()

	assert.Eventually(t, func() bool { return ldr.count() == 2 },
		2*time.Second, 10*time.Millisecond)
}
