package monitoring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/alumni-portal-be/internal/auth"
	"github.com/isdelr/alumni-portal-be/internal/models"
	"github.com/isdelr/alumni-portal-be/internal/services"
)

type fakeEvents struct {
	mu    sync.Mutex
	types []string
}

func (f *fakeEvents) Record(ctx context.Context, eventType, level, message, actorEmail string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, eventType)
	return nil
}

func (f *fakeEvents) Recent(ctx context.Context, p auth.Principal, limit int) ([]models.Event, error) {
	return nil, nil
}

func (f *fakeEvents) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.types)
}

func TestStatUpdaterKeepsLatestSample(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := []models.SystemStats{
		{CPUPercent: 95, SampledAt: base},
		{CPUPercent: 97, SampledAt: base.Add(time.Minute)},
		{CPUPercent: 99, SampledAt: base.Add(alertCooldown + time.Minute)},
	}
	i := 0
	sample := func(ctx context.Context) (models.SystemStats, error) {
		s := samples[i]
		i++
		return s, nil
	}
	events := &fakeEvents{}
	su := newStatUpdater(sample, events, time.Second)

	su.update()
	if got := su.Latest(); got.CPUPercent != 95 {
		t.Fatalf("Latest = %+v", got)
	}
	if events.count() != 1 {
		t.Fatalf("alerts after first sample = %d", events.count())
	}

	su.update()
	if events.count() != 1 {
		t.Errorf("alert repeated within cooldown")
	}

	su.update()
	if events.count() != 2 {
		t.Errorf("alerts after cooldown = %d, want 2", events.count())
	}
}

func TestStatUpdaterKeepsPreviousSampleOnError(t *testing.T) {
	calls := 0
	sample := func(ctx context.Context) (models.SystemStats, error) {
		calls++
		if calls > 1 {
			return models.SystemStats{}, errors.New("unavailable")
		}
		return models.SystemStats{MemoryPercent: 42, SampledAt: time.Now()}, nil
	}
	su := newStatUpdater(sample, nil, time.Second)
	su.update()
	su.update()
	if got := su.Latest(); got.MemoryPercent != 42 {
		t.Fatalf("Latest = %+v", got)
	}
}

func TestStatUpdaterStopIsIdempotent(t *testing.T) {
	su := newStatUpdater(func(ctx context.Context) (models.SystemStats, error) {
		return models.SystemStats{}, nil
	}, nil, time.Hour)

	done := make(chan struct{})
	go func() {
		su.Run()
		close(done)
	}()
	su.Stop()
	su.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

type fakeAccounts struct {
	services.AccountServiceProvider
	purged int
	err    error
}

func (f *fakeAccounts) PurgeExpiredResets(ctx context.Context, now time.Time) (int, error) {
	f.purged++
	return 0, f.err
}

type countingSweeper struct{ n int }

func (c *countingSweeper) Sweep() { c.n++ }

func TestSchedulerMaintenance(t *testing.T) {
	accounts := &fakeAccounts{}
	sweeper := &countingSweeper{}
	s, err := NewScheduler("@every 1h", accounts, sweeper)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	s.runMaintenance()
	accounts.err = errors.New("store down")
	s.runMaintenance()

	if accounts.purged != 2 || sweeper.n != 2 {
		t.Fatalf("purged=%d swept=%d, want 2 each", accounts.purged, sweeper.n)
	}

	s.Start()
	s.Stop()
}

func TestSchedulerRejectsInvalidSchedule(t *testing.T) {
	if _, err := NewScheduler("every now and then", &fakeAccounts{}); err == nil {
		t.Fatal("expected an error for an invalid schedule")
	}
}
