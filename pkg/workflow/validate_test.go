package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelsweep/pkg/models"
)

type fakeProber struct {
	mu   sync.Mutex
	dead map[string]bool
}

func (p *fakeProber) Probe(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dead[url] {
		return errors.New("HTTP Error 404")
	}
	return nil
}

type fakeDateChecker struct {
	mu    sync.Mutex
	dates map[string]time.Time
}

func (d *fakeDateChecker) UploadDate(_ context.Context, url string) (time.Time, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.dates[url]; ok {
		return t, nil
	}
	return time.Time{}, errors.New("no date")
}

type fakeStatusWriter struct {
	mu       sync.Mutex
	statuses map[int]models.Status
}

func (w *fakeStatusWriter) UpdateStatus(_ context.Context, row int, status models.Status) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.statuses == nil {
		w.statuses = make(map[int]models.Status)
	}
	w.statuses[row] = status
	return nil
}

func TestValidatorMarksDeadLinks(t *testing.T) {
	writer := &fakeStatusWriter{}
	v := NewValidator(ValidatorOptions{
		Writer: writer,
		Prober: &fakeProber{dead: map[string]bool{"https://x/gone/": true}},
		Runner: testRunner(),
	})

	stats, err := v.Run(context.Background(), []models.Reel{
		{Row: 2, ID: "Gone", Link: "https://x/gone/"},
		{Row: 3, ID: "Here", Link: "https://x/here/"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Dead)
	assert.Equal(t, 1, stats.Alive)
	assert.Equal(t, models.StatusFailed, writer.statuses[2])
	_, touched := writer.statuses[3]
	assert.False(t, touched)
}

func TestValidatorDateWindow(t *testing.T) {
	now := time.Date(2025, time.June, 29, 0, 0, 0, 0, time.UTC)
	writer := &fakeStatusWriter{}
	v := NewValidator(ValidatorOptions{
		Writer: writer,
		Prober: &fakeProber{},
		Dates: &fakeDateChecker{dates: map[string]time.Time{
			"https://x/fresh/": now.AddDate(0, 0, -3),
			"https://x/stale/": now.AddDate(0, 0, -90),
		}},
		Runner:     testRunner(),
		MaxAgeDays: 30,
	})
	v.now = func() time.Time { return now }

	stats, err := v.Run(context.Background(), []models.Reel{
		{Row: 2, ID: "Fresh", Link: "https://x/fresh/"},
		{Row: 3, ID: "Stale", Link: "https://x/stale/"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Alive)
	assert.Equal(t, 1, stats.TooOld)
	assert.Equal(t, models.StatusFailed, writer.statuses[3])
}

func TestValidatorUnreadableDatePasses(t *testing.T) {
	writer := &fakeStatusWriter{}
	v := NewValidator(ValidatorOptions{
		Writer:     writer,
		Prober:     &fakeProber{},
		Dates:      &fakeDateChecker{}, // every lookup errors
		Runner:     testRunner(),
		MaxAgeDays: 30,
	})

	stats, err := v.Run(context.Background(), []models.Reel{
		{Row: 2, ID: "Mystery", Link: "https://x/mystery/"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Alive)
	assert.Empty(t, writer.statuses)
}

func TestValidatorNoDateCheckerSkipsAgeSweep(t *testing.T) {
	v := NewValidator(ValidatorOptions{
		Writer: &fakeStatusWriter{},
		Prober: &fakeProber{},
		Runner: testRunner(),
	})

	stats, err := v.Run(context.Background(), []models.Reel{
		{Row: 2, ID: "A", Link: "https://x/a/"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Alive)
}

func TestValidatorEmptyInput(t *testing.T) {
	v := NewValidator(ValidatorOptions{
		Writer: &fakeStatusWriter{},
		Prober: &fakeProber{},
		Runner: testRunner(),
	})
	stats, err := v.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats)
}
