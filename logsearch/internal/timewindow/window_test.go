package timewindow

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ClampsFutureEnd(t *testing.T) {
	now := time.Now()
	w, err := New(now.Add(-time.Hour), now.Add(72*time.Hour), now)
	require.NoError(t, err)
	assert.WithinDuration(t, now, w.End, time.Second)
	assert.Equal(t, now.Add(-time.Hour), w.Start)
}

func TestNew_KeepsPastEnd(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)

	w, err := New(start, end, now)
	require.NoError(t, err)
	assert.Equal(t, Window{Start: start, End: end}, w)
}

func TestNew_Inverted(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		start time.Time
		end   time.Time
	}{
		{name: "start after end", start: now.Add(-time.Hour), end: now.Add(-2 * time.Hour)},
		{name: "start in the future", start: now.Add(time.Hour), end: now.Add(2 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.start, tt.end, now)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvertedWindow))
		})
	}
}

func TestNew_SingleInstant(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	w, err := New(now, now, now)
	require.NoError(t, err)
	assert.Equal(t, w.Start, w.End)
}

func TestParse(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		start     string
		end       string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "dates cover whole days",
			start:     "2024-01-15",
			end:       "2024-01-16",
			wantStart: time.Date(2024, 1, 15, 0, 0, 0, 0, ny),
			wantEnd:   time.Date(2024, 1, 16, 23, 59, 59, 999999999, ny),
		},
		{
			name:      "local timestamps",
			start:     "2024-01-15T08:30:00",
			end:       "2024-01-15 17:45:10",
			wantStart: time.Date(2024, 1, 15, 8, 30, 0, 0, ny),
			wantEnd:   time.Date(2024, 1, 15, 17, 45, 10, 0, ny),
		},
		{
			name:      "offsets are honored",
			start:     "2024-01-15T00:00:00Z",
			end:       "2024-01-15T10:00:00+02:00",
			wantStart: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := Parse(tt.start, tt.end, ny, now)
			require.NoError(t, err)
			assert.True(t, tt.wantStart.Equal(w.Start), "start %s", w.Start)
			assert.True(t, tt.wantEnd.Equal(w.End), "end %s", w.End)
			assert.Equal(t, ny, w.Start.Location())
		})
	}
}

func TestParse_EndOfTodayIsClamped(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	w, err := Parse("2024-05-30", "2024-06-01", time.UTC, now)
	require.NoError(t, err)
	assert.True(t, now.Equal(w.End))
}

func TestParse_Invalid(t *testing.T) {
	now := time.Now()
	for _, tt := range []struct{ start, end string }{
		{"", "2024-01-01"},
		{"2024-01-01", "yesterday"},
		{"01/02/2024", "2024-01-03"},
	} {
		_, err := Parse(tt.start, tt.end, time.UTC, now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidTime))
	}

	_, err := Parse("2024-02-01", "2024-01-01", time.UTC, now)
	assert.True(t, errors.Is(err, ErrInvertedWindow))
}

func TestLocation(t *testing.T) {
	loc, err := Location("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = Location("Europe/Paris")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())

	_, err = Location("Nowhere/Special")
	assert.Error(t, err)
}
