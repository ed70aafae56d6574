package indexes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/telhawk-systems/logsearch/logsearch/internal/timewindow"
)

func window(start, end time.Time) timewindow.Window {
	return timewindow.Window{Start: start, End: end}
}

func TestResolve(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)

	tests := []struct {
		name   string
		prefix string
		window timewindow.Window
		want   []string
	}{
		{
			name:   "three months",
			window: window(time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), time.Date(2023, 3, 2, 0, 0, 0, 0, time.UTC)),
			want:   []string{"api-umbrella-logs-2023-01", "api-umbrella-logs-2023-02", "api-umbrella-logs-2023-03"},
		},
		{
			name:   "single day",
			window: window(time.Date(2023, 5, 4, 1, 0, 0, 0, time.UTC), time.Date(2023, 5, 4, 23, 0, 0, 0, time.UTC)),
			want:   []string{"api-umbrella-logs-2023-05"},
		},
		{
			name:   "year boundary",
			window: window(time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)),
			want:   []string{"api-umbrella-logs-2022-12", "api-umbrella-logs-2023-01"},
		},
		{
			name:   "local evening is next utc month",
			window: window(time.Date(2023, 1, 31, 20, 0, 0, 0, est), time.Date(2023, 1, 31, 22, 0, 0, 0, est)),
			want:   []string{"api-umbrella-logs-2023-02"},
		},
		{
			name:   "custom prefix",
			prefix: "logs-v2",
			window: window(time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC), time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)),
			want:   []string{"logs-v2-2023-01", "logs-v2-2023-02"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewResolver(tt.prefix).Resolve(tt.window)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_NoGapsNoDuplicates(t *testing.T) {
	start := time.Date(2020, 2, 29, 12, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)

	got := Resolver{}.Resolve(window(start, end))
	assert.Len(t, got, 49)

	seen := make(map[string]bool, len(got))
	for _, name := range got {
		assert.False(t, seen[name], "duplicate %s", name)
		seen[name] = true
	}
	assert.Equal(t, "api-umbrella-logs-2020-02", got[0])
	assert.Equal(t, "api-umbrella-logs-2024-02", got[len(got)-1])
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a-2023-01,a-2023-02", Join([]string{"a-2023-01", "a-2023-02"}))
	assert.Equal(t, "", Join(nil))
}
