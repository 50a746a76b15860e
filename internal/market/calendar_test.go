package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendar_IsOpen(t *testing.T) {
	cal := NYSE()
	ny := cal.Location()

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday open bell", time.Date(2026, 3, 2, 9, 30, 0, 0, ny), true},
		{"monday before open", time.Date(2026, 3, 2, 9, 29, 59, 0, ny), false},
		{"wednesday midday", time.Date(2026, 3, 4, 12, 0, 0, 0, ny), true},
		{"friday last minute", time.Date(2026, 3, 6, 15, 59, 59, 0, ny), true},
		{"friday close bell", time.Date(2026, 3, 6, 16, 0, 0, 0, ny), false},
		{"saturday", time.Date(2026, 3, 7, 12, 0, 0, 0, ny), false},
		{"sunday", time.Date(2026, 3, 8, 12, 0, 0, 0, ny), false},
		// 14:45 UTC is 09:45 EST
		{"utc input converted", time.Date(2026, 1, 5, 14, 45, 0, 0, time.UTC), true},
		// 13:45 UTC is 09:45 EDT in summer
		{"utc input during DST", time.Date(2026, 7, 6, 13, 45, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.IsOpen(tt.at))
		})
	}
}

func TestCalendar_Status(t *testing.T) {
	cal := NYSE()

	st := cal.Status(time.Date(2026, 3, 2, 14, 5, 0, 0, cal.Location()))
	assert.True(t, st.IsOpen)
	assert.Equal(t, "America/New_York", st.Timezone)
	assert.Equal(t, "02:05:00 PM", st.CurrentTime)
	assert.Equal(t, "Market open", st.Message)

	st = cal.Status(time.Date(2026, 3, 7, 14, 5, 0, 0, cal.Location()))
	assert.False(t, st.IsOpen)
	assert.Equal(t, "Market closed", st.Message)
}

func TestNewCalendar_InvalidZone(t *testing.T) {
	_, err := NewCalendar("Mars/Olympus_Mons")
	assert.Error(t, err)

	cal, err := NewCalendar("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTimezone, cal.Location().String())
}

func TestAlwaysOpen(t *testing.T) {
	assert.True(t, AlwaysOpen.IsOpen(time.Date(2026, 3, 8, 3, 0, 0, 0, time.UTC)))
}
