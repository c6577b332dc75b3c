package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCountDays(t *testing.T) {
	cases := []struct {
		name            string
		start, end      time.Time
		excludeWeekends bool
		want            int
	}{
		{"single day", date(2023, time.August, 7), date(2023, time.August, 7), false, 1},
		{"mon to fri inclusive", date(2023, time.August, 7), date(2023, time.August, 11), true, 5},
		{"mon to fri with weekends counted", date(2023, time.August, 7), date(2023, time.August, 11), false, 5},
		{"full week excluding weekend", date(2023, time.August, 7), date(2023, time.August, 13), true, 5},
		{"full week counting weekend", date(2023, time.August, 7), date(2023, time.August, 13), false, 7},
		{"saturday only excluded", date(2023, time.August, 12), date(2023, time.August, 12), true, 0},
		{"spanning two weekends", date(2023, time.August, 4), date(2023, time.August, 14), true, 7},
		{"end before start", date(2023, time.August, 11), date(2023, time.August, 7), false, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CountDays(tc.start, tc.end, tc.excludeWeekends))
		})
	}
}

func TestAddYears(t *testing.T) {
	cases := []struct {
		name string
		from time.Time
		n    int
		want time.Time
	}{
		{"plain date", date(2023, time.July, 1), 2, date(2025, time.July, 1)},
		{"feb 29 to common year", date(2024, time.February, 29), 1, date(2025, time.February, 28)},
		{"feb 29 to leap year", date(2024, time.February, 29), 4, date(2028, time.February, 29)},
		{"feb 28 unaffected", date(2023, time.February, 28), 1, date(2024, time.February, 28)},
		{"century non-leap", date(2096, time.February, 29), 4, date(2100, time.February, 28)},
		{"negative offset", date(2025, time.March, 1), -1, date(2024, time.March, 1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, AddYears(tc.from, tc.n))
		})
	}
}
