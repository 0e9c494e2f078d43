package contacts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBirthdayWithin(t *testing.T) {
	now := time.Date(2025, 12, 29, 15, 30, 0, 0, time.UTC)

	cases := []struct {
		name     string
		birthday string
		want     bool
	}{
		{"today", "1990-12-29", true},
		{"tomorrow", "1985-12-30", true},
		{"last day of window", "2000-01-05", true},
		{"wraps into the new year", "1995-01-02", true},
		{"just past the window", "2000-01-06", false},
		{"yesterday", "1990-12-28", false},
		{"months away", "1990-06-15", false},
		{"unparseable", "not-a-date", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, birthdayWithin(tc.birthday, now, 7))
		})
	}
}
