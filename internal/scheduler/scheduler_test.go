package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseIntervalDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"15m": 15 * time.Minute,
		"1h":  time.Hour,
		"1d":  24 * time.Hour,
		"1w":  7 * 24 * time.Hour,
		" 2H": 2 * time.Hour,
	}
	for in, want := range cases {
		got, ok := ParseIntervalDuration(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "d", "0d", "-1h", "3x", "1.5h"} {
		_, ok := ParseIntervalDuration(in)
		assert.False(t, ok, in)
	}
}

func TestNextTimesAlignsToIntervalBoundary(t *testing.T) {
	s := &AlignedScheduler{Interval: time.Hour, Offset: 5 * time.Minute}
	now := time.Date(2024, 6, 10, 9, 20, 0, 0, time.UTC)

	nextClose, wakeAt, wait := s.nextTimes(now)
	assert.Equal(t, time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC), nextClose)
	assert.Equal(t, time.Date(2024, 6, 10, 10, 5, 0, 0, time.UTC), wakeAt)
	assert.Equal(t, 45*time.Minute, wait)
}
