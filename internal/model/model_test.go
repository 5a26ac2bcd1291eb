package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:05")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 9, Minute: 5}, c)
	assert.Equal(t, "09:05", c.String())

	c, err = ParseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 23, Minute: 59}, c)

	for _, bad := range []string{"24:00", "12:60", "-1:00", "9", "ab:cd", "12:5", ""} {
		_, err := ParseClock(bad)
		require.ErrorIs(t, err, ErrInvalidTimeOfDay, bad)
	}
}

func TestParseLength(t *testing.T) {
	l, err := ParseLength("00:30")
	require.NoError(t, err)
	assert.Equal(t, Length{Minutes: 30}, l)

	l, err = ParseLength("26:15")
	require.NoError(t, err)
	assert.Equal(t, Length{Hours: 26, Minutes: 15}, l)

	for _, bad := range []string{"00:00", "-01:00", "01:75", "1h", ""} {
		_, err := ParseLength(bad)
		require.ErrorIs(t, err, ErrInvalidDuration, bad)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2023-02-27")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2023, Month: time.February, Day: 27}, d)
	assert.Equal(t, "2023-02-27", d.String())

	_, err = ParseDate("2023-02-30")
	require.Error(t, err)
}

func TestWindow(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	w := DefaultWindow(now)
	assert.Equal(t, now.Add(-7*24*time.Hour), w.Lower())
	assert.Equal(t, now.Add(100*24*time.Hour), w.Upper())

	assert.True(t, w.Contains(w.Lower()))
	assert.True(t, w.Contains(w.Upper()))
	assert.False(t, w.Contains(w.Lower().Add(-time.Second)))
	assert.False(t, w.Contains(w.Upper().Add(time.Second)))

	_, err := NewWindow(now, now.Add(-time.Nanosecond))
	require.ErrorIs(t, err, ErrInvalidWindow)

	point, err := NewWindow(now, now)
	require.NoError(t, err)
	assert.True(t, point.Contains(now))
}

func TestErrorKind(t *testing.T) {
	cases := map[error]string{
		ErrInvalidRule:      "InvalidRuleError",
		ErrUnknownTimeZone:  "UnknownTimeZoneError",
		ErrInvalidDuration:  "InvalidDurationError",
		ErrInvalidWindow:    "InvalidWindowError",
		ErrInvalidTimeOfDay: "InvalidTimeOfDayError",
		errors.New("other"): "Error",
	}
	for err, kind := range cases {
		assert.Equal(t, kind, ErrorKind(fmt.Errorf("entry 3: %w", err)))
	}
}
