package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("15/12/2025")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2025, time.December, 15), d)
	assert.Equal(t, "15/12/2025", d.String())
	assert.Equal(t, "2025-12-15", d.ISO())
	assert.Equal(t, time.Monday, d.Weekday())

	d, err = ParseDate("5/1/2026")
	require.NoError(t, err)
	assert.Equal(t, "05/01/2026", d.String())

	_, err = ParseDate("2025-12-15")
	assert.Error(t, err)
}

func TestDateArithmetic(t *testing.T) {
	d := NewDate(2025, time.December, 31)
	assert.Equal(t, NewDate(2026, time.January, 1), d.AddDays(1))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.False(t, d.Before(d))
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9, c.Hour())
	assert.Equal(t, 30, c.Minute())
	assert.Equal(t, "09:30", c.String())
	assert.Equal(t, "10:15", c.Add(45).String())

	for _, bad := range []string{"24:00", "9", "aa:bb", "10:60"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
	assert.Equal(t, "", NoClock.String())
}

func TestCivilTypesJSON(t *testing.T) {
	type payload struct {
		Date  *Date  `json:"date,omitempty"`
		Clock *Clock `json:"time,omitempty"`
	}
	d := NewDate(2025, time.December, 15)
	c := NewClock(15, 0)
	raw, err := json.Marshal(payload{Date: &d, Clock: &c})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"15/12/2025","time":"15:00"}`, string(raw))

	var back payload
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, d, *back.Date)
	assert.Equal(t, c, *back.Clock)
}
