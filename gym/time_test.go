package gym_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/gym-credit/gym"
)

func TestDate_ParseAndFormat(t *testing.T) {
	d, err := gym.ParseDate("2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, 2025, d.Year())
	assert.Equal(t, time.March, d.Month())
	assert.Equal(t, 10, d.Day())
	assert.Equal(t, "2025-03-10", d.String())

	_, err = gym.ParseDate("10/03/2025")
	assert.Error(t, err)
}

func TestDate_DaysUntil(t *testing.T) {
	start := gym.NewDate(2025, time.February, 27)

	assert.Equal(t, 0, start.DaysUntil(start))
	assert.Equal(t, 2, start.DaysUntil(gym.NewDate(2025, time.March, 1)))
	assert.Equal(t, -27, start.DaysUntil(gym.NewDate(2025, time.January, 31)))
	assert.Equal(t, 30, start.DaysUntil(start.AddDays(30)))
}

func TestDate_DateOfUsesOwnLocation(t *testing.T) {
	// GIVEN: 23:30 UTC on March 9 is already March 10 in Seoul
	seoul := time.FixedZone("KST", 9*3600)
	instant := time.Date(2025, time.March, 9, 23, 30, 0, 0, time.UTC)

	assert.Equal(t, "2025-03-09", gym.DateOf(instant).String())
	assert.Equal(t, "2025-03-10", gym.DateOf(instant.In(seoul)).String())
}

func TestDate_At(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	d := gym.NewDate(2025, time.March, 10)

	at := d.At(gym.NewClockTime(18, 30), seoul)
	assert.True(t, at.Equal(time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)))
}

func TestClockTime_Parse(t *testing.T) {
	ct, err := gym.ParseClockTime("07:05")
	require.NoError(t, err)
	assert.Equal(t, gym.NewClockTime(7, 5), ct)

	ct, err = gym.ParseClockTime("21:45:59")
	require.NoError(t, err)
	assert.Equal(t, "21:45", ct.String())

	_, err = gym.ParseClockTime("25:00")
	assert.Error(t, err)
}

func TestDateAndClockTime_JSON(t *testing.T) {
	type payload struct {
		Day  gym.Date      `json:"day"`
		Time gym.ClockTime `json:"time"`
	}

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"day":"2025-12-31","time":"06:00"}`), &p))
	assert.Equal(t, gym.NewDate(2025, time.December, 31), p.Day)
	assert.Equal(t, gym.NewClockTime(6, 0), p.Time)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2025-12-31","time":"06:00"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"day":"tomorrow"}`), &p))
}
