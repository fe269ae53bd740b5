package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClock(t *testing.T) {
	start := time.Date(2025, time.January, 31, 23, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	assert.Equal(t, "2025-01-31", Today(c).String())

	c.Add(2 * time.Hour)
	assert.Equal(t, "2025-02-01", Today(c).String())

	c.AddDays(28)
	assert.Equal(t, "2025-03-01", Today(c).String())
}

func TestRealClock_Location(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)

	assert.Equal(t, seoul, NewRealClock(seoul).Now().Location())
	assert.Equal(t, time.UTC, NewRealClock(nil).Now().Location())
}
