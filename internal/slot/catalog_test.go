package slot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCatalog(t *testing.T, cfg Config) *Catalog {
	t.Helper()
	c, err := NewCatalog(cfg)
	require.NoError(t, err)
	return c
}

func TestSlotsForDateDeterministicAndOrdered(t *testing.T) {
	c := mustCatalog(t, DefaultConfig())

	// 2024-03-01 is a Friday
	day, err := ParseDate("2024-03-01")
	require.NoError(t, err)

	first := c.SlotsForDate(day)
	second := c.SlotsForDate(day)
	require.Equal(t, first, second)

	require.NotEmpty(t, first)
	assert.Equal(t, "08:00", first[0].Start)
	assert.Equal(t, "08:30", first[0].End)
	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].Start, first[i].Start)
	}
}

func TestSlotsForDateClosedDayIsEmptyNotNil(t *testing.T) {
	c := mustCatalog(t, DefaultConfig())

	// 2024-03-02 is a Saturday
	day, err := ParseDate("2024-03-02")
	require.NoError(t, err)

	got := c.SlotsForDate(day)
	require.NotNil(t, got)
	assert.Empty(t, got)

	_, ok := c.Slot(day, "08:00")
	assert.False(t, ok)
}

func TestCatalogExcludesBreakWindows(t *testing.T) {
	c := mustCatalog(t, DefaultConfig())

	day, _ := ParseDate("2024-03-01")
	for _, ts := range c.SlotsForDate(day) {
		assert.NotEqual(t, "13:00", ts.Start)
		assert.NotEqual(t, "13:30", ts.Start)
	}

	_, ok := c.Slot(day, "13:00")
	assert.False(t, ok)
	_, ok = c.Slot(day, "12:30")
	assert.True(t, ok)
}

func TestCatalogNoBreak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BreakStart = ""
	cfg.BreakEnd = ""
	c := mustCatalog(t, cfg)

	day, _ := ParseDate("2024-03-01")
	_, ok := c.Slot(day, "13:00")
	assert.True(t, ok)
}

func TestCatalogRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Close = "07:00"
	_, err := NewCatalog(cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.Capacity = 0
	_, err = NewCatalog(cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.Open = "not-a-time"
	_, err = NewCatalog(cfg)
	require.Error(t, err)
}

func TestIsPastGraceWindow(t *testing.T) {
	c := mustCatalog(t, DefaultConfig())

	day, _ := ParseDate("2024-03-01")

	beforeGrace := time.Date(2024, 3, 1, 8, 14, 59, 0, time.Local)
	assert.False(t, c.IsPast(day, "08:00", beforeGrace))

	atGrace := time.Date(2024, 3, 1, 8, 15, 0, 0, time.Local)
	assert.True(t, c.IsPast(day, "08:00", atGrace))

	afterGrace := time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local)
	assert.True(t, c.IsPast(day, "08:00", afterGrace))
}

func TestIsPastAcrossDays(t *testing.T) {
	c := mustCatalog(t, DefaultConfig())

	day, _ := ParseDate("2024-03-01")

	dayBefore := time.Date(2024, 2, 29, 23, 0, 0, 0, time.Local)
	assert.False(t, c.IsPast(day, "08:00", dayBefore))

	dayAfter := time.Date(2024, 3, 2, 0, 1, 0, 0, time.Local)
	assert.True(t, c.IsPast(day, "16:00", dayAfter))

	// Yesterday's slots are past even at midnight.
	yesterday, _ := ParseDate("2024-02-29")
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local)
	assert.True(t, c.IsPast(yesterday, "15:30", now))
}

func TestParseDate(t *testing.T) {
	_, err := ParseDate("2024-13-45")
	require.Error(t, err)

	d, err := ParseDate("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, time.March, d.Month())
	assert.Equal(t, 1, d.Day())
}
