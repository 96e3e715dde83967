package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Roma7-7-7/price-notifier/pkg/clock"
)

func TestClock_Now(t *testing.T) {
	tehran, err := time.LoadLocation("Asia/Tehran")
	require.NoError(t, err)

	c := clock.NewWithLocation(tehran)
	require.NotNil(t, c)

	startAt := time.Now()
	now := c.Now()
	assert.False(t, now.Before(startAt))
	assert.Equal(t, tehran, now.Location())
	assert.Equal(t, tehran, c.Location())

	c = clock.NewWithLocation(nil)
	assert.Equal(t, time.Local, c.Location())
	assert.Equal(t, time.Local, clock.New().Location())
}

func TestMock_Now(t *testing.T) {
	m := clock.NewMock(time.Date(2025, time.November, 20, 17, 7, 0, 0, time.UTC))
	require.NotNil(t, m)

	assert.Equal(t, time.Date(2025, time.November, 20, 17, 7, 0, 0, time.UTC), m.Now())
	assert.Equal(t, time.UTC, m.Location())

	m.Set(time.Date(2025, time.November, 21, 17, 7, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, time.November, 21, 17, 7, 0, 0, time.UTC), m.Now())

	calls := 0
	m = clock.NewMockF(func() time.Time {
		calls++
		return time.Date(2025, time.November, 22, 17, 7, 0, 0, time.UTC)
	})
	m.Now()
	m.Now()
	assert.Equal(t, 2, calls)
}
