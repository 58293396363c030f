package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ats-sync-backend/lib/utils/clock"
)

func TestCache(t *testing.T) {
	t.Run(`entries expire after ttl`, func(t *testing.T) {
		clk := clock.NewFake(time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC))
		c := NewInstance(clk)
		c.Set("header:All", 2, 30*time.Second)

		value, ok := c.Get("header:All")
		require.True(t, ok)
		require.Equal(t, 2, value)

		clk.Advance(30 * time.Second)
		_, ok = c.Get("header:All")
		require.False(t, ok)
	})

	t.Run(`DeletePrefix drops matching keys only`, func(t *testing.T) {
		c := NewInstance(clock.NewFake(time.Now()))
		c.Set("header:All", 1, time.Minute)
		c.Set("header:Active", 2, time.Minute)
		c.Set("mute:2025-0001|a@x.com", true, time.Minute)

		c.DeletePrefix("header:")
		_, ok := c.Get("header:All")
		require.False(t, ok)
		_, ok = c.Get("mute:2025-0001|a@x.com")
		require.True(t, ok)
	})
}
