package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ats-sync-backend/lib/utils/clock"
)

func TestScheduler(t *testing.T) {
	start := time.Date(2025, 6, 30, 10, 0, 0, 0, time.UTC)

	t.Run(`runs once after delay`, func(t *testing.T) {
		clk := clock.NewFake(start)
		s := NewInstance(clk)
		fired := []string{}
		s.Register("sync", func(id string) { fired = append(fired, id) })

		id, err := s.Schedule("sync", 30*time.Second)
		require.Nil(t, err)
		require.Len(t, s.List(), 1)
		require.Equal(t, start.Add(30*time.Second), s.List()[0].RunAt)

		clk.Advance(29 * time.Second)
		require.Empty(t, fired)
		clk.Advance(time.Second)
		require.Equal(t, []string{id}, fired)
		require.Empty(t, s.List())
	})

	t.Run(`cancel stops the run`, func(t *testing.T) {
		clk := clock.NewFake(start)
		s := NewInstance(clk)
		count := 0
		s.Register("sync", func(string) { count++ })
		id, err := s.Schedule("sync", time.Second)
		require.Nil(t, err)

		require.True(t, s.Cancel(id))
		require.False(t, s.Cancel(id))
		clk.Advance(time.Minute)
		require.Zero(t, count)
		require.Zero(t, clk.Pending())
	})

	t.Run(`unknown handler`, func(t *testing.T) {
		s := NewInstance(clock.NewFake(start))
		_, err := s.Schedule("missing", time.Second)
		require.ErrorIs(t, err, ErrUnknownHandler)
	})

	t.Run(`panic in handler is contained`, func(t *testing.T) {
		clk := clock.NewFake(start)
		s := NewInstance(clk)
		s.Register("boom", func(string) { panic("boom") })
		_, err := s.Schedule("boom", time.Second)
		require.Nil(t, err)
		require.NotPanics(t, func() { clk.Advance(time.Second) })
	})
}
