package linkhygiene

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ats-sync-backend/lib/scheduler"
	"ats-sync-backend/lib/testutil"
	"ats-sync-backend/lib/utils/lock"
	"ats-sync-backend/models"
	recordmodels "ats-sync-backend/models/records"
)

func TestSweeper(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Delay: 10 * time.Second, LockWait: 10 * time.Millisecond, QueueWait: time.Second}

	t.Run(`rewrites dirty cells in contiguous blocks`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		for _, resume := range []string{"www.a.com/cv", "linkedin.com/in/b", "https://c.com", "Резюме"} {
			row := f.Add(models.TableActive, recordmodels.Fields{models.ColEmail: "x@x.com"})
			f.Set(models.TableActive, row, recordmodels.Fields{models.ColResume: resume})
		}
		book := f.Book
		active := &testutil.CountingTable{Table: f.Book.Active}
		book.Active = active
		s := NewInstance(f.Store, scheduler.NewInstance(f.Clock), book, f.Headers, lock.NewGuard(lock.DocumentKey), cfg)

		for _, row := range []int{2, 3, 5} {
			s.MarkDirty(testutil.ActiveSheet, models.ColResume, row)
		}
		count, err := s.Sweep(ctx)
		require.Nil(t, err)
		require.Equal(t, 2, count)
		require.Equal(t, 2, active.Links)

		col := f.Info(models.TableActive).Col(models.ColResume)
		link, err := f.Book.Active.GetLink(2, col)
		require.Nil(t, err)
		require.Equal(t, "https://www.a.com/cv", link)
		link, err = f.Book.Active.GetLink(3, col)
		require.Nil(t, err)
		require.Equal(t, "https://linkedin.com/in/b", link)
		require.Equal(t, "www.a.com/cv", f.Row(models.TableActive, 2).Get(models.ColResume))
		require.Equal(t, "Резюме", f.Row(models.TableActive, 5).Get(models.ColResume))

		dirty, err := s.Dirty()
		require.Nil(t, err)
		require.Empty(t, dirty)
	})

	t.Run(`marking schedules one delayed sweep`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		row := f.Add(models.TableActive, recordmodels.Fields{models.ColEmail: "x@x.com", models.ColLinkedIn: "linkedin.com/in/x"})
		s := NewInstance(f.Store, scheduler.NewInstance(f.Clock), f.Book, f.Headers, lock.NewGuard(lock.DocumentKey), cfg)

		s.MarkDirty(testutil.ActiveSheet, models.ColLinkedIn, row)
		s.MarkDirty(testutil.ActiveSheet, models.ColLinkedIn, row)
		require.Equal(t, 1, f.Clock.Pending())

		f.Clock.Advance(cfg.Delay)
		link, err := f.Book.Active.GetLink(row, f.Info(models.TableActive).Col(models.ColLinkedIn))
		require.Nil(t, err)
		require.Equal(t, "https://linkedin.com/in/x", link)
		dirty, err := s.Dirty()
		require.Nil(t, err)
		require.Empty(t, dirty)
		require.Zero(t, f.Clock.Pending())
	})

	t.Run(`unknown sheet and malformed keys are dropped`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		s := NewInstance(f.Store, scheduler.NewInstance(f.Clock), f.Book, f.Headers, lock.NewGuard(lock.DocumentKey), cfg)
		s.MarkDirty("Archive", models.ColResume, 4)
		require.Nil(t, f.Store.Set(dirtyPrefix+"broken", "1"))

		count, err := s.Sweep(ctx)
		require.Nil(t, err)
		require.Zero(t, count)
		dirty, err := s.Dirty()
		require.Nil(t, err)
		require.Empty(t, dirty)
	})

	t.Run(`contiguous`, func(t *testing.T) {
		require.Equal(t, [][]int{{2, 3, 4}, {7}, {9, 10}}, contiguous([]int{2, 3, 3, 4, 7, 9, 10}))
		require.Nil(t, contiguous(nil))
	})
}
