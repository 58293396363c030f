package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ats-sync-backend/lib/mute"
	"ats-sync-backend/lib/sheet"
	"ats-sync-backend/lib/sheet/xlsx"
	"ats-sync-backend/lib/testutil"
	"ats-sync-backend/lib/utils/normalize"
	"ats-sync-backend/models"
	recordmodels "ats-sync-backend/models/records"
)

var stages = []string{"New Applicant", "Interview", "Hired", "Rejected"}

type recordingTable struct {
	sheet.Table
	deleted []int
}

func (r *recordingTable) DeleteRow(row int) error {
	r.deleted = append(r.deleted, row)
	return r.Table.DeleteRow(row)
}

type linkRecorder struct {
	marked []string
}

func (l *linkRecorder) MarkDirty(sheetName string, col models.Column, row int) {
	l.marked = append(l.marked, sheetName+"|"+string(col))
}

func activeKeys(f *testutil.Fixture) []string {
	keys := []string{}
	for _, row := range f.Rows(models.TableActive) {
		keys = append(keys, normalize.CompositeKey(row.Fields.Get(models.ColJobID), row.Fields.Get(models.ColEmail)))
	}
	return keys
}

func seed(f *testutil.Fixture) {
	f.AddRequisition("2025-0001", "Backend Engineer", "Open", "2025-06-02")
	f.AddRequisition("2025-0002", "Designer", "Closed", "2025-05-01")
	f.AddRequisition("2025-0003", "Recruiter", "on hold", "2025-06-10")
	f.AddCandidate("2025-0001", "Ann Smith", "a@x.com", "Interview")
	f.AddCandidate("2025-0002", "Bob Brown", "b@x.com", "New Applicant")
	f.AddCandidate("2025-0003", "Cid Moss", "c@x.com", "New Applicant")
	f.AddCandidate("2099-0001", "Dan Ray", "d@x.com", "New Applicant")
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run(`full run builds Active from open and on hold requisitions`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		seed(f)
		engine := NewInstance(f.Book, f.Headers, nil, nil, f.Clock, time.UTC, stages)

		stats, err := engine.Reconcile(ctx, nil)
		require.Nil(t, err)
		require.Equal(t, 2, stats.Inserted)
		require.ElementsMatch(t, []string{"2025-0001|a@x.com", "2025-0003|c@x.com"}, activeKeys(f))

		ann := f.Row(models.TableCandidates, 2)
		require.Equal(t, "Backend Engineer", ann.Get(models.ColJobTitle))
		require.Equal(t, "Open", ann.Get(models.ColJobStatus))
		require.Equal(t, "2025-06-30 10:00:00", ann.Get(models.ColUpdated))

		cid := f.Row(models.TableCandidates, 4)
		require.Equal(t, "On Hold", cid.Get(models.ColJobStatus))

		unknownJob := f.Row(models.TableCandidates, 5)
		require.Equal(t, "", unknownJob.Get(models.ColJobTitle))
		require.Equal(t, "", unknownJob.Get(models.ColUpdated))

		active := f.Row(models.TableActive, 2)
		require.Equal(t, "Ann Smith", active.Get(models.ColFullName))
		require.Equal(t, "Interview", active.Get(models.ColStage))
		require.Equal(t, "Backend Engineer", active.Get(models.ColJobTitle))
	})

	t.Run(`second full run writes nothing`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		seed(f)
		f.Set(models.TableCandidates, 2, recordmodels.Fields{
			models.ColResume:   "www.example.com/ann.pdf",
			models.ColLinkedIn: "linkedin.com/in/ann",
			models.ColPhone:    "+1 (555) 010-2000",
		})
		book := f.Book
		active := &testutil.CountingTable{Table: f.Book.Active}
		cands := &testutil.CountingTable{Table: f.Book.Candidates}
		book.Active = active
		book.Candidates = cands
		engine := NewInstance(book, f.Headers, nil, nil, f.Clock, time.UTC, stages)

		_, err := engine.Reconcile(ctx, nil)
		require.Nil(t, err)
		require.NotZero(t, active.Writes)
		require.NotZero(t, active.Links)

		active.Reset()
		cands.Reset()
		f.Clock.Advance(time.Hour)
		stats, err := engine.Reconcile(ctx, nil)
		require.Nil(t, err)
		require.Equal(t, Stats{}, stats)
		require.Zero(t, active.Writes)
		require.Zero(t, active.Deletes)
		require.Zero(t, active.Links)
		require.Zero(t, cands.Writes)
	})

	t.Run(`stale and orphan rows are deleted bottom up`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		seed(f)
		f.Add(models.TableActive, recordmodels.Fields{models.ColJobID: "2025-0001", models.ColEmail: "a@x.com", models.ColFullName: "Ann Smith"})
		f.Add(models.TableActive, recordmodels.Fields{models.ColJobID: "2025-0002", models.ColEmail: "b@x.com", models.ColFullName: "Bob Brown"})
		f.Add(models.TableActive, recordmodels.Fields{models.ColJobID: "2025-0001", models.ColEmail: "ghost@x.com", models.ColFullName: "Ghost"})
		f.Add(models.TableActive, recordmodels.Fields{models.ColJobID: "2025-0003", models.ColEmail: "c@x.com", models.ColFullName: "Cid"})
		book := f.Book
		rec := &recordingTable{Table: f.Book.Active}
		book.Active = rec
		engine := NewInstance(book, f.Headers, nil, nil, f.Clock, time.UTC, stages)

		stats, err := engine.Reconcile(ctx, nil)
		require.Nil(t, err)
		require.Equal(t, []int{4, 3}, rec.deleted)
		require.Equal(t, 2, stats.Deleted)
		require.Zero(t, stats.Inserted)
		require.Equal(t, []string{"2025-0001|a@x.com", "2025-0003|c@x.com"}, activeKeys(f))
		// строка после удалённых сдвинулась и обновлена на своём новом месте
		require.Equal(t, "Cid Moss", f.Row(models.TableActive, 3).Get(models.ColFullName))
	})

	t.Run(`requisition closed later removes its candidates`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		seed(f)
		engine := NewInstance(f.Book, f.Headers, nil, nil, f.Clock, time.UTC, stages)
		_, err := engine.Reconcile(ctx, nil)
		require.Nil(t, err)

		f.Set(models.TableRequisitions, 2, recordmodels.Fields{models.ColStatus: "Closed"})
		stats, err := engine.Reconcile(ctx, nil)
		require.Nil(t, err)
		require.Equal(t, 1, stats.Deleted)
		require.Equal(t, []string{"2025-0003|c@x.com"}, activeKeys(f))
		require.Equal(t, "Closed", f.Row(models.TableCandidates, 2).Get(models.ColJobStatus))
	})

	t.Run(`duplicate candidate key is skipped and counted`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		f.AddRequisition("2025-0001", "Backend Engineer", "Open", "2025-06-02")
		f.AddCandidate("2025-0001", "John Doe", "John.Doe@gmail.com", "Interview")
		f.AddCandidate("2025-0001", "Johnny Doe", "johndoe+jobs@gmail.com", "New Applicant")
		engine := NewInstance(f.Book, f.Headers, nil, nil, f.Clock, time.UTC, stages)

		stats, err := engine.Reconcile(ctx, nil)
		require.Nil(t, err)
		require.Equal(t, 1, stats.Conflicts)
		rows := f.Rows(models.TableActive)
		require.Len(t, rows, 1)
		require.Equal(t, "John Doe", rows[0].Fields.Get(models.ColFullName))
	})

	t.Run(`rows without job id or email stay out of Active`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		f.AddRequisition("2025-0001", "Backend Engineer", "Open", "2025-06-02")
		f.AddCandidate("2025-0001", "No Mail", "", "New Applicant")
		f.AddCandidate("", "No Job", "nojob@x.com", "New Applicant")
		engine := NewInstance(f.Book, f.Headers, nil, nil, f.Clock, time.UTC, stages)

		stats, err := engine.Reconcile(ctx, nil)
		require.Nil(t, err)
		require.Zero(t, stats.Inserted)
		require.Empty(t, f.Rows(models.TableActive))
	})

	t.Run(`scoped run touches only requested jobs`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		seed(f)
		f.Add(models.TableActive, recordmodels.Fields{models.ColJobID: "2025-0002", models.ColEmail: "b@x.com"})
		engine := NewInstance(f.Book, f.Headers, nil, nil, f.Clock, time.UTC, stages)

		stats, err := engine.Reconcile(ctx, []string{"2025-0003"})
		require.Nil(t, err)
		require.Zero(t, stats.Deleted)
		require.Equal(t, 1, stats.Inserted)
		require.ElementsMatch(t, []string{"2025-0002|b@x.com", "2025-0003|c@x.com"}, activeKeys(f))
		require.Equal(t, "", f.Row(models.TableCandidates, 2).Get(models.ColJobStatus))

		stats, err = engine.Reconcile(ctx, []string{"2025-0002"})
		require.Nil(t, err)
		require.Equal(t, 1, stats.Deleted)
		require.Equal(t, []string{"2025-0003|c@x.com"}, activeKeys(f))
	})

	t.Run(`recently edited rows are not overwritten`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		seed(f)
		muted := mute.NewInstance(f.Cache, 10*time.Second)
		engine := NewInstance(f.Book, f.Headers, muted, nil, f.Clock, time.UTC, stages)
		_, err := engine.Reconcile(ctx, nil)
		require.Nil(t, err)

		f.Set(models.TableCandidates, 2, recordmodels.Fields{models.ColStage: "Offer"})
		muted.MarkEdited("2025-0001|a@x.com")
		stats, err := engine.Reconcile(ctx, nil)
		require.Nil(t, err)
		require.Equal(t, 1, stats.Muted)
		require.Equal(t, "Interview", f.Row(models.TableActive, 2).Get(models.ColStage))

		f.Clock.Advance(11 * time.Second)
		stats, err = engine.Reconcile(ctx, nil)
		require.Nil(t, err)
		require.Zero(t, stats.Muted)
		require.Equal(t, 1, stats.Updated)
		require.Equal(t, "Offer", f.Row(models.TableActive, 2).Get(models.ColStage))
	})

	t.Run(`changed link on existing row is marked for sweep`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		seed(f)
		links := &linkRecorder{}
		engine := NewInstance(f.Book, f.Headers, nil, links, f.Clock, time.UTC, stages)
		_, err := engine.Reconcile(ctx, nil)
		require.Nil(t, err)
		require.Empty(t, links.marked)

		f.Set(models.TableCandidates, 2, recordmodels.Fields{models.ColResume: "www.example.com/ann-v2.pdf"})
		_, err = engine.Reconcile(ctx, nil)
		require.Nil(t, err)
		require.Equal(t, []string{testutil.ActiveSheet + "|" + string(models.ColResume)}, links.marked)
		require.Equal(t, "www.example.com/ann-v2.pdf", f.Row(models.TableActive, 2).Get(models.ColResume))
	})

	t.Run(`new row gets clickable links`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		seed(f)
		f.Set(models.TableCandidates, 2, recordmodels.Fields{
			models.ColResume: "www.example.com/ann.pdf",
			models.ColPhone:  "+1 (555) 010-2000",
		})
		engine := NewInstance(f.Book, f.Headers, nil, nil, f.Clock, time.UTC, stages)
		_, err := engine.Reconcile(ctx, nil)
		require.Nil(t, err)

		info := f.Info(models.TableActive)
		link, err := f.Book.Active.GetLink(2, info.Col(models.ColResume))
		require.Nil(t, err)
		require.Equal(t, "https://www.example.com/ann.pdf", link)
		link, err = f.Book.Active.GetLink(2, info.Col(models.ColPhone))
		require.Nil(t, err)
		require.Equal(t, "tel:15550102000", link)
		require.Equal(t, "+1 (555) 010-2000", f.Row(models.TableActive, 2).Get(models.ColPhone))
	})

	t.Run(`missing header aborts the run`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		seed(f)
		require.Nil(t, f.Workbook.EnsureSheet("Broken", nil))
		book := f.Book
		book.Active = f.Workbook.Table("Broken")
		engine := NewInstance(book, f.Headers, nil, nil, f.Clock, time.UTC, stages)

		_, err := engine.Reconcile(ctx, nil)
		require.NotNil(t, err)
	})

	t.Run(`job dropdown covers many open requisitions`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		ids := []string{}
		for n := 1; n <= 30; n++ {
			id := fmt.Sprintf("2025-%04d", n)
			ids = append(ids, id)
			f.AddRequisition(id, "Backend Engineer", "Open", "2025-06-02")
		}
		f.AddCandidate("2025-0001", "Ann Smith", "a@x.com", "Interview")
		engine := NewInstance(f.Book, f.Headers, nil, nil, f.Clock, time.UTC, stages)

		stats, err := engine.Reconcile(ctx, nil)
		require.Nil(t, err)
		require.Equal(t, 1, stats.Inserted)
		f.AddCandidate("2025-0030", "Bob Brown", "b@x.com", "New Applicant")
		stats, err = engine.Reconcile(ctx, nil)
		require.Nil(t, err)
		require.Equal(t, 1, stats.Inserted)

		data, err := f.Workbook.Bytes()
		require.Nil(t, err)
		file, err := excelize.OpenReader(bytes.NewReader(data))
		require.Nil(t, err)
		validations, err := file.GetDataValidations(testutil.ActiveSheet)
		require.Nil(t, err)
		info := f.Info(models.TableActive)
		jobCol, err := excelize.ColumnNumberToName(info.Col(models.ColJobID))
		require.Nil(t, err)
		jobLists := 0
		for _, dv := range validations {
			if !strings.HasPrefix(dv.Sqref, jobCol) {
				continue
			}
			jobLists++
			require.Equal(t, fmt.Sprintf("%s%d:%s%d", jobCol, info.DataStartRow, jobCol, 3+sheet.DropdownSpareRows), dv.Sqref)
			require.Contains(t, dv.Formula1, xlsx.ListSheet)
		}
		require.Equal(t, 1, jobLists)

		cols, err := file.GetCols(xlsx.ListSheet)
		require.Nil(t, err)
		found := false
		for _, col := range cols {
			if len(col) > 0 && col[0] == testutil.ActiveSheet+"!"+jobCol {
				found = true
				require.Equal(t, ids, col[1:])
			}
		}
		require.True(t, found)
		visible, err := file.GetSheetVisible(xlsx.ListSheet)
		require.Nil(t, err)
		require.False(t, visible)
	})
}
