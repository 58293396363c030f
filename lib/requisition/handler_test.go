package requisition

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ats-sync-backend/lib/sheet/xlsx"
	"ats-sync-backend/lib/testutil"
	"ats-sync-backend/models"
)

func TestHandler(t *testing.T) {
	ctx := context.Background()

	t.Run(`assigns job id and stamps opened date`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		f.AddRequisition("2025-0007", "Designer", "Closed", "2025-01-02")
		row := f.AddRequisition("", "Engineer", "open", "")
		h := NewInstance(f.Book, f.Headers, f.Store, f.Clock, time.UTC, USFederalCalendar{})

		ids, err := h.HandleEdited(ctx, []EditedRow{{Row: row}})
		require.Nil(t, err)
		require.Equal(t, []string{"2025-0008"}, ids)

		fields := f.Row(models.TableRequisitions, row)
		require.Equal(t, "2025-0008", fields.Get(models.ColJobID))
		require.Equal(t, "Open", fields.Get(models.ColStatus))
		require.Equal(t, "2025-06-30", fields.Get(models.ColOpenedDate))

		// ID не переиспользуется, даже если строку удалили
		require.Nil(t, f.Book.Requisitions.DeleteRow(row))
		next := f.AddRequisition("", "Analyst", "", "")
		ids, err = h.HandleEdited(ctx, []EditedRow{{Row: next}})
		require.Nil(t, err)
		require.Equal(t, []string{"2025-0009"}, ids)
	})

	t.Run(`opened date stored as an Excel date is kept`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		row := f.AddRequisition("2025-0001", "Engineer", "open", "")
		cell, err := excelize.CoordinatesToCellName(f.Info(models.TableRequisitions).Col(models.ColOpenedDate), row)
		require.Nil(t, err)

		data, _, err := f.Workbook.Reader()
		require.Nil(t, err)
		file, err := excelize.OpenReader(data)
		require.Nil(t, err)
		require.Nil(t, file.SetCellValue(testutil.RequisitionSheet, cell, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)))
		buf, err := file.WriteToBuffer()
		require.Nil(t, err)
		wb, err := xlsx.Open(buf)
		require.Nil(t, err)
		f.Book.Requisitions = wb.Table(testutil.RequisitionSheet)
		h := NewInstance(f.Book, f.Headers, f.Store, f.Clock, time.UTC, USFederalCalendar{})

		ids, err := h.HandleEdited(ctx, []EditedRow{{Row: row}})
		require.Nil(t, err)
		require.Equal(t, []string{"2025-0001"}, ids)
		fields := f.Row(models.TableRequisitions, row)
		require.Equal(t, "Open", fields.Get(models.ColStatus))
		require.Equal(t, "2025-06-02", fields.Get(models.ColOpenedDate))
		require.Equal(t, "19", fields.Get(models.ColDaysOpen))
	})

	t.Run(`blank row is ignored`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		h := NewInstance(f.Book, f.Headers, f.Store, f.Clock, time.UTC, USFederalCalendar{})
		ids, err := h.HandleEdited(ctx, []EditedRow{{Row: 5}})
		require.Nil(t, err)
		require.Empty(t, ids)
	})

	t.Run(`MarkHired stamps dates and candidate`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		row := f.AddRequisition("2025-0001", "Engineer", "Open", "2025-06-16")
		h := NewInstance(f.Book, f.Headers, f.Store, f.Clock, time.UTC, USFederalCalendar{})

		require.Nil(t, h.MarkHired(ctx, "2025-0001", "Ann Lee"))
		fields := f.Row(models.TableRequisitions, row)
		require.Equal(t, "Hired", fields.Get(models.ColStatus))
		require.Equal(t, "Ann Lee", fields.Get(models.ColHiredCandidate))
		require.Equal(t, "2025-06-30", fields.Get(models.ColHiredDate))
		require.Equal(t, "2025-06-30", fields.Get(models.ColClosedDate))
		// 16.06 -> 30.06: 10 будних дней минус Juneteenth
		require.Equal(t, "9", fields.Get(models.ColDaysOpen))

		require.Error(t, h.MarkHired(ctx, "2025-0404", "Nobody"))
	})

	t.Run(`RecomputeDaysOpen only for scope`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		first := f.AddRequisition("2025-0001", "Engineer", "Open", "2025-06-23")
		second := f.AddRequisition("2025-0002", "Designer", "Open", "2025-06-23")
		h := NewInstance(f.Book, f.Headers, f.Store, f.Clock, time.UTC, USFederalCalendar{})

		require.Nil(t, h.RecomputeDaysOpen(ctx, []string{"2025-0002"}))
		require.Equal(t, "", f.Row(models.TableRequisitions, first).Get(models.ColDaysOpen))
		require.Equal(t, "5", f.Row(models.TableRequisitions, second).Get(models.ColDaysOpen))

		require.Nil(t, h.RecomputeDaysOpen(ctx, nil))
		require.Equal(t, "5", f.Row(models.TableRequisitions, first).Get(models.ColDaysOpen))
	})

	t.Run(`header missing aborts`, func(t *testing.T) {
		f := testutil.NewFixture(t)
		require.Nil(t, f.Book.Requisitions.WriteCells(1, map[int]string{1: "Requisition"}))
		f.Headers.InvalidateAll()
		h := NewInstance(f.Book, f.Headers, f.Store, f.Clock, time.UTC, USFederalCalendar{})
		_, err := h.HandleEdited(ctx, []EditedRow{{Row: 2}})
		require.Error(t, err)
	})
}
