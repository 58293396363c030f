package xlsx

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ats-sync-backend/models"
)

func TestWorkbook(t *testing.T) {
	t.Run(`date cells are read in sheet layout`, func(t *testing.T) {
		w := New()
		require.Nil(t, w.EnsureSheet("Requisitions", models.TableRequisitions.DefaultHeaders()))
		require.Nil(t, w.file.SetCellValue("Requisitions", "A2", "2025-0001"))
		require.Nil(t, w.file.SetCellValue("Requisitions", "D2", time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)))
		require.Nil(t, w.file.SetCellValue("Requisitions", "E2", time.Date(2025, 6, 3, 9, 30, 0, 0, time.UTC)))
		custom := "dd.mm.yyyy"
		style, err := w.file.NewStyle(&excelize.Style{CustomNumFmt: &custom})
		require.Nil(t, err)
		require.Nil(t, w.file.SetCellValue("Requisitions", "F2", 45845))
		require.Nil(t, w.file.SetCellStyle("Requisitions", "F2", "F2", style))
		require.Nil(t, w.file.SetCellValue("Requisitions", "I2", 19))

		rows, err := w.Table("Requisitions").ReadRows(2, 1)
		require.Nil(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, "2025-0001", rows[0][0])
		require.Equal(t, "2025-06-02", rows[0][3])
		require.Equal(t, "2025-06-03 09:30:00", rows[0][4])
		require.Equal(t, "2025-07-07", rows[0][5])
		require.Equal(t, "19", rows[0][8])
	})

	t.Run(`date format codes`, func(t *testing.T) {
		require.True(t, isDateFormatCode("dd.mm.yyyy"))
		require.True(t, isDateFormatCode("[$-409]mmm d, yyyy"))
		require.False(t, isDateFormatCode(`0.00" days"`))
		require.False(t, isDateFormatCode("#,##0"))
	})

	t.Run(`dropdown is replaced per column`, func(t *testing.T) {
		w := New()
		require.Nil(t, w.EnsureSheet("Active", models.TableActive.DefaultHeaders()))
		table := w.Table("Active")
		long := []string{}
		for n := 1; n <= 40; n++ {
			long = append(long, fmt.Sprintf("Backend Engineer %02d", n))
		}
		require.Nil(t, table.SetDropdown(2, 2, 3, long))
		require.Nil(t, table.SetDropdown(5, 2, 3, []string{"Interview", "Hired"}))
		w.MarkClean()
		require.Nil(t, table.SetDropdown(2, 2, 3, long))
		require.False(t, w.Dirty())

		require.Nil(t, table.SetDropdown(2, 2, 10, []string{"2025-0001"}))
		require.True(t, w.Dirty())
		validations, err := w.file.GetDataValidations("Active")
		require.Nil(t, err)
		sqrefs := []string{}
		for _, dv := range validations {
			sqrefs = append(sqrefs, dv.Sqref)
		}
		require.ElementsMatch(t, []string{"B2:B10", "E2:E3"}, sqrefs)

		cols, err := w.file.GetCols(ListSheet)
		require.Nil(t, err)
		require.Equal(t, "Active!B", cols[0][0])
		require.Equal(t, "2025-0001", cols[0][1])
		for _, value := range cols[0][2:] {
			require.Equal(t, "", value)
		}
		require.Equal(t, []string{"Active!E", "Interview", "Hired"}, cols[1][:3])

		require.NotNil(t, table.SetDropdown(2, 2, 10, nil))
	})
}
