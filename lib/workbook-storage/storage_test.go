package workbookstorage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ats-sync-backend/lib/sheet"
	"ats-sync-backend/lib/sheet/xlsx"
	"ats-sync-backend/models"
)

func TestFileStorage(t *testing.T) {
	ctx := context.Background()

	t.Run(`missing file gives empty workbook`, func(t *testing.T) {
		s := NewFileInstance(filepath.Join(t.TempDir(), "book.xlsx"))
		wb, err := s.Load(ctx)
		require.Nil(t, err)
		require.NotNil(t, wb)
	})

	t.Run(`saved workbook keeps rows and links`, func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "book.xlsx")
		s := NewFileInstance(path)
		wb := xlsx.New()
		require.Nil(t, wb.EnsureSheet("Active", models.TableActive.DefaultHeaders()))
		table := wb.Table("Active")
		require.Nil(t, table.WriteCells(2, map[int]string{1: "Ann Smith", 2: "a@x.com"}))
		require.Nil(t, table.SetLinks(4, 2, []sheet.Link{{URL: "https://x.com/cv", Text: "cv"}}))
		require.Nil(t, s.Save(ctx, wb))

		loaded, err := s.Load(ctx)
		require.Nil(t, err)
		rows, err := loaded.Table("Active").ReadRows(2, 1)
		require.Nil(t, err)
		require.Equal(t, "Ann Smith", rows[0][0])
		link, err := loaded.Table("Active").GetLink(2, 4)
		require.Nil(t, err)
		require.Equal(t, "https://x.com/cv", link)
	})
}
