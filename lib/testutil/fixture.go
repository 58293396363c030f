// Package testutil книга в памяти с тремя таблицами для тестов синхронизации
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ats-sync-backend/lib/sheet"
	"ats-sync-backend/lib/sheet/header"
	"ats-sync-backend/lib/sheet/xlsx"
	statestore "ats-sync-backend/lib/state/store"
	"ats-sync-backend/lib/utils/cache"
	"ats-sync-backend/lib/utils/clock"
	"ats-sync-backend/models"
	recordmodels "ats-sync-backend/models/records"
)

const (
	RequisitionSheet = "Requisitions"
	CandidateSheet   = "All"
	ActiveSheet      = "Active"
)

type Fixture struct {
	T        *testing.T
	Clock    *clock.Fake
	Workbook *xlsx.Workbook
	Book     sheet.Book
	Cache    cache.Provider
	Headers  header.Provider
	Store    statestore.Provider
}

// NewFixture пустая книга с заголовками в первой строке. Время: понедельник 2025-06-30 10:00 UTC.
func NewFixture(t *testing.T) *Fixture {
	clk := clock.NewFake(time.Date(2025, 6, 30, 10, 0, 0, 0, time.UTC))
	wb := xlsx.New()
	for name, kind := range map[string]models.TableKind{
		RequisitionSheet: models.TableRequisitions,
		CandidateSheet:   models.TableCandidates,
		ActiveSheet:      models.TableActive,
	} {
		require.Nil(t, wb.EnsureSheet(name, kind.DefaultHeaders()))
	}
	c := cache.NewInstance(clk)
	return &Fixture{
		T:        t,
		Clock:    clk,
		Workbook: wb,
		Book: sheet.Book{
			Requisitions: wb.Table(RequisitionSheet),
			Candidates:   wb.Table(CandidateSheet),
			Active:       wb.Table(ActiveSheet),
		},
		Cache:   c,
		Headers: header.NewInstance(c, 30*time.Second),
		Store:   statestore.NewMemoryInstance(),
	}
}

func (f *Fixture) Info(kind models.TableKind) sheet.HeaderInfo {
	info, err := f.Headers.Resolve(f.Book.Table(kind), kind)
	require.Nil(f.T, err)
	return *info
}

// Add дописывает строку в конец таблицы и возвращает её номер
func (f *Fixture) Add(kind models.TableKind, values recordmodels.Fields) int {
	t := f.Book.Table(kind)
	row, err := t.AppendRow()
	require.Nil(f.T, err)
	require.Nil(f.T, sheet.WriteFields(t, f.Info(kind), row, values))
	return row
}

func (f *Fixture) AddRequisition(jobID, title, status, opened string) int {
	return f.Add(models.TableRequisitions, recordmodels.Fields{
		models.ColJobID:      jobID,
		models.ColJobTitle:   title,
		models.ColStatus:     status,
		models.ColOpenedDate: opened,
	})
}

func (f *Fixture) AddCandidate(jobID, name, email, stage string) int {
	return f.Add(models.TableCandidates, recordmodels.Fields{
		models.ColJobID:    jobID,
		models.ColFullName: name,
		models.ColEmail:    email,
		models.ColStage:    stage,
	})
}

func (f *Fixture) Set(kind models.TableKind, row int, values recordmodels.Fields) {
	require.Nil(f.T, sheet.WriteFields(f.Book.Table(kind), f.Info(kind), row, values))
}

func (f *Fixture) Row(kind models.TableKind, row int) recordmodels.Fields {
	fields, err := sheet.ReadRow(f.Book.Table(kind), f.Info(kind), row)
	require.Nil(f.T, err)
	return fields
}

// Rows непустые строки таблицы
func (f *Fixture) Rows(kind models.TableKind) []sheet.RowFields {
	rows, err := sheet.BulkRead(f.Book.Table(kind), f.Info(kind))
	require.Nil(f.T, err)
	result := []sheet.RowFields{}
	for _, row := range rows {
		if !row.IsBlank() {
			result = append(result, row)
		}
	}
	return result
}

// CountingTable считает записи в таблицу, для проверки идемпотентности
type CountingTable struct {
	sheet.Table
	Writes  int
	Deletes int
	Links   int
}

func (c *CountingTable) WriteCells(row int, values map[int]string) error {
	c.Writes++
	return c.Table.WriteCells(row, values)
}

func (c *CountingTable) DeleteRow(row int) error {
	c.Deletes++
	return c.Table.DeleteRow(row)
}

func (c *CountingTable) SetLinks(col, startRow int, links []sheet.Link) error {
	c.Links++
	return c.Table.SetLinks(col, startRow, links)
}

func (c *CountingTable) Reset() {
	c.Writes, c.Deletes, c.Links = 0, 0, 0
}

// NotifyRecorder запоминает уведомления вместо отправки
type NotifyRecorder struct {
	mu       sync.Mutex
	Messages []string
	Logs     []string
	Filled   []string
}

func (n *NotifyRecorder) Notify(message string, severity models.Severity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Messages = append(n.Messages, string(severity)+": "+message)
}

func (n *NotifyRecorder) Log(level models.LogLevel, message string, context map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Logs = append(n.Logs, string(level)+": "+message)
}

func (n *NotifyRecorder) RequisitionFilled(jobID, title, candidate string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Filled = append(n.Filled, jobID+"|"+candidate)
}
