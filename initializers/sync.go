package initializers

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"ats-sync-backend/config"
	"ats-sync-backend/db"
	"ats-sync-backend/lib/debounce"
	"ats-sync-backend/lib/hired"
	linkhygiene "ats-sync-backend/lib/link-hygiene"
	"ats-sync-backend/lib/mute"
	"ats-sync-backend/lib/notify"
	auditstore "ats-sync-backend/lib/notify/audit-store"
	"ats-sync-backend/lib/reconcile"
	"ats-sync-backend/lib/requisition"
	"ats-sync-backend/lib/resync"
	"ats-sync-backend/lib/scheduler"
	"ats-sync-backend/lib/settings"
	"ats-sync-backend/lib/sheet"
	"ats-sync-backend/lib/sheet/header"
	"ats-sync-backend/lib/sheet/xlsx"
	"ats-sync-backend/lib/smtp"
	statestore "ats-sync-backend/lib/state/store"
	"ats-sync-backend/lib/triggers"
	"ats-sync-backend/lib/utils/cache"
	"ats-sync-backend/lib/utils/clock"
	initchecker "ats-sync-backend/lib/utils/init-checker"
	"ats-sync-backend/lib/utils/lock"
	workbookstorage "ats-sync-backend/lib/workbook-storage"
	flushworker "ats-sync-backend/lib/workbook-storage/flush-worker"
	connectionhub "ats-sync-backend/lib/ws/hub/connection-hub"
	"ats-sync-backend/models"
)

var (
	workbook *xlsx.Workbook
	guard    = lock.NewGuard(lock.DocumentKey)
)

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).WithField("time_zone", name).Warn("часовой пояс не найден, используется UTC")
		return time.UTC
	}
	return loc
}

func loadWorkbook(ctx context.Context) (*xlsx.Workbook, sheet.Book) {
	wb, err := workbookstorage.Instance.Load(ctx)
	if err != nil {
		panic("Ошибка загрузки книги: " + err.Error())
	}
	names := map[models.TableKind]string{
		models.TableRequisitions: config.Conf.Workbook.RequisitionSheet,
		models.TableCandidates:   config.Conf.Workbook.CandidateSheet,
		models.TableActive:       config.Conf.Workbook.ActiveSheet,
	}
	for kind, name := range names {
		if err = wb.EnsureSheet(name, kind.DefaultHeaders()); err != nil {
			panic("Ошибка подготовки листа " + name + ": " + err.Error())
		}
	}
	return wb, sheet.Book{
		Requisitions: wb.Table(names[models.TableRequisitions]),
		Candidates:   wb.Table(names[models.TableCandidates]),
		Active:       wb.Table(names[models.TableActive]),
	}
}

func InitSync(ctx context.Context) {
	cfg := config.Conf.Sync
	loc := loadLocation(config.Conf.Workbook.TimeZone)
	clk := clock.Real()

	var book sheet.Book
	workbook, book = loadWorkbook(ctx)

	memCache := cache.NewInstance(clk)
	headers := header.NewInstance(memCache, config.Seconds(cfg.HeaderCacheTTLSec))
	store := statestore.NewInstance(db.DB)
	sched := scheduler.NewInstance(clk)

	auditstore.Instance = auditstore.NewInstance(db.DB)
	notify.Instance = notify.NewInstance(connectionhub.Instance, auditstore.Instance, smtp.Instance, notify.Config{
		HireEmailTo:   config.Conf.Notify.HireEmailTo,
		HireEmailFrom: config.Conf.Notify.HireEmailFrom,
	})

	links := linkhygiene.NewInstance(store, sched, book, headers, guard, linkhygiene.Config{
		Delay:     config.Seconds(cfg.LinkSweepDelaySec),
		LockWait:  config.Seconds(cfg.InteractiveLockWaitSec),
		QueueWait: config.Seconds(cfg.QueueLockWaitSec),
	})
	reqs := requisition.NewInstance(book, headers, store, clk, loc, requisition.USFederalCalendar{})
	muted := mute.NewInstance(memCache, config.Seconds(cfg.MuteWindowSec))
	engine := reconcile.NewInstance(book, headers, muted, links, clk, loc, cfg.StageOptions)
	debounce.Instance = debounce.NewInstance(store, sched, guard, engine, reqs, clk, debounce.Config{
		Delay:         config.Seconds(cfg.DebounceDelaySec),
		StaleAge:      config.Seconds(cfg.StaleTriggerAgeSec),
		QueueLockWait: config.Seconds(cfg.QueueLockWaitSec),
		LockWait:      config.Seconds(cfg.InteractiveLockWaitSec),
	})
	settingsProvider := settings.NewInstance(book, headers, store, settings.Options{
		Stages:  cfg.StageOptions,
		Sources: cfg.SourceOptions,
	})

	triggers.Instance = triggers.NewInstance(triggers.Deps{
		Book:     book,
		Headers:  headers,
		Reqs:     reqs,
		Engine:   engine,
		Hired:    hired.NewInstance(book.Candidates, headers, reqs, notify.Instance, clk, loc),
		Queue:    debounce.Instance,
		Settings: settingsProvider,
		Links:    links,
		Muted:    muted,
		Notifier: notify.Instance,
		Guard:    guard,
		Clock:    clk,
		Location: loc,
		LockWait: config.Seconds(cfg.InteractiveLockWaitSec),
	})
	resync.Instance = resync.NewInstance(resync.Deps{
		Headers:  headers,
		Reqs:     reqs,
		Engine:   engine,
		Links:    links,
		Settings: settingsProvider,
		Flusher:  newFlushWorker(),
		Notifier: notify.Instance,
		Guard:    guard,
		Clock:    clk,
		LockWait: config.Seconds(cfg.AdminLockWaitSec),
	})

	initchecker.CheckInit(
		"auditstore", auditstore.Instance,
		"notify", notify.Instance,
		"debounce", debounce.Instance,
		"triggers", triggers.Instance,
		"resync", resync.Instance,
	)

	// после запуска: выпадающие списки и полная сверка по очереди
	if _, err := triggers.Instance.OnStructuralChange(ctx); err != nil {
		log.WithError(err).Warn("первичная проверка таблиц не выполнена")
	}
}

func newFlushWorker() *flushworker.Impl {
	return flushworker.NewWorker(workbookstorage.Instance, workbook, debounce.Instance, guard,
		config.Seconds(config.Conf.Sync.FlushPeriodSec), config.Seconds(config.Conf.Sync.AdminLockWaitSec))
}

func startFlushWorker(ctx context.Context) {
	flushworker.StartWorker(ctx, workbookstorage.Instance, workbook, debounce.Instance, guard,
		config.Seconds(config.Conf.Sync.FlushPeriodSec), config.Seconds(config.Conf.Sync.AdminLockWaitSec))
}
