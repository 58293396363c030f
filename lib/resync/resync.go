package resync

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	linkhygiene "ats-sync-backend/lib/link-hygiene"
	"ats-sync-backend/lib/notify"
	"ats-sync-backend/lib/reconcile"
	"ats-sync-backend/lib/requisition"
	"ats-sync-backend/lib/settings"
	"ats-sync-backend/lib/sheet/header"
	"ats-sync-backend/lib/utils/clock"
	"ats-sync-backend/lib/utils/lock"
	"ats-sync-backend/models"
)

// Flusher сохранение книги, вызывается под блокировкой документа
type Flusher interface {
	Flush(ctx context.Context) error
}

type StepReport struct {
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
	Detail   any    `json:"detail,omitempty"`
}

type Report struct {
	Ran   bool         `json:"ran"`
	OK    bool         `json:"ok"`
	Steps []StepReport `json:"steps"`
}

type Provider interface {
	// Run полная пересинхронизация. Ошибка шага не прерывает следующие шаги.
	Run(ctx context.Context) (Report, error)
}

type Deps struct {
	Headers  header.Provider
	Reqs     requisition.Provider
	Engine   reconcile.Provider
	Links    linkhygiene.Provider
	Settings settings.Provider
	Flusher  Flusher
	Notifier notify.Provider
	Guard    lock.Guard
	Clock    clock.Clock
	LockWait time.Duration
}

var Instance Provider

func NewInstance(d Deps) Provider {
	return &impl{d: d}
}

type impl struct {
	d Deps
}

type step struct {
	name string
	fn   func(ctx context.Context) (any, error)
}

func (i impl) steps() []step {
	return []step{
		{"invalidate_headers", func(ctx context.Context) (any, error) {
			i.d.Headers.InvalidateAll()
			return nil, nil
		}},
		{"recompute_days_open", func(ctx context.Context) (any, error) {
			return nil, i.d.Reqs.RecomputeDaysOpen(ctx, nil)
		}},
		{"reconcile", func(ctx context.Context) (any, error) {
			stats, err := i.d.Engine.Reconcile(ctx, nil)
			return stats, err
		}},
		{"link_sweep", func(ctx context.Context) (any, error) {
			if i.d.Links == nil {
				return nil, nil
			}
			count, err := i.d.Links.Sweep(ctx)
			return map[string]int{"links": count}, err
		}},
		{"apply_settings", func(ctx context.Context) (any, error) {
			if i.d.Settings == nil {
				return nil, nil
			}
			return nil, i.d.Settings.Apply()
		}},
		{"flush_workbook", func(ctx context.Context) (any, error) {
			if i.d.Flusher == nil {
				return nil, nil
			}
			return nil, i.d.Flusher.Flush(ctx)
		}},
	}
}

func (i impl) Run(ctx context.Context) (report Report, err error) {
	report.Steps = []StepReport{}
	report.Ran, err = i.d.Guard.Run(ctx, lock.RunOptions{
		Name: "full-resync",
		Wait: i.d.LockWait,
	}, func(ctx context.Context) error {
		report.OK = true
		for _, s := range i.steps() {
			result := i.runStep(ctx, s)
			if !result.OK {
				report.OK = false
			}
			report.Steps = append(report.Steps, result)
		}
		return nil
	})
	if err != nil {
		return report, err
	}
	if !report.Ran {
		return report, errors.Wrap(lock.ErrLockBusy, "пересинхронизация не выполнена")
	}
	if report.OK {
		i.d.Notifier.Notify("Пересинхронизация выполнена", models.SeverityInfo)
	} else {
		i.d.Notifier.Notify("Пересинхронизация выполнена частично, подробности в журнале", models.SeverityWarning)
	}
	i.d.Notifier.Log(models.LogLevelInfo, "пересинхронизация", map[string]any{"ok": report.OK, "steps": report.Steps})
	return report, nil
}

func (i impl) runStep(ctx context.Context, s step) (result StepReport) {
	logger := log.WithField("step", s.name)
	started := i.d.Clock.Now()
	result.Name = s.name
	defer func() {
		if r := recover(); r != nil {
			logger.
				WithField("panic_stack", string(debug.Stack())).
				Errorf("panic: (%v)", r)
			result.OK = false
			result.Error = fmt.Sprintf("panic: %v", r)
		}
		result.Duration = i.d.Clock.Now().Sub(started).String()
	}()
	detail, err := s.fn(ctx)
	if err != nil {
		logger.WithError(err).Error("шаг пересинхронизации завершился ошибкой")
		result.Error = err.Error()
		return result
	}
	result.OK = true
	result.Detail = detail
	logger.Info("шаг пересинхронизации выполнен")
	return result
}
