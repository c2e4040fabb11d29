package worker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"backend/internal/discovery"
	"backend/internal/models"
	"backend/internal/repository"
)

// Scout runs the discovery mission that files fresh reports.
type Scout interface {
	RunMission(ctx context.Context) *discovery.MissionResult
}

// Processor turns a pending report into a debate, blocking until the
// debate is fully generated or the run fails.
type Processor interface {
	ProcessReport(ctx context.Context, reportID string) error
}

// Worker is the autonomous once-per-day scheduler. It wakes on a fixed
// tick, checks the run gate against persisted state and, when the gate
// opens, executes one full mission: discovery followed by sequential
// processing of all machine-filed pending reports.
type Worker struct {
	settings      repository.SettingsRepository
	reports       repository.ReportRepository
	scout         Scout
	processor     Processor
	machinePrefix string
	tick          time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

func New(
	settings repository.SettingsRepository,
	reports repository.ReportRepository,
	scout Scout,
	processor Processor,
	machinePrefix string,
	tick time.Duration,
	logger *zap.Logger,
) *Worker {
	if tick == 0 {
		tick = 60 * time.Second
	}
	return &Worker{
		settings:      settings,
		reports:       reports,
		scout:         scout,
		processor:     processor,
		machinePrefix: machinePrefix,
		tick:          tick,
		now:           time.Now,
		logger:        logger,
	}
}

// Run blocks until ctx is cancelled. A failing or panicking mission never
// stops the loop; the next tick re-evaluates the gate.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("Scheduler worker started",
		zap.Duration("tick", w.tick),
		zap.String("machine_prefix", w.machinePrefix))

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Scheduler worker stopped")
			return
		case <-ticker.C:
			w.tickOnce(ctx)
		}
	}
}

func (w *Worker) tickOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Scheduler tick panicked", zap.Any("panic", r))
		}
	}()

	state, err := w.settings.Read()
	if err != nil {
		w.logger.Error("Failed to read scheduler state", zap.Error(err))
		return
	}

	if !w.shouldRun(state, w.now()) {
		return
	}

	w.RunMission(ctx)
}

// shouldRun implements the daily gate: the worker is enabled, the local
// time of day has passed the run window, and no run has happened on
// today's calendar date yet.
func (w *Worker) shouldRun(state *models.SchedulerState, now time.Time) bool {
	if !state.WorkerEnabled {
		return false
	}

	windowHour, windowMin, err := parseWindow(state.RunWindow)
	if err != nil {
		w.logger.Error("Invalid run window, scheduler disarmed",
			zap.String("run_window", state.RunWindow),
			zap.Error(err))
		return false
	}

	if now.Hour() < windowHour || (now.Hour() == windowHour && now.Minute() < windowMin) {
		return false
	}

	if state.LastRunAt != nil && sameDay(*state.LastRunAt, now) {
		return false
	}
	return true
}

// RunMission performs one complete scheduled cycle. It is also invoked
// directly by the manual trigger endpoint.
func (w *Worker) RunMission(ctx context.Context) {
	started := w.now()
	w.logger.Info("Mission started")

	// Status only; last_run is stamped after the batch so an aborted
	// mission stays eligible for a retry on a later tick the same day.
	if err := w.settings.SetRunStatus(models.RunStatusRunning); err != nil {
		w.logger.Error("Failed to mark mission running", zap.Error(err))
	}

	status := w.executeMission(ctx)

	if err := w.settings.UpdateLastRun(status); err != nil {
		w.logger.Error("Failed to record mission outcome",
			zap.String("status", status),
			zap.Error(err))
	}

	w.logger.Info("Mission finished",
		zap.String("status", status),
		zap.Duration("elapsed", w.now().Sub(started)))
}

func (w *Worker) executeMission(ctx context.Context) string {
	mission := w.scout.RunMission(ctx)
	switch mission.Status {
	case discovery.MissionError:
		return models.RunStatusError(mission.Message)
	case discovery.MissionSuccess:
		w.logger.Info("Discovery filed a report",
			zap.String("title", mission.Title),
			zap.String("report_id", mission.ReportID))
	}

	pending, err := w.reports.ListMachinePending(w.machinePrefix)
	if err != nil {
		return models.RunStatusError(fmt.Sprintf("failed to list pending reports: %v", err))
	}
	if len(pending) == 0 {
		if mission.Status == discovery.MissionEmpty {
			return models.RunStatusEmpty
		}
		return models.RunStatusError("discovery succeeded but report not found in queue")
	}

	w.logger.Info("Processing pending machine reports", zap.Int("count", len(pending)))

	processed := 0
	var lastErr error
	for _, report := range pending {
		if ctx.Err() != nil {
			return models.RunStatusError("mission interrupted: " + ctx.Err().Error())
		}
		// Sequential on purpose: one debate at a time keeps provider
		// usage inside rate limits.
		if err := w.processor.ProcessReport(ctx, report.ID); err != nil {
			lastErr = err
			w.logger.Error("Debate run failed",
				zap.String("report_id", report.ID),
				zap.Error(err))
			continue
		}
		processed++
	}

	if processed == 0 && lastErr != nil {
		return models.RunStatusError(lastErr.Error())
	}
	if processed < len(pending) {
		return models.RunStatusError(fmt.Sprintf("processed %d of %d reports, last error: %v",
			processed, len(pending), lastErr))
	}
	return models.RunStatusSuccess
}

func parseWindow(window string) (hour, minute int, err error) {
	parts := strings.SplitN(window, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", window)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", window)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", window)
	}
	return hour, minute, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
