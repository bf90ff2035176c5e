package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/config"
	"github.com/civicdesk/grievance-service/internal/service"
)

const sweepTimeout = 2 * time.Minute

// SLAMonitorWorker runs the deadline sweep on a fixed schedule.
type SLAMonitorWorker struct {
	monitor  *service.SLAMonitor
	cron     *cron.Cron
	logger   *zap.Logger
	interval time.Duration
	enabled  bool
}

// NewSLAMonitorWorker constructs the worker without starting it.
func NewSLAMonitorWorker(monitor *service.SLAMonitor, cfg config.SLAConfig, logger *zap.Logger) *SLAMonitorWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SLAMonitorWorker{
		monitor:  monitor,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		logger:   logger,
		interval: cfg.MonitorInterval(),
		enabled:  cfg.MonitorEnabled,
	}
}

// Start schedules the periodic sweep and kicks off an immediate one so a
// restart does not leave a silent gap until the first tick.
func (w *SLAMonitorWorker) Start() error {
	if !w.enabled {
		w.logger.Info("sla monitor disabled")
		return nil
	}
	if _, err := w.cron.AddFunc(fmt.Sprintf("@every %s", w.interval), w.runOnce); err != nil {
		return fmt.Errorf("schedule sla sweep: %w", err)
	}
	w.cron.Start()
	go w.runOnce()
	w.logger.Info("sla monitor started", zap.Duration("interval", w.interval))
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (w *SLAMonitorWorker) Stop() {
	if !w.enabled {
		return
	}
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info("sla monitor stopped")
}

func (w *SLAMonitorWorker) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	if err := w.monitor.RunSweep(ctx); err != nil {
		w.logger.Error("sla sweep failed", zap.Error(err))
	}
}
