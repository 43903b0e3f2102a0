package workflow

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ronappleton/logistics-orchestrator/internal/config"
	"github.com/ronappleton/logistics-orchestrator/internal/metrics"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			newClock,
			newStore,
			newNotifier,
			newPipeline,
			newMission,
			newGate,
			newService,
		),
		fx.Invoke(registerJanitor),
	)
}

func newClock() Clock { return SystemClock() }

func newStore(cfg config.Config, logger *zap.Logger) (Store, error) {
	if cfg.Database.DSN != "" {
		logger.Info("using postgres store")
		return NewPGStore(cfg.Database.DSN)
	}
	return NewMemoryStore(), nil
}

func newNotifier(cfg config.Config) *Notifier {
	return NewNotifier(
		cfg.Notify.AuditURL, cfg.Notify.AuditTimeout,
		cfg.Notify.EventURL, cfg.Notify.EventTimeout,
	)
}

func newPipeline(cfg config.Config, store Store, collab Collaborators, clock Clock, notify *Notifier, logger *zap.Logger, recorder *metrics.Recorder) *Pipeline {
	settle := parseDuration(cfg.Workflow.SettleDelay, time.Second)
	return NewPipeline(store, collab, clock, notify, logger, recorder, settle)
}

func newMission(cfg config.Config, store Store, clock Clock, notify *Notifier, logger *zap.Logger, recorder *metrics.Recorder) *Mission {
	defaults := DefaultMissionConfig()
	mc := MissionConfig{
		LoadDuration:    parseDuration(cfg.Mission.LoadDuration, defaults.LoadDuration),
		UnloadDuration:  parseDuration(cfg.Mission.UnloadDuration, defaults.UnloadDuration),
		TravelPerMinute: parseDuration(cfg.Mission.TravelPerMinute, defaults.TravelPerMinute),
		BatteryFloorPct: cfg.Mission.BatteryFloorPct,
		BatteryDrainPct: cfg.Mission.BatteryDrainPct,
	}
	if mc.BatteryFloorPct <= 0 {
		mc.BatteryFloorPct = defaults.BatteryFloorPct
	}
	if mc.BatteryDrainPct <= 0 {
		mc.BatteryDrainPct = defaults.BatteryDrainPct
	}
	return NewMission(store, clock, notify, logger, recorder, mc)
}

func newGate(cfg config.Config, store Store, mission *Mission, clock Clock, notify *Notifier, logger *zap.Logger) *Gate {
	esc := EscalationConfig{
		Enabled: cfg.Approval.Escalation.Enabled,
		Window:  parseDuration(cfg.Approval.Escalation.Window, 10*time.Minute),
		Policy:  cfg.Approval.Escalation.Policy,
	}
	return NewGate(store, mission, clock, notify, logger, esc)
}

func newService(cfg config.Config, store Store, pipeline *Pipeline, gate *Gate, clock Clock, notify *Notifier, logger *zap.Logger, recorder *metrics.Recorder) *Service {
	return NewService(store, pipeline, gate, clock, notify, logger, recorder, cfg.Workflow.SingleFlight)
}

// registerJanitor sweeps terminal states past the retention window so ids
// become reusable without an explicit reset.
func registerJanitor(lc fx.Lifecycle, cfg config.Config, store Store, logger *zap.Logger) {
	maxAge := parseDuration(cfg.Retention.MaxAge, time.Hour)
	interval := parseDuration(cfg.Retention.SweepInterval, 5*time.Minute)
	stop := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-stop:
						return
					case <-ticker.C:
						if removed := store.Sweep(time.Now().UTC().Add(-maxAge)); removed > 0 {
							logger.Info("retention sweep", zap.Int("removed", removed))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stop)
			return nil
		},
	})
}
