package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"hwbot/internal/config"
	"hwbot/internal/homework"
	"hwbot/internal/notifier"
	"hwbot/internal/runtime/supervisor"
	"hwbot/internal/tracker"
	telegram "hwbot/internal/transport/telegram/adapter"
	logx "hwbot/pkg/logx"
)

const trackerMaxRestarts = 5

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	sd   *sdNotifier

	sender *senderRef
	poller *pollerRef
	notif  *notifier.Service
	track  *tracker.Tracker
}

// New loads the config and builds every component. Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logSvc, log := logx.New(mapLogConfig(cfg))

	tgCfg, err := mapTelegramConfig(cfg)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(tgCfg, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	sender := &senderRef{}
	sender.cur.Store(ad)

	hwCfg, err := mapHomeworkConfig(cfg)
	if err != nil {
		return nil, err
	}
	client, err := homework.NewClient(hwCfg, log.With(logx.String("comp", "homework")))
	if err != nil {
		return nil, fmt.Errorf("homework: %w", err)
	}
	poller := &pollerRef{}
	poller.cur.Store(client)

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notifier.New(ncfg, sender, log.With(logx.String("comp", "notifier")))

	tcfg, err := mapTrackerConfig(cfg)
	if err != nil {
		return nil, err
	}
	track, err := tracker.New(tcfg, poller, notif, log.With(logx.String("comp", "tracker")))
	if err != nil {
		return nil, err
	}

	sd := newSDNotifier(log.With(logx.String("comp", "systemd")))
	track.OnCycle(sd.cycle)

	return &App{
		cfgm:   cfgm,
		log:    log,
		logs:   logSvc,
		sd:     sd,
		sender: sender,
		poller: poller,
		notif:  notif,
		track:  track,
	}, nil
}

func (a *App) Tracker() *tracker.Tracker { return a.track }

// Done is closed once the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))), supervisor.WithCancelOnError(true))
	a.sd.restarts = a.sup.Restarts
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(a.validate)

	// A tracker that keeps crashing takes the process down so the service
	// manager can restart it from scratch.
	a.sup.GoRestart("tracker", a.track.Run,
		supervisor.WithRestartBackoff(time.Second, 30*time.Second),
		supervisor.WithMaxRestarts(trackerMaxRestarts),
		supervisor.WithFatalOnFinalError(true),
	)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go0("systemd.watchdog", a.sd.watchdog)

	a.sd.ready()
	a.log.Info("bot started",
		logx.String("config", a.cfgm.Path()),
		logx.Int64("chat_id", a.notif.Target().ChatID),
		logx.Int64("cursor", a.track.Cursor()),
	)
	return nil
}

// validate checks that a reloaded config can actually be mapped onto the
// running components.
func (a *App) validate(_ context.Context, cfg *config.Config) error {
	if _, err := mapTelegramConfig(cfg); err != nil {
		return err
	}
	if _, err := mapHomeworkConfig(cfg); err != nil {
		return err
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	_, err := mapTrackerConfig(cfg)
	return err
}

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					drained = true
				}
			}
			a.apply(last, next)
			last = next
		}
	}
}

func (a *App) apply(prev, next *config.Config) {
	sections, attrs := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	a.sd.reloading()
	defer a.sd.ready()

	if slices.Contains(sections, "logging") {
		a.logs.Apply(mapLogConfig(next))
	}

	if slices.Contains(sections, "telegram") {
		tgCfg, err := mapTelegramConfig(next)
		if err == nil {
			var ad *telegram.Adapter
			ad, err = telegram.New(tgCfg, a.log.With(logx.String("comp", "telegram")))
			if err == nil {
				a.sender.cur.Store(ad)
			}
		}
		if err != nil {
			a.log.Warn("telegram config not applied; keeping previous", logx.Err(err))
		}
	}

	if slices.Contains(sections, "homework") {
		hwCfg, err := mapHomeworkConfig(next)
		if err == nil {
			var client *homework.Client
			client, err = homework.NewClient(hwCfg, a.log.With(logx.String("comp", "homework")))
			if err == nil {
				a.poller.cur.Store(client)
			}
		}
		if err != nil {
			a.log.Warn("homework config not applied; keeping previous", logx.Err(err))
		}
	}

	if slices.Contains(sections, "telegram") || slices.Contains(sections, "notifier") {
		if ncfg, err := mapNotifierConfig(next); err != nil {
			a.log.Warn("notifier config not applied; keeping previous", logx.Err(err))
		} else {
			a.notif.Apply(ncfg)
		}
	}

	if slices.Contains(sections, "poll") {
		tcfg, err := mapTrackerConfig(next)
		if err == nil {
			err = a.track.Apply(tcfg)
		}
		if err != nil {
			a.log.Warn("poll config not applied; keeping previous", logx.Err(err))
		}
	}

	if slices.Contains(sections, "env_file") {
		a.log.Warn("env_file changed; variables already in the environment are kept until restart")
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Stop cancels every loop and waits for them, bounded by ctx.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.logs.Close()
	}
	a.log.Info("stopping",
		logx.String("reason", string(reason)),
		logx.Int64("cursor", a.track.Cursor()),
		logx.Int("sent", len(a.notif.History())),
		logx.Int64("goroutines", a.sup.Active()),
	)
	a.sd.stopping()

	err := a.sup.Stop(ctx)
	if err != nil {
		a.log.Error("stop finished with error", logx.Err(err))
	} else {
		a.log.Info("stopped")
	}
	if cerr := a.logs.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
