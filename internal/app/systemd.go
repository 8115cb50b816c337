package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"hwbot/internal/tracker"
	logx "hwbot/pkg/logx"
)

// sdNotifier talks to the service manager over $NOTIFY_SOCKET. Outside
// systemd every call is a no-op.
type sdNotifier struct {
	log    logx.Logger
	notify func(state string) (bool, error)
	// restarts reports supervisor restarts for the status line; nil before Start.
	restarts func() uint64
}

func newSDNotifier(log logx.Logger) *sdNotifier {
	return &sdNotifier{
		log:    log,
		notify: func(state string) (bool, error) { return daemon.SdNotify(false, state) },
	}
}

func (n *sdNotifier) send(states ...string) {
	for _, st := range states {
		if _, err := n.notify(st); err != nil {
			n.log.Debug("sd_notify failed", logx.String("state", st), logx.Err(err))
		}
	}
}

func (n *sdNotifier) ready()     { n.send(daemon.SdNotifyReady) }
func (n *sdNotifier) stopping()  { n.send(daemon.SdNotifyStopping) }
func (n *sdNotifier) reloading() { n.send(daemon.SdNotifyReloading) }

// cycle reports the outcome of a poll as liveness plus a status line.
func (n *sdNotifier) cycle(out tracker.Outcome) {
	var restarts uint64
	if n.restarts != nil {
		restarts = n.restarts()
	}
	n.send(daemon.SdNotifyWatchdog, fmt.Sprintf("STATUS=last cycle %s, cursor %d, restarts %d", out.Result, out.Cursor, restarts))
}

// watchdog pings at half the configured WatchdogSec so long poll intervals
// do not trip the watchdog between cycles.
func (n *sdNotifier) watchdog(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
