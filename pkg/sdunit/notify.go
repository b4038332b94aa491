package sdunit

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Ready tells systemd (Type=notify units) that startup finished.
// It reports false when NOTIFY_SOCKET is unset.
func Ready(status string) (bool, error) {
	return notify(daemon.SdNotifyReady, status)
}

// Stopping tells systemd that shutdown began.
func Stopping() (bool, error) {
	return notify(daemon.SdNotifyStopping, "")
}

// Reloading brackets a configuration reload; call Ready afterwards.
func Reloading() (bool, error) {
	return notify(daemon.SdNotifyReloading, "")
}

func notify(state, status string) (bool, error) {
	if status != "" {
		state = fmt.Sprintf("%s\nSTATUS=%s", state, status)
	}
	return daemon.SdNotify(false, state)
}

// Watchdog pings systemd at half the unit's WatchdogSec until ctx ends.
// Pings are skipped while alive reports false, letting systemd restart a
// wedged daemon. It returns at once when the watchdog is not enabled.
func Watchdog(ctx context.Context, alive func() bool) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return err
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if alive != nil && !alive() {
				continue
			}
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				return err
			}
		}
	}
}
