// hiprelayd relays monitoring events into chat rooms.
//
// Usage:
//
//	hiprelayd -config /etc/hiprelay/hiprelay.yaml
//
// SIGINT/SIGTERM stop the daemon; SIGHUP reloads the config file (the file
// is also watched for changes).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hiprelay/internal/app"
	"hiprelay/pkg/sdunit"
)

func main() {
	var (
		cfgPath     string
		stopTimeout time.Duration
	)
	flag.StringVar(&cfgPath, "config", "./hiprelay.yaml", "path to config file (yaml or json)")
	flag.DurationVar(&stopTimeout, "stop-timeout", 15*time.Second, "upper bound for graceful shutdown")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		os.Exit(1)
	}
	if _, err := sdunit.Ready("relaying events"); err != nil {
		fmt.Fprintln(os.Stderr, "sd_notify:", err)
	}

	go func() {
		alive := func() bool {
			select {
			case <-a.Done():
				return false
			default:
				return true
			}
		}
		if err := sdunit.Watchdog(ctx, alive); err != nil {
			fmt.Fprintln(os.Stderr, "watchdog:", err)
		}
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	reason := app.StopSignal
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-a.Done():
			reason = app.StopFatalError
			break loop
		case <-hup:
			_, _ = sdunit.Reloading()
			if _, err := a.Reload(ctx); err != nil {
				fmt.Fprintln(os.Stderr, "reload:", err)
			}
			_, _ = sdunit.Ready("relaying events")
		}
	}

	_, _ = sdunit.Stopping()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)

	if reason == app.StopFatalError {
		if err := a.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
		}
		os.Exit(1)
	}
}
