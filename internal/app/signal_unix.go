//go:build !windows

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// interrupt waits for a terminating signal. SIGHUP reloads the PMode
// configuration from storage and clears the policy cache.
func interrupt(cancel <-chan struct{}, c *components, logger *slog.Logger) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(ch)
	for {
		select {
		case sig := <-ch:
			if sig == syscall.SIGHUP {
				c.reload(context.Background(), logger)
				continue
			}
			return fmt.Errorf("received signal %s", sig)
		case <-cancel:
			return errors.New("canceled")
		}
	}
}
