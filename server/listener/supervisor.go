package listener

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/julienstroheker/portrelay/internal/config"
	"github.com/julienstroheker/portrelay/internal/logging"
	"github.com/julienstroheker/portrelay/internal/relay"
)

// ErrNoListeners is returned by Run when no route could be bound
var ErrNoListeners = errors.New("no route could be bound")

// RunOptions contains configuration for Run
type RunOptions struct {
	// ListenHost is the address every source port is bound on
	ListenHost string

	// Selector is shared by all groups; it holds no per-connection state
	Selector *relay.Selector

	// ShutdownTimeout bounds how long in-flight relays are drained once ctx
	// ends; remaining connections are then closed. Zero skips the drain.
	ShutdownTimeout time.Duration

	// Ready, if set, is called with the bound groups before serving starts
	Ready func(groups []*Group)
}

// Run binds one Group per route and serves them all until ctx is cancelled.
// A route whose source port cannot be bound is logged and skipped; the others
// keep running.
func Run(ctx context.Context, logger *logging.Logger, table config.Table, opts *RunOptions) error {
	if opts == nil {
		opts = &RunOptions{}
	}

	groups := make([]*Group, 0, len(table))
	for _, route := range table.Clone() {
		g := NewGroup(&Options{
			Route:    route,
			Host:     opts.ListenHost,
			Selector: opts.Selector,
		})

		if err := g.Listen(ctx); err != nil {
			logger.Error("Route disabled",
				logging.Port("route", route.Source),
				logging.Error(err))
			continue
		}
		groups = append(groups, g)
	}

	if len(groups) == 0 {
		return ErrNoListeners
	}

	logger.Info("Relay started",
		logging.Int("routes", len(table)),
		logging.Int("listening", len(groups)))

	if opts.Ready != nil {
		opts.Ready(groups)
	}

	var serving sync.WaitGroup
	for _, g := range groups {
		serving.Add(1)
		go func(g *Group) {
			defer serving.Done()
			if err := g.Serve(ctx, logger); err != nil {
				logger.Error("Listener failed", logging.Port("route", g.route.Source), logging.Error(err))
			}
		}(g)
	}

	<-ctx.Done()
	logger.Info("Shutting down", logging.Int("listeners", len(groups)))

	for _, g := range groups {
		_ = g.Close()
	}
	serving.Wait()

	drain(logger, groups, opts.ShutdownTimeout)
	return nil
}

// drain waits for in-flight relays, then aborts whatever is left
func drain(logger *logging.Logger, groups []*Group, timeout time.Duration) {
	drained := make(chan struct{})
	go func() {
		for _, g := range groups {
			g.Wait()
		}
		close(drained)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-drained:
		logger.Info("All relays finished")
		return
	case <-timer.C:
	}

	active := 0
	for _, g := range groups {
		active += g.Active()
		g.Abort()
	}
	logger.Warn("Shutdown timeout reached, closing in-flight relays",
		logging.Int("active", active),
		logging.Duration("timeout", timeout))
}
