package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/julienstroheker/portrelay/internal/config"
	"github.com/julienstroheker/portrelay/internal/logging"
	"github.com/julienstroheker/portrelay/internal/relay"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

var (
	// ErrNotListening is returned by Serve when Listen has not succeeded
	ErrNotListening = errors.New("listener group is not bound")
	// ErrGroupClosed is returned by Listen after Close
	ErrGroupClosed = errors.New("listener group is closed")
)

// Group owns the listening socket of one route and dispatches every accepted
// connection to its own destination selection and relay session
type Group struct {
	route    config.Route
	host     string
	selector *relay.Selector

	// sessionCtx outlives Serve so connections still in selection are drained
	// on shutdown; Abort cancels it
	sessionCtx    context.Context
	abortSessions context.CancelFunc

	mu       sync.Mutex
	ln       net.Listener
	closed   bool
	active   map[net.Conn]struct{}
	sessions sync.WaitGroup
}

// Options contains configuration for a Group
type Options struct {
	// Route is copied; later changes to the caller's slice are not seen
	Route config.Route

	// Host is the address the source port is bound on; defaults to 127.0.0.1
	Host string

	// Selector picks destinations; defaults to relay.NewSelector(nil)
	Selector *relay.Selector
}

// NewGroup creates a new listener group
func NewGroup(opts *Options) *Group {
	if opts == nil {
		opts = &Options{}
	}

	g := &Group{
		route:    opts.Route.Clone(),
		host:     opts.Host,
		selector: opts.Selector,
		active:   make(map[net.Conn]struct{}),
	}
	g.sessionCtx, g.abortSessions = context.WithCancel(context.Background())
	if g.host == "" {
		g.host = config.DefaultHost
	}
	if g.selector == nil {
		g.selector = relay.NewSelector(nil)
	}

	return g
}

// Route returns a copy of the group's route
func (g *Group) Route() config.Route {
	return g.route.Clone()
}

// Listen binds the route's source port
func (g *Group) Listen(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrGroupClosed
	}

	addr := net.JoinHostPort(g.host, strconv.Itoa(int(g.route.Source)))
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	g.ln = ln
	return nil
}

// Addr returns the bound address, or nil before Listen
func (g *Group) Addr() net.Addr {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.ln == nil {
		return nil
	}
	return g.ln.Addr()
}

// Serve accepts connections until the context is cancelled or the group is
// closed. Accept errors are logged and retried with a short backoff.
func (g *Group) Serve(ctx context.Context, logger *logging.Logger) error {
	g.mu.Lock()
	ln := g.ln
	g.mu.Unlock()
	if ln == nil {
		return ErrNotListening
	}

	logger = logger.With(logging.Port("route", g.route.Source))
	logger.Info("Listening",
		logging.String("addr", ln.Addr().String()),
		logging.String("destinations", g.route.String()))

	stop := context.AfterFunc(ctx, func() {
		_ = g.Close()
	})
	defer stop()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if g.isClosed() || errors.Is(err, net.ErrClosed) {
				logger.Info("Listener stopped")
				return nil
			}

			backoff = nextBackoff(backoff)
			logger.Warn("Failed to accept connection",
				logging.Error(err),
				logging.Duration("retry_in", backoff))

			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		// Registered before the goroutine starts so Wait and Abort never miss it
		g.sessions.Add(1)
		g.track(conn)
		go g.handleConnection(logger, conn)
	}
}

// handleConnection runs destination selection and then the relay for one client.
// Selection runs under sessionCtx, not the Serve context, so shutdown drains it.
func (g *Group) handleConnection(logger *logging.Logger, inbound net.Conn) {
	defer g.sessions.Done()
	defer g.untrack(inbound)

	sess := relay.NewSession(g.route.Source)
	connLog := logger.With(logging.String("session", sess.ID))

	defer func() {
		if r := recover(); r != nil {
			_ = inbound.Close()
			connLog.Error("Connection handler panicked", logging.Any("panic", r))
		}
	}()

	connLog.Debug("Accepted connection", logging.String("remote", inbound.RemoteAddr().String()))

	outbound, port, err := g.selector.Select(g.sessionCtx, connLog, g.route.Destinations)
	if err != nil {
		_ = inbound.Close()
		if errors.Is(err, relay.ErrDestinationsExhausted) {
			connLog.Error("Dropping connection: all destinations are unreachable",
				logging.Int("destinations", len(g.route.Destinations)),
				logging.Duration("elapsed", time.Since(sess.Started())))
			return
		}
		connLog.Error("Dropping connection", logging.Error(err))
		return
	}

	sess.Relay(logger, inbound, outbound, port)
}

// Close stops accepting connections. In-flight sessions keep running.
func (g *Group) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true

	if g.ln == nil {
		return nil
	}
	return g.ln.Close()
}

// Abort cancels pending destination selections and closes the inbound side
// of every in-flight connection, which ends their sessions
func (g *Group) Abort() {
	g.abortSessions()

	g.mu.Lock()
	defer g.mu.Unlock()

	for conn := range g.active {
		_ = conn.Close()
	}
}

// Wait blocks until every accepted connection has been fully handled.
// It must only be called once Serve has returned.
func (g *Group) Wait() {
	g.sessions.Wait()
}

// Active returns the number of connections currently being handled
func (g *Group) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}

func (g *Group) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

func (g *Group) track(conn net.Conn) {
	g.mu.Lock()
	g.active[conn] = struct{}{}
	g.mu.Unlock()
}

func (g *Group) untrack(conn net.Conn) {
	g.mu.Lock()
	delete(g.active, conn)
	g.mu.Unlock()
}

func nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return minAcceptBackoff
	}
	current *= 2
	if current > maxAcceptBackoff {
		return maxAcceptBackoff
	}
	return current
}
