// Package relaytest provides dialers and loopback servers for testing code
// built on package relay.
package relaytest

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/julienstroheker/portrelay/internal/relay"
)

// Attempt records one DialContext call
type Attempt struct {
	Address string
	Err     error
}

// RecordingDialer wraps a Dialer and records every attempt, in order.
// It also tracks the highest number of dials in flight at once.
type RecordingDialer struct {
	// Dialer performs the real dial; defaults to a zero net.Dialer
	Dialer relay.Dialer

	// Delay is waited before each dial, or until the context is done
	Delay time.Duration

	mu          sync.Mutex
	attempts    []Attempt
	inFlight    int
	maxInFlight int
}

// DialContext implements relay.Dialer
func (d *RecordingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	d.inFlight++
	if d.inFlight > d.maxInFlight {
		d.maxInFlight = d.inFlight
	}
	d.mu.Unlock()

	conn, err := d.dial(ctx, network, address)

	d.mu.Lock()
	d.inFlight--
	d.attempts = append(d.attempts, Attempt{Address: address, Err: err})
	d.mu.Unlock()

	return conn, err
}

func (d *RecordingDialer) dial(ctx context.Context, network, address string) (net.Conn, error) {
	if d.Delay > 0 {
		timer := time.NewTimer(d.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	dialer := d.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	return dialer.DialContext(ctx, network, address)
}

// Attempts returns a copy of every recorded attempt
func (d *RecordingDialer) Attempts() []Attempt {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Attempt(nil), d.attempts...)
}

// Successes returns the addresses of attempts that connected
func (d *RecordingDialer) Successes() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []string
	for _, a := range d.attempts {
		if a.Err == nil {
			out = append(out, a.Address)
		}
	}
	return out
}

// MaxInFlight returns the highest number of concurrent dials observed
func (d *RecordingDialer) MaxInFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxInFlight
}

// Address formats a loopback address for port
func Address(port uint16) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(int(port)))
}

// ClosedPort returns a loopback port with nothing listening on it
func ClosedPort(tb testing.TB) uint16 {
	tb.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("Failed to reserve port: %v", err)
	}
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	_ = ln.Close()
	return port
}

// Server is a loopback TCP server that handles each connection with a handler
type Server struct {
	Port uint16

	ln       net.Listener
	wg       sync.WaitGroup
	mu       sync.Mutex
	accepted int
	conns    map[net.Conn]struct{}
	closed   bool
}

// NewServer starts a loopback server; it is closed when the test ends
func NewServer(tb testing.TB, handler func(net.Conn)) *Server {
	tb.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("Failed to listen: %v", err)
	}

	s := &Server{
		Port:  uint16(ln.Addr().(*net.TCPAddr).Port),
		ln:    ln,
		conns: make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				_ = conn.Close()
				return
			}
			s.accepted++
			s.conns[conn] = struct{}{}
			s.mu.Unlock()

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.forget(conn)
				handler(conn)
			}()
		}
	}()

	tb.Cleanup(s.Close)

	return s
}

// Close stops the server and drops every open connection
func (s *Server) Close() {
	_ = s.ln.Close()

	s.mu.Lock()
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Server) forget(conn net.Conn) {
	_ = conn.Close()
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// Accepted returns how many connections the server has accepted
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// NewEchoServer starts a server that writes back everything it reads
func NewEchoServer(tb testing.TB) *Server {
	tb.Helper()
	return NewServer(tb, func(conn net.Conn) {
		_, _ = io.Copy(conn, conn)
	})
}

// NewBannerServer starts a server that writes banner to each client and then
// echoes, so tests can tell destinations apart
func NewBannerServer(tb testing.TB, banner string) *Server {
	tb.Helper()
	return NewServer(tb, func(conn net.Conn) {
		if _, err := io.WriteString(conn, banner); err != nil {
			return
		}
		_, _ = io.Copy(conn, conn)
	})
}
