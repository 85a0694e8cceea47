package relay

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/julienstroheker/portrelay/internal/logging"
)

// Session relays one accepted connection to its selected destination
type Session struct {
	// ID identifies the session in log lines
	ID string

	// Source is the local port the client connected to
	Source uint16

	start time.Time
}

// Stats summarizes a finished relay
type Stats struct {
	// Sent counts bytes copied from inbound to outbound
	Sent int64

	// Received counts bytes copied from outbound to inbound
	Received int64

	// Elapsed is measured from NewSession, so it includes destination selection
	Elapsed time.Duration

	// Err is the error that ended the session, nil on a clean end of stream
	Err error
}

type direction int

const (
	upstream direction = iota
	downstream
)

type pumpResult struct {
	dir direction
	n   int64
	err error
}

// NewSession creates a session for a connection accepted on source and starts its clock
func NewSession(source uint16) *Session {
	return &Session{
		ID:     uuid.NewString()[:8],
		Source: source,
		start:  time.Now(),
	}
}

// Started returns when the session clock started
func (s *Session) Started() time.Time {
	return s.start
}

// Relay copies bytes between inbound and outbound until either direction ends,
// then closes both connections and logs ":<source> -> :<destination> in <elapsed>".
// Both connections are closed on every return path.
func (s *Session) Relay(logger *logging.Logger, inbound, outbound Connection, destination uint16) Stats {
	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			_ = inbound.Close()
			_ = outbound.Close()
		})
	}
	defer closeBoth()

	results := make(chan pumpResult, 2)
	go pump(results, upstream, outbound, inbound)
	go pump(results, downstream, inbound, outbound)

	// First finished pump ends the session; closing both ends stops the other
	first := <-results
	closeBoth()
	second := <-results

	stats := Stats{
		Elapsed: time.Since(s.start),
		Err:     first.err,
	}
	if stats.Err == nil && !isClosedErr(second.err) {
		stats.Err = second.err
	}
	for _, r := range []pumpResult{first, second} {
		if r.dir == upstream {
			stats.Sent = r.n
		} else {
			stats.Received = r.n
		}
	}

	fields := []logging.Field{
		logging.String("session", s.ID),
		logging.Int64("sent", stats.Sent),
		logging.Int64("received", stats.Received),
		logging.Duration("elapsed", stats.Elapsed),
	}
	if stats.Err != nil {
		fields = append(fields, logging.Error(stats.Err))
	}
	logger.Info(fmt.Sprintf(":%d -> :%d in %v", s.Source, destination, stats.Elapsed), fields...)

	return stats
}

// pump copies src into dst and always reports exactly one result
func pump(results chan<- pumpResult, dir direction, dst io.Writer, src io.Reader) {
	res := pumpResult{dir: dir}
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("%w: %v", ErrPumpPanic, r)
		}
		results <- res
	}()

	res.n, res.err = io.Copy(dst, src)
}

// isClosedErr reports errors caused by the session closing the connections itself
func isClosedErr(err error) bool {
	return err == nil || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
