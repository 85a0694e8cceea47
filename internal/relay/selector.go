package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/julienstroheker/portrelay/internal/config"
	"github.com/julienstroheker/portrelay/internal/logging"
)

// Selector picks the first reachable destination from an ordered list
type Selector struct {
	dialer  Dialer
	host    string
	timeout time.Duration
}

// SelectorOptions contains configuration for the Selector
type SelectorOptions struct {
	// Dialer opens outbound connections; defaults to a zero net.Dialer
	Dialer Dialer

	// Host is the destination host; defaults to 127.0.0.1
	Host string

	// ConnectTimeout bounds each connect attempt; zero leaves it to the OS
	ConnectTimeout time.Duration
}

// NewSelector creates a new destination selector
func NewSelector(opts *SelectorOptions) *Selector {
	if opts == nil {
		opts = &SelectorOptions{}
	}

	s := &Selector{
		dialer:  opts.Dialer,
		host:    opts.Host,
		timeout: opts.ConnectTimeout,
	}
	if s.dialer == nil {
		s.dialer = &net.Dialer{}
	}
	if s.host == "" {
		s.host = config.DefaultHost
	}

	return s
}

// Select dials destinations in order and returns the first connection that
// succeeds together with its port. No further destination is attempted after
// a success. If every destination fails the error matches
// ErrDestinationsExhausted and wraps each AttemptError.
func (s *Selector) Select(ctx context.Context, logger *logging.Logger, destinations []uint16) (net.Conn, uint16, error) {
	if len(destinations) == 0 {
		return nil, 0, ErrNoDestinations
	}

	failures := []error{ErrDestinationsExhausted}

	for _, port := range destinations {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		conn, err := s.dial(ctx, port)
		if err == nil {
			logger.Debug("Destination connected", logging.Port("destination", port))
			return conn, port, nil
		}

		logger.Warn(fmt.Sprintf(":%d is unreachable", port),
			logging.String("reason", unreachableReason(err)),
			logging.Error(err))
		failures = append(failures, &AttemptError{Port: port, Err: err})
	}

	return nil, 0, errors.Join(failures...)
}

// Address returns the dial address for a destination port
func (s *Selector) Address(port uint16) string {
	return net.JoinHostPort(s.host, strconv.Itoa(int(port)))
}

func (s *Selector) dial(ctx context.Context, port uint16) (net.Conn, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.dialer.DialContext(ctx, "tcp", s.Address(port))
}

// unreachableReason classifies a dial error for operators
func unreachableReason(err error) string {
	var netErr net.Error
	switch {
	case isConnRefused(err):
		return "refused"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return "error"
	}
}
