package listener

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/julienstroheker/portrelay/internal/config"
	"github.com/julienstroheker/portrelay/internal/logging"
	"github.com/julienstroheker/portrelay/internal/relay/relaytest"
)

type runResult struct {
	groups []*Group
	done   chan struct{}
	err    error
	cancel context.CancelFunc
	logs   *syncBuffer
}

func startRun(t *testing.T, table config.Table, shutdown time.Duration) *runResult {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	res := &runResult{
		done:   make(chan struct{}),
		cancel: cancel,
		logs:   &syncBuffer{},
	}

	ready := make(chan []*Group, 1)
	go func() {
		defer close(res.done)
		res.err = Run(ctx, logging.NewWithOutput(logging.InfoLevel, res.logs), table, &RunOptions{
			ShutdownTimeout: shutdown,
			Ready:           func(groups []*Group) { ready <- groups },
		})
	}()

	select {
	case res.groups = <-ready:
	case <-res.done:
		t.Fatalf("Run returned early: %v", res.err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run never became ready")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case <-res.done:
		case <-time.After(5 * time.Second):
			t.Error("Run did not stop")
		}
	})

	return res
}

func TestRun_BindFailureDoesNotStopOtherRoutes(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = occupied.Close() }()
	busy := uint16(occupied.Addr().(*net.TCPAddr).Port)

	echo := relaytest.NewEchoServer(t)
	free := relaytest.ClosedPort(t)

	res := startRun(t, config.Table{
		{Source: busy, Destinations: []uint16{echo.Port}},
		{Source: free, Destinations: []uint16{echo.Port}},
	}, time.Second)

	require.Len(t, res.groups, 1)
	require.Equal(t, free, res.groups[0].Route().Source)
	require.Contains(t, res.logs.String(), "Route disabled")

	conn, err := net.Dial("tcp", relaytest.Address(free))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	roundTrip(t, conn, "ping")
}

func TestRun_NoRouteBound(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = occupied.Close() }()
	busy := uint16(occupied.Addr().(*net.TCPAddr).Port)

	err = Run(context.Background(), nil, config.Table{{Source: busy, Destinations: []uint16{1}}}, nil)
	require.ErrorIs(t, err, ErrNoListeners)
}

func TestRun_ShutdownDrainsThenAborts(t *testing.T) {
	echo := relaytest.NewEchoServer(t)
	source := relaytest.ClosedPort(t)

	res := startRun(t, config.Table{{Source: source, Destinations: []uint16{echo.Port}}}, 100*time.Millisecond)

	conn, err := net.Dial("tcp", relaytest.Address(source))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	roundTrip(t, conn, "open")

	res.cancel()

	select {
	case <-res.done:
		require.NoError(t, res.err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after shutdown timeout")
	}

	// The held-open relay was closed by the drain deadline
	_, err = io.ReadAll(conn)
	require.NoError(t, err)
	require.True(t, strings.Contains(res.logs.String(), "Shutdown timeout reached"))

	// The source port no longer accepts
	_, err = net.DialTimeout("tcp", relaytest.Address(source), time.Second)
	require.Error(t, err)
}
