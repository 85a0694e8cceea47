// Package relay implements the two halves of forwarding a single client
// connection: choosing a destination and copying bytes.
//
// # Destination selection
//
// Selector tries an ordered list of destination ports on the target host and
// commits to the first one that accepts a TCP connection. Attempts are strictly
// sequential: a second dial never starts while a first is in flight, and the
// first success ends the pass. Every failed attempt is logged as
// ":<port> is unreachable". When the list is exhausted the returned error
// matches ErrDestinationsExhausted.
//
// # Relaying
//
// Session couples two unidirectional pumps, inbound to outbound and outbound to
// inbound. Whichever pump finishes first ends the session: both connections are
// closed, which unblocks the other pump, and the session waits for it before
// returning Stats. The session clock starts at NewSession, so Stats.Elapsed
// includes destination selection.
//
// # Usage Example
//
//	sess := relay.NewSession(8080)
//	selector := relay.NewSelector(&relay.SelectorOptions{ConnectTimeout: 5 * time.Second})
//
//	outbound, port, err := selector.Select(ctx, logger, []uint16{3000, 3001})
//	if err != nil {
//	    _ = inbound.Close()
//	    return
//	}
//
//	stats := sess.Relay(logger, inbound, outbound, port)
//	// stats.Elapsed, stats.Sent, stats.Received
package relay
