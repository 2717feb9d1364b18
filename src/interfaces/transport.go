package interfaces

// -----------------------------------------------------------------------------
// IPulseTransport is the capability surface the broadcast hub needs from a
// live subscriber connection. The hub's backpressure policy depends only on
// this interface, so tests can drive it with fake transports.
// -----------------------------------------------------------------------------

type IPulseTransport interface {

	// -----------------------------------------------------------------------------

	// Enqueue hands a serialized payload to the transport without blocking.
	// An error means the transport cannot accept the payload (queue full or
	// already closed); the hub treats it as a dropped delivery.
	Enqueue(payload []byte) error

	// -----------------------------------------------------------------------------

	// BufferedBytes reports how many payload bytes are queued but not yet
	// written to the wire.
	BufferedBytes() int

	// -----------------------------------------------------------------------------

	// Close shuts the transport down. Graceful closes attempt a close
	// handshake first; non-graceful closes tear the connection down.
	Close(graceful bool)
}
