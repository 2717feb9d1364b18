package interfaces

import "pulseops/src/models"

// -----------------------------------------------------------------------------
// IEventBroadcaster defines the contract for pushing live events to
// connected subscribers.
// -----------------------------------------------------------------------------

type IEventBroadcaster interface {

	// -----------------------------------------------------------------------------
	// Broadcast records the event's composites and fans the serialized
	// event out to every open subscriber.
	Broadcast(event *models.MPulseEvent)

	// -----------------------------------------------------------------------------
	// ClientCount returns the current number of tracked subscribers.
	ClientCount() int

	// -----------------------------------------------------------------------------
	// Stats returns a point-in-time delivery snapshot.
	Stats() models.MHubStats

	// -----------------------------------------------------------------------------
	// Close gracefully disconnects all subscribers. Idempotent.
	Close()
}
