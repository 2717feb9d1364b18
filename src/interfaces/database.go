package interfaces

import "pulseops/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SavePulseEvent journals one ingested sentiment event.
	SavePulseEvent(event *models.MPulseEvent) error

	// -----------------------------------------------------------------------------

	// SaveAllocation inserts one booked allocation.
	SaveAllocation(alloc *models.MAllocation) error

	// -----------------------------------------------------------------------------

	// ListAllocations returns the most recent allocations, newest first.
	ListAllocations(limit int) ([]models.MAllocation, error)

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Ping verifies the connection is alive.
	Ping() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
