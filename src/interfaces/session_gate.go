package interfaces

// -----------------------------------------------------------------------------
// ISessionGate answers whether any tracked exchange is currently in session.
// -----------------------------------------------------------------------------

type ISessionGate interface {
	AnyMarketOpen() bool
}
