package interfaces

import (
	"context"

	"pulseops/src/models"
)

// -----------------------------------------------------------------------------
// IIdentityVerifier defines the contract for bearer token verification.
// -----------------------------------------------------------------------------

type IIdentityVerifier interface {

	// -----------------------------------------------------------------------------

	// VerifyToken resolves a bearer token to an identity. Returns an
	// AuthError for tokens the provider rejects and a NetworkError when the
	// provider cannot be reached.
	VerifyToken(ctx context.Context, token string) (*models.MIdentity, error)
}
