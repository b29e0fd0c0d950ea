package port

import (
	"time"

	"github.com/rl1809/sweet-shop/internal/core/domain"
)

type TokenIssuer interface {
	// Issue signs a bearer token for identity and reports its expiry
	Issue(identity domain.Identity) (string, time.Time, error)

	// Verify parses a bearer token; any failure is domain.ErrUnauthorized
	Verify(token string) (domain.Identity, error)
}
