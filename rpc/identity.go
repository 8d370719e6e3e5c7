package rpc

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"supernode/native/supernode"
)

// IdentityFunc resolves the address a request is authenticated as.
type IdentityFunc func(r *http.Request) (common.Address, bool)

// SubjectIdentity adapts a context subject lookup, such as the gateway JWT
// middleware's, into an IdentityFunc. Subjects must be hex addresses.
func SubjectIdentity(subject func(ctx context.Context) (string, bool)) IdentityFunc {
	return func(r *http.Request) (common.Address, bool) {
		raw, ok := subject(r.Context())
		raw = strings.TrimSpace(raw)
		if !ok || !common.IsHexAddress(raw) {
			return common.Address{}, false
		}
		return common.HexToAddress(raw), true
	}
}

// authorize checks that the request may act for addr. The static service
// token may act for any address; everyone else must be authenticated as addr.
func (s *Server) authorize(r *http.Request, addr common.Address) error {
	if s.requireAuth(r) == nil {
		return nil
	}
	if s.identity != nil {
		if subject, ok := s.identity(r); ok {
			if subject == addr {
				return nil
			}
			return fmt.Errorf("%w: authenticated as %s, acting for %s", supernode.ErrUnauthorized, subject.Hex(), addr.Hex())
		}
	}
	return fmt.Errorf("%w: request is not authenticated as %s", supernode.ErrUnauthorized, addr.Hex())
}
