package entitlement

import (
	"context"
	"time"

	"github.com/inkwell-blog/apiserver/types"
)

// AnonymousUser marks a viewer with no authenticated identity.
const AnonymousUser = 0

const defaultOracleTimeout = 3 * time.Second

// Gate decides whether a viewer may see a premium post's full body.
// Every decision for a premium post re-queries the oracle; if the oracle is
// unreachable or times out, the gate fails closed and the content stays
// locked.
type Gate struct {
	oracle  Oracle
	timeout time.Duration
}

// NewGate wraps the oracle with a per-check timeout. A nil oracle denies all
// premium access.
func NewGate(oracle Oracle, timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = defaultOracleTimeout
	}
	return &Gate{
		oracle:  oracle,
		timeout: timeout,
	}
}

// IsEntitled reports whether userID may view the post's full body.
// Non-premium posts are always entitled; anonymous viewers never are for
// premium posts.
func (g *Gate) IsEntitled(ctx context.Context, userID int, post types.Post) bool {
	if !post.IsPremium {
		return true
	}
	if userID == AnonymousUser {
		return false
	}
	if g.oracle == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	granted, err := g.oracle.Entitled(ctx, userID, post.ID)
	if err != nil {
		return false
	}
	return granted
}
