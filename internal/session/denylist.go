// Package session holds the token denylist that backs server-side logout.
// Tokens are self-verifying, so revocation means remembering a jti until the
// token would have expired anyway; after that the expiry check takes over.
package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const denylistKeyPrefix = "denylist:jti:"

const minTTL = time.Second

// Denylist records revoked token ids until their natural expiry.
type Denylist interface {
	// Revoke marks jti as revoked until the given expiry.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	// IsRevoked reports whether jti has been revoked and not yet aged out.
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisDenylist is a Denylist on Redis TTL keys. Entries age out with the
// token expiry, so the set stays bounded by the number of revocations inside
// one TTL window.
type RedisDenylist struct {
	client *redis.Client
}

// NewRedisDenylist returns a Denylist backed by the given Redis client.
func NewRedisDenylist(client *redis.Client) *RedisDenylist {
	return &RedisDenylist{client: client}
}

func (d *RedisDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl < minTTL {
		// Already expired or about to; keep the key a moment anyway so a
		// clock-skewed verifier still sees the revocation.
		ttl = minTTL
	}
	return d.client.Set(ctx, denylistKeyPrefix+jti, "1", ttl).Err()
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, denylistKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
