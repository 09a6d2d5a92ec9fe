package tokenstore

import (
	"sync"
	"time"
)

// in-memory revocation list for admin JWTs. Entries are kept until the token
// itself would have expired, then pruned on the next write.
var (
	mu            sync.RWMutex
	revokedTokens = map[string]time.Time{}
)

// RevokeToken marks jti as revoked until exp. A zero exp keeps it forever.
func RevokeToken(jti string, exp time.Time) {
	if jti == "" {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	now := time.Now()
	for k, until := range revokedTokens {
		if !until.IsZero() && until.Before(now) {
			delete(revokedTokens, k)
		}
	}
	revokedTokens[jti] = exp
}

func IsRevoked(jti string) bool {
	if jti == "" {
		return false
	}
	mu.RLock()
	defer mu.RUnlock()
	until, ok := revokedTokens[jti]
	if !ok {
		return false
	}
	return until.IsZero() || time.Now().Before(until)
}
