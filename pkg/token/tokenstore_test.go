package tokenstore

import (
	"testing"
	"time"
)

func TestRevokeToken(t *testing.T) {
	RevokeToken("jti-live", time.Now().Add(time.Hour))
	if !IsRevoked("jti-live") {
		t.Fatalf("expected revoked token to be reported")
	}
	if IsRevoked("jti-other") {
		t.Fatalf("expected unknown token to be valid")
	}
	if IsRevoked("") {
		t.Fatalf("expected empty jti to never be revoked")
	}
}

func TestRevokedTokenPrunedAfterExpiry(t *testing.T) {
	RevokeToken("jti-old", time.Now().Add(-time.Second))
	if IsRevoked("jti-old") {
		t.Fatalf("expected expired revocation to be ignored")
	}
	RevokeToken("jti-new", time.Now().Add(time.Hour))

	mu.RLock()
	_, stillThere := revokedTokens["jti-old"]
	mu.RUnlock()
	if stillThere {
		t.Fatalf("expected expired entry to be pruned on write")
	}
}
