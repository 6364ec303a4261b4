package auth

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRevoke_and_IsRevoked(t *testing.T) {
	store := NewTokenRevocationStore(0)
	defer store.Close()

	jti := "session-abc-123"
	store.Revoke(jti, time.Now().Add(1*time.Hour))

	if !store.IsRevoked(jti) {
		t.Errorf("expected %q to be revoked", jti)
	}
	if store.IsRevoked("unknown") {
		t.Error("expected unknown session to not be revoked")
	}
}

func TestCleanup_DropsExpiredEntries(t *testing.T) {
	store := NewTokenRevocationStore(0)
	defer store.Close()

	now := time.Now()
	store.Revoke("old", now.Add(-1*time.Minute))
	store.Revoke("fresh", now.Add(1*time.Hour))

	store.cleanup(now)

	if store.IsRevoked("old") {
		t.Error("expected expired entry to be removed")
	}
	if !store.IsRevoked("fresh") {
		t.Error("expected unexpired entry to remain")
	}
	if store.Count() != 1 {
		t.Errorf("expected 1 entry, got %d", store.Count())
	}
}

func TestCleanupLoop_RunsOnInterval(t *testing.T) {
	store := NewTokenRevocationStore(10 * time.Millisecond)
	defer store.Close()

	store.Revoke("old", time.Now().Add(-1*time.Second))

	deadline := time.Now().Add(2 * time.Second)
	for store.Count() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.Count() != 0 {
		t.Errorf("expected background cleanup to remove entry, got %d", store.Count())
	}
}

func TestClose_Idempotent(t *testing.T) {
	store := NewTokenRevocationStore(0)
	store.Close()
	store.Close()
}

func TestRevocation_ConcurrentAccess(t *testing.T) {
	store := NewTokenRevocationStore(0)
	defer store.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			store.Revoke(fmt.Sprintf("s-%d", i%26), time.Now().Add(time.Hour))
		}(i)
		go func(i int) {
			defer wg.Done()
			store.IsRevoked(fmt.Sprintf("s-%d", i%26))
		}(i)
	}
	wg.Wait()

	if store.Count() != 26 {
		t.Errorf("expected 26 entries, got %d", store.Count())
	}
}
