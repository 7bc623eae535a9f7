package x402

import (
	"testing"
	"time"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewInMemorySessionStore(time.Minute)

	store.Create(testChallenge("s1"))

	if store.Paid("s1") {
		t.Fatal("Expected fresh session to be unpaid")
	}
	if !store.MarkPaid("s1") {
		t.Fatal("Expected MarkPaid to succeed")
	}
	if !store.Paid("s1") {
		t.Fatal("Expected session to be paid")
	}

	if store.MarkPaid("unknown") {
		t.Fatal("Expected MarkPaid to fail for unknown session")
	}
	if store.Paid("unknown") {
		t.Fatal("Expected unknown session to be unpaid")
	}
}

func TestSessionStoreExpiry(t *testing.T) {
	store := NewInMemorySessionStore(10 * time.Millisecond)

	store.Create(testChallenge("s1"))
	store.MarkPaid("s1")

	time.Sleep(20 * time.Millisecond)

	if store.Paid("s1") {
		t.Fatal("Expected expired session to be unpaid")
	}
	if store.MarkPaid("s1") {
		t.Fatal("Expected MarkPaid to fail for expired session")
	}
}
