package api

import (
	"io"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/silvesterwali/daily-gateway/domain"
)

func discardLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func TestVisitSenderResolvesReferralHandle(t *testing.T) {
	store := newFakeStore()
	store.addUser(domain.User{ID: "u-ref", Username: "referrer"})
	sender := NewVisitSender(store, discardLogger(), 1, 4)

	if !sender.TrySend("t-1", "web", "referrer", "1.2.3.4", time.Now()) {
		t.Fatal("send should succeed with a free buffer")
	}
	sender.Close()

	if len(store.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(store.upserts))
	}
	if got := store.upserts[0]; got.referral != "u-ref" || got.ip != "1.2.3.4" {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestVisitSenderDropsUnresolvableReferral(t *testing.T) {
	store := newFakeStore()
	sender := NewVisitSender(store, discardLogger(), 1, 4)

	sender.TrySend("t-1", "web", "ghost", "", time.Now())
	sender.TrySend("t-2", "web", "t-2", "", time.Now())
	sender.Close()

	if len(store.upserts) != 2 {
		t.Fatalf("upserts = %d, want 2", len(store.upserts))
	}
	for _, rec := range store.upserts {
		if rec.referral != "" {
			t.Fatalf("referral = %q, want empty", rec.referral)
		}
	}
}

func TestVisitSenderSwallowsStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.upsertErr = errTest
	sender := NewVisitSender(store, discardLogger(), 1, 4)

	if !sender.TrySend("t-1", "web", "", "", time.Now()) {
		t.Fatal("send should still be accepted")
	}
	sender.Close()
}
