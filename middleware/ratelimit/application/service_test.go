package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"tryon-gateway/middleware/ratelimit/domain"
)

type fakeStore struct {
	dec    domain.Decision
	err    error
	gotKey domain.Key
	gotAt  time.Time
	calls  int
}

func (s *fakeStore) Admit(_ context.Context, key domain.Key, now time.Time) (domain.Decision, error) {
	s.calls++
	s.gotKey = key
	s.gotAt = now
	return s.dec, s.err
}

func TestService_Decide_AllowsWhenNoStore(t *testing.T) {
	svc := Service{Policy: domain.Policy{Limit: 2, Window: time.Minute}}
	dec := svc.Decide(context.Background(), "k")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_UsesInjectedClock(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{dec: domain.Decision{Allowed: true, Limit: 2, Remaining: 1}}
	svc := Service{Store: store, Now: func() time.Time { return at }}

	dec := svc.Decide(context.Background(), "10.0.0.1")
	if !dec.Allowed || dec.Remaining != 1 {
		t.Fatalf("unexpected decision %+v", dec)
	}
	if store.gotKey != "10.0.0.1" {
		t.Fatalf("expected key to be forwarded, got %q", store.gotKey)
	}
	if !store.gotAt.Equal(at) {
		t.Fatalf("expected injected clock %s, got %s", at, store.gotAt)
	}
}

func TestService_Decide_ForwardsDenial(t *testing.T) {
	store := &fakeStore{dec: domain.Decision{Allowed: false, Limit: 2, RetryAfter: 90 * time.Second}}
	svc := Service{Store: store}

	dec := svc.Decide(context.Background(), "k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 90*time.Second {
		t.Fatalf("expected RetryAfter=90s, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_FailsOpenOnStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("redis down")}
	svc := Service{Store: store, Policy: domain.Policy{Limit: 2, Window: time.Minute}}

	dec := svc.Decide(context.Background(), "k")
	if !dec.Allowed {
		t.Fatalf("expected allowed when store fails")
	}
	if store.calls != 1 {
		t.Fatalf("expected exactly one admission attempt, got %d", store.calls)
	}
}
