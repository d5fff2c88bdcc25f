package swap

import (
	"errors"
	"testing"
	"time"

	"github.com/pairswap/settle/pkg/crypto"
)

func TestAuthorizeSelfDelegationRejected(t *testing.T) {
	e := newEnv(t)
	wallet, _ := crypto.GenerateKey()

	// Any expiry: self-delegation is meaningless, self is implicit
	for _, expiry := range []uint64{0, startTime + 1, startTime + 1000000} {
		_, err := e.engine.Authorize(wallet.Address(), wallet.Address(), expiry)
		if !errors.Is(err, ErrInvalidAuthDelegate) {
			t.Errorf("expiry %d: err = %v, want ErrInvalidAuthDelegate", expiry, err)
		}
	}
}

func TestAuthorizePastExpiryRejected(t *testing.T) {
	e := newEnv(t)
	approver, _ := crypto.GenerateKey()
	delegate, _ := crypto.GenerateKey()

	for _, expiry := range []uint64{0, startTime - 1, startTime} {
		_, err := e.engine.Authorize(approver.Address(), delegate.Address(), expiry)
		if !errors.Is(err, ErrInvalidAuthExpiry) {
			t.Errorf("expiry %d: err = %v, want ErrInvalidAuthExpiry", expiry, err)
		}
	}
}

func TestIsAuthorizedExpiryBoundary(t *testing.T) {
	e := newEnv(t)
	approver, _ := crypto.GenerateKey()
	delegate, _ := crypto.GenerateKey()

	expiry := uint64(startTime + 100)
	if _, err := e.engine.Authorize(approver.Address(), delegate.Address(), expiry); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}

	// Live strictly while now < expiry
	ok, _ := e.engine.IsAuthorized(approver.Address(), delegate.Address())
	if !ok {
		t.Error("delegate not authorized before expiry")
	}

	e.clock.Advance(99 * time.Second)
	if ok, _ := e.engine.IsAuthorized(approver.Address(), delegate.Address()); !ok {
		t.Error("delegate not authorized one second before expiry")
	}

	e.clock.Advance(1 * time.Second) // now == expiry
	if ok, _ := e.engine.IsAuthorized(approver.Address(), delegate.Address()); ok {
		t.Error("delegate authorized at expiry")
	}

	e.clock.Advance(1 * time.Second)
	if ok, _ := e.engine.IsAuthorized(approver.Address(), delegate.Address()); ok {
		t.Error("delegate authorized after expiry")
	}
}

func TestIsAuthorizedSelfImplicit(t *testing.T) {
	e := newEnv(t)
	wallet, _ := crypto.GenerateKey()

	ok, err := e.engine.IsAuthorized(wallet.Address(), wallet.Address())
	if err != nil || !ok {
		t.Errorf("self authorization = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestRevokeDelegate(t *testing.T) {
	e := newEnv(t)
	approver, _ := crypto.GenerateKey()
	delegate, _ := crypto.GenerateKey()

	if _, err := e.engine.Authorize(approver.Address(), delegate.Address(), startTime+600); err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	expiry, _ := e.engine.DelegateExpiry(approver.Address(), delegate.Address())
	if expiry != startTime+600 {
		t.Fatalf("expiry = %d, want %d", expiry, startTime+600)
	}

	if _, err := e.engine.Revoke(approver.Address(), delegate.Address()); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if ok, _ := e.engine.IsAuthorized(approver.Address(), delegate.Address()); ok {
		t.Error("delegate still authorized after revoke")
	}

	// Revoking an absent entry is a no-op
	if _, err := e.engine.Revoke(approver.Address(), delegate.Address()); err != nil {
		t.Errorf("revoke of absent entry: %v", err)
	}
}

func TestAuthorizeOverwrites(t *testing.T) {
	e := newEnv(t)
	approver, _ := crypto.GenerateKey()
	delegate, _ := crypto.GenerateKey()

	e.engine.Authorize(approver.Address(), delegate.Address(), startTime+100)
	e.engine.Authorize(approver.Address(), delegate.Address(), startTime+500)

	expiry, _ := e.engine.DelegateExpiry(approver.Address(), delegate.Address())
	if expiry != startTime+500 {
		t.Errorf("expiry = %d, want overwritten to %d", expiry, startTime+500)
	}
}
