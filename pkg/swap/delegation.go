package swap

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Delegation ledger: per-approver mapping of delegate to expiry,
// consulted by the engine for authorization decisions. An approver is
// always implicitly authorized for itself; an entry is live strictly
// while now < expiry.

// Authorize creates or overwrites a delegation from caller to delegate.
// Self-delegation is rejected: self is always implicitly authorized.
func (e *Engine) Authorize(caller, delegate common.Address, expiry uint64) (*AuthorizeRecord, error) {
	if delegate == caller {
		return nil, fmt.Errorf("%w: cannot delegate to self", ErrInvalidAuthDelegate)
	}
	now := e.now()
	if expiry <= now {
		return nil, fmt.Errorf("%w: expiry %d <= now %d", ErrInvalidAuthExpiry, expiry, now)
	}

	e.mu.Lock()
	if err := e.ledger.SetDelegate(caller, delegate, expiry); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("delegation write: %w", err)
	}
	e.mu.Unlock()

	record := &AuthorizeRecord{Approver: caller, Delegate: delegate, Expiry: expiry}
	e.log.Infow("delegate_authorized",
		"approver", caller.Hex(), "delegate", delegate.Hex(), "expiry", expiry)
	e.publish(Event{Type: EventAuthorize, Authorize: record})
	return record, nil
}

// Revoke removes the delegation from caller to delegate.
// A no-op if no entry exists.
func (e *Engine) Revoke(caller, delegate common.Address) (*RevokeRecord, error) {
	e.mu.Lock()
	if err := e.ledger.DeleteDelegate(caller, delegate); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("delegation delete: %w", err)
	}
	e.mu.Unlock()

	record := &RevokeRecord{Approver: caller, Delegate: delegate}
	e.log.Infow("delegate_revoked", "approver", caller.Hex(), "delegate", delegate.Hex())
	e.publish(Event{Type: EventRevoke, Revoke: record})
	return record, nil
}

// IsAuthorized reports whether delegate may currently act for approver
func (e *Engine) IsAuthorized(approver, delegate common.Address) (bool, error) {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isAuthorized(approver, delegate, now)
}

// DelegateExpiry returns the raw expiry of a delegation entry, zero if absent
func (e *Engine) DelegateExpiry(approver, delegate common.Address) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.DelegateExpiry(approver, delegate)
}

// isAuthorized assumes e.mu is held
func (e *Engine) isAuthorized(approver, delegate common.Address, now uint64) (bool, error) {
	if approver == delegate {
		return true, nil
	}
	expiry, err := e.ledger.DelegateExpiry(approver, delegate)
	if err != nil {
		return false, err
	}
	return now < expiry, nil
}
