package swap

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Status is the lifecycle marker of a (signer, nonce) pair.
// Absence of a marker means OPEN; TAKEN and CANCELED are terminal.
type Status uint8

const (
	StatusOpen Status = iota
	StatusTaken
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusTaken:
		return "taken"
	case StatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status can never change again
func (s Status) Terminal() bool { return s != StatusOpen }

// LedgerStore persists the engine's three per-signer ledgers: order status
// by (signer, nonce), the minimum-nonce watermark, and delegation expiries
// by (approver, delegate). Implementations return zero values for absent
// entries; absence is the implicit default, never an error.
//
// The engine serializes all mutating access through its own lock, so
// implementations only need to be safe for the concurrent reads the
// public read surface performs.
type LedgerStore interface {
	Status(signer common.Address, nonce uint64) (Status, error)
	SetStatus(signer common.Address, nonce uint64, status Status) error

	Watermark(signer common.Address) (uint64, error)
	SetWatermark(signer common.Address, minNonce uint64) error

	DelegateExpiry(approver, delegate common.Address) (uint64, error)
	SetDelegate(approver, delegate common.Address, expiry uint64) error
	DeleteDelegate(approver, delegate common.Address) error

	Close() error
}

type nonceKey struct {
	wallet common.Address
	nonce  uint64
}

type pairKey struct {
	approver common.Address
	delegate common.Address
}

// MemoryLedger is the map-backed LedgerStore. The default for tests and
// for deployments that accept losing order state on restart.
type MemoryLedger struct {
	mu        sync.RWMutex
	statuses  map[nonceKey]Status
	marks     map[common.Address]uint64
	delegates map[pairKey]uint64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		statuses:  make(map[nonceKey]Status),
		marks:     make(map[common.Address]uint64),
		delegates: make(map[pairKey]uint64),
	}
}

func (l *MemoryLedger) Status(signer common.Address, nonce uint64) (Status, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.statuses[nonceKey{signer, nonce}], nil
}

func (l *MemoryLedger) SetStatus(signer common.Address, nonce uint64, status Status) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if status == StatusOpen {
		delete(l.statuses, nonceKey{signer, nonce})
		return nil
	}
	l.statuses[nonceKey{signer, nonce}] = status
	return nil
}

func (l *MemoryLedger) Watermark(signer common.Address) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.marks[signer], nil
}

func (l *MemoryLedger) SetWatermark(signer common.Address, minNonce uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.marks[signer] = minNonce
	return nil
}

func (l *MemoryLedger) DelegateExpiry(approver, delegate common.Address) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.delegates[pairKey{approver, delegate}], nil
}

func (l *MemoryLedger) SetDelegate(approver, delegate common.Address, expiry uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delegates[pairKey{approver, delegate}] = expiry
	return nil
}

func (l *MemoryLedger) DeleteDelegate(approver, delegate common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.delegates, pairKey{approver, delegate})
	return nil
}

func (l *MemoryLedger) Close() error { return nil }
