// Package storage provides the Pebble-backed LedgerStore: order statuses,
// nonce watermarks and delegation entries survive restarts.
package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/pairswap/settle/pkg/swap"
)

// PebbleLedger implements swap.LedgerStore on a Pebble database.
// Mutations are serialized by the engine; reads may run concurrently.
type PebbleLedger struct {
	db *pebble.DB
}

func NewPebbleLedger(path string) (*PebbleLedger, error) {
	opts := &pebble.Options{
		Cache:                 pebble.NewCache(64 << 20),
		MemTableSize:          32 << 20,
		L0CompactionThreshold: 2,
		MaxOpenFiles:          1000,
		BytesPerSync:          512 << 10,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &PebbleLedger{db: db}, nil
}

func (l *PebbleLedger) Close() error { return l.db.Close() }

// keys: os:<20-byte-wallet><8-byte-nonce>, wm:<20-byte-wallet>,
// dg:<20-byte-approver><20-byte-delegate>
func statusKey(wallet common.Address, nonce uint64) []byte {
	key := make([]byte, 0, 2+20+8)
	key = append(key, "os"...)
	key = append(key, wallet[:]...)
	key = binary.BigEndian.AppendUint64(key, nonce)
	return key
}

func watermarkKey(wallet common.Address) []byte {
	key := make([]byte, 0, 2+20)
	key = append(key, "wm"...)
	return append(key, wallet[:]...)
}

func delegateKey(approver, delegate common.Address) []byte {
	key := make([]byte, 0, 2+20+20)
	key = append(key, "dg"...)
	key = append(key, approver[:]...)
	return append(key, delegate[:]...)
}

func (l *PebbleLedger) Status(signer common.Address, nonce uint64) (swap.Status, error) {
	val, closer, err := l.db.Get(statusKey(signer, nonce))
	if err != nil {
		if err == pebble.ErrNotFound {
			return swap.StatusOpen, nil
		}
		return swap.StatusOpen, fmt.Errorf("status get: %w", err)
	}
	defer closer.Close()
	if len(val) != 1 {
		return swap.StatusOpen, fmt.Errorf("corrupt status entry: %d bytes", len(val))
	}
	return swap.Status(val[0]), nil
}

func (l *PebbleLedger) SetStatus(signer common.Address, nonce uint64, status swap.Status) error {
	key := statusKey(signer, nonce)
	if status == swap.StatusOpen {
		return l.db.Delete(key, pebble.Sync)
	}
	return l.db.Set(key, []byte{byte(status)}, pebble.Sync)
}

func (l *PebbleLedger) Watermark(signer common.Address) (uint64, error) {
	return l.getUint64(watermarkKey(signer))
}

func (l *PebbleLedger) SetWatermark(signer common.Address, minNonce uint64) error {
	return l.setUint64(watermarkKey(signer), minNonce)
}

func (l *PebbleLedger) DelegateExpiry(approver, delegate common.Address) (uint64, error) {
	return l.getUint64(delegateKey(approver, delegate))
}

func (l *PebbleLedger) SetDelegate(approver, delegate common.Address, expiry uint64) error {
	return l.setUint64(delegateKey(approver, delegate), expiry)
}

func (l *PebbleLedger) DeleteDelegate(approver, delegate common.Address) error {
	return l.db.Delete(delegateKey(approver, delegate), pebble.Sync)
}

func (l *PebbleLedger) getUint64(key []byte) (uint64, error) {
	val, closer, err := l.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("get: %w", err)
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, fmt.Errorf("corrupt uint64 entry: %d bytes", len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

func (l *PebbleLedger) setUint64(key []byte, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return l.db.Set(key, buf[:], pebble.Sync)
}
