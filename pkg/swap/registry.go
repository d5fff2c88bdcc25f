package swap

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pairswap/settle/pkg/crypto"
)

// TransferHandler adapts the uniform transfer call to one token standard's
// native call sequence. A false return means the token reported failure
// without an error; the engine treats both identically.
type TransferHandler interface {
	Transfer(from, to common.Address, param *big.Int, token common.Address) (bool, error)
}

// Snapshotter is implemented by handlers whose backing store can unwind.
// The engine snapshots every capable handler before moving any asset and
// reverts them all when a later leg fails, keeping settlement
// all-or-nothing across handlers.
type Snapshotter interface {
	Snapshot() int
	RevertTo(id int)
}

// KindRegistry maps 4-byte kind tags to transfer handlers in a
// thread-safe manner. The engine only resolves; registration is
// wiring-time administration owned by whoever assembles the system.
type KindRegistry struct {
	mu       sync.RWMutex
	handlers map[crypto.Kind]TransferHandler
}

func NewKindRegistry() *KindRegistry {
	return &KindRegistry{
		handlers: make(map[crypto.Kind]TransferHandler),
	}
}

// Register adds a handler for a kind tag.
// Returns error if the kind is already registered.
func (r *KindRegistry) Register(kind crypto.Kind, h TransferHandler) error {
	if h == nil {
		return fmt.Errorf("cannot register nil handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[kind]; exists {
		return fmt.Errorf("kind %s already registered", kind.Hex())
	}

	r.handlers[kind] = h
	return nil
}

// Resolve returns the handler registered for a kind tag
func (r *KindRegistry) Resolve(kind crypto.Kind) (TransferHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, exists := r.handlers[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrKindNotRegistered, kind.Hex())
	}
	return h, nil
}

// Kinds returns all registered kind tags
func (r *KindRegistry) Kinds() []crypto.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]crypto.Kind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	return kinds
}
