// Package token provides in-memory token state and the transfer handlers
// that adapt the settlement engine's uniform transfer call to each token
// standard. Every ledger keeps an undo journal so a settlement can be
// unwound when a later leg fails.
package token

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// journal records undo closures for ledger mutations. Snapshots do not
// nest: taking one discards history before it. The engine serializes
// settlements, so at most one snapshot is live at a time.
type journal struct {
	undo []func()
}

func (j *journal) record(fn func()) {
	j.undo = append(j.undo, fn)
}

func (j *journal) snapshot() int {
	j.undo = j.undo[:0]
	return 0
}

func (j *journal) revertTo(id int) {
	for i := len(j.undo) - 1; i >= id; i-- {
		j.undo[i]()
	}
	j.undo = j.undo[:id]
}

type holdingKey struct {
	token common.Address
	owner common.Address
}

type allowanceKey struct {
	token   common.Address
	owner   common.Address
	spender common.Address
}

// FungibleLedger tracks balances and spend allowances per token contract,
// ERC20-style. A spender other than the owner needs an allowance.
type FungibleLedger struct {
	mu         sync.RWMutex
	jnl        journal
	balances   map[holdingKey]*big.Int
	allowances map[allowanceKey]*big.Int
}

func NewFungibleLedger() *FungibleLedger {
	return &FungibleLedger{
		balances:   make(map[holdingKey]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
	}
}

func (l *FungibleLedger) Mint(token, owner common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setBalance(holdingKey{token, owner}, new(big.Int).Add(l.balance(holdingKey{token, owner}), amount))
}

func (l *FungibleLedger) BalanceOf(token, owner common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.balance(holdingKey{token, owner}))
}

// Approve lets spender move up to amount of owner's token
func (l *FungibleLedger) Approve(token, owner, spender common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setAllowance(allowanceKey{token, owner, spender}, new(big.Int).Set(amount))
}

func (l *FungibleLedger) Allowance(token, owner, spender common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.allowance(allowanceKey{token, owner, spender}))
}

// TransferFrom moves amount of token from one owner to another on behalf
// of spender, consuming allowance unless the spender is the owner.
func (l *FungibleLedger) TransferFrom(token, spender, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("negative amount")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if spender != from {
		key := allowanceKey{token, from, spender}
		remaining := l.allowance(key)
		if remaining.Cmp(amount) < 0 {
			return fmt.Errorf("allowance %s < amount %s for spender %s", remaining, amount, spender.Hex())
		}
		l.setAllowance(key, new(big.Int).Sub(remaining, amount))
	}

	fromKey := holdingKey{token, from}
	balance := l.balance(fromKey)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("balance %s < amount %s for %s", balance, amount, from.Hex())
	}
	toKey := holdingKey{token, to}
	l.setBalance(fromKey, new(big.Int).Sub(balance, amount))
	l.setBalance(toKey, new(big.Int).Add(l.balance(toKey), amount))
	return nil
}

func (l *FungibleLedger) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.jnl.snapshot()
}

func (l *FungibleLedger) RevertTo(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jnl.revertTo(id)
}

func (l *FungibleLedger) balance(key holdingKey) *big.Int {
	if b, ok := l.balances[key]; ok {
		return b
	}
	return new(big.Int)
}

func (l *FungibleLedger) setBalance(key holdingKey, value *big.Int) {
	prev, hadPrev := l.balances[key]
	l.jnl.record(func() {
		if hadPrev {
			l.balances[key] = prev
		} else {
			delete(l.balances, key)
		}
	})
	l.balances[key] = value
}

func (l *FungibleLedger) allowance(key allowanceKey) *big.Int {
	if a, ok := l.allowances[key]; ok {
		return a
	}
	return new(big.Int)
}

func (l *FungibleLedger) setAllowance(key allowanceKey, value *big.Int) {
	prev, hadPrev := l.allowances[key]
	l.jnl.record(func() {
		if hadPrev {
			l.allowances[key] = prev
		} else {
			delete(l.allowances, key)
		}
	})
	l.allowances[key] = value
}

type deedKey struct {
	token common.Address
	id    string // decimal token id
}

// DeedLedger tracks unique-token ownership per token contract,
// ERC721-style, with one approved mover per deed. The approval clears on
// transfer.
type DeedLedger struct {
	mu        sync.RWMutex
	jnl       journal
	owners    map[deedKey]common.Address
	approvals map[deedKey]common.Address
}

func NewDeedLedger() *DeedLedger {
	return &DeedLedger{
		owners:    make(map[deedKey]common.Address),
		approvals: make(map[deedKey]common.Address),
	}
}

func (l *DeedLedger) Mint(token common.Address, id *big.Int, owner common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setOwner(deedKey{token, id.String()}, owner)
}

func (l *DeedLedger) OwnerOf(token common.Address, id *big.Int) (common.Address, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	owner, ok := l.owners[deedKey{token, id.String()}]
	return owner, ok
}

// Approve lets operator move one specific deed
func (l *DeedLedger) Approve(token common.Address, id *big.Int, operator common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := deedKey{token, id.String()}
	if _, ok := l.owners[key]; !ok {
		return fmt.Errorf("deed %s/%s does not exist", token.Hex(), id)
	}
	l.setApproval(key, operator)
	return nil
}

// TransferFrom moves a deed on behalf of spender, who must be the owner
// or the approved operator for that deed.
func (l *DeedLedger) TransferFrom(token common.Address, spender, from, to common.Address, id *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := deedKey{token, id.String()}
	owner, ok := l.owners[key]
	if !ok {
		return fmt.Errorf("deed %s/%s does not exist", token.Hex(), id)
	}
	if owner != from {
		return fmt.Errorf("deed %s/%s not owned by %s", token.Hex(), id, from.Hex())
	}
	if spender != owner && l.approvals[key] != spender {
		return fmt.Errorf("spender %s not approved for deed %s/%s", spender.Hex(), token.Hex(), id)
	}

	l.setApproval(key, common.Address{})
	l.setOwner(key, to)
	return nil
}

func (l *DeedLedger) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.jnl.snapshot()
}

func (l *DeedLedger) RevertTo(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jnl.revertTo(id)
}

func (l *DeedLedger) setOwner(key deedKey, owner common.Address) {
	prev, hadPrev := l.owners[key]
	l.jnl.record(func() {
		if hadPrev {
			l.owners[key] = prev
		} else {
			delete(l.owners, key)
		}
	})
	l.owners[key] = owner
}

func (l *DeedLedger) setApproval(key deedKey, operator common.Address) {
	prev, hadPrev := l.approvals[key]
	l.jnl.record(func() {
		if hadPrev {
			l.approvals[key] = prev
		} else {
			delete(l.approvals, key)
		}
	})
	if operator == (common.Address{}) {
		delete(l.approvals, key)
	} else {
		l.approvals[key] = operator
	}
}

type multiKey struct {
	token common.Address
	id    string
	owner common.Address
}

type operatorKey struct {
	token    common.Address
	owner    common.Address
	operator common.Address
}

// MultiLedger tracks per-id balances with blanket operator approvals,
// ERC1155-style.
type MultiLedger struct {
	mu        sync.RWMutex
	jnl       journal
	balances  map[multiKey]*big.Int
	operators map[operatorKey]bool
}

func NewMultiLedger() *MultiLedger {
	return &MultiLedger{
		balances:  make(map[multiKey]*big.Int),
		operators: make(map[operatorKey]bool),
	}
}

func (l *MultiLedger) Mint(token common.Address, id *big.Int, owner common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := multiKey{token, id.String(), owner}
	l.setBalance(key, new(big.Int).Add(l.balance(key), amount))
}

func (l *MultiLedger) BalanceOf(token common.Address, id *big.Int, owner common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.balance(multiKey{token, id.String(), owner}))
}

// SetApprovalForAll lets operator move any of owner's ids under token
func (l *MultiLedger) SetApprovalForAll(token, owner, operator common.Address, approved bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := operatorKey{token, owner, operator}
	prev, hadPrev := l.operators[key]
	l.jnl.record(func() {
		if hadPrev {
			l.operators[key] = prev
		} else {
			delete(l.operators, key)
		}
	})
	if approved {
		l.operators[key] = true
	} else {
		delete(l.operators, key)
	}
}

func (l *MultiLedger) TransferFrom(token common.Address, spender, from, to common.Address, id, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("negative amount")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if spender != from && !l.operators[operatorKey{token, from, spender}] {
		return fmt.Errorf("spender %s not an operator for %s", spender.Hex(), from.Hex())
	}

	fromKey := multiKey{token, id.String(), from}
	balance := l.balance(fromKey)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("balance %s < amount %s for %s id %s", balance, amount, from.Hex(), id)
	}
	toKey := multiKey{token, id.String(), to}
	l.setBalance(fromKey, new(big.Int).Sub(balance, amount))
	l.setBalance(toKey, new(big.Int).Add(l.balance(toKey), amount))
	return nil
}

func (l *MultiLedger) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.jnl.snapshot()
}

func (l *MultiLedger) RevertTo(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jnl.revertTo(id)
}

func (l *MultiLedger) balance(key multiKey) *big.Int {
	if b, ok := l.balances[key]; ok {
		return b
	}
	return new(big.Int)
}

func (l *MultiLedger) setBalance(key multiKey, value *big.Int) {
	prev, hadPrev := l.balances[key]
	l.jnl.record(func() {
		if hadPrev {
			l.balances[key] = prev
		} else {
			delete(l.balances, key)
		}
	})
	l.balances[key] = value
}
