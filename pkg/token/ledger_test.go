package token

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	tokenA   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	deedAddr = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	alice    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob      = common.HexToAddress("0x2222222222222222222222222222222222222222")
	operator = common.HexToAddress("0x9999999999999999999999999999999999999999")
)

func TestFungibleTransferFrom(t *testing.T) {
	l := NewFungibleLedger()
	l.Mint(tokenA, alice, big.NewInt(1000))
	l.Approve(tokenA, alice, operator, big.NewInt(600))

	if err := l.TransferFrom(tokenA, operator, alice, bob, big.NewInt(400)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if got := l.BalanceOf(tokenA, alice); got.Cmp(big.NewInt(600)) != 0 {
		t.Errorf("alice balance = %s, want 600", got)
	}
	if got := l.BalanceOf(tokenA, bob); got.Cmp(big.NewInt(400)) != 0 {
		t.Errorf("bob balance = %s, want 400", got)
	}
	if got := l.Allowance(tokenA, alice, operator); got.Cmp(big.NewInt(200)) != 0 {
		t.Errorf("allowance = %s, want 200", got)
	}
}

func TestFungibleTransferFromFailures(t *testing.T) {
	l := NewFungibleLedger()
	l.Mint(tokenA, alice, big.NewInt(100))

	// No allowance for operator
	if err := l.TransferFrom(tokenA, operator, alice, bob, big.NewInt(50)); err == nil {
		t.Error("expected allowance error")
	}

	// Owner spends own funds without allowance, but not more than balance
	if err := l.TransferFrom(tokenA, alice, alice, bob, big.NewInt(50)); err != nil {
		t.Errorf("self-spend failed: %v", err)
	}
	if err := l.TransferFrom(tokenA, alice, alice, bob, big.NewInt(51)); err == nil {
		t.Error("expected balance error")
	}
}

func TestFungibleRevert(t *testing.T) {
	l := NewFungibleLedger()
	l.Mint(tokenA, alice, big.NewInt(100))
	l.Approve(tokenA, alice, operator, big.NewInt(100))

	id := l.Snapshot()
	if err := l.TransferFrom(tokenA, operator, alice, bob, big.NewInt(70)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	l.RevertTo(id)

	if got := l.BalanceOf(tokenA, alice); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("alice balance after revert = %s, want 100", got)
	}
	if got := l.BalanceOf(tokenA, bob); got.Sign() != 0 {
		t.Errorf("bob balance after revert = %s, want 0", got)
	}
	if got := l.Allowance(tokenA, alice, operator); got.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("allowance after revert = %s, want 100", got)
	}
}

func TestDeedTransferFrom(t *testing.T) {
	l := NewDeedLedger()
	id := big.NewInt(7)
	l.Mint(deedAddr, id, alice)

	// Not approved yet
	if err := l.TransferFrom(deedAddr, operator, alice, bob, id); err == nil {
		t.Error("expected approval error")
	}

	if err := l.Approve(deedAddr, id, operator); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if err := l.TransferFrom(deedAddr, operator, alice, bob, id); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	owner, ok := l.OwnerOf(deedAddr, id)
	if !ok || owner != bob {
		t.Errorf("owner = %s, want bob", owner.Hex())
	}

	// Approval cleared on transfer: operator cannot move it again
	if err := l.TransferFrom(deedAddr, operator, bob, alice, id); err == nil {
		t.Error("expected approval cleared after transfer")
	}
}

func TestDeedRevert(t *testing.T) {
	l := NewDeedLedger()
	id := big.NewInt(7)
	l.Mint(deedAddr, id, alice)
	l.Approve(deedAddr, id, operator)

	snap := l.Snapshot()
	if err := l.TransferFrom(deedAddr, operator, alice, bob, id); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	l.RevertTo(snap)

	owner, _ := l.OwnerOf(deedAddr, id)
	if owner != alice {
		t.Errorf("owner after revert = %s, want alice", owner.Hex())
	}
	// The approval is restored along with ownership
	if err := l.TransferFrom(deedAddr, operator, alice, bob, id); err != nil {
		t.Errorf("transfer after revert failed: %v", err)
	}
}

func TestMultiTransferFrom(t *testing.T) {
	l := NewMultiLedger()
	id := big.NewInt(3)
	l.Mint(deedAddr, id, alice, big.NewInt(5))

	if err := l.TransferFrom(deedAddr, operator, alice, bob, id, big.NewInt(2)); err == nil {
		t.Error("expected operator error")
	}

	l.SetApprovalForAll(deedAddr, alice, operator, true)
	if err := l.TransferFrom(deedAddr, operator, alice, bob, id, big.NewInt(2)); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if got := l.BalanceOf(deedAddr, id, alice); got.Cmp(big.NewInt(3)) != 0 {
		t.Errorf("alice balance = %s, want 3", got)
	}
	if got := l.BalanceOf(deedAddr, id, bob); got.Cmp(big.NewInt(2)) != 0 {
		t.Errorf("bob balance = %s, want 2", got)
	}
}

func TestERC20HandlerTransfer(t *testing.T) {
	ledger := NewFungibleLedger()
	ledger.Mint(tokenA, alice, big.NewInt(100))
	ledger.Approve(tokenA, alice, operator, big.NewInt(100))

	h := &ERC20Handler{Operator: operator, Ledger: ledger}
	ok, err := h.Transfer(alice, bob, big.NewInt(40), tokenA)
	if err != nil || !ok {
		t.Fatalf("transfer = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = h.Transfer(alice, bob, big.NewInt(1000), tokenA)
	if err == nil || ok {
		t.Errorf("oversized transfer = (%v, %v), want (false, err)", ok, err)
	}
}

func TestERC1155HandlerMovesOneUnit(t *testing.T) {
	ledger := NewMultiLedger()
	id := big.NewInt(9)
	ledger.Mint(deedAddr, id, alice, big.NewInt(4))
	ledger.SetApprovalForAll(deedAddr, alice, operator, true)

	h := &ERC1155Handler{Operator: operator, Ledger: ledger}
	ok, err := h.Transfer(alice, bob, id, deedAddr)
	if err != nil || !ok {
		t.Fatalf("transfer = (%v, %v), want (true, nil)", ok, err)
	}

	if got := ledger.BalanceOf(deedAddr, id, bob); got.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("bob balance = %s, want 1", got)
	}
}

func TestLegacyHandlerReportsFailureAsFalse(t *testing.T) {
	ledger := NewDeedLedger()
	id := big.NewInt(12)
	ledger.Mint(deedAddr, id, alice)

	h := &LegacyHandler{Operator: operator, Ledger: ledger}

	// No approval: the legacy contract just does nothing
	ok, err := h.Transfer(alice, bob, id, deedAddr)
	if err != nil {
		t.Fatalf("legacy handler must not error, got %v", err)
	}
	if ok {
		t.Error("legacy handler reported success for a failed transfer")
	}

	ledger.Approve(deedAddr, id, operator)
	ok, err = h.Transfer(alice, bob, id, deedAddr)
	if err != nil || !ok {
		t.Fatalf("transfer = (%v, %v), want (true, nil)", ok, err)
	}
}
