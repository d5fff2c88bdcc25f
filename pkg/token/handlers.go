package token

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// The handlers below adapt the engine's uniform
// Transfer(from, to, param, token) call to each standard's native call
// sequence. Each acts as the settlement operator: parties grant their
// approvals to the operator address, and the handler spends them.

// ERC20Handler moves fungible amounts via approved transfer-from.
// Param is an amount.
type ERC20Handler struct {
	Operator common.Address
	Ledger   *FungibleLedger
}

func (h *ERC20Handler) Transfer(from, to common.Address, param *big.Int, token common.Address) (bool, error) {
	if err := h.Ledger.TransferFrom(token, h.Operator, from, to, param); err != nil {
		return false, err
	}
	return true, nil
}

func (h *ERC20Handler) Snapshot() int   { return h.Ledger.Snapshot() }
func (h *ERC20Handler) RevertTo(id int) { h.Ledger.RevertTo(id) }

// ERC721Handler moves a single deed by id. Param is a token id.
type ERC721Handler struct {
	Operator common.Address
	Ledger   *DeedLedger
}

func (h *ERC721Handler) Transfer(from, to common.Address, param *big.Int, token common.Address) (bool, error) {
	if err := h.Ledger.TransferFrom(token, h.Operator, from, to, param); err != nil {
		return false, err
	}
	return true, nil
}

func (h *ERC721Handler) Snapshot() int   { return h.Ledger.Snapshot() }
func (h *ERC721Handler) RevertTo(id int) { h.Ledger.RevertTo(id) }

// ERC1155Handler moves quantity one of the id named by param. The uniform
// contract carries a single value, so multi-token legs settle one unit
// per order.
type ERC1155Handler struct {
	Operator common.Address
	Ledger   *MultiLedger
}

var oneUnit = big.NewInt(1)

func (h *ERC1155Handler) Transfer(from, to common.Address, param *big.Int, token common.Address) (bool, error) {
	if err := h.Ledger.TransferFrom(token, h.Operator, from, to, param, oneUnit); err != nil {
		return false, err
	}
	return true, nil
}

func (h *ERC1155Handler) Snapshot() int   { return h.Ledger.Snapshot() }
func (h *ERC1155Handler) RevertTo(id int) { h.Ledger.RevertTo(id) }

// LegacyHandler services pre-721 deed contracts that report failure by
// silently not transferring rather than by raising. It surfaces that as
// a false success flag with no error.
type LegacyHandler struct {
	Operator common.Address
	Ledger   *DeedLedger
}

func (h *LegacyHandler) Transfer(from, to common.Address, param *big.Int, token common.Address) (bool, error) {
	if err := h.Ledger.TransferFrom(token, h.Operator, from, to, param); err != nil {
		return false, nil
	}
	return true, nil
}

func (h *LegacyHandler) Snapshot() int   { return h.Ledger.Snapshot() }
func (h *LegacyHandler) RevertTo(id int) { h.Ledger.RevertTo(id) }
