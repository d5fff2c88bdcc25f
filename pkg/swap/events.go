package swap

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pairswap/settle/pkg/crypto"
)

type EventType string

const (
	EventSwap       EventType = "swap"
	EventCancel     EventType = "cancel"
	EventInvalidate EventType = "invalidate"
	EventAuthorize  EventType = "authorize"
	EventRevoke     EventType = "revoke"
)

// PartyRecord is one settled leg as it appears in the settlement record.
// An absent affiliate shows up fully zeroed.
type PartyRecord struct {
	Wallet common.Address `json:"wallet"`
	Token  common.Address `json:"token"`
	Param  *big.Int       `json:"param"`
	Kind   crypto.Kind    `json:"kind"`
}

// SettlementRecord is emitted once per taken order. Sender carries the
// final resolved wallet, not the order's sentinel.
type SettlementRecord struct {
	Nonce     uint64      `json:"nonce"`
	Timestamp uint64      `json:"timestamp"`
	Signer    PartyRecord `json:"signer"`
	Sender    PartyRecord `json:"sender"`
	Affiliate PartyRecord `json:"affiliate"`
}

type CancelRecord struct {
	Nonce  uint64         `json:"nonce"`
	Wallet common.Address `json:"wallet"`
}

type InvalidateRecord struct {
	MinNonce uint64         `json:"min_nonce"`
	Wallet   common.Address `json:"wallet"`
}

type AuthorizeRecord struct {
	Approver common.Address `json:"approver"`
	Delegate common.Address `json:"delegate"`
	Expiry   uint64         `json:"expiry"`
}

type RevokeRecord struct {
	Approver common.Address `json:"approver"`
	Delegate common.Address `json:"delegate"`
}

// Event is the tagged union published on the engine's event stream,
// one payload field set per type.
type Event struct {
	Type       EventType         `json:"type"`
	Swap       *SettlementRecord `json:"swap,omitempty"`
	Cancel     *CancelRecord     `json:"cancel,omitempty"`
	Invalidate *InvalidateRecord `json:"invalidate,omitempty"`
	Authorize  *AuthorizeRecord  `json:"authorize,omitempty"`
	Revoke     *RevokeRecord     `json:"revoke,omitempty"`
}

func partyRecord(wallet common.Address, p crypto.Party) PartyRecord {
	param := p.Param
	if param == nil {
		param = new(big.Int)
	}
	return PartyRecord{
		Wallet: wallet,
		Token:  p.Token,
		Param:  param,
		Kind:   p.Kind,
	}
}
