package api

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pairswap/settle/pkg/crypto"
)

// Wire types for REST requests and responses. Addresses travel as 0x-hex,
// uint256 params as decimal strings, kind tags as 0x-hex bytes4.

// PartyPayload is one order leg as submitted by a client
type PartyPayload struct {
	Wallet string `json:"wallet"` // 0x... or empty for the zero sentinel
	Token  string `json:"token"`
	Param  string `json:"param"` // amount or token id, decimal
	Kind   string `json:"kind"`  // e.g. "0x36372b07"
}

// SignaturePayload carries the order authorization components
type SignaturePayload struct {
	Signatory string `json:"signatory"`
	Version   uint8  `json:"version"` // 0x01 typed, 0x45 personal
	V         uint8  `json:"v"`       // 0 = unsigned sentinel
	R         string `json:"r"`
	S         string `json:"s"`
}

// OrderPayload is the submit-ready order shape
type OrderPayload struct {
	Nonce     string            `json:"nonce"`
	Expiry    string            `json:"expiry"`
	Signer    PartyPayload      `json:"signer"`
	Sender    PartyPayload      `json:"sender"`
	Affiliate PartyPayload      `json:"affiliate"`
	Signature *SignaturePayload `json:"signature,omitempty"`
}

// SwapRequest submits an order for settlement on behalf of caller
type SwapRequest struct {
	Caller string       `json:"caller"`
	Order  OrderPayload `json:"order"`
}

type CancelRequest struct {
	Caller string   `json:"caller"`
	Nonces []uint64 `json:"nonces"`
}

type InvalidateRequest struct {
	Caller   string `json:"caller"`
	MinNonce uint64 `json:"min_nonce"`
}

type AuthorizeRequest struct {
	Caller   string `json:"caller"`
	Delegate string `json:"delegate"`
	Expiry   uint64 `json:"expiry"`
}

type RevokeRequest struct {
	Caller   string `json:"caller"`
	Delegate string `json:"delegate"`
}

type StatusResponse struct {
	Wallet string `json:"wallet"`
	Nonce  uint64 `json:"nonce"`
	Status string `json:"status"`
}

type WatermarkResponse struct {
	Wallet   string `json:"wallet"`
	MinNonce uint64 `json:"min_nonce"`
}

type DelegateResponse struct {
	Approver   string `json:"approver"`
	Delegate   string `json:"delegate"`
	Expiry     uint64 `json:"expiry"`
	Authorized bool   `json:"authorized"`
}

// ToOrder converts the wire payload into an engine order
func (o *OrderPayload) ToOrder() (*crypto.Order, error) {
	nonce, err := strconv.ParseUint(o.Nonce, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid nonce: %s", o.Nonce)
	}
	expiry, err := strconv.ParseUint(o.Expiry, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid expiry: %s", o.Expiry)
	}

	signer, err := o.Signer.toParty()
	if err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}
	sender, err := o.Sender.toParty()
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	affiliate, err := o.Affiliate.toParty()
	if err != nil {
		return nil, fmt.Errorf("affiliate: %w", err)
	}

	order := &crypto.Order{
		Nonce:     nonce,
		Expiry:    expiry,
		Signer:    signer,
		Sender:    sender,
		Affiliate: affiliate,
	}
	if o.Signature != nil {
		order.Signature = crypto.Signature{
			Signatory: common.HexToAddress(o.Signature.Signatory),
			Version:   o.Signature.Version,
			V:         o.Signature.V,
			R:         common.HexToHash(o.Signature.R),
			S:         common.HexToHash(o.Signature.S),
		}
	}
	return order, nil
}

func (p *PartyPayload) toParty() (crypto.Party, error) {
	party := crypto.Party{
		Wallet: common.HexToAddress(p.Wallet),
		Token:  common.HexToAddress(p.Token),
		Param:  new(big.Int),
	}

	if p.Param != "" {
		param, ok := new(big.Int).SetString(p.Param, 10)
		if !ok {
			return crypto.Party{}, fmt.Errorf("invalid param: %s", p.Param)
		}
		party.Param = param
	}

	if p.Kind != "" {
		kind, err := crypto.KindFromHex(p.Kind)
		if err != nil {
			return crypto.Party{}, err
		}
		party.Kind = kind
	}
	return party, nil
}

// FromOrder converts an engine order into the wire payload
func FromOrder(order *crypto.Order) *OrderPayload {
	payload := &OrderPayload{
		Nonce:     strconv.FormatUint(order.Nonce, 10),
		Expiry:    strconv.FormatUint(order.Expiry, 10),
		Signer:    fromParty(order.Signer),
		Sender:    fromParty(order.Sender),
		Affiliate: fromParty(order.Affiliate),
	}
	if order.Signature.Provided() {
		payload.Signature = &SignaturePayload{
			Signatory: order.Signature.Signatory.Hex(),
			Version:   order.Signature.Version,
			V:         order.Signature.V,
			R:         order.Signature.R.Hex(),
			S:         order.Signature.S.Hex(),
		}
	}
	return payload
}

func fromParty(p crypto.Party) PartyPayload {
	param := p.Param
	if param == nil {
		param = new(big.Int)
	}
	return PartyPayload{
		Wallet: p.Wallet.Hex(),
		Token:  p.Token.Hex(),
		Param:  param.String(),
		Kind:   p.Kind.Hex(),
	}
}
