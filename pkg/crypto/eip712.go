package crypto

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Kind is the 4-byte tag that selects which transfer handler services a
// token. Tags follow the ERC-165 interface-id convention so they match
// what signing clients put in their orders.
type Kind [4]byte

var (
	KindERC20   = Kind{0x36, 0x37, 0x2b, 0x07}
	KindERC721  = Kind{0x80, 0xac, 0x58, 0xcd}
	KindERC1155 = Kind{0xd9, 0xb6, 0x7a, 0x26}
	KindLegacy  = Kind{0x9a, 0x20, 0x48, 0x3d} // pre-721 deed contracts
)

func (k Kind) Hex() string { return hexutil.Encode(k[:]) }

func (k Kind) IsZero() bool { return k == Kind{} }

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Hex())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := KindFromHex(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// KindFromHex parses "0x36372b07" (or without prefix) into a Kind
func KindFromHex(s string) (Kind, error) {
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Kind{}, fmt.Errorf("invalid kind %q: %w", s, err)
	}
	if len(raw) != 4 {
		return Kind{}, fmt.Errorf("kind must be 4 bytes, got %d", len(raw))
	}
	var k Kind
	copy(k[:], raw)
	return k, nil
}

// Signature scheme version tags. The tag records how the order digest was
// presented to the key: directly, or wrapped as a personal message.
const (
	SigVersionTyped    uint8 = 0x01 // eth_signTypedData over the raw digest
	SigVersionPersonal uint8 = 0x45 // personal_sign over the prefixed digest
)

// Party is one leg of a swap: a wallet moving Param of Token, where Param
// is an amount for fungible kinds and a token id for deed kinds.
type Party struct {
	Wallet common.Address
	Token  common.Address
	Param  *big.Int
	Kind   Kind
}

// IsZero reports whether the party's wallet is the unspecified sentinel
func (p Party) IsZero() bool { return p.Wallet == (common.Address{}) }

// Signature carries the order authorization. Signatory names the key that
// signed; V/R/S are the recoverable ECDSA components with V in {27, 28}.
// A zero V means no signature was provided and the caller must be
// pre-authorized for the signer.
type Signature struct {
	Signatory common.Address
	Version   uint8
	V         uint8
	R         common.Hash
	S         common.Hash
}

// Provided reports whether a signature was attached at all
func (s Signature) Provided() bool { return s.V != 0 }

// Order is the structured swap intent that gets hashed and signed.
// The Signature field is excluded from the digest.
type Order struct {
	Nonce     uint64
	Expiry    uint64 // unix seconds
	Signer    Party
	Sender    Party
	Affiliate Party
	Signature Signature
}

// OrderCodec produces domain-bound EIP-712 digests for orders. The domain
// separator is computed once at construction; a signing client configured
// with the same name, version and verifying contract reproduces the exact
// digest offline.
type OrderCodec struct {
	types     apitypes.Types
	domain    apitypes.TypedDataDomain
	separator common.Hash
}

// NewOrderCodec builds a codec bound to the given signing domain.
// The domain deliberately omits chainId: orders are settled off-chain and
// clients identify the engine by its verifying-contract address alone.
func NewOrderCodec(name, version string, verifyingContract common.Address) (*OrderCodec, error) {
	c := &OrderCodec{
		types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Order": []apitypes.Type{
				{Name: "nonce", Type: "uint256"},
				{Name: "expiry", Type: "uint256"},
				{Name: "signer", Type: "Party"},
				{Name: "sender", Type: "Party"},
				{Name: "affiliate", Type: "Party"},
			},
			"Party": []apitypes.Type{
				{Name: "wallet", Type: "address"},
				{Name: "token", Type: "address"},
				{Name: "param", Type: "uint256"},
				{Name: "kind", Type: "bytes4"},
			},
		},
		domain: apitypes.TypedDataDomain{
			Name:              name,
			Version:           version,
			VerifyingContract: verifyingContract.Hex(),
		},
	}

	typedData := apitypes.TypedData{
		Types:       c.types,
		PrimaryType: "Order",
		Domain:      c.domain,
	}
	separator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	c.separator = common.BytesToHash(separator)
	return c, nil
}

// DomainSeparator returns the precomputed domain digest
func (c *OrderCodec) DomainSeparator() common.Hash {
	return c.separator
}

// HashOrder computes the digest a client signs for the given order.
// Pure function of the order's structural fields and the domain.
func (c *OrderCodec) HashOrder(order *Order) (common.Hash, error) {
	typedData := apitypes.TypedData{
		Types:       c.types,
		PrimaryType: "Order",
		Domain:      c.domain,
		Message: apitypes.TypedDataMessage{
			"nonce":     new(big.Int).SetUint64(order.Nonce).String(),
			"expiry":    new(big.Int).SetUint64(order.Expiry).String(),
			"signer":    partyMessage(order.Signer),
			"sender":    partyMessage(order.Sender),
			"affiliate": partyMessage(order.Affiliate),
		},
	}

	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash order: %w", err)
	}

	// Final digest: keccak256("\x19\x01" || domainSeparator || structHash)
	raw := make([]byte, 0, 2+32+32)
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, c.separator.Bytes()...)
	raw = append(raw, structHash...)
	return crypto.Keccak256Hash(raw), nil
}

func partyMessage(p Party) apitypes.TypedDataMessage {
	param := p.Param
	if param == nil {
		param = new(big.Int)
	}
	return apitypes.TypedDataMessage{
		"wallet": p.Wallet.Hex(),
		"token":  p.Token.Hex(),
		"param":  param.String(),
		"kind":   p.Kind.Hex(),
	}
}

// SignOrder hashes the order and attaches a signature from signer under
// the requested scheme version, naming the signer as signatory.
func (c *OrderCodec) SignOrder(order *Order, signer *Signer, version uint8) error {
	digest, err := c.HashOrder(order)
	if err != nil {
		return err
	}

	var raw []byte
	switch version {
	case SigVersionTyped:
		raw, err = signer.Sign(digest.Bytes())
	case SigVersionPersonal:
		raw, err = signer.SignPersonal(digest.Bytes())
	default:
		return fmt.Errorf("unknown signature version 0x%02x", version)
	}
	if err != nil {
		return fmt.Errorf("failed to sign order: %w", err)
	}

	order.Signature = Signature{
		Signatory: signer.Address(),
		Version:   version,
		V:         raw[64] + 27,
		R:         common.BytesToHash(raw[:32]),
		S:         common.BytesToHash(raw[32:64]),
	}
	return nil
}

// VerifyOrder reports whether the order's attached signature is a valid
// signature by its named signatory over the order digest, under the scheme
// the signature declares.
func (c *OrderCodec) VerifyOrder(order *Order) (bool, error) {
	if !order.Signature.Provided() {
		return false, nil
	}

	digest, err := c.HashOrder(order)
	if err != nil {
		return false, err
	}

	hash := digest.Bytes()
	switch order.Signature.Version {
	case SigVersionTyped:
		// raw digest signed directly
	case SigVersionPersonal:
		hash = PersonalDigest(hash)
	default:
		return false, nil
	}

	if order.Signature.V != 27 && order.Signature.V != 28 {
		return false, nil
	}

	raw := make([]byte, 65)
	copy(raw[:32], order.Signature.R.Bytes())
	copy(raw[32:64], order.Signature.S.Bytes())
	raw[64] = order.Signature.V - 27

	recovered, err := RecoverAddress(hash, raw)
	if err != nil {
		return false, nil
	}
	return recovered == order.Signature.Signatory, nil
}
