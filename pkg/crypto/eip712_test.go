package crypto

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func testCodec(t *testing.T) *OrderCodec {
	t.Helper()
	codec, err := NewOrderCodec("SWAP", "2", common.HexToAddress("0x1000000000000000000000000000000000000001"))
	if err != nil {
		t.Fatalf("failed to build codec: %v", err)
	}
	return codec
}

func testOrder(signerWallet, senderWallet common.Address) *Order {
	return &Order{
		Nonce:  42,
		Expiry: 1900000000,
		Signer: Party{
			Wallet: signerWallet,
			Token:  common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
			Param:  big.NewInt(500000),
			Kind:   KindERC20,
		},
		Sender: Party{
			Wallet: senderWallet,
			Token:  common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
			Param:  big.NewInt(10),
			Kind:   KindERC20,
		},
	}
}

func TestDomainSeparatorStable(t *testing.T) {
	c1 := testCodec(t)
	c2 := testCodec(t)
	if c1.DomainSeparator() != c2.DomainSeparator() {
		t.Error("same domain inputs produced different separators")
	}
	if c1.DomainSeparator() == (common.Hash{}) {
		t.Error("zero domain separator")
	}

	other, err := NewOrderCodec("SWAP", "3", common.HexToAddress("0x1000000000000000000000000000000000000001"))
	if err != nil {
		t.Fatalf("failed to build codec: %v", err)
	}
	if other.DomainSeparator() == c1.DomainSeparator() {
		t.Error("different versions produced the same separator")
	}
}

func TestHashOrderDeterministic(t *testing.T) {
	codec := testCodec(t)
	signer, _ := GenerateKey()
	sender, _ := GenerateKey()

	order := testOrder(signer.Address(), sender.Address())
	h1, err := codec.HashOrder(order)
	if err != nil {
		t.Fatalf("failed to hash: %v", err)
	}
	h2, _ := codec.HashOrder(order)
	if h1 != h2 {
		t.Error("hashing the same order twice gave different digests")
	}

	// Signature must not contribute to the digest
	order.Signature = Signature{V: 27, Version: SigVersionTyped}
	h3, _ := codec.HashOrder(order)
	if h3 != h1 {
		t.Error("signature field leaked into the order digest")
	}

	// A structural field change must
	order.Nonce++
	h4, _ := codec.HashOrder(order)
	if h4 == h1 {
		t.Error("nonce change did not change the digest")
	}
}

func TestHashOrderNilParam(t *testing.T) {
	codec := testCodec(t)
	order := testOrder(common.Address{}, common.Address{})
	order.Affiliate.Param = nil

	if _, err := codec.HashOrder(order); err != nil {
		t.Fatalf("nil param should hash as zero, got error: %v", err)
	}
}

func TestSignAndVerifyOrder(t *testing.T) {
	for _, version := range []uint8{SigVersionTyped, SigVersionPersonal} {
		codec := testCodec(t)
		signer, _ := GenerateKey()
		sender, _ := GenerateKey()
		order := testOrder(signer.Address(), sender.Address())

		if err := codec.SignOrder(order, signer, version); err != nil {
			t.Fatalf("version 0x%02x: failed to sign: %v", version, err)
		}
		if order.Signature.Signatory != signer.Address() {
			t.Errorf("version 0x%02x: signatory = %s, want signer", version, order.Signature.Signatory.Hex())
		}
		if order.Signature.V != 27 && order.Signature.V != 28 {
			t.Errorf("version 0x%02x: V = %d, want 27 or 28", version, order.Signature.V)
		}

		ok, err := codec.VerifyOrder(order)
		if err != nil {
			t.Fatalf("version 0x%02x: verify error: %v", version, err)
		}
		if !ok {
			t.Errorf("version 0x%02x: valid signature did not verify", version)
		}

		// Flip a byte of R: must fail
		tampered := *order
		tampered.Signature.R[5] ^= 0x01
		if ok, _ := codec.VerifyOrder(&tampered); ok {
			t.Errorf("version 0x%02x: tampered R verified", version)
		}

		// Wrong scheme tag: digest mismatch, must fail
		tampered = *order
		if version == SigVersionTyped {
			tampered.Signature.Version = SigVersionPersonal
		} else {
			tampered.Signature.Version = SigVersionTyped
		}
		if ok, _ := codec.VerifyOrder(&tampered); ok {
			t.Errorf("version 0x%02x: wrong scheme tag verified", version)
		}
	}
}

func TestVerifyOrderUnsigned(t *testing.T) {
	codec := testCodec(t)
	order := testOrder(common.Address{}, common.Address{})
	if ok, err := codec.VerifyOrder(order); ok || err != nil {
		t.Errorf("unsigned order: got (%v, %v), want (false, nil)", ok, err)
	}
}

func TestVerifyOrderDomainMismatch(t *testing.T) {
	codec := testCodec(t)
	signer, _ := GenerateKey()
	order := testOrder(signer.Address(), common.Address{})
	if err := codec.SignOrder(order, signer, SigVersionTyped); err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	// A codec bound to a different verifying contract computes a different
	// digest, so the same signature silently fails verification.
	other, err := NewOrderCodec("SWAP", "2", common.HexToAddress("0x2000000000000000000000000000000000000002"))
	if err != nil {
		t.Fatalf("failed to build codec: %v", err)
	}
	if ok, _ := other.VerifyOrder(order); ok {
		t.Error("signature verified under a mismatched domain")
	}
}

func TestKindFromHex(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"0x36372b07", KindERC20, false},
		{"80ac58cd", KindERC721, false},
		{"0xd9b67a26", KindERC1155, false},
		{"0x9a20483d", KindLegacy, false},
		{"0x36372b", Kind{}, true},
		{"0xzzzzzzzz", Kind{}, true},
	}
	for _, tt := range tests {
		got, err := KindFromHex(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("KindFromHex(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("KindFromHex(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("KindFromHex(%q) = %s, want %s", tt.in, got.Hex(), tt.want.Hex())
		}
	}
}
