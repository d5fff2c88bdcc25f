package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pairswap/settle/params"
	"github.com/pairswap/settle/pkg/api"
	"github.com/pairswap/settle/pkg/crypto"
)

func main() {
	keyHex := flag.String("key", "", "signer private key (hex); generates a fresh key when empty")
	personal := flag.Bool("personal", false, "sign with the personal_sign prefix instead of the raw typed digest")
	flag.Parse()

	cfg := params.LoadFromEnv("")

	// Step 1: Generate or load key
	var signer *crypto.Signer
	var err error
	if *keyHex != "" {
		signer, err = crypto.FromPrivateKeyHex(*keyHex)
	} else {
		fmt.Println("Generating new keypair...")
		signer, err = crypto.GenerateKey()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Address: %s\n", signer.Address().Hex())
	fmt.Printf("Private Key: %s (KEEP SECRET!)\n\n", signer.PrivateKeyHex())

	// Step 2: Create order. Sender wallet is left zero so whoever submits
	// the order to the engine becomes the counterparty.
	order := &crypto.Order{
		Nonce:  1,
		Expiry: uint64(time.Now().Add(24 * time.Hour).Unix()),
		Signer: crypto.Party{
			Wallet: signer.Address(),
			Token:  common.HexToAddress("0x00000000000000000000000000000000000000aa"),
			Param:  big.NewInt(500000),
			Kind:   crypto.KindERC20,
		},
		Sender: crypto.Party{
			Token: common.HexToAddress("0x00000000000000000000000000000000000000bb"),
			Param: big.NewInt(10),
			Kind:  crypto.KindERC20,
		},
	}

	fmt.Println("Order Details:")
	fmt.Printf("  Nonce: %d\n", order.Nonce)
	fmt.Printf("  Expiry: %d\n", order.Expiry)
	fmt.Printf("  Signer gives: %s of %s\n", order.Signer.Param, order.Signer.Token.Hex())
	fmt.Printf("  Signer takes: %s of %s\n\n", order.Sender.Param, order.Sender.Token.Hex())

	// Step 3: Sign with the configured domain
	contract := common.HexToAddress(cfg.Domain.VerifyingContract)
	codec, err := crypto.NewOrderCodec(cfg.Domain.Name, cfg.Domain.Version, contract)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	scheme := crypto.SigVersionTyped
	if *personal {
		scheme = crypto.SigVersionPersonal
	}
	if err := codec.SignOrder(order, signer, scheme); err != nil {
		fmt.Printf("Error signing: %v\n", err)
		os.Exit(1)
	}

	digest, _ := codec.HashOrder(order)
	fmt.Printf("Digest: %s\n", digest.Hex())
	fmt.Printf("Signature: v=%d r=%s s=%s\n\n", order.Signature.V,
		order.Signature.R.Hex(), order.Signature.S.Hex())

	// Step 4: Verify signature
	fmt.Println("Verifying signature...")
	valid, err := codec.VerifyOrder(order)
	if err != nil {
		fmt.Printf("Error verifying: %v\n", err)
		os.Exit(1)
	}
	if !valid {
		fmt.Println("Signature INVALID")
		os.Exit(1)
	}
	fmt.Println("Signature VALID")
	fmt.Printf("  Signatory: %s\n\n", order.Signature.Signatory.Hex())

	// Step 5: Show how to submit
	req := api.SwapRequest{
		Caller: order.Signature.Signatory.Hex(),
		Order:  *api.FromOrder(order),
	}
	reqJSON, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("To settle this order:")
	fmt.Printf("  POST http://localhost%s/api/v1/swap\n", cfg.API.ListenAddr)
	fmt.Println("  Content-Type: application/json")
	fmt.Println("  Body:")
	fmt.Println(string(reqJSON))
}
