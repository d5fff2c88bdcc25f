package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pairswap/settle/params"
	"github.com/pairswap/settle/pkg/api"
	"github.com/pairswap/settle/pkg/crypto"
	"github.com/pairswap/settle/pkg/storage"
	"github.com/pairswap/settle/pkg/swap"
	"github.com/pairswap/settle/pkg/token"
	"github.com/pairswap/settle/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and file)
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = "data/swapd.log"
	}

	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	if !common.IsHexAddress(cfg.Domain.VerifyingContract) {
		sugar.Fatalw("invalid_verifying_contract", "addr", cfg.Domain.VerifyingContract)
	}
	contract := common.HexToAddress(cfg.Domain.VerifyingContract)

	// ---- Order codec (EIP-712 domain) ----
	codec, err := crypto.NewOrderCodec(cfg.Domain.Name, cfg.Domain.Version, contract)
	if err != nil {
		sugar.Fatalw("codec_init_failed", "err", err)
	}
	sugar.Infow("signing_domain",
		"name", cfg.Domain.Name,
		"version", cfg.Domain.Version,
		"contract", contract.Hex())

	// ---- Settlement ledger ----
	// DATA_DIR set: persistent pebble store. Unset: in-memory, lost on restart.
	var ledger swap.LedgerStore
	if cfg.Storage.DataDir != "" {
		pl, err := storage.NewPebbleLedger(filepath.Join(cfg.Storage.DataDir, "settle"))
		if err != nil {
			sugar.Fatalw("pebble_init_failed", "err", err)
		}
		defer pl.Close()
		ledger = pl
		sugar.Infow("ledger_opened", "backend", "pebble", "dir", cfg.Storage.DataDir)
	} else {
		ledger = swap.NewMemoryLedger()
		sugar.Infow("ledger_opened", "backend", "memory")
	}

	// ---- Token handlers ----
	// One ledger per token standard. The engine's contract address acts as
	// the approved operator for every transfer leg.
	kinds := swap.NewKindRegistry()
	handlers := []struct {
		kind crypto.Kind
		h    swap.TransferHandler
	}{
		{crypto.KindERC20, &token.ERC20Handler{Operator: contract, Ledger: token.NewFungibleLedger()}},
		{crypto.KindERC721, &token.ERC721Handler{Operator: contract, Ledger: token.NewDeedLedger()}},
		{crypto.KindERC1155, &token.ERC1155Handler{Operator: contract, Ledger: token.NewMultiLedger()}},
		{crypto.KindLegacy, &token.LegacyHandler{Operator: contract, Ledger: token.NewDeedLedger()}},
	}
	for _, reg := range handlers {
		if err := kinds.Register(reg.kind, reg.h); err != nil {
			sugar.Fatalw("kind_register_failed", "kind", reg.kind.Hex(), "err", err)
		}
	}
	sugar.Infow("kinds_registered", "count", len(kinds.Kinds()))

	engine := swap.NewEngine(codec, kinds, ledger, util.RealClock{}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API Server ----
	apiServer := api.NewServer(engine, logger)
	apiAddr := cfg.API.ListenAddr

	go func() {
		sugar.Infow("api_server_starting", "addr", apiAddr)
		if err := apiServer.Start(apiAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting_down")
}
