package swap

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/pairswap/settle/pkg/crypto"
	"github.com/pairswap/settle/pkg/util"
)

// Engine validates and executes atomic token swaps. It owns the order
// status ledger, the per-signer minimum-nonce watermarks and the
// delegation ledger; the kind registry and the transfer handlers are
// external collaborators it only reads.
//
// A single mutex serializes every ledger mutation so no two settlement
// operations interleave their reads and writes. The lock is released
// around handler calls: handler code is untrusted and may re-enter the
// engine, in which case it observes the already-terminal order status
// and fails fast instead of deadlocking. A second lock serializes the
// transfer phase itself: the token journals hold one undo scope, so the
// snapshot/transfer/revert sequences of two swaps must never interleave.
type Engine struct {
	mu     sync.Mutex
	settle sync.Mutex
	codec  *crypto.OrderCodec
	kinds  *KindRegistry
	ledger LedgerStore
	clock  util.Clock
	log    *zap.SugaredLogger
	events chan Event
}

func NewEngine(codec *crypto.OrderCodec, kinds *KindRegistry, ledger LedgerStore, clock util.Clock, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		codec:  codec,
		kinds:  kinds,
		ledger: ledger,
		clock:  clock,
		log:    logger.Sugar(),
		events: make(chan Event, 256),
	}
}

// Events returns the engine's record stream. Records are published after
// an operation commits; slow consumers lose records rather than blocking
// settlement.
func (e *Engine) Events() <-chan Event {
	return e.events
}

func (e *Engine) publish(ev Event) {
	select {
	case e.events <- ev:
	default:
	}
}

func (e *Engine) now() uint64 {
	return uint64(e.clock.Now().Unix())
}

// Swap settles an order submitted by caller. The order status is marked
// TAKEN before any asset moves so a reentrant attempt against the same
// nonce fails fast; every later failure unwinds the mark and any
// completed legs, leaving no observable state change.
func (e *Engine) Swap(caller common.Address, order *crypto.Order) (*SettlementRecord, error) {
	now := e.now()
	signerWallet := order.Signer.Wallet

	e.mu.Lock()

	if order.Expiry <= now {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: expiry %d <= now %d", ErrOrderExpired, order.Expiry, now)
	}

	status, err := e.ledger.Status(signerWallet, order.Nonce)
	if err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("status read: %w", err)
	}
	switch status {
	case StatusTaken:
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: nonce %d", ErrOrderAlreadyTaken, order.Nonce)
	case StatusCanceled:
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: nonce %d", ErrOrderAlreadyCanceled, order.Nonce)
	}

	mark, err := e.ledger.Watermark(signerWallet)
	if err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("watermark read: %w", err)
	}
	if order.Nonce < mark {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: nonce %d < watermark %d", ErrNonceTooLow, order.Nonce, mark)
	}

	// Mark terminal before anything else. A failure below reverts this
	// as part of the same atomic unit.
	if err := e.ledger.SetStatus(signerWallet, order.Nonce, StatusTaken); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("status write: %w", err)
	}

	fail := func(err error) (*SettlementRecord, error) {
		if rbErr := e.ledger.SetStatus(signerWallet, order.Nonce, StatusOpen); rbErr != nil {
			e.log.Errorw("status_rollback_failed",
				"nonce", order.Nonce, "signer", signerWallet.Hex(), "err", rbErr)
		}
		e.mu.Unlock()
		return nil, err
	}

	// Resolve the final sender: an unspecified sender binds to the
	// caller with no authorization check.
	finalSender := order.Sender.Wallet
	if order.Sender.IsZero() {
		finalSender = caller
	} else if caller != finalSender {
		ok, err := e.isAuthorized(finalSender, caller, now)
		if err != nil {
			return fail(fmt.Errorf("delegation read: %w", err))
		}
		if !ok {
			return fail(fmt.Errorf("%w: caller %s is not a delegate of sender %s",
				ErrSenderUnauthorized, caller.Hex(), finalSender.Hex()))
		}
	}

	// Signer authorization: without a signature the caller itself must
	// be pre-authorized; with one, the signatory must be authorized and
	// the signature must verify against the order digest.
	if !order.Signature.Provided() {
		ok, err := e.isAuthorized(signerWallet, caller, now)
		if err != nil {
			return fail(fmt.Errorf("delegation read: %w", err))
		}
		if !ok {
			return fail(fmt.Errorf("%w: no signature and caller %s is not a delegate of signer %s",
				ErrSignerUnauthorized, caller.Hex(), signerWallet.Hex()))
		}
	} else {
		ok, err := e.isAuthorized(signerWallet, order.Signature.Signatory, now)
		if err != nil {
			return fail(fmt.Errorf("delegation read: %w", err))
		}
		if !ok {
			return fail(fmt.Errorf("%w: signatory %s is not a delegate of signer %s",
				ErrSignerUnauthorized, order.Signature.Signatory.Hex(), signerWallet.Hex()))
		}
		valid, err := e.codec.VerifyOrder(order)
		if err != nil {
			return fail(fmt.Errorf("%w: %v", ErrSignatureInvalid, err))
		}
		if !valid {
			return fail(fmt.Errorf("%w: signatory %s", ErrSignatureInvalid, order.Signature.Signatory.Hex()))
		}
	}

	// Resolve every leg's handler before moving anything. An
	// unresolvable kind is a hard failure, propagated verbatim.
	senderHandler, err := e.kinds.Resolve(order.Sender.Kind)
	if err != nil {
		return fail(err)
	}
	signerHandler, err := e.kinds.Resolve(order.Signer.Kind)
	if err != nil {
		return fail(err)
	}
	var affiliateHandler TransferHandler
	if !order.Affiliate.IsZero() {
		affiliateHandler, err = e.kinds.Resolve(order.Affiliate.Kind)
		if err != nil {
			return fail(err)
		}
	}

	e.mu.Unlock()

	// Serialize the whole transfer phase: the journals keep one undo
	// scope, so another swap's snapshot would swallow this one's entries.
	// A reentrant call for this nonce already failed on the TAKEN status
	// above and never reaches this lock.
	e.settle.Lock()

	// Snapshot each distinct reversible handler, then run the legs.
	handlers := []TransferHandler{senderHandler, signerHandler}
	if affiliateHandler != nil {
		handlers = append(handlers, affiliateHandler)
	}
	snaps := takeSnapshots(handlers)

	abort := func(err error) (*SettlementRecord, error) {
		revertSnapshots(snaps)
		e.mu.Lock()
		if rbErr := e.ledger.SetStatus(signerWallet, order.Nonce, StatusOpen); rbErr != nil {
			e.log.Errorw("status_rollback_failed",
				"nonce", order.Nonce, "signer", signerWallet.Hex(), "err", rbErr)
		}
		e.mu.Unlock()
		e.settle.Unlock()
		return nil, err
	}

	if err := execTransfer(senderHandler, finalSender, signerWallet, order.Sender); err != nil {
		return abort(err)
	}
	if err := execTransfer(signerHandler, signerWallet, finalSender, order.Signer); err != nil {
		return abort(err)
	}
	if affiliateHandler != nil {
		if err := execTransfer(affiliateHandler, signerWallet, order.Affiliate.Wallet, order.Affiliate); err != nil {
			return abort(err)
		}
	}

	e.settle.Unlock()

	record := &SettlementRecord{
		Nonce:     order.Nonce,
		Timestamp: now,
		Signer:    partyRecord(signerWallet, order.Signer),
		Sender:    partyRecord(finalSender, order.Sender),
	}
	if !order.Affiliate.IsZero() {
		record.Affiliate = partyRecord(order.Affiliate.Wallet, order.Affiliate)
	}

	e.log.Infow("order_settled",
		"nonce", order.Nonce,
		"signer", signerWallet.Hex(),
		"sender", finalSender.Hex(),
		"affiliate", order.Affiliate.Wallet.Hex(),
	)
	e.publish(Event{Type: EventSwap, Swap: record})
	return record, nil
}

func execTransfer(h TransferHandler, from, to common.Address, p crypto.Party) error {
	param := p.Param
	if param == nil {
		param = new(big.Int)
	}
	ok, err := h.Transfer(from, to, param, p.Token)
	if err != nil {
		return fmt.Errorf("transfer %s -> %s on %s: %w", from.Hex(), to.Hex(), p.Token.Hex(), err)
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s on %s", ErrTransferFailed, from.Hex(), to.Hex(), p.Token.Hex())
	}
	return nil
}

type snapshot struct {
	s  Snapshotter
	id int
}

func takeSnapshots(handlers []TransferHandler) []snapshot {
	var snaps []snapshot
	seen := make(map[Snapshotter]bool)
	for _, h := range handlers {
		s, ok := h.(Snapshotter)
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		snaps = append(snaps, snapshot{s: s, id: s.Snapshot()})
	}
	return snaps
}

func revertSnapshots(snaps []snapshot) {
	for i := len(snaps) - 1; i >= 0; i-- {
		snaps[i].s.RevertTo(snaps[i].id)
	}
}

// Cancel marks each currently-open nonce as CANCELED for the caller.
// Nonces already terminal are silently skipped. Returns the records of
// the nonces actually canceled.
func (e *Engine) Cancel(caller common.Address, nonces []uint64) ([]CancelRecord, error) {
	e.mu.Lock()
	var records []CancelRecord
	for _, nonce := range nonces {
		status, err := e.ledger.Status(caller, nonce)
		if err != nil {
			e.mu.Unlock()
			return nil, fmt.Errorf("status read: %w", err)
		}
		if status != StatusOpen {
			continue
		}
		if err := e.ledger.SetStatus(caller, nonce, StatusCanceled); err != nil {
			e.mu.Unlock()
			return nil, fmt.Errorf("status write: %w", err)
		}
		records = append(records, CancelRecord{Nonce: nonce, Wallet: caller})
	}
	e.mu.Unlock()

	for i := range records {
		e.log.Infow("order_canceled", "nonce", records[i].Nonce, "wallet", caller.Hex())
		e.publish(Event{Type: EventCancel, Cancel: &records[i]})
	}
	return records, nil
}

// Invalidate sets the caller's minimum-nonce watermark. No lower bound is
// enforced against the previous watermark: a signer lowering their own
// mark only re-enables their own not-yet-settled orders.
func (e *Engine) Invalidate(caller common.Address, minNonce uint64) (*InvalidateRecord, error) {
	e.mu.Lock()
	if err := e.ledger.SetWatermark(caller, minNonce); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("watermark write: %w", err)
	}
	e.mu.Unlock()

	record := &InvalidateRecord{MinNonce: minNonce, Wallet: caller}
	e.log.Infow("nonces_invalidated", "min_nonce", minNonce, "wallet", caller.Hex())
	e.publish(Event{Type: EventInvalidate, Invalidate: record})
	return record, nil
}

// Status returns the lifecycle marker for a (signer, nonce) pair
func (e *Engine) Status(signer common.Address, nonce uint64) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Status(signer, nonce)
}

// Watermark returns a signer's current minimum actionable nonce
func (e *Engine) Watermark(signer common.Address) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Watermark(signer)
}
