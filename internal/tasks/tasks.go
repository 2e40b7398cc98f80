// Package tasks provides a small set of representative catalog entries.
// Individual task bodies are explicitly out of the core's scope (spec.md
// §1 Non-goals) — these exist only so the scheduler has something real
// to drive end to end; a production deployment is expected to register
// its own 50+ task bodies against the same task.Task contract.
package tasks

import (
	"fmt"

	"github.com/kardelitaitu/testnet-spammer/internal/errclass"
	"github.com/kardelitaitu/testnet-spammer/internal/task"
)

// DefaultWeight is used for any catalog entry not overridden by
// config.TaskWeight.
const DefaultWeight = 1

// SimpleTransfer submits a zero-value self-transfer, the minimal
// transaction shape that exercises the nonce coordinator end to end.
var SimpleTransfer = task.Func{
	TaskName: "simple_transfer",
	Body: func(ctx *task.Context) task.Result {
		h := ctx.Nonce.Reserve(ctx.WalletAddress, 1)
		txHash, err := ctx.Client.SendRawTransaction(ctx, fakeSignedTx(ctx.WalletAddress, h.Lowest()))
		if err != nil {
			ctx.Nonce.Abandon(h)
			return task.Failure(err.Error())
		}
		ctx.Nonce.MarkSubmitted(h)
		ctx.Nonce.MarkConfirmed(h)
		return task.Success(fmt.Sprintf("tx=%s", txHash))
	},
}

// GasPriceProbe reads the current gas price without submitting anything,
// exercising the read-only side of the RPC collaborator.
var GasPriceProbe = task.Func{
	TaskName: "gas_price_probe",
	Body: func(ctx *task.Context) task.Result {
		price, err := ctx.Client.GasPrice(ctx)
		if err != nil {
			return task.Failure(err.Error())
		}
		return task.Success(fmt.Sprintf("gas_price=%d", price))
	},
}

// BatchSend reserves a short run of consecutive nonces and submits them
// back to back, exercising C2's multi-nonce reservation path.
var BatchSend = task.Func{
	TaskName: "batch_send",
	Body: func(ctx *task.Context) task.Result {
		const batchSize = 3
		h := ctx.Nonce.Reserve(ctx.WalletAddress, batchSize)
		for _, n := range h.Nonces {
			if _, err := ctx.Client.SendRawTransaction(ctx, fakeSignedTx(ctx.WalletAddress, n)); err != nil {
				ctx.Nonce.Abandon(h)
				return task.Failure(err.Error())
			}
		}
		ctx.Nonce.MarkSubmitted(h)
		ctx.Nonce.MarkConfirmed(h)
		return task.Success("batch submitted")
	},
}

// ResilientTransfer drives the recovery protocol of spec.md §4.2 / §8
// Scenario B end to end: on a nonce-too-low rejection it abandons the
// stale reservation, forces a resync against the chain's reported
// nonce, reserves once more, and retries the send exactly once before
// giving up.
var ResilientTransfer = task.Func{
	TaskName: "resilient_transfer",
	Body: func(ctx *task.Context) task.Result {
		h := ctx.Nonce.Reserve(ctx.WalletAddress, 1)
		txHash, err := ctx.Client.SendRawTransaction(ctx, fakeSignedTx(ctx.WalletAddress, h.Lowest()))
		if err == nil {
			ctx.Nonce.MarkSubmitted(h)
			ctx.Nonce.MarkConfirmed(h)
			return task.Success(fmt.Sprintf("tx=%s", txHash))
		}

		if errclass.ClassOf(err) != errclass.NonceDesync {
			ctx.Nonce.Abandon(h)
			return task.Failure(err.Error())
		}

		ctx.Nonce.Abandon(h)
		ctx.Nonce.Resync(ctx, ctx.WalletAddress, ctx.WalletAddress)

		h = ctx.Nonce.Reserve(ctx.WalletAddress, 1)
		txHash, err = ctx.Client.SendRawTransaction(ctx, fakeSignedTx(ctx.WalletAddress, h.Lowest()))
		if err != nil {
			ctx.Nonce.Abandon(h)
			return task.Failure(err.Error())
		}
		ctx.Nonce.MarkSubmitted(h)
		ctx.Nonce.MarkConfirmed(h)
		return task.Success(fmt.Sprintf("tx=%s (resynced)", txHash))
	},
}

// Default returns the built-in catalog entries at DefaultWeight.
func Default() []task.Entry {
	return []task.Entry{
		{Task: SimpleTransfer, Weight: DefaultWeight},
		{Task: GasPriceProbe, Weight: DefaultWeight},
		{Task: BatchSend, Weight: DefaultWeight},
		{Task: ResilientTransfer, Weight: DefaultWeight},
	}
}

func fakeSignedTx(address string, nonce uint64) string {
	// Real signing is an external collaborator's responsibility (see
	// internal/wallet); this placeholder hex payload is only shaped like
	// a signed transaction so the RPC client's wire path is exercised
	// identically to how a real signer's output would be.
	return fmt.Sprintf("0x%s%02x", address[2:], nonce%256)
}
