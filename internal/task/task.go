// Package task defines the task contract spec.md §6 names: chain
// interaction units (faucet claims, deploys, transfers, swaps, batch
// sends, scheduled transfers) run by the scheduler against a
// TaskContext. This package only defines the contract and a catalog of
// weighted entries; concrete task bodies are out of scope for the core
// (the spec's THE CORE is the substrate between task implementations
// and the RPC wire).
package task

import (
	"context"

	"github.com/kardelitaitu/testnet-spammer/internal/metricsink"
	"github.com/kardelitaitu/testnet-spammer/internal/nonce"
	"github.com/kardelitaitu/testnet-spammer/internal/rpcclient"
)

// Context is the reference bundle handed to a task's Run (spec.md
// §4.5 step 4): it does not transfer ownership of the underlying
// lease, only borrows the client and identity for the task's duration.
type Context struct {
	context.Context

	WorkerID      string
	WalletAddress string
	Client        rpcclient.Client
	Nonce         *nonce.Coordinator
	Metrics       *metricsink.Sink // optional; nil is valid, meaning no direct sub-operation logging
}

// Result is what a task body returns; the scheduler converts this into
// a metric row (spec.md §3).
type Result struct {
	Status  metricsink.Status
	Message string
}

// Success builds a Result with Status=SUCCESS.
func Success(message string) Result {
	return Result{Status: metricsink.StatusSuccess, Message: message}
}

// Failure builds a Result with Status=FAILED.
func Failure(message string) Result {
	return Result{Status: metricsink.StatusFailed, Message: message}
}

// Task is one catalog entry's executable contract (spec.md §4.5's
// task_catalog entry: {name, executor, weight}).
type Task interface {
	Name() string
	Run(ctx *Context) Result
}

// Func adapts a plain function to the Task interface, the common case
// for simple, self-contained task bodies.
type Func struct {
	TaskName string
	Body     func(ctx *Context) Result
}

func (f Func) Name() string { return f.TaskName }

func (f Func) Run(ctx *Context) Result { return f.Body(ctx) }

// Entry pairs a Task with its selection weight (spec.md §4.5: weights
// >= 1, higher weight selected more often).
type Entry struct {
	Task   Task
	Weight int
}
