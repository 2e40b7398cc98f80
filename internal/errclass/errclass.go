// Package errclass implements the error taxonomy from spec.md §7:
// transient transport, nonce desync, logical chain failure, resource
// exhaustion, configuration, and cancellation. Tasks and core components
// classify errors through this package so the scheduler and metrics sink
// can make uniform decisions without string-matching RPC error text more
// than once.
package errclass

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Class identifies which bucket of the §7 taxonomy an error belongs to.
type Class int

const (
	Unknown Class = iota
	TransientTransport
	NonceDesync
	LogicalChainFailure
	ResourceExhaustion
	Configuration
	Cancellation
)

func (c Class) String() string {
	switch c {
	case TransientTransport:
		return "transient_transport"
	case NonceDesync:
		return "nonce_desync"
	case LogicalChainFailure:
		return "logical_chain_failure"
	case ResourceExhaustion:
		return "resource_exhaustion"
	case Configuration:
		return "configuration"
	case Cancellation:
		return "cancellation"
	default:
		return "unknown"
	}
}

// classified is a wrapped error carrying a taxonomy class.
type classified struct {
	class Class
	err   error
}

func (c *classified) Error() string { return c.err.Error() }
func (c *classified) Unwrap() error { return c.err }

// Wrap tags err with a class, preserving it for errors.As/Is chains.
func Wrap(class Class, err error) error {
	if err == nil {
		return nil
	}
	return &classified{class: class, err: errors.WithStack(err)}
}

// ClassOf extracts the class an error was wrapped with, or Unknown if it
// was never classified by this package.
func ClassOf(err error) Class {
	var c *classified
	if errors.As(err, &c) {
		return c.class
	}
	return Unknown
}

// ErrNonceTooLow, ErrUnderpriced, ErrInsufficientFunds and ErrReverted
// name the distinguishable send_raw_transaction outcomes (spec.md §6:
// nonce too low, underpriced, insufficient funds, reverted, other).
// ClassifyRPCError matches on the message text itself and does not
// return these values.
var ErrNonceTooLow = errors.New("nonce too low")
var ErrUnderpriced = errors.New("underpriced")
var ErrInsufficientFunds = errors.New("insufficient funds")
var ErrReverted = errors.New("reverted")

// ClassifyRPCError matches a JSON-RPC error's message text against the
// distinguishable outcomes spec.md §6 names, falling back to
// LogicalChainFailure for anything else the node reports as an
// application-level rejection (as opposed to a transport failure, which
// never reaches this path since it fails before a response is parsed).
func ClassifyRPCError(code int, message string) error {
	lower := strings.ToLower(message)
	wrapped := fmt.Errorf("rpc error %d: %s", code, message)
	switch {
	case strings.Contains(lower, "nonce too low"):
		return Wrap(NonceDesync, wrapped)
	case strings.Contains(lower, "underpriced"):
		return Wrap(LogicalChainFailure, wrapped)
	case strings.Contains(lower, "insufficient funds"):
		return Wrap(ResourceExhaustion, wrapped)
	case strings.Contains(lower, "revert"):
		return Wrap(LogicalChainFailure, wrapped)
	default:
		return Wrap(LogicalChainFailure, wrapped)
	}
}
