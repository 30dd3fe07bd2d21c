// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

package protocol

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/plasmalabs/exitgame/position"
	"github.com/plasmalabs/exitgame/util/timeref"
)

var (
	ErrUnknownTxType = errors.New("no protocol registered for transaction type")
	ErrUnknownBlock  = errors.New("unknown block number")
)

// BlockInfo is what the framework records per submitted child block.
type BlockInfo struct {
	Root      common.Hash
	Timestamp timeref.SecondsDuration
}

// Framework is the surrounding exit framework this subsystem reads chain
// state from. Implementations must be stable for the lifetime of a dispute:
// re-registering a transaction type or rewriting a block is not supported.
type Framework interface {
	MinExitPeriod() timeref.SecondsDuration
	ChildBlockInterval() uint64
	ProtocolOf(txType TxType) (Protocol, error)
	BlockAt(blockNum uint64) (BlockInfo, error)
}

// OutputGuardHandler validates guard preimages for one output type and
// derives the address expected to produce confirmation signatures.
type OutputGuardHandler interface {
	IsValid(guard common.Hash, outputType OutputType, preimage []byte) bool
	ConfirmSigAddress(guard common.Hash, outputType OutputType, preimage []byte) (common.Address, error)
}

// OutputGuardRegistry resolves guard handlers by output type. A missing
// handler is a hard failure for the dispute referencing it.
type OutputGuardRegistry interface {
	HandlerFor(outputType OutputType) (OutputGuardHandler, bool)
}

// SpendRequest carries everything a spending condition needs to prove that
// the spending transaction genuinely consumes the referenced input.
type SpendRequest struct {
	// InputTxBytes is the transaction that created the output being spent.
	InputTxBytes []byte
	// OutputIndex selects the spent output within InputTxBytes.
	OutputIndex uint64
	// InputTxPos is the chain position of the spent output.
	InputTxPos position.Position
	// SpendingTxBytes is the transaction claimed to spend the output.
	SpendingTxBytes []byte
	// SpendingInputIndex is where SpendingTxBytes references the output.
	SpendingInputIndex uint64
	// Witness is the type-specific authorization data, typically a
	// signature over the spending transaction.
	Witness []byte
	// OptionalArgs is an opaque extension blob forwarded untouched.
	OptionalArgs []byte
}

// SpendingCondition proves a spend for one (output type, transaction type)
// pair.
type SpendingCondition interface {
	Verify(ctx context.Context, req SpendRequest) (bool, error)
}

// SpendingConditionRegistry resolves spending conditions by the
// (output type, spending transaction type) pair.
type SpendingConditionRegistry interface {
	ConditionFor(outputType OutputType, txType TxType) (SpendingCondition, bool)
}
