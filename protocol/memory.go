// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

package protocol

import (
	"github.com/pkg/errors"

	"github.com/plasmalabs/exitgame/containers/threadsafe"
	"github.com/plasmalabs/exitgame/util/timeref"
)

var (
	ErrInvalidProtocol   = errors.New("invalid protocol id")
	ErrTxTypeRegistered  = errors.New("transaction type already registered")
	ErrBlockExists       = errors.New("block already recorded")
	ErrSpendRegistered   = errors.New("spending condition already registered")
	ErrHandlerRegistered = errors.New("guard handler already registered")
)

// StaticFramework is an in-process Framework fed by block submissions and
// one-time type registrations. It backs tests and single-node deployments.
type StaticFramework struct {
	minExitPeriod      timeref.SecondsDuration
	childBlockInterval uint64
	protocols          *threadsafe.Map[TxType, Protocol]
	blocks             *threadsafe.Map[uint64, BlockInfo]
}

func NewStaticFramework(minExitPeriod timeref.SecondsDuration, childBlockInterval uint64) *StaticFramework {
	return &StaticFramework{
		minExitPeriod:      minExitPeriod,
		childBlockInterval: childBlockInterval,
		protocols:          threadsafe.NewMap[TxType, Protocol](),
		blocks:             threadsafe.NewMap[uint64, BlockInfo](threadsafe.MapWithMetric[uint64, BlockInfo]("blocks")),
	}
}

// RegisterProtocol binds a transaction type to its finalization protocol.
// Bindings are write-once.
func (f *StaticFramework) RegisterProtocol(txType TxType, p Protocol) error {
	if !p.Valid() {
		return errors.Wrapf(ErrInvalidProtocol, "protocol %d", p)
	}
	if f.protocols.Has(txType) {
		return errors.Wrapf(ErrTxTypeRegistered, "tx type %d", txType)
	}
	f.protocols.Put(txType, p)
	return nil
}

// AddBlock records a submitted child block. Blocks are write-once.
func (f *StaticFramework) AddBlock(blockNum uint64, info BlockInfo) error {
	if f.blocks.Has(blockNum) {
		return errors.Wrapf(ErrBlockExists, "block %d", blockNum)
	}
	f.blocks.Put(blockNum, info)
	return nil
}

func (f *StaticFramework) MinExitPeriod() timeref.SecondsDuration {
	return f.minExitPeriod
}

func (f *StaticFramework) ChildBlockInterval() uint64 {
	return f.childBlockInterval
}

func (f *StaticFramework) ProtocolOf(txType TxType) (Protocol, error) {
	p, ok := f.protocols.TryGet(txType)
	if !ok {
		return 0, errors.Wrapf(ErrUnknownTxType, "tx type %d", txType)
	}
	return p, nil
}

func (f *StaticFramework) BlockAt(blockNum uint64) (BlockInfo, error) {
	info, ok := f.blocks.TryGet(blockNum)
	if !ok {
		return BlockInfo{}, errors.Wrapf(ErrUnknownBlock, "block %d", blockNum)
	}
	return info, nil
}

// MapGuardRegistry is the canonical OutputGuardRegistry: a write-once map
// from output type to handler.
type MapGuardRegistry struct {
	handlers *threadsafe.Map[OutputType, OutputGuardHandler]
}

func NewMapGuardRegistry() *MapGuardRegistry {
	return &MapGuardRegistry{handlers: threadsafe.NewMap[OutputType, OutputGuardHandler]()}
}

func (r *MapGuardRegistry) Register(outputType OutputType, handler OutputGuardHandler) error {
	if r.handlers.Has(outputType) {
		return errors.Wrapf(ErrHandlerRegistered, "output type %d", outputType)
	}
	r.handlers.Put(outputType, handler)
	return nil
}

func (r *MapGuardRegistry) HandlerFor(outputType OutputType) (OutputGuardHandler, bool) {
	return r.handlers.TryGet(outputType)
}

type spendKey struct {
	outputType OutputType
	txType     TxType
}

// MapSpendRegistry is the canonical SpendingConditionRegistry keyed by the
// (output type, spending transaction type) pair.
type MapSpendRegistry struct {
	conditions *threadsafe.Map[spendKey, SpendingCondition]
}

func NewMapSpendRegistry() *MapSpendRegistry {
	return &MapSpendRegistry{conditions: threadsafe.NewMap[spendKey, SpendingCondition]()}
}

func (r *MapSpendRegistry) Register(outputType OutputType, txType TxType, cond SpendingCondition) error {
	key := spendKey{outputType: outputType, txType: txType}
	if r.conditions.Has(key) {
		return errors.Wrapf(ErrSpendRegistered, "output type %d, tx type %d", outputType, txType)
	}
	r.conditions.Put(key, cond)
	return nil
}

func (r *MapSpendRegistry) ConditionFor(outputType OutputType, txType TxType) (SpendingCondition, bool) {
	return r.conditions.TryGet(spendKey{outputType: outputType, txType: txType})
}
