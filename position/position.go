// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

// Package position encodes a child-chain output location (block number,
// transaction index, output index) into a single comparable ordering key.
// Smaller keys are earlier in chain order: a larger block number always
// yields a larger key, and within one block a larger transaction index does.
package position

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

const (
	// BlockOffset is the key weight of one block number unit. It bounds the
	// number of transactions a single block can position.
	BlockOffset = 1_000_000_000
	// TxOffset is the key weight of one transaction index unit. It bounds the
	// number of outputs a single transaction can position.
	TxOffset = 10_000

	MaxTxIndex     = BlockOffset/TxOffset - 1
	MaxOutputIndex = TxOffset - 1
	// MaxBlockNum keeps every encodable key strictly below NonInclusion.
	MaxBlockNum = (math.MaxUint64 - 1) / BlockOffset
)

// Position is the ordering key. The zero value means "no position claimed";
// Encode never produces it because block numbering starts at one.
type Position uint64

// NonInclusion orders behind every encodable position. It is assigned to
// transactions that carry no inclusion claim, so that any included
// transaction outranks them.
const NonInclusion = Position(math.MaxUint64)

var (
	ErrBlockNumRange    = errors.New("block number out of range")
	ErrTxIndexRange     = errors.New("transaction index out of range")
	ErrOutputIndexRange = errors.New("output index out of range")
)

// Encode packs the triple into an ordering key, rejecting components outside
// their reserved numeric width.
func Encode(blockNum, txIndex, outputIndex uint64) (Position, error) {
	if blockNum == 0 || blockNum > MaxBlockNum {
		return 0, errors.Wrapf(ErrBlockNumRange, "blockNum %d", blockNum)
	}
	if txIndex > MaxTxIndex {
		return 0, errors.Wrapf(ErrTxIndexRange, "txIndex %d", txIndex)
	}
	if outputIndex > MaxOutputIndex {
		return 0, errors.Wrapf(ErrOutputIndexRange, "outputIndex %d", outputIndex)
	}
	return Position(blockNum*BlockOffset + txIndex*TxOffset + outputIndex), nil
}

// MustEncode is Encode for component values known to be in range.
func MustEncode(blockNum, txIndex, outputIndex uint64) Position {
	pos, err := Encode(blockNum, txIndex, outputIndex)
	if err != nil {
		panic(err)
	}
	return pos
}

func (p Position) BlockNum() uint64 {
	return uint64(p) / BlockOffset
}

func (p Position) TxIndex() uint64 {
	return uint64(p) % BlockOffset / TxOffset
}

func (p Position) OutputIndex() uint64 {
	return uint64(p) % TxOffset
}

// Decode unpacks the key back into its components.
func (p Position) Decode() (blockNum, txIndex, outputIndex uint64) {
	return p.BlockNum(), p.TxIndex(), p.OutputIndex()
}

// Before reports whether p is strictly earlier in chain order than other.
func (p Position) Before(other Position) bool {
	return p < other
}

// IsDeposit reports whether the position lies in the numeric space reserved
// for deposit blocks. Deposit blocks occupy the block numbers between
// consecutive child-block-interval multiples.
func (p Position) IsDeposit(childBlockInterval uint64) bool {
	if childBlockInterval == 0 {
		return false
	}
	return p.BlockNum()%childBlockInterval != 0
}

func (p Position) String() string {
	if p == NonInclusion {
		return "position(non-inclusion)"
	}
	return fmt.Sprintf("position(blk=%d tx=%d out=%d)", p.BlockNum(), p.TxIndex(), p.OutputIndex())
}
