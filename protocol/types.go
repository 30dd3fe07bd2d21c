// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

// Package protocol defines the core types of the in-flight-exit challenge
// game and the interfaces of the external collaborators it reads from.
package protocol

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/plasmalabs/exitgame/containers/option"
	"github.com/plasmalabs/exitgame/position"
	"github.com/plasmalabs/exitgame/util/hashing"
	"github.com/plasmalabs/exitgame/util/timeref"
)

// TxType discriminates transaction families; each family registers its own
// spending conditions and finalization protocol.
type TxType uint64

// OutputType discriminates output families; each family registers its own
// guard handler.
type OutputType uint64

// Protocol identifies how transactions of a type become finalized evidence.
type Protocol uint8

const (
	// ProtocolMVP transactions are finalized at a chain position: an
	// inclusion proof plus a confirmation signature from the designated
	// signer.
	ProtocolMVP Protocol = 1
	// ProtocolMoreVP transactions are validated purely by the exit game's
	// own state-transition rules and need no inclusion claim.
	ProtocolMoreVP Protocol = 2
)

func (p Protocol) Valid() bool {
	return p == ProtocolMVP || p == ProtocolMoreVP
}

// SelfFinalizing reports whether transactions of this protocol are accepted
// as finalized without a position claim.
func (p Protocol) SelfFinalizing() bool {
	return p == ProtocolMoreVP
}

// ExitID keys an in-flight exit, derived deterministically from the disputed
// transaction's bytes.
type ExitID common.Hash

func ComputeExitID(txBytes []byte) ExitID {
	return ExitID(crypto.Keccak256Hash(txBytes))
}

func (id ExitID) Hash() common.Hash {
	return common.Hash(id)
}

func (id ExitID) String() string {
	return common.Hash(id).Hex()
}

// OutputID uniquely identifies one output of one transaction. Deposit
// outputs fold their position into the derivation because deposit
// transaction bytes alone are not unique across re-deposits.
type OutputID common.Hash

func NormalOutputID(txBytes []byte, outputIndex uint64) OutputID {
	return OutputID(hashing.SoliditySHA3(txBytes, hashing.Uint16ToBytes(uint16(outputIndex))))
}

func DepositOutputID(txBytes []byte, outputIndex uint64, pos position.Position) OutputID {
	return OutputID(hashing.SoliditySHA3(
		txBytes,
		hashing.Uint16ToBytes(uint16(outputIndex)),
		hashing.Uint64ToBytes(uint64(pos)),
	))
}

var ErrInputIndexRange = errors.New("input index out of range")

// InFlightExit is the per-exit record. It is created by the start-exit flow
// and finalized by the payout flow; the challenge game only mutates
// IsCanonical, OldestCompetitor and BondOwner.
type InFlightExit struct {
	// ExitStart is set once at exit creation; zero means the exit does not
	// exist.
	ExitStart timeref.SecondsDuration
	// IsCanonical defaults to true, flips on a successful challenge and
	// flips back on a successful rebuttal.
	IsCanonical bool
	// OldestCompetitor records the earliest-known competing position.
	OldestCompetitor option.Option[position.Position]
	// BondOwner is whichever party won the most recent dispute round.
	BondOwner common.Address
	// Inputs holds the derived output identifier of each input of the
	// disputed transaction, in input order.
	Inputs []OutputID
}

func (ife *InFlightExit) Exists() bool {
	return ife != nil && ife.ExitStart != 0
}

func (ife *InFlightExit) InputAt(index uint64) (OutputID, error) {
	if index >= uint64(len(ife.Inputs)) {
		return OutputID{}, errors.Wrapf(ErrInputIndexRange, "index %d, %d inputs", index, len(ife.Inputs))
	}
	return ife.Inputs[index], nil
}

// Clone deep-copies the record so callers can stage mutations without
// touching stored state.
func (ife *InFlightExit) Clone() *InFlightExit {
	cloned := *ife
	cloned.Inputs = append([]OutputID{}, ife.Inputs...)
	return &cloned
}
