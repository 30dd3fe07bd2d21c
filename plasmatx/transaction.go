// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

// Package plasmatx decodes and hashes the RLP wire form of child-chain
// transactions. The codec is generic over transaction type: per-type meaning
// of outputs and witnesses is left to the registered validators.
package plasmatx

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/plasmalabs/exitgame/position"
)

const (
	MaxInputs  = 4
	MaxOutputs = 4
)

var (
	ErrZeroTxType   = errors.New("transaction type must be nonzero")
	ErrNoOutputs    = errors.New("transaction has no outputs")
	ErrTooManyIO    = errors.New("transaction exceeds input/output limits")
	ErrOutputRange  = errors.New("output index out of range")
	ErrMalformedTx  = errors.New("malformed transaction bytes")
	ErrZeroAmount   = errors.New("output amount must be nonzero")
	ErrNilAmount    = errors.New("output amount missing")
)

// Output is one spendable output of a child-chain transaction. Guard is an
// opaque commitment that a type-specific handler validates against a
// preimage; its interpretation varies by output type.
type Output struct {
	OutputType uint64
	Guard      common.Hash
	Token      common.Address
	Amount     *big.Int
}

// Transaction is the generic wire transaction. Inputs reference the
// positions of the outputs being spent.
type Transaction struct {
	TxType   uint64
	Inputs   []position.Position
	Outputs  []Output
	Metadata common.Hash
}

// Decode parses and validates RLP transaction bytes.
func Decode(b []byte) (*Transaction, error) {
	var tx Transaction
	if err := rlp.DecodeBytes(b, &tx); err != nil {
		return nil, errors.Wrap(ErrMalformedTx, err.Error())
	}
	if err := tx.validate(); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (tx *Transaction) validate() error {
	if tx.TxType == 0 {
		return ErrZeroTxType
	}
	if len(tx.Outputs) == 0 {
		return ErrNoOutputs
	}
	if len(tx.Inputs) > MaxInputs || len(tx.Outputs) > MaxOutputs {
		return ErrTooManyIO
	}
	for _, out := range tx.Outputs {
		if out.Amount == nil {
			return ErrNilAmount
		}
		if out.Amount.Sign() == 0 {
			return ErrZeroAmount
		}
	}
	return nil
}

// Encode returns the canonical RLP form.
func (tx *Transaction) Encode() ([]byte, error) {
	if err := tx.validate(); err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(tx)
}

// MustEncode is Encode for transactions built in-process from valid parts.
func (tx *Transaction) MustEncode() []byte {
	b, err := tx.Encode()
	if err != nil {
		panic(err)
	}
	return b
}

// OutputAt returns the output at the given index.
func (tx *Transaction) OutputAt(index uint64) (Output, error) {
	if index >= uint64(len(tx.Outputs)) {
		return Output{}, errors.Wrapf(ErrOutputRange, "index %d, %d outputs", index, len(tx.Outputs))
	}
	return tx.Outputs[index], nil
}

// Hash returns the keccak digest of the canonical encoding.
func (tx *Transaction) Hash() (common.Hash, error) {
	b, err := tx.Encode()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(b), nil
}

// HashBytes digests raw transaction bytes without decoding them.
func HashBytes(b []byte) common.Hash {
	return crypto.Keccak256Hash(b)
}
