// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

// Package payment implements the guard handler and spending condition for
// plain payment outputs: the guard commits to the owner address, and a
// spend is proven by the owner's signature over the spending transaction.
package payment

import (
	"context"
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/plasmalabs/exitgame/plasmatx"
	"github.com/plasmalabs/exitgame/protocol"
)

const (
	// TxType is the payment transaction family.
	TxType protocol.TxType = 1
	// OutputType is the plain payment output family.
	OutputType protocol.OutputType = 1
)

var (
	ErrBadWitness    = errors.New("witness is not a valid signature")
	ErrInputNotSpent = errors.New("spending transaction does not reference the input position")
)

// GuardFor commits an output to its owner address.
func GuardFor(owner common.Address) common.Hash {
	return crypto.Keccak256Hash(owner.Bytes())
}

// GuardHandler opens payment guards: the preimage is the owner address.
type GuardHandler struct{}

func NewGuardHandler() *GuardHandler {
	return &GuardHandler{}
}

func (h *GuardHandler) IsValid(guard common.Hash, outputType protocol.OutputType, preimage []byte) bool {
	if outputType != OutputType {
		return false
	}
	if len(preimage) != common.AddressLength {
		return false
	}
	return crypto.Keccak256Hash(preimage) == guard
}

// ConfirmSigAddress designates the owner as the only authorized
// confirmation signer.
func (h *GuardHandler) ConfirmSigAddress(guard common.Hash, outputType protocol.OutputType, preimage []byte) (common.Address, error) {
	if !h.IsValid(guard, outputType, preimage) {
		return common.Address{}, errors.Errorf("preimage does not open guard %s", guard.Hex())
	}
	return common.BytesToAddress(preimage), nil
}

// SigningDigest is what the owner signs to authorize a spend: an EIP-191
// personal-sign wrapper over the spending transaction's hash.
func SigningDigest(spendingTxBytes []byte) []byte {
	return accounts.TextHash(plasmatx.HashBytes(spendingTxBytes).Bytes())
}

// SignSpend produces a spend witness with the owner's key.
func SignSpend(key *ecdsa.PrivateKey, spendingTxBytes []byte) ([]byte, error) {
	return crypto.Sign(SigningDigest(spendingTxBytes), key)
}

// SpendingCondition proves payment spends: the spending transaction must
// reference the input's position, and the witness must be the owner's
// signature over the spending transaction.
type SpendingCondition struct{}

func NewSpendingCondition() *SpendingCondition {
	return &SpendingCondition{}
}

func (sc *SpendingCondition) Verify(_ context.Context, req protocol.SpendRequest) (bool, error) {
	inputTx, err := plasmatx.Decode(req.InputTxBytes)
	if err != nil {
		return false, err
	}
	spentOutput, err := inputTx.OutputAt(req.OutputIndex)
	if err != nil {
		return false, err
	}

	spendingTx, err := plasmatx.Decode(req.SpendingTxBytes)
	if err != nil {
		return false, err
	}
	if req.SpendingInputIndex >= uint64(len(spendingTx.Inputs)) {
		return false, errors.Wrapf(ErrInputNotSpent, "input index %d, %d inputs",
			req.SpendingInputIndex, len(spendingTx.Inputs))
	}
	if spendingTx.Inputs[req.SpendingInputIndex] != req.InputTxPos {
		return false, nil
	}

	signer, err := recoverSigner(SigningDigest(req.SpendingTxBytes), req.Witness)
	if err != nil {
		return false, err
	}
	// The guard commits to the owner; the recovered signer must hash to it.
	return crypto.Keccak256Hash(signer.Bytes()) == spentOutput.Guard, nil
}

func recoverSigner(digest, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, errors.Wrapf(ErrBadWitness, "signature length %d", len(sig))
	}
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, errors.Wrap(ErrBadWitness, err.Error())
	}
	return crypto.PubkeyToAddress(*pub), nil
}
