// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

// Package finalization decides whether a referenced transaction counts as
// standard-finalized evidence for dispute purposes. Two protocol variants
// exist: position-anchored (inclusion proof, plus a confirmation signature
// for MVP-protocol transactions) and self-finalizing (no position claim,
// accepted only for transaction types whose registered protocol validates
// by the exit game's own rules).
package finalization

import (
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/plasmalabs/exitgame/merkle"
	"github.com/plasmalabs/exitgame/plasmatx"
	"github.com/plasmalabs/exitgame/position"
	"github.com/plasmalabs/exitgame/protocol"
)

const blockRootCacheSize = 1024

var (
	ErrNotSelfFinalizing = errors.New("transaction without position claim is not self-finalizing")
	ErrNotIncluded       = errors.New("transaction not included under block root")
	ErrBadConfirmSig     = errors.New("invalid confirmation signature")
)

// Request describes one finalization claim.
type Request struct {
	// TxBytes is the referenced transaction.
	TxBytes []byte
	// TxType selects the registered protocol.
	TxType protocol.TxType
	// Pos is the claimed chain position; zero means no position is claimed.
	Pos position.Position
	// InclusionProof is the packed sibling path for position-anchored claims.
	InclusionProof []byte
	// ConfirmSig and ConfirmSigAddress carry the confirmation signature and
	// its required signer for MVP-protocol transactions.
	ConfirmSig        []byte
	ConfirmSigAddress common.Address
}

// Verifier resolves finalization claims against framework chain state.
// Block roots are immutable once submitted, so they are cached.
type Verifier struct {
	framework protocol.Framework
	roots     *lru.Cache[uint64, common.Hash]
}

func NewVerifier(framework protocol.Framework) *Verifier {
	roots, err := lru.New[uint64, common.Hash](blockRootCacheSize)
	if err != nil {
		panic(err) // only fails on non-positive size
	}
	return &Verifier{framework: framework, roots: roots}
}

// VerifyStandardFinalized returns nil when the request proves the referenced
// transaction finalized under its registered protocol, and a reason error
// otherwise.
func (v *Verifier) VerifyStandardFinalized(req Request) error {
	proto, err := v.framework.ProtocolOf(req.TxType)
	if err != nil {
		return err
	}
	if req.Pos == 0 {
		if !proto.SelfFinalizing() {
			return errors.Wrapf(ErrNotSelfFinalizing, "tx type %d protocol %d", req.TxType, proto)
		}
		return nil
	}

	root, err := v.blockRoot(req.Pos.BlockNum())
	if err != nil {
		return err
	}
	proof, err := merkle.ProofFromBytes(req.InclusionProof)
	if err != nil {
		return err
	}
	txHash := plasmatx.HashBytes(req.TxBytes)
	if !merkle.VerifyInclusion(merkle.LeafHash(req.TxBytes), req.Pos.TxIndex(), root, proof) {
		return errors.Wrapf(ErrNotIncluded, "tx %s at %s", txHash.Hex(), req.Pos)
	}

	if proto == protocol.ProtocolMVP {
		if err := verifyConfirmSig(txHash, root, req.ConfirmSig, req.ConfirmSigAddress); err != nil {
			return err
		}
	}
	return nil
}

func (v *Verifier) blockRoot(blockNum uint64) (common.Hash, error) {
	if root, ok := v.roots.Get(blockNum); ok {
		return root, nil
	}
	info, err := v.framework.BlockAt(blockNum)
	if err != nil {
		return common.Hash{}, err
	}
	v.roots.Add(blockNum, info.Root)
	return info.Root, nil
}

// ConfirmationDigest is the signing digest for confirmation signatures:
// an EIP-191 personal-sign wrapper over keccak(txHash || blockRoot).
func ConfirmationDigest(txHash, blockRoot common.Hash) []byte {
	return accounts.TextHash(crypto.Keccak256(txHash.Bytes(), blockRoot.Bytes()))
}

func verifyConfirmSig(txHash, blockRoot common.Hash, sig []byte, signer common.Address) error {
	if signer == (common.Address{}) {
		return errors.Wrap(ErrBadConfirmSig, "no designated signer")
	}
	if len(sig) != crypto.SignatureLength {
		return errors.Wrapf(ErrBadConfirmSig, "signature length %d", len(sig))
	}
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(ConfirmationDigest(txHash, blockRoot), normalized)
	if err != nil {
		return errors.Wrap(ErrBadConfirmSig, err.Error())
	}
	if crypto.PubkeyToAddress(*pub) != signer {
		return errors.Wrapf(ErrBadConfirmSig, "recovered %s, want %s",
			crypto.PubkeyToAddress(*pub).Hex(), signer.Hex())
	}
	return nil
}
