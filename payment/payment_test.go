// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

package payment

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/plasmalabs/exitgame/plasmatx"
	"github.com/plasmalabs/exitgame/position"
	"github.com/plasmalabs/exitgame/protocol"
	"github.com/plasmalabs/exitgame/util/testhelpers"
)

const ownerKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

func TestGuardHandlerOpensOwnGuard(t *testing.T) {
	owner := testhelpers.RandomAddress()
	guard := GuardFor(owner)
	handler := NewGuardHandler()

	require.True(t, handler.IsValid(guard, OutputType, owner.Bytes()))
	require.False(t, handler.IsValid(guard, OutputType, testhelpers.RandomAddress().Bytes()))
	require.False(t, handler.IsValid(guard, OutputType, owner.Bytes()[:10]))
	require.False(t, handler.IsValid(guard, protocol.OutputType(9), owner.Bytes()))

	addr, err := handler.ConfirmSigAddress(guard, OutputType, owner.Bytes())
	require.NoError(t, err)
	require.Equal(t, owner, addr)

	_, err = handler.ConfirmSigAddress(guard, OutputType, testhelpers.RandomAddress().Bytes())
	require.Error(t, err)
}

func TestSpendingConditionVerifiesOwnerSignature(t *testing.T) {
	ctx := context.Background()
	key, err := crypto.ToECDSA(common.FromHex(ownerKeyHex))
	require.NoError(t, err)
	owner := crypto.PubkeyToAddress(key.PublicKey)

	inputPos := position.MustEncode(1000, 0, 0)
	inputTx := &plasmatx.Transaction{
		TxType: uint64(TxType),
		Outputs: []plasmatx.Output{{
			OutputType: uint64(OutputType),
			Guard:      GuardFor(owner),
			Token:      testhelpers.RandomAddress(),
			Amount:     big.NewInt(100),
		}},
	}
	spendingTx := &plasmatx.Transaction{
		TxType: uint64(TxType),
		Inputs: []position.Position{inputPos},
		Outputs: []plasmatx.Output{{
			OutputType: uint64(OutputType),
			Guard:      GuardFor(testhelpers.RandomAddress()),
			Token:      testhelpers.RandomAddress(),
			Amount:     big.NewInt(100),
		}},
	}
	spendingBytes := spendingTx.MustEncode()
	witness, err := SignSpend(key, spendingBytes)
	require.NoError(t, err)

	cond := NewSpendingCondition()
	req := protocol.SpendRequest{
		InputTxBytes:       inputTx.MustEncode(),
		OutputIndex:        0,
		InputTxPos:         inputPos,
		SpendingTxBytes:    spendingBytes,
		SpendingInputIndex: 0,
		Witness:            witness,
	}
	ok, err := cond.Verify(ctx, req)
	require.NoError(t, err)
	require.True(t, ok)

	// Wrong signer.
	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	badWitness, err := SignSpend(otherKey, spendingBytes)
	require.NoError(t, err)
	badReq := req
	badReq.Witness = badWitness
	ok, err = cond.Verify(ctx, badReq)
	require.NoError(t, err)
	require.False(t, ok)

	// Spending transaction does not reference the input position.
	badReq = req
	badReq.InputTxPos = position.MustEncode(2000, 0, 0)
	ok, err = cond.Verify(ctx, badReq)
	require.NoError(t, err)
	require.False(t, ok)

	// Input index beyond the spending transaction's inputs.
	badReq = req
	badReq.SpendingInputIndex = 3
	_, err = cond.Verify(ctx, badReq)
	require.ErrorIs(t, err, ErrInputNotSpent)

	// Truncated witness.
	badReq = req
	badReq.Witness = witness[:40]
	_, err = cond.Verify(ctx, badReq)
	require.ErrorIs(t, err, ErrBadWitness)
}
