// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

package plasmatx

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plasmalabs/exitgame/position"
	"github.com/plasmalabs/exitgame/util/testhelpers"
)

func sampleTx() *Transaction {
	return &Transaction{
		TxType: 1,
		Inputs: []position.Position{
			position.MustEncode(1000, 2, 1),
			position.MustEncode(2001, 0, 0),
		},
		Outputs: []Output{
			{
				OutputType: 1,
				Guard:      testhelpers.RandomHash(),
				Token:      testhelpers.RandomAddress(),
				Amount:     big.NewInt(500),
			},
			{
				OutputType: 1,
				Guard:      testhelpers.RandomHash(),
				Token:      testhelpers.RandomAddress(),
				Amount:     big.NewInt(123),
			},
		},
		Metadata: testhelpers.RandomHash(),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tx := sampleTx()
	encoded, err := tx.Encode()
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, tx, decoded)

	reencoded, err := decoded.Encode()
	require.NoError(t, err)
	require.Equal(t, encoded, reencoded)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(testhelpers.RandomSlice(64))
	require.ErrorIs(t, err, ErrMalformedTx)
	_, err = Decode(nil)
	require.ErrorIs(t, err, ErrMalformedTx)
}

func TestValidationRules(t *testing.T) {
	tx := sampleTx()
	tx.TxType = 0
	_, err := tx.Encode()
	require.ErrorIs(t, err, ErrZeroTxType)

	tx = sampleTx()
	tx.Outputs = nil
	_, err = tx.Encode()
	require.ErrorIs(t, err, ErrNoOutputs)

	tx = sampleTx()
	for len(tx.Outputs) <= MaxOutputs {
		tx.Outputs = append(tx.Outputs, tx.Outputs[0])
	}
	_, err = tx.Encode()
	require.ErrorIs(t, err, ErrTooManyIO)

	tx = sampleTx()
	tx.Outputs[0].Amount = big.NewInt(0)
	_, err = tx.Encode()
	require.ErrorIs(t, err, ErrZeroAmount)
}

func TestHashMatchesHashBytes(t *testing.T) {
	tx := sampleTx()
	encoded, err := tx.Encode()
	require.NoError(t, err)

	h1, err := tx.Hash()
	require.NoError(t, err)
	require.Equal(t, HashBytes(encoded), h1)
}

func TestOutputAt(t *testing.T) {
	tx := sampleTx()
	out, err := tx.OutputAt(1)
	require.NoError(t, err)
	require.Equal(t, tx.Outputs[1], out)

	_, err = tx.OutputAt(2)
	require.ErrorIs(t, err, ErrOutputRange)
}
