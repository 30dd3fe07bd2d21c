// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

package option

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOption(t *testing.T) {
	none := None[uint64]()
	require.True(t, none.IsNone())
	require.False(t, none.IsSome())
	require.Equal(t, uint64(42), none.UnwrapOr(42))

	some := Some(uint64(7))
	require.True(t, some.IsSome())
	require.False(t, some.IsNone())
	require.Equal(t, uint64(7), some.Unwrap())
	require.Equal(t, uint64(7), some.UnwrapOr(42))
}

func TestOptionZeroValueIsDistinctFromNone(t *testing.T) {
	zero := Some(uint64(0))
	require.True(t, zero.IsSome())
	require.Equal(t, uint64(0), zero.Unwrap())
}
