// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

package hashing

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/ethereum/go-ethereum/common"
)

// SoliditySHA3 computes the keccak256 hash of the tight concatenation of its
// arguments, matching solidity's abi.encodePacked hashing.
func SoliditySHA3(data ...[]byte) common.Hash {
	var ret common.Hash
	hash := sha3.NewLegacyKeccak256()
	for _, b := range data {
		_, err := hash.Write(b)
		if err != nil {
			// This code should never be reached
			panic("Error writing SoliditySHA3 data")
		}
	}
	hash.Sum(ret[:0])
	return ret
}

// Uint16ToBytes returns the big-endian encoding of v.
func Uint16ToBytes(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

// Uint64ToBytes returns the big-endian encoding of v.
func Uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
