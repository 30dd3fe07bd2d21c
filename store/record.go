// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

package store

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/plasmalabs/exitgame/containers/option"
	"github.com/plasmalabs/exitgame/position"
	"github.com/plasmalabs/exitgame/protocol"
	"github.com/plasmalabs/exitgame/util/timeref"
)

// exitRecord is the RLP wire form of an InFlightExit. The competitor option
// is flattened into a presence flag plus value because RLP has no native
// optional.
type exitRecord struct {
	ExitStart     uint64
	IsCanonical   bool
	HasCompetitor bool
	Competitor    uint64
	BondOwner     common.Address
	Inputs        []common.Hash
}

func encodeExit(exit *protocol.InFlightExit) ([]byte, error) {
	rec := exitRecord{
		ExitStart:   uint64(exit.ExitStart),
		IsCanonical: exit.IsCanonical,
		BondOwner:   exit.BondOwner,
		Inputs:      make([]common.Hash, len(exit.Inputs)),
	}
	if exit.OldestCompetitor.IsSome() {
		rec.HasCompetitor = true
		rec.Competitor = uint64(exit.OldestCompetitor.Unwrap())
	}
	for i, input := range exit.Inputs {
		rec.Inputs[i] = common.Hash(input)
	}
	return rlp.EncodeToBytes(&rec)
}

func decodeExit(b []byte) (*protocol.InFlightExit, error) {
	var rec exitRecord
	if err := rlp.DecodeBytes(b, &rec); err != nil {
		return nil, errors.Wrap(err, "corrupt exit record")
	}
	exit := &protocol.InFlightExit{
		ExitStart:        timeref.SecondsDuration(rec.ExitStart),
		IsCanonical:      rec.IsCanonical,
		OldestCompetitor: option.None[position.Position](),
		BondOwner:        rec.BondOwner,
		Inputs:           make([]protocol.OutputID, len(rec.Inputs)),
	}
	if rec.HasCompetitor {
		exit.OldestCompetitor = option.Some(position.Position(rec.Competitor))
	}
	for i, input := range rec.Inputs {
		exit.Inputs[i] = protocol.OutputID(input)
	}
	return exit, nil
}
