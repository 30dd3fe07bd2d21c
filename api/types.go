// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

// Package api defines the client-facing API for fetching data related to
// in-flight exit disputes. It handles HTTP methods with their requests and
// responses.
package api

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/plasmalabs/exitgame/position"
	"github.com/plasmalabs/exitgame/protocol"
)

// JsonPosition decomposes an encoded transaction-output position.
type JsonPosition struct {
	Encoded      uint64 `json:"encoded"`
	BlockNum     uint64 `json:"blockNum"`
	TxIndex      uint64 `json:"txIndex"`
	OutputIndex  uint64 `json:"outputIndex"`
	IsDeposit    bool   `json:"isDeposit"`
	NonInclusion bool   `json:"nonInclusion"`
}

// JsonInFlightExit is the wire form of an in-flight exit record.
type JsonInFlightExit struct {
	ExitID                   common.Hash    `json:"exitId"`
	ExitStart                uint64         `json:"exitStart"`
	IsCanonical              bool           `json:"isCanonical"`
	OldestCompetitorPosition *JsonPosition  `json:"oldestCompetitorPosition"`
	BondOwner                common.Address `json:"bondOwner"`
	Inputs                   []common.Hash  `json:"inputs"`
}

func jsonPosition(pos position.Position, childBlockInterval uint64) *JsonPosition {
	if pos == position.NonInclusion {
		return &JsonPosition{
			Encoded:      uint64(pos),
			NonInclusion: true,
		}
	}
	return &JsonPosition{
		Encoded:     uint64(pos),
		BlockNum:    pos.BlockNum(),
		TxIndex:     pos.TxIndex(),
		OutputIndex: pos.OutputIndex(),
		IsDeposit:   pos.IsDeposit(childBlockInterval),
	}
}

func jsonExit(id protocol.ExitID, exit *protocol.InFlightExit, childBlockInterval uint64) *JsonInFlightExit {
	out := &JsonInFlightExit{
		ExitID:      common.Hash(id),
		ExitStart:   uint64(exit.ExitStart),
		IsCanonical: exit.IsCanonical,
		BondOwner:   exit.BondOwner,
		Inputs:      make([]common.Hash, 0, len(exit.Inputs)),
	}
	if exit.OldestCompetitor.IsSome() {
		out.OldestCompetitorPosition = jsonPosition(exit.OldestCompetitor.Unwrap(), childBlockInterval)
	}
	for _, input := range exit.Inputs {
		out.Inputs = append(out.Inputs, common.Hash(input))
	}
	return out
}
