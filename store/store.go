// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

// Package store persists in-flight exit records. The store is exclusively
// owned by the challenge game: no other subsystem writes the canonicity
// fields. Implementations return full copies so callers can stage mutations
// and persist them atomically with Put.
package store

import (
	"github.com/pkg/errors"

	"github.com/plasmalabs/exitgame/protocol"
)

var ErrNotFound = errors.New("in-flight exit not found")

type Store interface {
	// Get returns a copy of the record for id, or ErrNotFound.
	Get(id protocol.ExitID) (*protocol.InFlightExit, error)
	// Put fully replaces the record for id.
	Put(id protocol.ExitID, exit *protocol.InFlightExit) error
	// Delete removes the record for id; deleting an absent record is a no-op.
	Delete(id protocol.ExitID) error
	Close() error
}
