// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

package store

import (
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/plasmalabs/exitgame/protocol"
)

// keyspace prefix so the exit map can share a database with future tables.
var exitKeyPrefix = []byte("ife/")

// Pebble persists exit records in a pebble database.
type Pebble struct {
	db *pebble.DB
}

func OpenPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "could not open exit store at %s", path)
	}
	return &Pebble{db: db}, nil
}

func exitKey(id protocol.ExitID) []byte {
	return append(append([]byte{}, exitKeyPrefix...), id.Hash().Bytes()...)
}

func (p *Pebble) Get(id protocol.ExitID) (*protocol.InFlightExit, error) {
	value, closer, err := p.db.Get(exitKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not read exit %s", id)
	}
	defer closer.Close()
	// The value is only valid until the closer is released; decodeExit
	// copies everything it keeps.
	return decodeExit(value)
}

func (p *Pebble) Put(id protocol.ExitID, exit *protocol.InFlightExit) error {
	encoded, err := encodeExit(exit)
	if err != nil {
		return errors.Wrapf(err, "could not encode exit %s", id)
	}
	return p.db.Set(exitKey(id), encoded, pebble.Sync)
}

func (p *Pebble) Delete(id protocol.ExitID) error {
	return p.db.Delete(exitKey(id), pebble.Sync)
}

func (p *Pebble) Close() error {
	return p.db.Close()
}
