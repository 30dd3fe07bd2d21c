// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

package store

import (
	"github.com/plasmalabs/exitgame/containers/threadsafe"
	"github.com/plasmalabs/exitgame/protocol"
)

// Memory is the in-process store used by tests and single-run tooling.
type Memory struct {
	exits *threadsafe.Map[protocol.ExitID, *protocol.InFlightExit]
}

func NewMemory() *Memory {
	return &Memory{
		exits: threadsafe.NewMap[protocol.ExitID, *protocol.InFlightExit](
			threadsafe.MapWithMetric[protocol.ExitID, *protocol.InFlightExit]("exits"),
		),
	}
}

func (m *Memory) Get(id protocol.ExitID) (*protocol.InFlightExit, error) {
	exit, ok := m.exits.TryGet(id)
	if !ok {
		return nil, ErrNotFound
	}
	return exit.Clone(), nil
}

func (m *Memory) Put(id protocol.ExitID, exit *protocol.InFlightExit) error {
	m.exits.Put(id, exit.Clone())
	return nil
}

func (m *Memory) Delete(id protocol.ExitID) error {
	m.exits.Delete(id)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
