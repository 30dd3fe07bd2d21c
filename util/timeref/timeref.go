// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

// Package timeref abstracts the ledger clock so that timing rules can be
// evaluated against a real clock in production and an artificial one in tests.
package timeref

import (
	"errors"
	"math"
	"time"
)

// SecondsDuration is a unix timestamp or duration measured in whole seconds,
// matching the granularity of the ledger clock.
type SecondsDuration uint64

const MaxSecondsDuration = SecondsDuration(math.MaxUint64)

var ErrUnderflow = errors.New("arithmetic underflow")

func (sd SecondsDuration) SaturatingAdd(sd2 SecondsDuration) SecondsDuration {
	sum := sd + sd2
	if sum < sd {
		// overflowed, so return maxuint
		return MaxSecondsDuration
	}
	return sum
}

func (sd SecondsDuration) Sub(sd2 SecondsDuration) (SecondsDuration, error) {
	if sd < sd2 {
		return 0, ErrUnderflow
	}
	return sd - sd2, nil
}

// Reference yields the current ledger time.
type Reference interface {
	Get() SecondsDuration
}

type realReference struct{}

func NewRealReference() Reference {
	return realReference{}
}

func (realReference) Get() SecondsDuration {
	return SecondsDuration(time.Now().Unix())
}

// ArtificialReference is a manually advanced clock for tests.
type ArtificialReference struct {
	current SecondsDuration
}

func NewArtificialReference() *ArtificialReference {
	return &ArtificialReference{0}
}

func (ar *ArtificialReference) Get() SecondsDuration {
	return ar.current
}

func (ar *ArtificialReference) Set(newVal SecondsDuration) {
	ar.current = newVal
}

func (ar *ArtificialReference) Advance(delta SecondsDuration) {
	ar.current = ar.current.SaturatingAdd(delta)
}
