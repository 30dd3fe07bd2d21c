// Copyright 2024-2025, Plasma Labs, Inc.
// For license information, see https://github.com/plasmalabs/exitgame/blob/main/LICENSE

package challenge

import "github.com/pkg/errors"

var (
	// ErrExitNotFound rejects operations on exits that were never started.
	ErrExitNotFound = errors.New("in-flight exit does not exist")
	// ErrNotFirstPhase rejects challenges outside the first-phase window.
	ErrNotFirstPhase = errors.New("challenge outside first phase of exit period")
	// ErrSameTransaction rejects a transaction competing with itself.
	ErrSameTransaction = errors.New("competing transaction equals in-flight transaction")
	// ErrInputMismatch rejects disputes whose claimed input does not resolve
	// to the exit's stored output identifier.
	ErrInputMismatch = errors.New("claimed input does not match exit input")
	// ErrNoGuardHandler rejects disputes referencing an output type with no
	// registered guard handler.
	ErrNoGuardHandler = errors.New("no output guard handler for output type")
	// ErrNoSpendingCondition rejects disputes with no registered spending
	// condition for the (output type, tx type) pair.
	ErrNoSpendingCondition = errors.New("no spending condition for type pair")
	// ErrSpendNotProven rejects disputes whose spending condition returned
	// false.
	ErrSpendNotProven = errors.New("competing transaction does not spend the input")
	// ErrInvalidPreimage rejects disputes with an inauthentic guard preimage.
	ErrInvalidPreimage = errors.New("output guard preimage invalid")
	// ErrCompetitorTooLate rejects competitors not strictly earlier than the
	// recorded one.
	ErrCompetitorTooLate = errors.New("competitor position not earlier than recorded competitor")
	// ErrNoCompetitor rejects rebuttals against unchallenged exits.
	ErrNoCompetitor = errors.New("no competitor recorded for exit")
	// ErrResponseTooLate rejects rebuttals whose position is not strictly
	// earlier than the recorded competitor.
	ErrResponseTooLate = errors.New("response position not earlier than recorded competitor")
	// ErrNotIncluded rejects rebuttals whose inclusion proof fails.
	ErrNotIncluded = errors.New("in-flight transaction not included under block root")
)
